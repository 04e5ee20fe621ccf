package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveKey(t *testing.T) {
	a, err := DeriveKey("master")
	require.NoError(t, err)
	b, err := DeriveKey("master")
	require.NoError(t, err)
	c, err := DeriveKey("other")
	require.NoError(t, err)

	assert.Len(t, a, 32)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestSealOpenJSON(t *testing.T) {
	type creds struct {
		AccessKeyID string `json:"access_key_id"`
	}

	sealed, err := SealJSON(creds{AccessKeyID: "AKIA123"}, "master")
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), "AKIA123")

	var out creds
	require.NoError(t, OpenJSON(sealed, "master", &out))
	assert.Equal(t, "AKIA123", out.AccessKeyID)

	assert.Error(t, OpenJSON(sealed, "wrong", &out))
}

func TestDecryptTooShort(t *testing.T) {
	key, err := DeriveKey("k")
	require.NoError(t, err)
	_, err = Decrypt([]byte{1, 2}, key)
	assert.Error(t, err)
}
