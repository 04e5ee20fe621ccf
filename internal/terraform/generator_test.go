package terraform

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finopsmind/costengine/internal/model"
)

func testReport() *model.AuditReport {
	return &model.AuditReport{
		ID:          "r-1",
		ProfileName: "prod",
		AccountID:   "123456789012",
		StoppedInstances: []model.StoppedInstance{
			{ID: "i-0abc", Name: "web-1", Region: "us-west-2"},
			{ID: "i-0def", Region: "us-east-1"},
		},
		UnattachedVolumes: []model.UnattachedVolume{
			{ID: "vol-1", SizeGiB: 20, Region: "us-east-1"},
		},
		UnassociatedIPs: []model.UnassociatedFloatingIP{
			{PublicIP: "203.0.113.7", AllocationID: "eipalloc-9", Region: "us-west-2"},
		},
	}
}

func TestImports(t *testing.T) {
	imports := Imports(testReport())
	require.Len(t, imports, 4)
	assert.Equal(t, "aws_instance.stopped_web_1", imports[0].Address())
	assert.Equal(t, "aws_instance.stopped_i_0def", imports[1].Address())
	assert.Equal(t, "aws_ebs_volume.unattached_vol_1", imports[2].Address())
	assert.Equal(t, Import{ResourceEIP, "unassociated_203_0_113_7", "eipalloc-9", "us-west-2"}, imports[3])
}

func TestImportPlan(t *testing.T) {
	out, err := NewGenerator().ImportPlan(testReport())
	require.NoError(t, err)

	assert.Equal(t, 2, strings.Count(out, `provider "aws"`))
	assert.Equal(t, 4, strings.Count(out, "import {"))
	assert.Contains(t, out, "to       = aws_instance.stopped_web_1")
	assert.Contains(t, out, `id       = "eipalloc-9"`)
	assert.Contains(t, out, "provider = aws.us_west_2")
	assert.Contains(t, out, `alias  = "us_east_1"`)
	assert.Contains(t, out, "# Idle resources for profile \"prod\"")

	res := NewValidator().Validate(out)
	assert.True(t, res.Valid)
	assert.Equal(t, 4, res.Imports)
}

func TestImportPlanEmptyReport(t *testing.T) {
	out, err := NewGenerator().ImportPlan(&model.AuditReport{ProfileName: "empty"})
	require.NoError(t, err)
	assert.NotContains(t, out, "import {")
}

func TestValidatorRejectsBrokenPlans(t *testing.T) {
	v := NewValidator()

	res := v.Validate("import {\n  to = aws_instance.x\n")
	assert.False(t, res.Valid)
	assert.NotEmpty(t, res.Errors)

	res = v.Validate("import {\n  to = aws_instance.x\n}\n")
	assert.False(t, res.Valid)
	require.Len(t, res.Errors, 2)
	assert.Equal(t, 1, res.Errors[0].Line)

	_, err := v.ValidateAndFormat("import {\n  id = \"x\"\n}\n")
	assert.ErrorContains(t, err, `line 1: import block is missing "to"`)
}

func TestIdentifier(t *testing.T) {
	assert.Equal(t, "stopped_web_1", identifier("stopped_Web-1"))
	assert.Equal(t, "r_123", identifier("123"))
	assert.Equal(t, "r_", identifier("--"))

	n := newNamer()
	assert.Equal(t, "stopped_a", n.next("stopped", "a"))
	assert.Equal(t, "stopped_a_2", n.next("stopped", "a"))
}
