// Package repository provides the PostgreSQL-backed saved-profile store.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/finopsmind/costengine/internal/credentials"
	"github.com/finopsmind/costengine/internal/crypto"
	"github.com/finopsmind/costengine/internal/model"
)

// PostgresProfileStore reads saved profiles from the profiles table. The
// credentials column holds the AES-GCM sealed JSON of model.Credentials.
// Rows are written by the account onboarding tooling, never by this store.
type PostgresProfileStore struct {
	db            *sql.DB
	encryptionKey string
}

// NewPostgresProfileStore creates a new PostgresProfileStore.
func NewPostgresProfileStore(db *sql.DB, encryptionKey string) *PostgresProfileStore {
	return &PostgresProfileStore{db: db, encryptionKey: encryptionKey}
}

// Get implements credentials.Store.
func (r *PostgresProfileStore) Get(ctx context.Context, name string) (*model.Profile, error) {
	var row profileRow
	err := r.db.QueryRowContext(ctx, `
		SELECT name, provider_type, region, credentials
		FROM profiles WHERE name = $1
	`, name).Scan(&row.name, &row.provider, &row.region, &row.credentials)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, credentials.ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying profile %q: %w", name, err)
	}
	return row.decode(r.encryptionKey)
}

// List returns every saved profile without credentials.
func (r *PostgresProfileStore) List(ctx context.Context) ([]model.Profile, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT name, provider_type, region
		FROM profiles ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []model.Profile
	for rows.Next() {
		var p model.Profile
		var region sql.NullString
		if err := rows.Scan(&p.Name, &p.Provider, &region); err != nil {
			return nil, err
		}
		p.Region = region.String
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

type profileRow struct {
	name        string
	provider    string
	region      sql.NullString
	credentials []byte
}

func (row profileRow) decode(encryptionKey string) (*model.Profile, error) {
	p := &model.Profile{
		Name:     row.name,
		Provider: model.CloudProvider(row.provider),
		Region:   row.region.String,
	}
	if !p.Provider.Valid() {
		return nil, fmt.Errorf("profile %q: unknown provider %q", row.name, row.provider)
	}
	if len(row.credentials) > 0 {
		if err := crypto.OpenJSON(row.credentials, encryptionKey, &p.Credentials); err != nil {
			return nil, fmt.Errorf("profile %q: %w", row.name, err)
		}
	}
	return p, nil
}
