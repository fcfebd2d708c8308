package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/takumi/shiori/internal/model"
)

// PostgresIdentityRepository はIdentityRepositoryのPostgreSQL実装。
type PostgresIdentityRepository struct {
	db *sql.DB
}

var _ IdentityRepository = (*PostgresIdentityRepository)(nil)

// NewPostgresIdentityRepository はPostgresIdentityRepositoryを作成する。
func NewPostgresIdentityRepository(db *sql.DB) *PostgresIdentityRepository {
	return &PostgresIdentityRepository{db: db}
}

// FindByProviderAndProviderUserID はproviderとprovider_user_idでidentityを検索する。
// 見つからない場合はnilを返す。
func (r *PostgresIdentityRepository) FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error) {
	query := `
		SELECT id, user_id, provider, provider_user_id, created_at
		FROM identities
		WHERE provider = $1 AND provider_user_id = $2`

	var identity model.Identity
	err := r.db.QueryRowContext(ctx, query, provider, providerUserID).Scan(
		&identity.ID,
		&identity.UserID,
		&identity.Provider,
		&identity.ProviderUserID,
		&identity.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("identityの取得に失敗しました: %w", err)
	}

	return &identity, nil
}
