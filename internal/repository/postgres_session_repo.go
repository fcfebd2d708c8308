package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/takumi/shiori/internal/model"
)

// PostgresSessionRepository はSessionRepositoryのPostgreSQL実装。
type PostgresSessionRepository struct {
	db *sql.DB
}

var _ SessionRepository = (*PostgresSessionRepository)(nil)

// NewPostgresSessionRepository はPostgresSessionRepositoryを作成する。
func NewPostgresSessionRepository(db *sql.DB) *PostgresSessionRepository {
	return &PostgresSessionRepository{db: db}
}

// Create はセッションを作成する。
func (r *PostgresSessionRepository) Create(ctx context.Context, session *model.Session) error {
	query := `
		INSERT INTO sessions (id, user_id, expires_at, created_at)
		VALUES ($1, $2, $3, $4)`

	_, err := r.db.ExecContext(ctx, query,
		session.ID,
		session.UserID,
		session.ExpiresAt,
		session.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("セッションの作成に失敗しました: %w", err)
	}

	return nil
}

// FindByID は指定IDのセッションを取得する。
// 期限切れのセッションは存在しないものとして扱いnilを返す。
func (r *PostgresSessionRepository) FindByID(ctx context.Context, id string) (*model.Session, error) {
	query := `
		SELECT id, user_id, expires_at, created_at
		FROM sessions
		WHERE id = $1 AND expires_at > now()`

	var session model.Session
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&session.ID,
		&session.UserID,
		&session.ExpiresAt,
		&session.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("セッションの取得に失敗しました: %w", err)
	}

	return &session, nil
}

// DeleteByID は指定IDのセッションを削除する。
func (r *PostgresSessionRepository) DeleteByID(ctx context.Context, id string) error {
	query := `DELETE FROM sessions WHERE id = $1`

	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("セッションの削除に失敗しました: %w", err)
	}

	return nil
}

// DeleteExpired は期限切れのセッションを削除し、削除した件数を返す。
func (r *PostgresSessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	query := `DELETE FROM sessions WHERE expires_at <= now()`

	result, err := r.db.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("期限切れセッションの削除に失敗しました: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除件数の取得に失敗しました: %w", err)
	}

	return deleted, nil
}
