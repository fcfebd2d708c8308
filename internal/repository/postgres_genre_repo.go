package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/takumi/shiori/internal/model"
)

// PostgreSQLのエラーコード。
// https://www.postgresql.org/docs/current/errcodes-appendix.html
const (
	pgErrUniqueViolation     = "23505"
	pgErrForeignKeyViolation = "23503"
)

// PostgresGenreRepository はGenreRepositoryのPostgreSQL実装。
type PostgresGenreRepository struct {
	db *sql.DB
}

var _ GenreRepository = (*PostgresGenreRepository)(nil)

// NewPostgresGenreRepository はPostgresGenreRepositoryを作成する。
func NewPostgresGenreRepository(db *sql.DB) *PostgresGenreRepository {
	return &PostgresGenreRepository{db: db}
}

// FindByIDAndUser は指定IDかつ指定ユーザー所有のジャンルを取得する。
// 他ユーザー所有のジャンルは存在しないものとして扱いnilを返す。
func (r *PostgresGenreRepository) FindByIDAndUser(ctx context.Context, userID, genreID string) (*model.Genre, error) {
	query := `
		SELECT id, user_id, name, created_at
		FROM genres
		WHERE id = $1 AND user_id = $2`

	var genre model.Genre
	err := r.db.QueryRowContext(ctx, query, genreID, userID).Scan(
		&genre.ID,
		&genre.UserID,
		&genre.Name,
		&genre.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ジャンルの取得に失敗しました: %w", err)
	}

	return &genre, nil
}

// FindByUserAndName はユーザーIDとジャンル名の完全一致でジャンルを検索する。
// 名前の比較はバイト列の完全一致（大文字小文字を区別する）。
func (r *PostgresGenreRepository) FindByUserAndName(ctx context.Context, userID, name string) (*model.Genre, error) {
	query := `
		SELECT id, user_id, name, created_at
		FROM genres
		WHERE user_id = $1 AND name = $2`

	var genre model.Genre
	err := r.db.QueryRowContext(ctx, query, userID, name).Scan(
		&genre.ID,
		&genre.UserID,
		&genre.Name,
		&genre.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ジャンルの取得に失敗しました: %w", err)
	}

	return &genre, nil
}

// ListByUserWithCount はユーザーのジャンル一覧を所属ブックマーク数付きで
// 名前昇順で返す。ブックマークが1件もないジャンルはcount=0になる。
func (r *PostgresGenreRepository) ListByUserWithCount(ctx context.Context, userID string) ([]model.GenreWithCount, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT g.id, g.user_id, g.name, g.created_at, COALESCE(bc.cnt, 0)
		 FROM genres g
		 LEFT JOIN (
		     SELECT genre_id, COUNT(*) AS cnt
		     FROM bookmarks
		     WHERE user_id = $1
		     GROUP BY genre_id
		 ) bc ON bc.genre_id = g.id
		 WHERE g.user_id = $1
		 ORDER BY g.name ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("ジャンル一覧（ブックマーク数付き）の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	genres := []model.GenreWithCount{}
	for rows.Next() {
		var g model.GenreWithCount
		if err := rows.Scan(&g.ID, &g.UserID, &g.Name, &g.CreatedAt, &g.BookmarkCount); err != nil {
			return nil, fmt.Errorf("ジャンル行の読み取りに失敗しました: %w", err)
		}
		genres = append(genres, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ジャンル一覧の走査に失敗しました: %w", err)
	}

	return genres, nil
}

// Create はジャンルを作成する。
// UNIQUE(user_id, name)制約に違反した場合はDUPLICATE_GENRE_NAMEエラーを返す。
func (r *PostgresGenreRepository) Create(ctx context.Context, genre *model.Genre) error {
	query := `
		INSERT INTO genres (id, user_id, name, created_at)
		VALUES ($1, $2, $3, $4)`

	_, err := r.db.ExecContext(ctx, query,
		genre.ID,
		genre.UserID,
		genre.Name,
		genre.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == pgErrUniqueViolation {
			return model.NewDuplicateGenreNameError(genre.Name)
		}
		return fmt.Errorf("ジャンルの作成に失敗しました: %w", err)
	}

	return nil
}

// DeleteIfUnreferenced は紐づくブックマークが存在しない場合のみジャンルを削除する。
// ジャンル行をFOR UPDATEでロックしてから依存件数を数えるため、
// 件数確認と削除の間に新しいブックマークが同一ジャンルへ追加されても
// ON DELETE RESTRICT制約と合わせて不整合は起こらない。
func (r *PostgresGenreRepository) DeleteIfUnreferenced(ctx context.Context, userID, genreID string) (bool, int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, 0, fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	var lockedID string
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM genres WHERE id = $1 AND user_id = $2 FOR UPDATE`,
		genreID, userID,
	).Scan(&lockedID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, 0, nil
	}
	if err != nil {
		return false, 0, fmt.Errorf("ジャンル行のロックに失敗しました: %w", err)
	}

	var dependents int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bookmarks WHERE genre_id = $1 AND user_id = $2`,
		genreID, userID,
	).Scan(&dependents)
	if err != nil {
		return false, 0, fmt.Errorf("依存ブックマーク数の取得に失敗しました: %w", err)
	}
	if dependents > 0 {
		return true, dependents, nil
	}

	_, err = tx.ExecContext(ctx, `DELETE FROM genres WHERE id = $1`, genreID)
	if err != nil {
		// ON DELETE RESTRICTによる保険。ロック下では通常到達しない。
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == pgErrForeignKeyViolation {
			return true, 1, nil
		}
		return false, 0, fmt.Errorf("ジャンルの削除に失敗しました: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, 0, fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
	}

	return true, 0, nil
}
