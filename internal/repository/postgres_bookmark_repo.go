package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/takumi/shiori/internal/model"
)

// PostgresBookmarkRepository はBookmarkRepositoryのPostgreSQL実装。
type PostgresBookmarkRepository struct {
	db *sql.DB
}

var (
	_ BookmarkRepository       = (*PostgresBookmarkRepository)(nil)
	_ HatebuBookmarkRepository = (*PostgresBookmarkRepository)(nil)
)

// NewPostgresBookmarkRepository はPostgresBookmarkRepositoryを作成する。
func NewPostgresBookmarkRepository(db *sql.DB) *PostgresBookmarkRepository {
	return &PostgresBookmarkRepository{db: db}
}

// ILIKEパターン内で特別な意味を持つ文字をエスケープする。
// ユーザー入力の検索語をリテラルとして扱うために使用する。
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// FindByIDAndUser は指定IDかつ指定ユーザー所有のブックマークを
// ジャンル名・共有数付きで取得する。
// 他ユーザー所有のブックマークは存在しないものとして扱いnilを返す。
func (r *PostgresBookmarkRepository) FindByIDAndUser(ctx context.Context, userID, bookmarkID string) (*model.BookmarkWithGenre, error) {
	query := `
		SELECT b.id, b.user_id, b.genre_id, b.title, b.url, COALESCE(b.description, ''),
		       b.is_read, b.hatebu_count, b.hatebu_fetched_at, b.created_at, b.updated_at,
		       g.name,
		       COALESCE(sc.cnt, 0)
		FROM bookmarks b
		JOIN genres g ON b.genre_id = g.id
		LEFT JOIN (
		    SELECT bookmark_id, COUNT(*) AS cnt
		    FROM bookmark_shares
		    GROUP BY bookmark_id
		) sc ON sc.bookmark_id = b.id
		WHERE b.id = $1 AND b.user_id = $2`

	var bm model.BookmarkWithGenre
	err := r.db.QueryRowContext(ctx, query, bookmarkID, userID).Scan(
		&bm.ID, &bm.UserID, &bm.GenreID, &bm.Title, &bm.URL, &bm.Description,
		&bm.IsRead, &bm.HatebuCount, &bm.HatebuFetchedAt, &bm.CreatedAt, &bm.UpdatedAt,
		&bm.GenreName,
		&bm.ShareCount,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ブックマークの取得に失敗しました: %w", err)
	}

	return &bm, nil
}

// ListByUser はユーザーのブックマーク一覧をフィルタ条件付きで返す。
// 並び順はcreated_at降順で固定。
// opts.Searchはtitle・description・urlに対する部分一致（大文字小文字を区別しない）。
// opts.Limitが0以下の場合はLIMIT句を付けない。
func (r *PostgresBookmarkRepository) ListByUser(ctx context.Context, userID string, opts model.BookmarkListOptions) ([]model.BookmarkWithGenre, error) {
	baseQuery := `
		SELECT b.id, b.user_id, b.genre_id, b.title, b.url, COALESCE(b.description, ''),
		       b.is_read, b.hatebu_count, b.hatebu_fetched_at, b.created_at, b.updated_at,
		       g.name,
		       COALESCE(sc.cnt, 0)
		FROM bookmarks b
		JOIN genres g ON b.genre_id = g.id
		LEFT JOIN (
		    SELECT bookmark_id, COUNT(*) AS cnt
		    FROM bookmark_shares
		    GROUP BY bookmark_id
		) sc ON sc.bookmark_id = b.id
		WHERE b.user_id = $1`

	args := []interface{}{userID}
	argIndex := 2

	if opts.GenreID != "" {
		baseQuery += fmt.Sprintf(" AND b.genre_id = $%d", argIndex)
		args = append(args, opts.GenreID)
		argIndex++
	}

	if opts.Search != "" {
		pattern := "%" + likeEscaper.Replace(opts.Search) + "%"
		baseQuery += fmt.Sprintf(
			" AND (b.title ILIKE $%d OR b.description ILIKE $%d OR b.url ILIKE $%d)",
			argIndex, argIndex, argIndex,
		)
		args = append(args, pattern)
		argIndex++
	}

	if opts.IsRead != nil {
		baseQuery += fmt.Sprintf(" AND b.is_read = $%d", argIndex)
		args = append(args, *opts.IsRead)
		argIndex++
	}

	baseQuery += " ORDER BY b.created_at DESC"

	if opts.Limit > 0 {
		baseQuery += fmt.Sprintf(" LIMIT $%d", argIndex)
		args = append(args, opts.Limit)
	}

	rows, err := r.db.QueryContext(ctx, baseQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("ブックマーク一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	bookmarks := []model.BookmarkWithGenre{}
	for rows.Next() {
		var bm model.BookmarkWithGenre
		err := rows.Scan(
			&bm.ID, &bm.UserID, &bm.GenreID, &bm.Title, &bm.URL, &bm.Description,
			&bm.IsRead, &bm.HatebuCount, &bm.HatebuFetchedAt, &bm.CreatedAt, &bm.UpdatedAt,
			&bm.GenreName,
			&bm.ShareCount,
		)
		if err != nil {
			return nil, fmt.Errorf("ブックマーク行の読み取りに失敗しました: %w", err)
		}
		bookmarks = append(bookmarks, bm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ブックマーク一覧の走査に失敗しました: %w", err)
	}

	return bookmarks, nil
}

// ExistsByUserAndURL は指定URLのブックマークをユーザーが既に保存済みかを返す。
// フィードインポート時の重複判定に使用する。
func (r *PostgresBookmarkRepository) ExistsByUserAndURL(ctx context.Context, userID, url string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM bookmarks WHERE user_id = $1 AND url = $2)`,
		userID, url,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("ブックマークの存在確認に失敗しました: %w", err)
	}

	return exists, nil
}

// Create はブックマークを作成する。
func (r *PostgresBookmarkRepository) Create(ctx context.Context, bookmark *model.Bookmark) error {
	query := `
		INSERT INTO bookmarks (id, user_id, genre_id, title, url, description, is_read, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.ExecContext(ctx, query,
		bookmark.ID,
		bookmark.UserID,
		bookmark.GenreID,
		bookmark.Title,
		bookmark.URL,
		bookmark.Description,
		bookmark.IsRead,
		bookmark.CreatedAt,
		bookmark.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("ブックマークの作成に失敗しました: %w", err)
	}

	return nil
}

// Update はリクエストに含まれていたフィールドのみを更新する部分更新を行う。
// 値がnullのフィールドはNULLに更新する（NOT NULL列へのnullは呼び出し側で弾くこと）。
// 対象が見つからない場合（他ユーザー所有を含む）はupdated=falseを返す。
func (r *PostgresBookmarkRepository) Update(ctx context.Context, userID, bookmarkID string, upd model.BookmarkUpdate) (bool, error) {
	setClauses := []string{}
	args := []interface{}{}
	argIndex := 1

	appendSet := func(column string, value interface{}) {
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", column, argIndex))
		args = append(args, value)
		argIndex++
	}

	if upd.Title.Set {
		appendSet("title", upd.Title.Value)
	}
	if upd.URL.Set {
		appendSet("url", upd.URL.Value)
	}
	if upd.Description.Set {
		appendSet("description", upd.Description.Value)
	}
	if upd.GenreID.Set {
		appendSet("genre_id", upd.GenreID.Value)
	}
	if upd.IsRead.Set {
		appendSet("is_read", upd.IsRead.Value)
	}
	if len(setClauses) == 0 {
		return false, fmt.Errorf("更新対象のフィールドが指定されていません")
	}

	appendSet("updated_at", time.Now())

	query := fmt.Sprintf(
		"UPDATE bookmarks SET %s WHERE id = $%d AND user_id = $%d",
		strings.Join(setClauses, ", "), argIndex, argIndex+1,
	)
	args = append(args, bookmarkID, userID)

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("ブックマークの更新に失敗しました: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("更新件数の取得に失敗しました: %w", err)
	}

	return affected > 0, nil
}

// Delete は指定IDかつ指定ユーザー所有のブックマークを削除する。
// 対象が見つからない場合（他ユーザー所有を含む）はdeleted=falseを返す。
func (r *PostgresBookmarkRepository) Delete(ctx context.Context, userID, bookmarkID string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM bookmarks WHERE id = $1 AND user_id = $2`,
		bookmarkID, userID,
	)
	if err != nil {
		return false, fmt.Errorf("ブックマークの削除に失敗しました: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("削除件数の取得に失敗しました: %w", err)
	}

	return affected > 0, nil
}

// ListNeedingHatebuFetch ははてなブックマーク数の取得が必要なブックマークを取得する。
// 未取得（hatebu_fetched_at IS NULL）を優先し、次に取得日時が古い順に返す。
func (r *PostgresBookmarkRepository) ListNeedingHatebuFetch(ctx context.Context, ttl time.Duration, limit int) ([]*model.Bookmark, error) {
	threshold := time.Now().Add(-ttl)

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, genre_id, title, url, COALESCE(description, ''),
		        is_read, hatebu_count, hatebu_fetched_at, created_at, updated_at
		 FROM bookmarks
		 WHERE hatebu_fetched_at IS NULL OR hatebu_fetched_at < $1
		 ORDER BY hatebu_fetched_at ASC NULLS FIRST
		 LIMIT $2`,
		threshold, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("はてブ数更新対象の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	bookmarks := []*model.Bookmark{}
	for rows.Next() {
		var bm model.Bookmark
		err := rows.Scan(
			&bm.ID, &bm.UserID, &bm.GenreID, &bm.Title, &bm.URL, &bm.Description,
			&bm.IsRead, &bm.HatebuCount, &bm.HatebuFetchedAt, &bm.CreatedAt, &bm.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("ブックマーク行の読み取りに失敗しました: %w", err)
		}
		bookmarks = append(bookmarks, &bm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("はてブ数更新対象の走査に失敗しました: %w", err)
	}

	return bookmarks, nil
}

// UpdateHatebuCount はブックマークのはてなブックマーク数と取得日時を更新する。
func (r *PostgresBookmarkRepository) UpdateHatebuCount(ctx context.Context, bookmarkID string, count int, fetchedAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE bookmarks SET hatebu_count = $1, hatebu_fetched_at = $2 WHERE id = $3`,
		count, fetchedAt, bookmarkID,
	)
	if err != nil {
		return fmt.Errorf("はてブ数の更新に失敗しました: %w", err)
	}

	return nil
}
