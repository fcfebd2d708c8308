// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/takumi/shiori/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// CreateWithIdentity はユーザーとidentityを同一トランザクションで作成する。
	CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity) error
}

// IdentityRepository は外部IdP紐付け情報の永続化インターフェース。
type IdentityRepository interface {
	// FindByProviderAndProviderUserID はproviderとprovider_user_idでidentityを検索する。
	// 見つからない場合はnilを返す。
	FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
}

// GenreRepository はジャンルデータの永続化インターフェース。
// 全操作がuser_id条件で所有者スコープされる。
type GenreRepository interface {
	// FindByIDAndUser は指定IDかつ指定ユーザー所有のジャンルを取得する。
	// 見つからない場合（他ユーザー所有を含む）はnilを返す。
	FindByIDAndUser(ctx context.Context, userID, genreID string) (*model.Genre, error)

	// FindByUserAndName はユーザーIDとジャンル名の完全一致でジャンルを検索する。
	// 見つからない場合はnilを返す。
	FindByUserAndName(ctx context.Context, userID, name string) (*model.Genre, error)

	// ListByUserWithCount はユーザーのジャンル一覧を所属ブックマーク数付きで
	// 名前昇順で返す。ブックマークが1件もないジャンルはcount=0になる。
	ListByUserWithCount(ctx context.Context, userID string) ([]model.GenreWithCount, error)

	// Create はジャンルを作成する。
	// 同一ユーザー内の名前重複はmodel.APIError（DUPLICATE_GENRE_NAME）を返す。
	Create(ctx context.Context, genre *model.Genre) error

	// DeleteIfUnreferenced は紐づくブックマークが存在しない場合のみジャンルを削除する。
	// ジャンル行のロック・依存件数の確認・削除を単一トランザクションで実行する。
	// 戻り値dependentsは削除を拒否した時点の依存ブックマーク数（削除成功時は0）。
	// ジャンルが存在しない（他ユーザー所有を含む）場合はfound=falseを返す。
	DeleteIfUnreferenced(ctx context.Context, userID, genreID string) (found bool, dependents int, err error)
}

// BookmarkRepository はブックマークデータの永続化インターフェース。
// 全操作がuser_id条件で所有者スコープされる。
type BookmarkRepository interface {
	// FindByIDAndUser は指定IDかつ指定ユーザー所有のブックマークをジャンル名・
	// 共有数付きで取得する。見つからない場合（他ユーザー所有を含む）はnilを返す。
	FindByIDAndUser(ctx context.Context, userID, bookmarkID string) (*model.BookmarkWithGenre, error)

	// ListByUser はユーザーのブックマーク一覧をフィルタ条件付きで返す。
	// 並び順はcreated_at降順で固定。各行にジャンル名と共有数を付与する。
	ListByUser(ctx context.Context, userID string, opts model.BookmarkListOptions) ([]model.BookmarkWithGenre, error)

	// ExistsByUserAndURL は指定URLのブックマークをユーザーが既に保存済みかを返す。
	ExistsByUserAndURL(ctx context.Context, userID, url string) (bool, error)

	// Create はブックマークを作成する。
	Create(ctx context.Context, bookmark *model.Bookmark) error

	// Update は指定されたフィールドのみを更新する部分更新を行う。
	// 対象が見つからない場合（他ユーザー所有を含む）はupdated=falseを返す。
	Update(ctx context.Context, userID, bookmarkID string, upd model.BookmarkUpdate) (updated bool, err error)

	// Delete は指定IDかつ指定ユーザー所有のブックマークを削除する。
	// 対象が見つからない場合はdeleted=falseを返す。
	Delete(ctx context.Context, userID, bookmarkID string) (deleted bool, err error)
}

// HatebuBookmarkRepository ははてなブックマーク数取得に必要なブックマーク操作のインターフェース。
type HatebuBookmarkRepository interface {
	// ListNeedingHatebuFetch ははてなブックマーク数の取得が必要なブックマークを取得する。
	// hatebu_fetched_at IS NULL（未取得）を優先し、次にhatebu_fetched_atが古い順に処理する。
	ListNeedingHatebuFetch(ctx context.Context, ttl time.Duration, limit int) ([]*model.Bookmark, error)

	// UpdateHatebuCount はブックマークのはてなブックマーク数と取得日時を更新する。
	UpdateHatebuCount(ctx context.Context, bookmarkID string, count int, fetchedAt time.Time) error
}

// TxBeginner はトランザクション開始用のインターフェース。
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}
