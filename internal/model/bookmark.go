// Package model はドメインモデルを定義する。
package model

import "time"

// Bookmark はユーザーが保存したURLとそのメタデータを表す。
type Bookmark struct {
	ID              string
	UserID          string
	GenreID         string
	Title           string
	URL             string
	Description     string
	IsRead          bool
	HatebuCount     int
	HatebuFetchedAt *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// BookmarkWithGenre はブックマークとジャンル名・共有数を結合したモデル。
// genresテーブルおよびbookmark_sharesの件数集計とJOINして取得される。
type BookmarkWithGenre struct {
	Bookmark
	GenreName  string
	ShareCount int
}

// BookmarkListOptions はブックマーク一覧のフィルタ条件を表す。
// すべて任意で、組み合わせ可能。ゼロ値は「条件なし」を意味する。
type BookmarkListOptions struct {
	// GenreID はジャンルIDの完全一致フィルタ。空文字列なら未指定。
	GenreID string
	// Search はtitle/description/urlに対する大文字小文字を区別しない部分一致フィルタ。
	Search string
	// IsRead は既読状態フィルタ。nilなら既読・未読の両方を返す。
	IsRead *bool
	// Limit は取得件数の上限。0なら無制限。
	Limit int
}

// BookmarkUpdate はブックマークの部分更新を表す。
// 各フィールドは「未指定」「明示的null」「値あり」を型レベルで区別する。
// 未指定のフィールドは既存の値を維持する。
type BookmarkUpdate struct {
	Title       OptionalString `json:"title"`
	URL         OptionalString `json:"url"`
	Description OptionalString `json:"description"`
	GenreID     OptionalString `json:"genre_id"`
	IsRead      OptionalBool   `json:"is_read"`
}

// IsEmpty はすべてのフィールドが未指定の場合にtrueを返す。
func (u BookmarkUpdate) IsEmpty() bool {
	return !u.Title.Set && !u.URL.Set && !u.Description.Set && !u.GenreID.Set && !u.IsRead.Set
}
