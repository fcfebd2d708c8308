// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, bookmark, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeInvalidInput       = "INVALID_INPUT"
	ErrCodeGenreNotFound      = "GENRE_NOT_FOUND"
	ErrCodeBookmarkNotFound   = "BOOKMARK_NOT_FOUND"
	ErrCodeDuplicateGenreName = "DUPLICATE_GENRE_NAME"
	ErrCodeGenreHasBookmarks  = "GENRE_HAS_BOOKMARKS"
	ErrCodeInvalidURL         = "INVALID_URL"
	ErrCodeSSRFBlocked        = "SSRF_BLOCKED"
	ErrCodeFetchFailed        = "FETCH_FAILED"
	ErrCodeParseFailed        = "PARSE_FAILED"
	ErrCodeInternal           = "INTERNAL_ERROR"
)

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewInvalidInputError は入力不備エラーを生成する。
// reasonには不足・不正なフィールドの説明を指定する。
func NewInvalidInputError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidInput,
		Message:  fmt.Sprintf("入力内容に誤りがあります: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewGenreNotFoundError はジャンル未検出エラーを生成する。
// 他ユーザー所有のジャンルも「見つからない」として扱う（列挙攻撃対策）。
func NewGenreNotFoundError(genreID string) *APIError {
	return &APIError{
		Code:     ErrCodeGenreNotFound,
		Message:  fmt.Sprintf("指定されたジャンルが見つかりません: %s", genreID),
		Category: "bookmark",
		Action:   "ジャンルIDを確認してください。",
	}
}

// NewBookmarkNotFoundError はブックマーク未検出エラーを生成する。
// 他ユーザー所有のブックマークも「見つからない」として扱う（列挙攻撃対策）。
func NewBookmarkNotFoundError(bookmarkID string) *APIError {
	return &APIError{
		Code:     ErrCodeBookmarkNotFound,
		Message:  fmt.Sprintf("指定されたブックマークが見つかりません: %s", bookmarkID),
		Category: "bookmark",
		Action:   "ブックマークIDを確認してください。",
	}
}

// NewDuplicateGenreNameError はジャンル名重複エラーを生成する。
func NewDuplicateGenreNameError(name string) *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateGenreName,
		Message:  fmt.Sprintf("同じ名前のジャンルが既に存在します: %s", name),
		Category: "validation",
		Action:   "別のジャンル名を入力してください。",
	}
}

// NewGenreHasBookmarksError はブックマークが紐づくジャンルの削除拒否エラーを生成する。
// 呼び出し元が「N件のブックマークが紐づいています」と表示できるよう件数を含む。
func NewGenreHasBookmarksError(count int) *APIError {
	return &APIError{
		Code:     ErrCodeGenreHasBookmarks,
		Message:  fmt.Sprintf("このジャンルには%d件のブックマークが紐づいているため削除できません。", count),
		Category: "bookmark",
		Action:   "先に紐づくブックマークを削除または別ジャンルへ移動してください。",
	}
}

// NewInvalidURLError は無効なURLエラーを生成する。
func NewInvalidURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidURL,
		Message:  fmt.Sprintf("無効なURLです: %s", reason),
		Category: "validation",
		Action:   "正しいURL形式（http:// または https:// で始まるURL）を入力してください。",
	}
}

// NewSSRFBlockedError はSSRFブロックエラーを生成する。
func NewSSRFBlockedError() *APIError {
	return &APIError{
		Code:     ErrCodeSSRFBlocked,
		Message:  "セキュリティポリシーにより、指定されたURLへのアクセスがブロックされました。",
		Category: "validation",
		Action:   "公開されているWebサイトのURLを入力してください。ローカルネットワークやプライベートIPへのアクセスは許可されていません。",
	}
}

// NewFetchFailedError はフェッチ失敗エラーを生成する。
func NewFetchFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeFetchFailed,
		Message:  fmt.Sprintf("URLの取得に失敗しました: %s", reason),
		Category: "bookmark",
		Action:   "URLが正しいか確認し、しばらく待ってから再度お試しください。",
	}
}

// NewParseFailedError はフィード解析失敗エラーを生成する。
func NewParseFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeParseFailed,
		Message:  "フィードの解析に失敗しました。",
		Category: "bookmark",
		Action:   "有効なRSS/Atomフィードかどうか確認してください。",
	}
}
