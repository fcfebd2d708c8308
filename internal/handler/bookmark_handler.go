// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/takumi/shiori/internal/bookmark"
	"github.com/takumi/shiori/internal/importer"
	"github.com/takumi/shiori/internal/metrics"
	"github.com/takumi/shiori/internal/middleware"
	"github.com/takumi/shiori/internal/model"
	"github.com/takumi/shiori/internal/pagemeta"
)

// BookmarkServiceInterface はブックマークハンドラーが必要とするサービスインターフェース。
type BookmarkServiceInterface interface {
	// ListBookmarks はユーザーのブックマーク一覧をフィルタ条件付きで返す。
	ListBookmarks(ctx context.Context, userID string, opts model.BookmarkListOptions) ([]model.BookmarkWithGenre, error)
	// GetBookmark はブックマーク詳細を返す。
	GetBookmark(ctx context.Context, userID, bookmarkID string) (*model.BookmarkWithGenre, error)
	// CreateBookmark は新しいブックマークを作成する。
	CreateBookmark(ctx context.Context, userID string, input bookmark.CreateInput) (*model.BookmarkWithGenre, error)
	// UpdateBookmark は指定されたフィールドのみを更新する部分更新を行う。
	UpdateBookmark(ctx context.Context, userID, bookmarkID string, upd model.BookmarkUpdate) (*model.BookmarkWithGenre, error)
	// DeleteBookmark はブックマークを削除する。
	DeleteBookmark(ctx context.Context, userID, bookmarkID string) error
}

// PreviewServiceInterface はページプレビュー取得サービスのインターフェース。
type PreviewServiceInterface interface {
	FetchPreview(ctx context.Context, inputURL string) (*pagemeta.PagePreview, error)
}

// ImportServiceInterface はフィードインポートサービスのインターフェース。
type ImportServiceInterface interface {
	ImportFeed(ctx context.Context, userID, genreID, feedURL string) (*importer.Result, error)
}

// BookmarkHandler はブックマーク管理のHTTPハンドラー。
type BookmarkHandler struct {
	service        BookmarkServiceInterface
	previewService PreviewServiceInterface
	importService  ImportServiceInterface
	collector      metrics.MetricsCollector
}

// NewBookmarkHandler はBookmarkHandlerを生成する。
func NewBookmarkHandler(
	service BookmarkServiceInterface,
	previewService PreviewServiceInterface,
	importService ImportServiceInterface,
	collector metrics.MetricsCollector,
) *BookmarkHandler {
	return &BookmarkHandler{
		service:        service,
		previewService: previewService,
		importService:  importService,
		collector:      collector,
	}
}

// --- リクエスト・レスポンス型 ---

// bookmarkResponse はブックマークのレスポンス。
type bookmarkResponse struct {
	ID          string    `json:"id"`
	GenreID     string    `json:"genre_id"`
	GenreName   string    `json:"genre_name"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Description string    `json:"description"`
	IsRead      bool      `json:"is_read"`
	ShareCount  int       `json:"share_count"`
	HatebuCount int       `json:"hatebu_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// bookmarkListResponse はブックマーク一覧のレスポンス。
type bookmarkListResponse struct {
	Bookmarks []bookmarkResponse `json:"bookmarks"`
}

// createBookmarkRequest はブックマーク作成リクエストのボディ。
type createBookmarkRequest struct {
	GenreID     string `json:"genre_id"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
	IsRead      bool   `json:"is_read"`
}

// previewResponse はページプレビューのレスポンス。
type previewResponse struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// importRequest はフィードインポートリクエストのボディ。
type importRequest struct {
	FeedURL string `json:"feed_url"`
	GenreID string `json:"genre_id"`
}

// importResponse はフィードインポート結果のレスポンス。
type importResponse struct {
	FeedTitle string `json:"feed_title"`
	Imported  int    `json:"imported"`
	Skipped   int    `json:"skipped"`
}

func toBookmarkResponse(b model.BookmarkWithGenre) bookmarkResponse {
	return bookmarkResponse{
		ID:          b.ID,
		GenreID:     b.GenreID,
		GenreName:   b.GenreName,
		Title:       b.Title,
		URL:         b.URL,
		Description: b.Description,
		IsRead:      b.IsRead,
		ShareCount:  b.ShareCount,
		HatebuCount: b.HatebuCount,
		CreatedAt:   b.CreatedAt,
		UpdatedAt:   b.UpdatedAt,
	}
}

// ListBookmarks はユーザーのブックマーク一覧を取得する。
// GET /api/bookmarks?genreId=xxx&search=yyy&isRead=true|false&limit=N
func (h *BookmarkHandler) ListBookmarks(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	opts, err := bookmark.ParseListOptions(r.URL.Query())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	bookmarks, err := h.service.ListBookmarks(r.Context(), userID, opts)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := bookmarkListResponse{Bookmarks: make([]bookmarkResponse, 0, len(bookmarks))}
	for _, b := range bookmarks {
		resp.Bookmarks = append(resp.Bookmarks, toBookmarkResponse(b))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// GetBookmark はブックマーク詳細を取得する。
// GET /api/bookmarks/{id}
func (h *BookmarkHandler) GetBookmark(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	bookmarkID := chi.URLParam(r, "id")

	b, err := h.service.GetBookmark(r.Context(), userID, bookmarkID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toBookmarkResponse(*b))
}

// CreateBookmark は新しいブックマークを作成する。
// POST /api/bookmarks
func (h *BookmarkHandler) CreateBookmark(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req createBookmarkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidInputError("リクエストボディの解析に失敗しました"))
		return
	}

	b, err := h.service.CreateBookmark(r.Context(), userID, bookmark.CreateInput{
		GenreID:     req.GenreID,
		Title:       req.Title,
		URL:         req.URL,
		Description: req.Description,
		IsRead:      req.IsRead,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.collector.RecordBookmarkCreated()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toBookmarkResponse(*b))
}

// UpdateBookmark はブックマークを部分更新する。
// リクエストボディに含まれないフィールドは変更しない。
// PATCH /api/bookmarks/{id}
func (h *BookmarkHandler) UpdateBookmark(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	bookmarkID := chi.URLParam(r, "id")

	var upd model.BookmarkUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidInputError("リクエストボディの解析に失敗しました"))
		return
	}

	b, err := h.service.UpdateBookmark(r.Context(), userID, bookmarkID, upd)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toBookmarkResponse(*b))
}

// DeleteBookmark はブックマークを削除する。
// DELETE /api/bookmarks/{id}
func (h *BookmarkHandler) DeleteBookmark(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	bookmarkID := chi.URLParam(r, "id")

	if err := h.service.DeleteBookmark(r.Context(), userID, bookmarkID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Preview は保存前のURLからページタイトルと説明を取得する。
// GET /api/bookmarks/preview?url=xxx
func (h *BookmarkHandler) Preview(w http.ResponseWriter, r *http.Request) {
	if _, err := middleware.UserIDFromContext(r.Context()); err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	targetURL := r.URL.Query().Get("url")

	preview, err := h.previewService.FetchPreview(r.Context(), targetURL)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(previewResponse{
		URL:         preview.URL,
		Title:       preview.Title,
		Description: preview.Description,
	})
}

// Import はRSS/Atomフィードからブックマークを一括登録する。
// POST /api/bookmarks/import
func (h *BookmarkHandler) Import(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req importRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidInputError("リクエストボディの解析に失敗しました"))
		return
	}

	result, err := h.importService.ImportFeed(r.Context(), userID, req.GenreID, req.FeedURL)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(importResponse{
		FeedTitle: result.FeedTitle,
		Imported:  result.Imported,
		Skipped:   result.Skipped,
	})
}

// --- エラーレスポンス ---

// apiErrorResponse はAPIエラーレスポンスのJSONフォーマット。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// writeAPIErrorResponse は統一エラーフォーマットでレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     model.ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeInvalidInput, model.ErrCodeInvalidURL:
		return http.StatusBadRequest
	case model.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case model.ErrCodeSSRFBlocked:
		return http.StatusForbidden
	case model.ErrCodeGenreNotFound, model.ErrCodeBookmarkNotFound:
		return http.StatusNotFound
	case model.ErrCodeDuplicateGenreName, model.ErrCodeGenreHasBookmarks:
		return http.StatusConflict
	case model.ErrCodeParseFailed:
		return http.StatusUnprocessableEntity
	case model.ErrCodeFetchFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
