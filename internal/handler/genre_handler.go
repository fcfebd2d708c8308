package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/takumi/shiori/internal/metrics"
	"github.com/takumi/shiori/internal/middleware"
	"github.com/takumi/shiori/internal/model"
)

// GenreServiceInterface はジャンルハンドラーが必要とするサービスインターフェース。
type GenreServiceInterface interface {
	// ListGenres はユーザーのジャンル一覧を所属ブックマーク数付きで返す。
	ListGenres(ctx context.Context, userID string) ([]model.GenreWithCount, error)
	// CreateGenre は新しいジャンルを作成する。
	CreateGenre(ctx context.Context, userID, name string) (*model.Genre, error)
	// DeleteGenre はブックマークが紐づいていないジャンルを削除する。
	DeleteGenre(ctx context.Context, userID, genreID string) error
}

// GenreHandler はジャンル管理のHTTPハンドラー。
type GenreHandler struct {
	service   GenreServiceInterface
	collector metrics.MetricsCollector
}

// NewGenreHandler はGenreHandlerを生成する。
func NewGenreHandler(service GenreServiceInterface, collector metrics.MetricsCollector) *GenreHandler {
	return &GenreHandler{
		service:   service,
		collector: collector,
	}
}

// --- リクエスト・レスポンス型 ---

// genreResponse はジャンルのレスポンス。
type genreResponse struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	BookmarkCount int       `json:"bookmark_count"`
	CreatedAt     time.Time `json:"created_at"`
}

// genreListResponse はジャンル一覧のレスポンス。
type genreListResponse struct {
	Genres []genreResponse `json:"genres"`
}

// createGenreRequest はジャンル作成リクエストのボディ。
type createGenreRequest struct {
	Name string `json:"name"`
}

// ListGenres はユーザーのジャンル一覧を取得する。
// GET /api/genres
func (h *GenreHandler) ListGenres(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	genres, err := h.service.ListGenres(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := genreListResponse{Genres: make([]genreResponse, 0, len(genres))}
	for _, g := range genres {
		resp.Genres = append(resp.Genres, genreResponse{
			ID:            g.ID,
			Name:          g.Name,
			BookmarkCount: g.BookmarkCount,
			CreatedAt:     g.CreatedAt,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// CreateGenre は新しいジャンルを作成する。
// POST /api/genres
func (h *GenreHandler) CreateGenre(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req createGenreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidInputError("リクエストボディの解析に失敗しました"))
		return
	}

	genre, err := h.service.CreateGenre(r.Context(), userID, req.Name)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.collector.RecordGenreCreated()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(genreResponse{
		ID:        genre.ID,
		Name:      genre.Name,
		CreatedAt: genre.CreatedAt,
	})
}

// DeleteGenre はジャンルを削除する。
// ブックマークが紐づいている場合は409 Conflictで拒否する。
// DELETE /api/genres/{id}
func (h *GenreHandler) DeleteGenre(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	genreID := chi.URLParam(r, "id")

	if err := h.service.DeleteGenre(r.Context(), userID, genreID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
