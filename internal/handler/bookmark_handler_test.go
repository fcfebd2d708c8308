package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/takumi/shiori/internal/bookmark"
	"github.com/takumi/shiori/internal/importer"
	"github.com/takumi/shiori/internal/model"
	"github.com/takumi/shiori/internal/pagemeta"
)

// --- モック定義 ---

type mockBookmarkService struct {
	listFn   func(ctx context.Context, userID string, opts model.BookmarkListOptions) ([]model.BookmarkWithGenre, error)
	getFn    func(ctx context.Context, userID, bookmarkID string) (*model.BookmarkWithGenre, error)
	createFn func(ctx context.Context, userID string, input bookmark.CreateInput) (*model.BookmarkWithGenre, error)
	updateFn func(ctx context.Context, userID, bookmarkID string, upd model.BookmarkUpdate) (*model.BookmarkWithGenre, error)
	deleteFn func(ctx context.Context, userID, bookmarkID string) error
}

func (m *mockBookmarkService) ListBookmarks(ctx context.Context, userID string, opts model.BookmarkListOptions) ([]model.BookmarkWithGenre, error) {
	return m.listFn(ctx, userID, opts)
}

func (m *mockBookmarkService) GetBookmark(ctx context.Context, userID, bookmarkID string) (*model.BookmarkWithGenre, error) {
	return m.getFn(ctx, userID, bookmarkID)
}

func (m *mockBookmarkService) CreateBookmark(ctx context.Context, userID string, input bookmark.CreateInput) (*model.BookmarkWithGenre, error) {
	return m.createFn(ctx, userID, input)
}

func (m *mockBookmarkService) UpdateBookmark(ctx context.Context, userID, bookmarkID string, upd model.BookmarkUpdate) (*model.BookmarkWithGenre, error) {
	return m.updateFn(ctx, userID, bookmarkID, upd)
}

func (m *mockBookmarkService) DeleteBookmark(ctx context.Context, userID, bookmarkID string) error {
	return m.deleteFn(ctx, userID, bookmarkID)
}

type mockPreviewService struct {
	fetchFn func(ctx context.Context, inputURL string) (*pagemeta.PagePreview, error)
}

func (m *mockPreviewService) FetchPreview(ctx context.Context, inputURL string) (*pagemeta.PagePreview, error) {
	return m.fetchFn(ctx, inputURL)
}

type mockImportService struct {
	importFn func(ctx context.Context, userID, genreID, feedURL string) (*importer.Result, error)
}

func (m *mockImportService) ImportFeed(ctx context.Context, userID, genreID, feedURL string) (*importer.Result, error) {
	return m.importFn(ctx, userID, genreID, feedURL)
}

func sampleBookmark() model.BookmarkWithGenre {
	return model.BookmarkWithGenre{
		Bookmark: model.Bookmark{
			ID:      "b-1",
			UserID:  "user-1",
			GenreID: "g-1",
			Title:   "Goの並行処理入門",
			URL:     "https://blog.example.com/articles/1",
		},
		GenreName:  "技術",
		ShareCount: 2,
	}
}

func newTestBookmarkHandler(svc *mockBookmarkService) *BookmarkHandler {
	return NewBookmarkHandler(svc, &mockPreviewService{}, &mockImportService{}, &countingCollector{})
}

// --- テスト ---

func TestBookmarkHandler_ListBookmarks_PassesFilters(t *testing.T) {
	var captured model.BookmarkListOptions
	service := &mockBookmarkService{
		listFn: func(ctx context.Context, userID string, opts model.BookmarkListOptions) ([]model.BookmarkWithGenre, error) {
			captured = opts
			return []model.BookmarkWithGenre{sampleBookmark()}, nil
		},
	}
	h := newTestBookmarkHandler(service)

	w := httptest.NewRecorder()
	h.ListBookmarks(w, authedRequest(http.MethodGet, "/api/bookmarks?genreId=g-1&search=go&isRead=false&limit=10", ""))

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Result().StatusCode)
	}
	if captured.GenreID != "g-1" {
		t.Errorf("GenreID = %q, want g-1", captured.GenreID)
	}
	if captured.Search != "go" {
		t.Errorf("Search = %q, want go", captured.Search)
	}
	if captured.IsRead == nil || *captured.IsRead {
		t.Error("IsRead should be &false")
	}
	if captured.Limit != 10 {
		t.Errorf("Limit = %d, want 10", captured.Limit)
	}

	var resp bookmarkListResponse
	if err := json.NewDecoder(w.Result().Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Bookmarks) != 1 || resp.Bookmarks[0].GenreName != "技術" {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestBookmarkHandler_ListBookmarks_InvalidLimit_Returns400(t *testing.T) {
	h := newTestBookmarkHandler(&mockBookmarkService{})

	w := httptest.NewRecorder()
	h.ListBookmarks(w, authedRequest(http.MethodGet, "/api/bookmarks?limit=abc", ""))

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Result().StatusCode)
	}
	body := decodeErrorResponse(t, w.Result())
	if body.Code != model.ErrCodeInvalidInput {
		t.Errorf("error code = %q, want %q", body.Code, model.ErrCodeInvalidInput)
	}
}

func TestBookmarkHandler_ListBookmarks_InvalidIsRead_Returns400(t *testing.T) {
	h := newTestBookmarkHandler(&mockBookmarkService{})

	w := httptest.NewRecorder()
	h.ListBookmarks(w, authedRequest(http.MethodGet, "/api/bookmarks?isRead=yes", ""))

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Result().StatusCode)
	}
}

func TestBookmarkHandler_GetBookmark_NotFound_Returns404(t *testing.T) {
	service := &mockBookmarkService{
		getFn: func(ctx context.Context, userID, bookmarkID string) (*model.BookmarkWithGenre, error) {
			return nil, model.NewBookmarkNotFoundError(bookmarkID)
		},
	}
	h := newTestBookmarkHandler(service)

	req := withURLParam(authedRequest(http.MethodGet, "/api/bookmarks/unknown", ""), "id", "unknown")
	w := httptest.NewRecorder()
	h.GetBookmark(w, req)

	if w.Result().StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Result().StatusCode)
	}
	body := decodeErrorResponse(t, w.Result())
	if body.Code != model.ErrCodeBookmarkNotFound {
		t.Errorf("error code = %q, want %q", body.Code, model.ErrCodeBookmarkNotFound)
	}
}

func TestBookmarkHandler_CreateBookmark_Returns201AndRecordsMetric(t *testing.T) {
	collector := &countingCollector{}
	service := &mockBookmarkService{
		createFn: func(ctx context.Context, userID string, input bookmark.CreateInput) (*model.BookmarkWithGenre, error) {
			if input.GenreID != "g-1" || input.URL != "https://blog.example.com/articles/1" {
				t.Errorf("unexpected input: %+v", input)
			}
			return func() *model.BookmarkWithGenre { b := sampleBookmark(); return &b }(), nil
		},
	}
	h := NewBookmarkHandler(service, &mockPreviewService{}, &mockImportService{}, collector)

	body := `{"genre_id":"g-1","title":"Goの並行処理入門","url":"https://blog.example.com/articles/1"}`
	w := httptest.NewRecorder()
	h.CreateBookmark(w, authedRequest(http.MethodPost, "/api/bookmarks", body))

	if w.Result().StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", w.Result().StatusCode)
	}
	if collector.bookmarks != 1 {
		t.Errorf("bookmark created metric = %d, want 1", collector.bookmarks)
	}
}

func TestBookmarkHandler_CreateBookmark_GenreNotOwned_Returns404(t *testing.T) {
	service := &mockBookmarkService{
		createFn: func(ctx context.Context, userID string, input bookmark.CreateInput) (*model.BookmarkWithGenre, error) {
			return nil, model.NewGenreNotFoundError(input.GenreID)
		},
	}
	h := newTestBookmarkHandler(service)

	body := `{"genre_id":"g-other","title":"t","url":"https://example.com"}`
	w := httptest.NewRecorder()
	h.CreateBookmark(w, authedRequest(http.MethodPost, "/api/bookmarks", body))

	if w.Result().StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Result().StatusCode)
	}
}

func TestBookmarkHandler_UpdateBookmark_DistinguishesAbsentFields(t *testing.T) {
	var captured model.BookmarkUpdate
	service := &mockBookmarkService{
		updateFn: func(ctx context.Context, userID, bookmarkID string, upd model.BookmarkUpdate) (*model.BookmarkWithGenre, error) {
			captured = upd
			b := sampleBookmark()
			return &b, nil
		},
	}
	h := newTestBookmarkHandler(service)

	// is_readのみ指定。他のフィールドは未指定として扱われること。
	req := withURLParam(authedRequest(http.MethodPatch, "/api/bookmarks/b-1", `{"is_read":true}`), "id", "b-1")
	w := httptest.NewRecorder()
	h.UpdateBookmark(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Result().StatusCode)
	}
	if !captured.IsRead.Set || captured.IsRead.Value == nil || !*captured.IsRead.Value {
		t.Error("IsRead should be set to true")
	}
	if captured.Title.Set || captured.URL.Set || captured.Description.Set || captured.GenreID.Set {
		t.Errorf("absent fields should remain unset: %+v", captured)
	}
}

func TestBookmarkHandler_UpdateBookmark_NullDescription(t *testing.T) {
	var captured model.BookmarkUpdate
	service := &mockBookmarkService{
		updateFn: func(ctx context.Context, userID, bookmarkID string, upd model.BookmarkUpdate) (*model.BookmarkWithGenre, error) {
			captured = upd
			b := sampleBookmark()
			return &b, nil
		},
	}
	h := newTestBookmarkHandler(service)

	req := withURLParam(authedRequest(http.MethodPatch, "/api/bookmarks/b-1", `{"description":null}`), "id", "b-1")
	w := httptest.NewRecorder()
	h.UpdateBookmark(w, req)

	if !captured.Description.Set || captured.Description.Value != nil {
		t.Errorf("Description should be explicit null: %+v", captured.Description)
	}
}

func TestBookmarkHandler_DeleteBookmark_Returns204(t *testing.T) {
	service := &mockBookmarkService{
		deleteFn: func(ctx context.Context, userID, bookmarkID string) error {
			return nil
		},
	}
	h := newTestBookmarkHandler(service)

	req := withURLParam(authedRequest(http.MethodDelete, "/api/bookmarks/b-1", ""), "id", "b-1")
	w := httptest.NewRecorder()
	h.DeleteBookmark(w, req)

	if w.Result().StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want 204", w.Result().StatusCode)
	}
}

func TestBookmarkHandler_Preview_ReturnsMetadata(t *testing.T) {
	preview := &mockPreviewService{
		fetchFn: func(ctx context.Context, inputURL string) (*pagemeta.PagePreview, error) {
			return &pagemeta.PagePreview{
				URL:         inputURL,
				Title:       "サンプルページ",
				Description: "説明文",
			}, nil
		},
	}
	h := NewBookmarkHandler(&mockBookmarkService{}, preview, &mockImportService{}, &countingCollector{})

	w := httptest.NewRecorder()
	h.Preview(w, authedRequest(http.MethodGet, "/api/bookmarks/preview?url=https://example.com", ""))

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Result().StatusCode)
	}

	var resp previewResponse
	if err := json.NewDecoder(w.Result().Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Title != "サンプルページ" {
		t.Errorf("title = %q, want サンプルページ", resp.Title)
	}
}

func TestBookmarkHandler_Preview_SSRFBlocked_Returns403(t *testing.T) {
	preview := &mockPreviewService{
		fetchFn: func(ctx context.Context, inputURL string) (*pagemeta.PagePreview, error) {
			return nil, model.NewSSRFBlockedError()
		},
	}
	h := NewBookmarkHandler(&mockBookmarkService{}, preview, &mockImportService{}, &countingCollector{})

	w := httptest.NewRecorder()
	h.Preview(w, authedRequest(http.MethodGet, "/api/bookmarks/preview?url=http://127.0.0.1/", ""))

	if w.Result().StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Result().StatusCode)
	}
}

func TestBookmarkHandler_Import_ReturnsSummary(t *testing.T) {
	imp := &mockImportService{
		importFn: func(ctx context.Context, userID, genreID, feedURL string) (*importer.Result, error) {
			if genreID != "g-1" || feedURL != "https://blog.example.com/feed" {
				t.Errorf("unexpected args: genre=%q url=%q", genreID, feedURL)
			}
			return &importer.Result{FeedTitle: "テックブログ", Imported: 4, Skipped: 1}, nil
		},
	}
	h := NewBookmarkHandler(&mockBookmarkService{}, &mockPreviewService{}, imp, &countingCollector{})

	body := `{"feed_url":"https://blog.example.com/feed","genre_id":"g-1"}`
	w := httptest.NewRecorder()
	h.Import(w, authedRequest(http.MethodPost, "/api/bookmarks/import", body))

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Result().StatusCode)
	}

	var resp importResponse
	if err := json.NewDecoder(w.Result().Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Imported != 4 || resp.Skipped != 1 {
		t.Errorf("unexpected summary: %+v", resp)
	}
}

func TestBookmarkHandler_Import_ParseFailed_Returns422(t *testing.T) {
	imp := &mockImportService{
		importFn: func(ctx context.Context, userID, genreID, feedURL string) (*importer.Result, error) {
			return nil, model.NewParseFailedError()
		},
	}
	h := NewBookmarkHandler(&mockBookmarkService{}, &mockPreviewService{}, imp, &countingCollector{})

	body := `{"feed_url":"https://blog.example.com/page","genre_id":"g-1"}`
	w := httptest.NewRecorder()
	h.Import(w, authedRequest(http.MethodPost, "/api/bookmarks/import", body))

	if w.Result().StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", w.Result().StatusCode)
	}
}

func TestMapAPIErrorToHTTPStatus(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{model.ErrCodeInvalidInput, http.StatusBadRequest},
		{model.ErrCodeInvalidURL, http.StatusBadRequest},
		{model.ErrCodeUnauthorized, http.StatusUnauthorized},
		{model.ErrCodeSSRFBlocked, http.StatusForbidden},
		{model.ErrCodeGenreNotFound, http.StatusNotFound},
		{model.ErrCodeBookmarkNotFound, http.StatusNotFound},
		{model.ErrCodeDuplicateGenreName, http.StatusConflict},
		{model.ErrCodeGenreHasBookmarks, http.StatusConflict},
		{model.ErrCodeParseFailed, http.StatusUnprocessableEntity},
		{model.ErrCodeFetchFailed, http.StatusBadGateway},
		{"UNKNOWN_CODE", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		got := mapAPIErrorToHTTPStatus(&model.APIError{Code: tt.code})
		if got != tt.want {
			t.Errorf("mapAPIErrorToHTTPStatus(%s) = %d, want %d", tt.code, got, tt.want)
		}
	}
}

func TestHandleServiceError_NonAPIError_Returns500(t *testing.T) {
	w := httptest.NewRecorder()
	handleServiceError(w, context.DeadlineExceeded)

	if w.Result().StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Result().StatusCode)
	}
	if !strings.Contains(w.Body.String(), model.ErrCodeInternal) {
		t.Errorf("body should contain %s: %s", model.ErrCodeInternal, w.Body.String())
	}
}
