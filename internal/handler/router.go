package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/takumi/shiori/internal/metrics"
	"github.com/takumi/shiori/internal/middleware"
)

// HealthChecker はDB疎通確認のインターフェース。*sql.DBがそのまま満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	HealthChecker     HealthChecker
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	CSRFConfig        middleware.CSRFConfig
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger
	Collector         metrics.MetricsCollector
	MetricsHandler    http.Handler

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// ジャンル
	GenreService GenreServiceInterface

	// ブックマーク
	BookmarkService BookmarkServiceInterface
	PreviewService  PreviewServiceInterface
	ImportService   ImportServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging → Session → CSRF → RateLimit(General)
//
// 認証ルート（/auth/*）、/health、/metrics は認証ミドルウェアの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger, deps.Collector))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	genreHandler := NewGenreHandler(deps.GenreService, deps.Collector)
	bookmarkHandler := NewBookmarkHandler(deps.BookmarkService, deps.PreviewService, deps.ImportService, deps.Collector)

	// --- 認証不要のルート ---

	// ヘルスチェック（DB疎通を含む）
	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		if err := deps.HealthChecker.PingContext(req.Context()); err != nil {
			http.Error(w, "unhealthy", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Prometheusスクレイプエンドポイント
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	// CSRFトークン取得
	r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))

	// 認証ルート（OAuthフロー）
	r.Route("/auth", func(r chi.Router) {
		r.Get("/google/login", authHandler.Login)
		r.Get("/google/callback", authHandler.Callback)
		r.Post("/logout", authHandler.Logout)
		r.Get("/me", authHandler.Me)
	})

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Session → CSRF → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// ジャンル管理
		r.Route("/api/genres", func(r chi.Router) {
			r.Get("/", genreHandler.ListGenres)
			r.Post("/", genreHandler.CreateGenre)
			r.Delete("/{id}", genreHandler.DeleteGenre)
		})

		// ブックマーク管理
		r.Route("/api/bookmarks", func(r chi.Router) {
			r.Get("/", bookmarkHandler.ListBookmarks)
			r.Post("/", bookmarkHandler.CreateBookmark)

			// プレビュー取得（保存前のメタデータ確認）
			r.Get("/preview", bookmarkHandler.Preview)

			// POST /api/bookmarks/import - フィード一括登録（専用レート制限を追加）
			r.With(deps.RateLimiter.ImportMiddleware()).Post("/import", bookmarkHandler.Import)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", bookmarkHandler.GetBookmark)
				r.Patch("/", bookmarkHandler.UpdateBookmark)
				r.Delete("/", bookmarkHandler.DeleteBookmark)
			})
		})
	})

	return r
}
