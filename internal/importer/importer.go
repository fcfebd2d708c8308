// Package importer はRSS/Atomフィードからのブックマーク一括登録機能を提供する。
// フィードの各記事を指定ジャンルのブックマークとして取り込む。
package importer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/mmcdole/gofeed"

	"github.com/takumi/shiori/internal/metrics"
	"github.com/takumi/shiori/internal/model"
	"github.com/takumi/shiori/internal/repository"
	"github.com/takumi/shiori/internal/security"
)

// SSRFValidator はSSRF検証のインターフェース。
type SSRFValidator interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client
}

// Config はフィードインポートの設定。
type Config struct {
	// FetchTimeout はフィード取得のタイムアウト。
	FetchTimeout time.Duration
	// MaxBodySize はフィードの最大サイズ（バイト）。
	MaxBodySize int64
	// MaxItems は1回のインポートで取り込む最大記事数。
	MaxItems int
}

// DefaultConfig はデフォルトのインポート設定を返す。
func DefaultConfig() Config {
	return Config{
		FetchTimeout: 15 * time.Second,
		MaxBodySize:  5 * 1024 * 1024,
		MaxItems:     100,
	}
}

// Result はインポート結果のサマリ。
type Result struct {
	FeedTitle string
	Imported  int
	Skipped   int
}

// Service はフィードインポートのサービス層。
type Service struct {
	bookmarkRepo repository.BookmarkRepository
	genreRepo    repository.GenreRepository
	sanitizer    security.InputSanitizerService
	ssrfGuard    SSRFValidator
	collector    metrics.MetricsCollector
	logger       *slog.Logger
	config       Config
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	bookmarkRepo repository.BookmarkRepository,
	genreRepo repository.GenreRepository,
	sanitizer security.InputSanitizerService,
	ssrfGuard SSRFValidator,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
	config Config,
) *Service {
	return &Service{
		bookmarkRepo: bookmarkRepo,
		genreRepo:    genreRepo,
		sanitizer:    sanitizer,
		ssrfGuard:    ssrfGuard,
		collector:    collector,
		logger:       logger,
		config:       config,
	}
}

// ImportFeed はフィードURLから記事を取得し、指定ジャンルのブックマークとして登録する。
// 既に同じURLを保存済みの記事とリンクのない記事はスキップする。
// 指定ジャンルが呼び出しユーザーの所有でない場合はGENRE_NOT_FOUNDエラーを返す。
func (s *Service) ImportFeed(ctx context.Context, userID, genreID, feedURL string) (*Result, error) {
	if feedURL == "" {
		return nil, model.NewInvalidURLError("フィードURLが入力されていません")
	}
	if genreID == "" {
		return nil, model.NewInvalidInputError("ジャンルIDを指定してください")
	}

	genre, err := s.genreRepo.FindByIDAndUser(ctx, userID, genreID)
	if err != nil {
		return nil, fmt.Errorf("ジャンルの確認に失敗しました: %w", err)
	}
	if genre == nil {
		return nil, model.NewGenreNotFoundError(genreID)
	}

	if err := s.ssrfGuard.ValidateURL(feedURL); err != nil {
		return nil, model.NewSSRFBlockedError()
	}

	body, err := s.fetchFeed(ctx, feedURL)
	if err != nil {
		return nil, err
	}

	parsedFeed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		s.logger.Error("フィードのパースに失敗しました",
			slog.String("feed_url", feedURL),
			slog.String("error", err.Error()),
		)
		return nil, model.NewParseFailedError()
	}

	result := &Result{FeedTitle: s.sanitizer.SanitizeText(parsedFeed.Title)}

	for i, item := range parsedFeed.Items {
		if i >= s.config.MaxItems {
			break
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if item.Link == "" {
			result.Skipped++
			continue
		}

		exists, err := s.bookmarkRepo.ExistsByUserAndURL(ctx, userID, item.Link)
		if err != nil {
			return nil, fmt.Errorf("ブックマークの重複確認に失敗しました: %w", err)
		}
		if exists {
			result.Skipped++
			continue
		}

		title := s.sanitizer.SanitizeText(item.Title)
		if title == "" {
			title = item.Link
		}

		now := time.Now()
		bm := &model.Bookmark{
			ID:          uuid.New().String(),
			UserID:      userID,
			GenreID:     genreID,
			Title:       title,
			URL:         item.Link,
			Description: s.sanitizer.SanitizeText(item.Description),
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.bookmarkRepo.Create(ctx, bm); err != nil {
			return nil, fmt.Errorf("インポートしたブックマークの保存に失敗しました: %w", err)
		}
		result.Imported++
	}

	s.collector.RecordBookmarksImported(result.Imported)

	s.logger.Info("フィードインポートが完了しました",
		slog.String("user_id", userID),
		slog.String("feed_url", feedURL),
		slog.Int("imported", result.Imported),
		slog.Int("skipped", result.Skipped),
	)

	return result, nil
}

// fetchFeed はSSRF防止付きクライアントでフィードを取得する。
func (s *Service) fetchFeed(ctx context.Context, feedURL string) ([]byte, error) {
	client := s.ssrfGuard.NewSafeClient(s.config.FetchTimeout, s.config.MaxBodySize)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, model.NewInvalidURLError(err.Error())
	}
	req.Header.Set("User-Agent", "Shiori/1.0 Bookmark Manager")
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, */*")

	resp, err := client.Do(req)
	if err != nil {
		return nil, model.NewFetchFailedError(err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, model.NewFetchFailedError(resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.config.MaxBodySize))
	if err != nil {
		return nil, model.NewFetchFailedError(err.Error())
	}

	return body, nil
}
