package hatebu

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/takumi/shiori/internal/metrics"
	"github.com/takumi/shiori/internal/repository"
)

// BookmarkCounter ははてなブックマーク数取得のインターフェース。
// テスト時にモックに差し替え可能。
type BookmarkCounter interface {
	GetBookmarkCounts(ctx context.Context, urls []string) (map[string]int, error)
}

// BatchConfig はバッチジョブの設定パラメータ。
// 環境変数から設定可能。
type BatchConfig struct {
	// BatchInterval はバッチジョブの実行間隔（デフォルト: 10分）。
	BatchInterval time.Duration
	// APIInterval はAPI呼び出しの最低間隔（デフォルト: 5秒）。
	APIInterval time.Duration
	// MaxCallsPerCycle は1サイクルあたりの最大API呼び出し回数（デフォルト: 100）。
	MaxCallsPerCycle int
	// TTL はブックマーク数の再取得間隔（デフォルト: 24時間）。
	TTL time.Duration
}

// DefaultBatchConfig はデフォルトのバッチジョブ設定を返す。
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		BatchInterval:    10 * time.Minute,
		APIInterval:      5 * time.Second,
		MaxCallsPerCycle: 100,
		TTL:              24 * time.Hour,
	}
}

// BatchJob ははてなブックマーク数のバッチ取得ジョブ。
// 定期的にhatebu_fetched_atがNULLまたはTTLを経過したブックマークを対象に
// はてなブックマークAPIを呼び出してはてブ数を更新する。
type BatchJob struct {
	bookmarkRepo      repository.HatebuBookmarkRepository
	client            BookmarkCounter
	collector         metrics.MetricsCollector
	logger            *slog.Logger
	config            BatchConfig
	consecutiveErrors int
	backoffUntil      time.Time
}

// NewBatchJob はBatchJobの新しいインスタンスを生成する。
func NewBatchJob(
	bookmarkRepo repository.HatebuBookmarkRepository,
	client BookmarkCounter,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
	config BatchConfig,
) *BatchJob {
	return &BatchJob{
		bookmarkRepo: bookmarkRepo,
		client:       client,
		collector:    collector,
		logger:       logger,
		config:       config,
	}
}

// Start はバッチジョブをティッカーで定期実行する。
// コンテキストがキャンセルされるまで実行を継続する。
func (b *BatchJob) Start(ctx context.Context) {
	ticker := time.NewTicker(b.config.BatchInterval)
	defer ticker.Stop()

	b.logger.Info("はてなブックマークバッチジョブを開始しました",
		slog.Duration("batch_interval", b.config.BatchInterval),
		slog.Duration("api_interval", b.config.APIInterval),
		slog.Int("max_calls_per_cycle", b.config.MaxCallsPerCycle),
	)

	// 起動直後に1回実行
	if err := b.RunOnce(ctx); err != nil {
		b.logger.Error("はてなブックマークバッチサイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("はてなブックマークバッチジョブを停止しました")
			return
		case <-ticker.C:
			if err := b.RunOnce(ctx); err != nil {
				b.logger.Error("はてなブックマークバッチサイクルの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce は1回のバッチサイクルを実行する。
// 取得対象のブックマークを取得し、50URL単位でAPIを呼び出してはてブ数を更新する。
func (b *BatchJob) RunOnce(ctx context.Context) error {
	start := time.Now()

	// バックオフ中の場合はスキップ
	if !b.backoffUntil.IsZero() && time.Now().Before(b.backoffUntil) {
		b.logger.Info("はてなブックマークバッチジョブはバックオフ中のためスキップします",
			slog.Time("backoff_until", b.backoffUntil),
		)
		return nil
	}

	fetchLimit := b.config.MaxCallsPerCycle * maxURLsPerRequest

	bookmarks, err := b.bookmarkRepo.ListNeedingHatebuFetch(ctx, b.config.TTL, fetchLimit)
	if err != nil {
		return fmt.Errorf("はてブ取得対象ブックマークの取得に失敗しました: %w", err)
	}
	if len(bookmarks) == 0 {
		b.logger.Info("はてなブックマーク取得対象のブックマークはありません")
		return nil
	}

	b.logger.Info("はてなブックマークバッチサイクルを開始します",
		slog.Int("target_bookmarks", len(bookmarks)),
	)

	// URL → ブックマークID のマッピング（同じURLを複数ユーザーが保存している場合に対応）
	urlToBookmarkIDs := make(map[string][]string)
	var uniqueURLs []string
	for _, bm := range bookmarks {
		if _, seen := urlToBookmarkIDs[bm.URL]; !seen {
			uniqueURLs = append(uniqueURLs, bm.URL)
		}
		urlToBookmarkIDs[bm.URL] = append(urlToBookmarkIDs[bm.URL], bm.ID)
	}

	var apiCallCount int
	var updatedCount int
	var hadError bool

	for i := 0; i < len(uniqueURLs); i += maxURLsPerRequest {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if apiCallCount >= b.config.MaxCallsPerCycle {
			b.logger.Info("1サイクルあたりの最大API呼び出し回数に達しました",
				slog.Int("api_call_count", apiCallCount),
			)
			break
		}

		// API呼び出しインターバル（初回は待たない）
		if apiCallCount > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(b.config.APIInterval):
			}
		}

		end := i + maxURLsPerRequest
		if end > len(uniqueURLs) {
			end = len(uniqueURLs)
		}
		chunk := uniqueURLs[i:end]

		apiCallCount++

		counts, err := b.client.GetBookmarkCounts(ctx, chunk)
		if err != nil {
			b.logger.Error("はてなブックマークAPIの呼び出しに失敗しました",
				slog.String("error", err.Error()),
				slog.Int("chunk_size", len(chunk)),
			)
			b.collector.RecordHatebuAPIFailure()
			hadError = true
			b.consecutiveErrors++
			if backoff := b.calculateErrorBackoff(b.consecutiveErrors); backoff > 0 {
				b.backoffUntil = time.Now().Add(backoff)
				b.logger.Warn("連続エラーによりバックオフを適用します",
					slog.Int("consecutive_errors", b.consecutiveErrors),
					slog.Duration("backoff_duration", backoff),
				)
				break
			}
			continue // このチャンクはスキップし次のチャンクへ（前回値維持）
		}

		// 取得成功: 各ブックマークのはてブ数を更新
		now := time.Now()
		for url, count := range counts {
			for _, bookmarkID := range urlToBookmarkIDs[url] {
				if err := b.bookmarkRepo.UpdateHatebuCount(ctx, bookmarkID, count, now); err != nil {
					b.logger.Error("はてなブックマーク数の更新に失敗しました",
						slog.String("bookmark_id", bookmarkID),
						slog.String("url", url),
						slog.String("error", err.Error()),
					)
				} else {
					updatedCount++
				}
			}
		}
	}

	// エラーがなければ連続エラーカウントをリセット
	if !hadError {
		b.consecutiveErrors = 0
		b.backoffUntil = time.Time{}
	}

	b.collector.RecordHatebuUpdated(updatedCount)

	b.logger.Info("はてなブックマークバッチサイクルが完了しました",
		slog.Int("api_call_count", apiCallCount),
		slog.Int("updated_bookmarks", updatedCount),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return nil
}

// calculateErrorBackoff は連続エラー回数に基づくバックオフ時間を計算する。
// 3回連続: 30分、5回連続: 1時間、10回連続: 6時間。
func (b *BatchJob) calculateErrorBackoff(consecutiveErrors int) time.Duration {
	switch {
	case consecutiveErrors >= 10:
		return 6 * time.Hour
	case consecutiveErrors >= 5:
		return 1 * time.Hour
	case consecutiveErrors >= 3:
		return 30 * time.Minute
	default:
		return 0
	}
}
