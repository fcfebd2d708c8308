// Package genre はジャンル管理のドメインロジックを提供する。
package genre

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/takumi/shiori/internal/model"
	"github.com/takumi/shiori/internal/repository"
	"github.com/takumi/shiori/internal/security"
)

// ジャンル名の最大文字数（コードポイント数）。
const maxGenreNameLength = 50

// Service はジャンル管理のサービス層。
// ジャンル一覧取得、作成、削除のビジネスロジックを提供する。
// 全操作が呼び出しユーザーの所有データにスコープされる。
type Service struct {
	genreRepo repository.GenreRepository
	sanitizer security.InputSanitizerService
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(genreRepo repository.GenreRepository, sanitizer security.InputSanitizerService) *Service {
	return &Service{
		genreRepo: genreRepo,
		sanitizer: sanitizer,
	}
}

// ListGenres はユーザーのジャンル一覧を所属ブックマーク数付きで名前昇順で返す。
// ジャンルが1件もない場合は空スライスを返す。
func (s *Service) ListGenres(ctx context.Context, userID string) ([]model.GenreWithCount, error) {
	genres, err := s.genreRepo.ListByUserWithCount(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ジャンル一覧の取得に失敗しました: %w", err)
	}

	return genres, nil
}

// CreateGenre は新しいジャンルを作成する。
// 名前はサニタイズ後に検証され、同一ユーザー内で重複する場合は
// DUPLICATE_GENRE_NAMEエラーを返す。名前の比較は大文字小文字を区別する完全一致。
func (s *Service) CreateGenre(ctx context.Context, userID, name string) (*model.Genre, error) {
	cleaned := s.sanitizer.SanitizeText(name)
	if cleaned == "" {
		return nil, model.NewInvalidInputError("ジャンル名を入力してください")
	}
	if utf8.RuneCountInString(cleaned) > maxGenreNameLength {
		return nil, model.NewInvalidInputError(fmt.Sprintf("ジャンル名は%d文字以内で入力してください", maxGenreNameLength))
	}

	existing, err := s.genreRepo.FindByUserAndName(ctx, userID, cleaned)
	if err != nil {
		return nil, fmt.Errorf("ジャンル名の重複確認に失敗しました: %w", err)
	}
	if existing != nil {
		return nil, model.NewDuplicateGenreNameError(cleaned)
	}

	genre := &model.Genre{
		ID:        uuid.New().String(),
		UserID:    userID,
		Name:      cleaned,
		CreatedAt: time.Now(),
	}

	// UNIQUE(user_id, name)制約により、同時作成の競合はリポジトリ層でも検出される。
	if err := s.genreRepo.Create(ctx, genre); err != nil {
		return nil, err
	}

	return genre, nil
}

// DeleteGenre はジャンルを削除する。
// 紐づくブックマークが1件でも存在する場合はGENRE_HAS_BOOKMARKSエラーを返し、
// エラーメッセージに依存ブックマーク数を含める。
// ジャンルが見つからない場合（他ユーザー所有を含む）はGENRE_NOT_FOUNDエラーを返す。
func (s *Service) DeleteGenre(ctx context.Context, userID, genreID string) error {
	found, dependents, err := s.genreRepo.DeleteIfUnreferenced(ctx, userID, genreID)
	if err != nil {
		return fmt.Errorf("ジャンルの削除に失敗しました: %w", err)
	}
	if !found {
		return model.NewGenreNotFoundError(genreID)
	}
	if dependents > 0 {
		return model.NewGenreHasBookmarksError(dependents)
	}

	return nil
}
