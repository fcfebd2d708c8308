// Package bookmark はブックマーク管理のドメインロジックを提供する。
package bookmark

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/takumi/shiori/internal/model"
	"github.com/takumi/shiori/internal/repository"
	"github.com/takumi/shiori/internal/security"
)

// 入力フィールドの上限。文字数はコードポイント数で数える。
const (
	maxTitleLength       = 200
	maxDescriptionLength = 2000
	maxURLLength         = 2048
)

// CreateInput はブックマーク作成の入力。
type CreateInput struct {
	GenreID     string
	Title       string
	URL         string
	Description string
	IsRead      bool
}

// Service はブックマーク管理のサービス層。
// 一覧取得、詳細取得、作成、部分更新、削除のビジネスロジックを提供する。
// 全操作が呼び出しユーザーの所有データにスコープされる。
type Service struct {
	bookmarkRepo repository.BookmarkRepository
	genreRepo    repository.GenreRepository
	sanitizer    security.InputSanitizerService
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	bookmarkRepo repository.BookmarkRepository,
	genreRepo repository.GenreRepository,
	sanitizer security.InputSanitizerService,
) *Service {
	return &Service{
		bookmarkRepo: bookmarkRepo,
		genreRepo:    genreRepo,
		sanitizer:    sanitizer,
	}
}

// ListBookmarks はユーザーのブックマーク一覧をフィルタ条件付きで返す。
// 並び順は作成日時の降順。該当がない場合は空スライスを返す。
func (s *Service) ListBookmarks(ctx context.Context, userID string, opts model.BookmarkListOptions) ([]model.BookmarkWithGenre, error) {
	bookmarks, err := s.bookmarkRepo.ListByUser(ctx, userID, opts)
	if err != nil {
		return nil, fmt.Errorf("ブックマーク一覧の取得に失敗しました: %w", err)
	}

	return bookmarks, nil
}

// GetBookmark はブックマークの詳細をジャンル名・共有数付きで返す。
// 見つからない場合（他ユーザー所有を含む）はBOOKMARK_NOT_FOUNDエラーを返す。
func (s *Service) GetBookmark(ctx context.Context, userID, bookmarkID string) (*model.BookmarkWithGenre, error) {
	bm, err := s.bookmarkRepo.FindByIDAndUser(ctx, userID, bookmarkID)
	if err != nil {
		return nil, fmt.Errorf("ブックマークの取得に失敗しました: %w", err)
	}
	if bm == nil {
		return nil, model.NewBookmarkNotFoundError(bookmarkID)
	}

	return bm, nil
}

// CreateBookmark は新しいブックマークを作成する。
// タイトル・説明はサニタイズされ、URLは形式検証される。
// 指定ジャンルが呼び出しユーザーの所有でない場合はGENRE_NOT_FOUNDエラーを返す。
func (s *Service) CreateBookmark(ctx context.Context, userID string, input CreateInput) (*model.BookmarkWithGenre, error) {
	title := s.sanitizer.SanitizeText(input.Title)
	if err := validateTitle(title); err != nil {
		return nil, err
	}

	description := s.sanitizer.SanitizeText(input.Description)
	if utf8.RuneCountInString(description) > maxDescriptionLength {
		return nil, model.NewInvalidInputError(fmt.Sprintf("説明は%d文字以内で入力してください", maxDescriptionLength))
	}

	if err := validateBookmarkURL(input.URL); err != nil {
		return nil, err
	}

	if err := s.ensureGenreOwned(ctx, userID, input.GenreID); err != nil {
		return nil, err
	}

	now := time.Now()
	bm := &model.Bookmark{
		ID:          uuid.New().String(),
		UserID:      userID,
		GenreID:     input.GenreID,
		Title:       title,
		URL:         input.URL,
		Description: description,
		IsRead:      input.IsRead,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.bookmarkRepo.Create(ctx, bm); err != nil {
		return nil, fmt.Errorf("ブックマークの作成に失敗しました: %w", err)
	}

	created, err := s.bookmarkRepo.FindByIDAndUser(ctx, userID, bm.ID)
	if err != nil {
		return nil, fmt.Errorf("作成したブックマークの再取得に失敗しました: %w", err)
	}
	if created == nil {
		return nil, fmt.Errorf("作成したブックマークが見つかりません: %s", bm.ID)
	}

	return created, nil
}

// UpdateBookmark はリクエストに含まれていたフィールドのみを更新し、更新後の状態を返す。
// リクエストに現れなかったフィールドは変更されない。
// 見つからない場合（他ユーザー所有を含む）はBOOKMARK_NOT_FOUNDエラーを返す。
func (s *Service) UpdateBookmark(ctx context.Context, userID, bookmarkID string, upd model.BookmarkUpdate) (*model.BookmarkWithGenre, error) {
	if upd.IsEmpty() {
		return nil, model.NewInvalidInputError("更新するフィールドを1つ以上指定してください")
	}

	if upd.Title.Set {
		if upd.Title.Value == nil {
			return nil, model.NewInvalidInputError("タイトルにnullは指定できません")
		}
		cleaned := s.sanitizer.SanitizeText(*upd.Title.Value)
		if err := validateTitle(cleaned); err != nil {
			return nil, err
		}
		upd.Title.Value = &cleaned
	}

	if upd.URL.Set {
		if upd.URL.Value == nil {
			return nil, model.NewInvalidInputError("URLにnullは指定できません")
		}
		if err := validateBookmarkURL(*upd.URL.Value); err != nil {
			return nil, err
		}
	}

	if upd.Description.Set && upd.Description.Value != nil {
		cleaned := s.sanitizer.SanitizeText(*upd.Description.Value)
		if utf8.RuneCountInString(cleaned) > maxDescriptionLength {
			return nil, model.NewInvalidInputError(fmt.Sprintf("説明は%d文字以内で入力してください", maxDescriptionLength))
		}
		upd.Description.Value = &cleaned
	}

	if upd.GenreID.Set {
		if upd.GenreID.Value == nil {
			return nil, model.NewInvalidInputError("ジャンルIDにnullは指定できません")
		}
		if err := s.ensureGenreOwned(ctx, userID, *upd.GenreID.Value); err != nil {
			return nil, err
		}
	}

	if upd.IsRead.Set && upd.IsRead.Value == nil {
		return nil, model.NewInvalidInputError("既読状態にnullは指定できません")
	}

	updated, err := s.bookmarkRepo.Update(ctx, userID, bookmarkID, upd)
	if err != nil {
		return nil, fmt.Errorf("ブックマークの更新に失敗しました: %w", err)
	}
	if !updated {
		return nil, model.NewBookmarkNotFoundError(bookmarkID)
	}

	bm, err := s.bookmarkRepo.FindByIDAndUser(ctx, userID, bookmarkID)
	if err != nil {
		return nil, fmt.Errorf("更新後のブックマークの取得に失敗しました: %w", err)
	}
	if bm == nil {
		return nil, model.NewBookmarkNotFoundError(bookmarkID)
	}

	return bm, nil
}

// DeleteBookmark はブックマークを削除する。
// 見つからない場合（他ユーザー所有を含む）はBOOKMARK_NOT_FOUNDエラーを返す。
func (s *Service) DeleteBookmark(ctx context.Context, userID, bookmarkID string) error {
	deleted, err := s.bookmarkRepo.Delete(ctx, userID, bookmarkID)
	if err != nil {
		return fmt.Errorf("ブックマークの削除に失敗しました: %w", err)
	}
	if !deleted {
		return model.NewBookmarkNotFoundError(bookmarkID)
	}

	return nil
}

// ensureGenreOwned はジャンルが呼び出しユーザーの所有であることを確認する。
// 存在しない場合と他ユーザー所有の場合は同じGENRE_NOT_FOUNDエラーを返し、
// 他ユーザーのジャンルIDの存在を推測できないようにする。
func (s *Service) ensureGenreOwned(ctx context.Context, userID, genreID string) error {
	if genreID == "" {
		return model.NewInvalidInputError("ジャンルIDを指定してください")
	}

	g, err := s.genreRepo.FindByIDAndUser(ctx, userID, genreID)
	if err != nil {
		return fmt.Errorf("ジャンルの確認に失敗しました: %w", err)
	}
	if g == nil {
		return model.NewGenreNotFoundError(genreID)
	}

	return nil
}

// validateTitle はサニタイズ後のタイトルを検証する。
func validateTitle(title string) error {
	if title == "" {
		return model.NewInvalidInputError("タイトルを入力してください")
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		return model.NewInvalidInputError(fmt.Sprintf("タイトルは%d文字以内で入力してください", maxTitleLength))
	}
	return nil
}

// validateBookmarkURL は保存対象URLの形式を検証する。
// http/httpsスキームかつホストを持つ絶対URLのみ許可する。
func validateBookmarkURL(rawURL string) error {
	if strings.TrimSpace(rawURL) == "" {
		return model.NewInvalidURLError("URLを入力してください")
	}
	if len(rawURL) > maxURLLength {
		return model.NewInvalidURLError(fmt.Sprintf("URLは%d文字以内で入力してください", maxURLLength))
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return model.NewInvalidURLError("URLの形式が正しくありません")
	}
	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return model.NewInvalidURLError("http:// または https:// で始まるURLを入力してください")
	}
	if parsed.Host == "" {
		return model.NewInvalidURLError("URLにホスト名が含まれていません")
	}

	return nil
}
