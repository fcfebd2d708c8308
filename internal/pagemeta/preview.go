// Package pagemeta はブックマーク登録補助のためのページ情報取得機能を提供する。
// 入力URLのHTMLを取得し、タイトルとmeta descriptionを抽出して
// ブックマーク作成フォームのプレビューに利用する。
package pagemeta

import (
	"bytes"
	"context"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/takumi/shiori/internal/model"
)

// PagePreview は取得したページのメタ情報を表す。
type PagePreview struct {
	URL         string
	Title       string
	Description string
}

// SSRFValidator はSSRF検証のインターフェース。
// security.SSRFGuardServiceを抽象化してテスタビリティを向上させる。
type SSRFValidator interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client
}

// PreviewConfig はプレビュー取得の設定。
type PreviewConfig struct {
	FetchTimeout time.Duration
	MaxBodySize  int64
}

// DefaultPreviewConfig はデフォルトのプレビュー取得設定を返す。
func DefaultPreviewConfig() PreviewConfig {
	return PreviewConfig{
		FetchTimeout: 10 * time.Second,
		MaxBodySize:  5 * 1024 * 1024,
	}
}

// PreviewService はページメタ情報の取得機能を提供する。
type PreviewService struct {
	ssrfGuard SSRFValidator
	config    PreviewConfig
}

// NewPreviewService はPreviewServiceの新しいインスタンスを生成する。
func NewPreviewService(ssrfGuard SSRFValidator, config PreviewConfig) *PreviewService {
	return &PreviewService{
		ssrfGuard: ssrfGuard,
		config:    config,
	}
}

// FetchPreview はURLのHTMLを取得し、タイトルとmeta descriptionを抽出する。
// 1. SSRF検証を実行
// 2. SSRF防止付きクライアントでHTMLを取得
// 3. headタグからtitle / meta descriptionを抽出
// HTMLでないコンテンツの場合はタイトル空のプレビューを返す。
func (s *PreviewService) FetchPreview(ctx context.Context, inputURL string) (*PagePreview, error) {
	if inputURL == "" {
		return nil, model.NewInvalidURLError("URLが入力されていません")
	}

	if err := s.ssrfGuard.ValidateURL(inputURL); err != nil {
		return nil, model.NewSSRFBlockedError()
	}

	client := s.ssrfGuard.NewSafeClient(s.config.FetchTimeout, s.config.MaxBodySize)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, inputURL, nil)
	if err != nil {
		return nil, model.NewInvalidURLError(err.Error())
	}
	req.Header.Set("User-Agent", "Shiori/1.0 Bookmark Manager")
	req.Header.Set("Accept", "text/html, application/xhtml+xml, */*")

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

	preview := &PagePreview{URL: inputURL}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if !strings.Contains(strings.ToLower(mediaType), "html") {
		// HTML以外はタイトルなしで返す（URLのみのブックマーク登録を許可）
		return preview, nil
	}

	title, description := extractPageMeta(body)
	preview.Title = title
	preview.Description = description

	return preview, nil
}

// extractPageMeta はHTMLのheadタグからtitleとmeta descriptionを抽出する。
// bodyタグに到達した時点で解析を打ち切る。
func extractPageMeta(htmlBody []byte) (title, description string) {
	tokenizer := html.NewTokenizer(bytes.NewReader(htmlBody))
	inTitle := false

	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			return title, description

		case html.StartTagToken, html.SelfClosingTagToken:
			tn, hasAttr := tokenizer.TagName()
			tagName := string(tn)

			switch tagName {
			case "body":
				// headの解析を終了
				return title, description

			case "title":
				inTitle = true

			case "meta":
				if !hasAttr {
					continue
				}
				var name, content string
				for {
					key, val, more := tokenizer.TagAttr()
					switch strings.ToLower(string(key)) {
					case "name", "property":
						name = strings.ToLower(string(val))
					case "content":
						content = string(val)
					}
					if !more {
						break
					}
				}
				if description == "" && (name == "description" || name == "og:description") {
					description = strings.TrimSpace(content)
				}
			}

		case html.TextToken:
			if inTitle && title == "" {
				title = strings.TrimSpace(string(tokenizer.Text()))
			}

		case html.EndTagToken:
			tn, _ := tokenizer.TagName()
			if string(tn) == "title" {
				inTitle = false
			}
		}
	}
}
