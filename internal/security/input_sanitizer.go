package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// InputSanitizerService はユーザー入力のサニタイズ機能のインターフェースを定義する。
// ブックマークのタイトル・説明やジャンル名など、プレーンテキストとして
// 保存すべきフィールドの保存前に使用される。
type InputSanitizerService interface {
	// SanitizeText は入力からHTMLタグを全て除去し、プレーンテキストを返す。
	// タグ除去後にHTMLエンティティをデコードし、前後の空白を取り除く。
	// 同一入力に対して常に同一出力を返す（冪等）。
	SanitizeText(input string) string
}

// inputSanitizer はInputSanitizerServiceの実装。
// bluemondayのStrictPolicy（全タグ除去）を保持し、スレッドセーフに動作する。
type inputSanitizer struct {
	policy *bluemonday.Policy
}

// NewInputSanitizer はInputSanitizerServiceの新しいインスタンスを生成する。
func NewInputSanitizer() *inputSanitizer {
	return &inputSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// SanitizeText は入力からHTMLタグを全て除去し、プレーンテキストを返す。
// StrictPolicyはタグを除去する際に残りのテキストをエスケープするため、
// 保存するのは生テキストになるようUnescapeStringで戻す。
func (s *inputSanitizer) SanitizeText(input string) string {
	stripped := s.policy.Sanitize(input)
	return strings.TrimSpace(html.UnescapeString(stripped))
}
