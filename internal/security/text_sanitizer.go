// Package security はクライアントのセキュリティ機能を提供する。
//
// TextSanitizerService はサーバーから受信したキャプション・コメント・
// ユーザー名などの表示テキストをサニタイズする。サーバーが侵害された場合や
// 他ユーザーの投稿にマークアップが混入していた場合でも、
// 表示側にタグが渡らないようにする。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizerService は表示テキストのサニタイズ機能のインターフェースを定義する。
// ゲートウェイがレスポンスのデコード時に使用する。
type TextSanitizerService interface {
	// SanitizeText は入力からすべてのHTMLタグを除去したプレーンテキストを返す。
	// 実体参照はデコードし、前後の空白は取り除く。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	SanitizeText(raw string) string
}

// textSanitizer はTextSanitizerServiceの実装。
// bluemondayのStrictPolicyを保持し、スレッドセーフにサニタイズ処理を行う。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerServiceの新しいインスタンスを生成する。
// StrictPolicyはすべてのタグと属性を除去し、テキストのみを通過させる。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// SanitizeText は入力からすべてのHTMLタグを除去したプレーンテキストを返す。
func (s *textSanitizer) SanitizeText(raw string) string {
	stripped := s.policy.Sanitize(raw)
	// StrictPolicyは残ったテキストを実体参照にエスケープするため、
	// 表示用のプレーンテキストに戻す
	return strings.TrimSpace(html.UnescapeString(stripped))
}
