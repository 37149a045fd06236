// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ListingSanitizer は出品者が入力した商品テキストからHTMLを除去し、
// 一覧・詳細表示でのXSSを防ぐ。bluemondayの許可リストポリシーを使用する。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ListingSanitizer は商品テキストのサニタイズ機能のインターフェースを定義する。
type ListingSanitizer interface {
	// PlainText はすべてのタグを除去したプレーンテキストを返す。
	// 商品名・所在地など1行のフィールドに使用する。
	PlainText(raw string) string

	// Description は改行・段落・箇条書き・強調のみを残したHTMLを返す。
	// リンク、画像、script/style、on*イベント属性はすべて除去される。
	Description(raw string) string
}

// listingSanitizer はListingSanitizerの実装。
// bluemondayのポリシーはスレッドセーフなため共有して使用する。
type listingSanitizer struct {
	strict      *bluemonday.Policy
	description *bluemonday.Policy
}

// NewListingSanitizer はListingSanitizerの新しいインスタンスを生成する。
func NewListingSanitizer() *listingSanitizer {
	desc := bluemonday.NewPolicy()
	desc.AllowElements("p", "br", "ul", "ol", "li", "strong", "em")

	return &listingSanitizer{
		strict:      bluemonday.StrictPolicy(),
		description: desc,
	}
}

// PlainText はタグを除去し、前後の空白を取り除いたテキストを返す。
// bluemondayがエスケープした実体参照は元の文字に戻す。
func (s *listingSanitizer) PlainText(raw string) string {
	return strings.TrimSpace(html.UnescapeString(s.strict.Sanitize(raw)))
}

// Description は許可タグ以外を除去したHTMLを返す。
func (s *listingSanitizer) Description(raw string) string {
	return strings.TrimSpace(s.description.Sanitize(raw))
}

var _ ListingSanitizer = (*listingSanitizer)(nil)
