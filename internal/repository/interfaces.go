// Package repository はローカル状態の永続化インターフェースを定義する。
package repository

import "context"

// TokenRepository は認証トークンのスロットの永続化インターフェース。
// スロットは常に1つで、トークンが保存されていない状態を空文字列で表す。
type TokenRepository interface {
	// Load は保存されているトークンを取得する。未保存の場合は空文字列を返す。
	Load(ctx context.Context) (string, error)
	// Save はトークンをスロットに保存する。既存の値は上書きされる。
	Save(ctx context.Context, token string) error
	// Clear はスロットを空にする。未保存の場合も成功とする。
	Clear(ctx context.Context) error
}
