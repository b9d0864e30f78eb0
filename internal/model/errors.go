// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, feed, submission, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeTokenMissing       = "TOKEN_MISSING"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeServerError        = "SERVER_ERROR"
	ErrCodeNetworkError       = "NETWORK_ERROR"
	ErrCodeMalformedResponse  = "MALFORMED_RESPONSE"
	ErrCodeStaleResponse      = "STALE_RESPONSE"
	ErrCodeEmptyComment       = "EMPTY_COMMENT"
	ErrCodeEmptyCaption       = "EMPTY_CAPTION"
	ErrCodeNoImageSelected    = "NO_IMAGE_SELECTED"
	ErrCodeImageTooLarge      = "IMAGE_TOO_LARGE"
	ErrCodeNotAnImage         = "NOT_AN_IMAGE"
	ErrCodeImageFetchFailed   = "IMAGE_FETCH_FAILED"
)

// ErrorCode はerrからAPIErrorのコードを取り出す。
// APIErrorでない場合は空文字列を返す。
func ErrorCode(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return ""
}

// NewInvalidCredentialsError は認証失敗エラーを生成する。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "ユーザー名またはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度ログインしてください。",
	}
}

// NewTokenMissingError は未ログイン状態で認証必須操作を行った場合のエラーを生成する。
// ネットワーク呼び出しの前にローカルで検出される。
func NewTokenMissingError() *APIError {
	return &APIError{
		Code:     ErrCodeTokenMissing,
		Message:  "ログインしていません。",
		Category: "auth",
		Action:   "ログインしてから再度お試しください。",
	}
}

// NewUnauthorizedError はサーバーがトークンを拒否した場合のエラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証情報が無効または期限切れです。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewNotFoundError は対象リソースが見つからない場合のエラーを生成する。
func NewNotFoundError(resource string) *APIError {
	return &APIError{
		Code:     ErrCodeNotFound,
		Message:  fmt.Sprintf("指定されたリソースが見つかりません: %s", resource),
		Category: "feed",
		Action:   "フィードを再読み込みしてから再度お試しください。",
	}
}

// NewServerError はサーバー側エラーを生成する。
func NewServerError(statusCode int) *APIError {
	return &APIError{
		Code:     ErrCodeServerError,
		Message:  fmt.Sprintf("サーバーがエラーを返しました (HTTP %d)。", statusCode),
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewNetworkError は通信失敗エラーを生成する。
func NewNetworkError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeNetworkError,
		Message:  fmt.Sprintf("サーバーとの通信に失敗しました: %s", reason),
		Category: "system",
		Action:   "ネットワーク接続を確認して再度お試しください。",
	}
}

// NewMalformedResponseError はレスポンスの解析失敗エラーを生成する。
func NewMalformedResponseError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeMalformedResponse,
		Message:  fmt.Sprintf("サーバーレスポンスの解析に失敗しました: %s", reason),
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewStaleResponseError はセッション切り替え後に到着した応答を破棄する際のエラーを生成する。
func NewStaleResponseError() *APIError {
	return &APIError{
		Code:     ErrCodeStaleResponse,
		Message:  "セッションが変更されたため、応答を破棄しました。",
		Category: "system",
		Action:   "フィードを再読み込みしてください。",
	}
}

// NewEmptyCommentError はコメント本文が空の場合のエラーを生成する。
func NewEmptyCommentError() *APIError {
	return &APIError{
		Code:     ErrCodeEmptyComment,
		Message:  "コメントが入力されていません。",
		Category: "validation",
		Action:   "コメントを入力してから送信してください。",
	}
}

// NewEmptyCaptionError はキャプションが空の場合のエラーを生成する。
func NewEmptyCaptionError() *APIError {
	return &APIError{
		Code:     ErrCodeEmptyCaption,
		Message:  "キャプションが入力されていません。",
		Category: "validation",
		Action:   "キャプションを入力してから投稿してください。",
	}
}

// NewNoImageSelectedError は画像未選択の場合のエラーを生成する。
func NewNoImageSelectedError() *APIError {
	return &APIError{
		Code:     ErrCodeNoImageSelected,
		Message:  "画像が選択されていません。",
		Category: "validation",
		Action:   "投稿する画像を選択してください。",
	}
}

// NewImageTooLargeError は画像サイズ超過の場合のエラーを生成する。
func NewImageTooLargeError(size, limit int64) *APIError {
	return &APIError{
		Code:     ErrCodeImageTooLarge,
		Message:  fmt.Sprintf("画像サイズが上限を超えています: %dバイト > %dバイト", size, limit),
		Category: "validation",
		Action:   "より小さい画像を選択してください。",
	}
}

// NewNotAnImageError は取得したコンテンツが画像でない場合のエラーを生成する。
func NewNotAnImageError(contentType string) *APIError {
	return &APIError{
		Code:     ErrCodeNotAnImage,
		Message:  fmt.Sprintf("画像ではないコンテンツが返されました: %s", contentType),
		Category: "feed",
		Action:   "フィードを再読み込みしてから再度お試しください。",
	}
}

// NewImageFetchFailedError は投稿画像の取得失敗エラーを生成する。
func NewImageFetchFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeImageFetchFailed,
		Message:  fmt.Sprintf("画像の取得に失敗しました: %s", reason),
		Category: "feed",
		Action:   "URLが正しいか確認し、しばらく待ってから再度お試しください。",
	}
}
