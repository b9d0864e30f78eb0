package gateway

import "github.com/hikaru/picfeed/internal/model"

// ClassifyStatus は非2xxのHTTPステータスコードを分類済みエラーに変換する。
// resourceはNOT_FOUND時のメッセージに使用するリソース名。
// 再試行するかどうかの判断は呼び出し元（インタラクション側）が行い、
// ゲートウェイ自身はリトライしない。
func ClassifyStatus(statusCode int, resource string) *model.APIError {
	switch {
	case statusCode == 401 || statusCode == 403:
		return model.NewUnauthorizedError()
	case statusCode == 404 || statusCode == 410:
		return model.NewNotFoundError(resource)
	default:
		return model.NewServerError(statusCode)
	}
}
