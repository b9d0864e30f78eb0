// Package media は投稿画像の安全なダウンロード機能を提供する。
// 画像URLはサーバーから受信した信頼できないデータとして扱い、
// SSRF防止付きクライアントで取得し、コンテンツタイプとサイズを検証する。
package media

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hikaru/picfeed/internal/model"
	"github.com/hikaru/picfeed/internal/security"
)

// FetcherService は画像ダウンロードのインターフェースを定義する。
type FetcherService interface {
	// Fetch は指定URLから画像を取得し、データとMIMEタイプを返す。
	// 画像以外のコンテンツやサイズ超過は分類済みエラーとして返す。
	Fetch(ctx context.Context, rawURL string) (data []byte, mimeType string, err error)
}

// Fetcher はFetcherServiceの実装。
type Fetcher struct {
	guard      security.SSRFGuardService
	httpClient *http.Client // テスト用に差し替え可能
	maxSize    int64
	logger     *slog.Logger
}

// NewFetcher はFetcherの新しいインスタンスを生成する。
// HTTPクライアントはguardから生成され、プライベートIPへのアクセスを遮断する。
func NewFetcher(guard security.SSRFGuardService, timeout time.Duration, maxSize int64, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{
		guard:      guard,
		httpClient: guard.NewSafeClient(timeout),
		maxSize:    maxSize,
		logger:     logger,
	}
}

// Fetch は指定URLから画像を取得し、データとMIMEタイプを返す。
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, string, error) {
	if err := f.guard.ValidateURL(rawURL); err != nil {
		f.logger.Warn("画像URLの検証に失敗しました",
			slog.String("url", rawURL),
			slog.String("error", err.Error()),
		)
		return nil, "", model.NewImageFetchFailedError(err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", model.NewImageFetchFailedError(err.Error())
	}
	req.Header.Set("User-Agent", "Picfeed/1.0 Photo Client")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, "", model.NewNetworkError(err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		f.logger.Warn("画像取得でエラーステータスが返されました",
			slog.String("url", rawURL),
			slog.Int("http_status", resp.StatusCode),
		)
		return nil, "", model.NewImageFetchFailedError(resp.Status)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return nil, "", model.NewNotAnImageError(contentType)
	}

	// 上限+1バイトまで読み、超過を検出する
	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxSize+1))
	if err != nil {
		return nil, "", model.NewNetworkError("画像データの読み取りに失敗しました: " + err.Error())
	}
	if int64(len(data)) > f.maxSize {
		return nil, "", model.NewImageTooLargeError(int64(len(data)), f.maxSize)
	}

	return data, contentType, nil
}

// compile-time interface check
var _ FetcherService = (*Fetcher)(nil)
