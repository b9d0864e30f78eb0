// Package gateway は写真共有サービスのリモートAPIへの型付きクライアントを提供する。
// 各操作はリクエストの構築・送信・レスポンスの分類のみを行うステートレスな
// ラッパーで、リトライや楽観的更新などのポリシーは呼び出し元が持つ。
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/hikaru/picfeed/internal/metrics"
	"github.com/hikaru/picfeed/internal/model"
	"github.com/hikaru/picfeed/internal/security"
)

// userAgent はAPIリクエストのUser-Agentヘッダー値。
const userAgent = "Picfeed/1.0 Photo Client"

// ClientConfig はゲートウェイクライアントの設定。
type ClientConfig struct {
	BaseURL    string        // APIのベースURL（例: "https://api.example.com"）
	Timeout    time.Duration // 1リクエストあたりのタイムアウト
	RatePerMin int           // クライアント側レート制限（req/min）
	RateBurst  int           // レート制限のバーストサイズ
}

// Client はリモートAPIの型付きクライアント。
// トークンは保持せず、毎回の呼び出しで現在値を受け取る。
// これによりログアウト後に古いトークンが使われることを構造的に防ぐ。
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	sanitizer  security.TextSanitizerService
	metrics    metrics.MetricsCollector
	logger     *slog.Logger
}

// NewClient はClientの新しいインスタンスを生成する。
// collectorがnilの場合はメトリクスを記録しない。
func NewClient(cfg ClientConfig, sanitizer security.TextSanitizerService, collector metrics.MetricsCollector, logger *slog.Logger) *Client {
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	ratePerMin := cfg.RatePerMin
	if ratePerMin <= 0 {
		ratePerMin = 120
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 30
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(float64(ratePerMin)/60.0), burst),
		sanitizer:  sanitizer,
		metrics:    collector,
		logger:     logger,
	}
}

// Authenticate は資格情報をベアラートークンに交換する。
// 認証拒否（400/401）はINVALID_CREDENTIALSとして返す。
func (c *Client) Authenticate(ctx context.Context, username, password string) (string, error) {
	body, err := json.Marshal(authRequest{Username: username, Password: password})
	if err != nil {
		return "", fmt.Errorf("failed to encode auth request: %w", err)
	}

	data, status, err := c.do(ctx, "authenticate", http.MethodPost, "/api-token-auth/", "", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	if status == http.StatusBadRequest || status == http.StatusUnauthorized {
		c.metrics.RecordRequest("authenticate", model.ErrCodeInvalidCredentials)
		return "", model.NewInvalidCredentialsError()
	}
	if status < 200 || status >= 300 {
		return "", c.classified("authenticate", status, "認証エンドポイント")
	}

	var resp authResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		c.metrics.RecordRequest("authenticate", model.ErrCodeMalformedResponse)
		return "", model.NewMalformedResponseError(err.Error())
	}
	if resp.Access == "" {
		c.metrics.RecordRequest("authenticate", model.ErrCodeMalformedResponse)
		return "", model.NewMalformedResponseError("accessトークンが含まれていません")
	}

	c.metrics.RecordRequest("authenticate", "ok")
	return resp.Access, nil
}

// Signup はアカウントを作成し、ベアラートークンを返す。
func (c *Client) Signup(ctx context.Context, username, email, password string) (string, error) {
	body, err := json.Marshal(signupRequest{Username: username, Email: email, Password: password})
	if err != nil {
		return "", fmt.Errorf("failed to encode signup request: %w", err)
	}

	data, status, err := c.do(ctx, "signup", http.MethodPost, "/api/signup/", "", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	if status == http.StatusBadRequest {
		c.metrics.RecordRequest("signup", model.ErrCodeInvalidCredentials)
		return "", model.NewInvalidCredentialsError()
	}
	if status < 200 || status >= 300 {
		return "", c.classified("signup", status, "サインアップエンドポイント")
	}

	var resp authResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		c.metrics.RecordRequest("signup", model.ErrCodeMalformedResponse)
		return "", model.NewMalformedResponseError(err.Error())
	}
	if resp.Access == "" {
		c.metrics.RecordRequest("signup", model.ErrCodeMalformedResponse)
		return "", model.NewMalformedResponseError("accessトークンが含まれていません")
	}

	c.metrics.RecordRequest("signup", "ok")
	return resp.Access, nil
}

// Logout はサーバー側のセッションを破棄する。
func (c *Client) Logout(ctx context.Context, token string) error {
	if err := requireToken(token); err != nil {
		return err
	}

	_, status, err := c.do(ctx, "logout", http.MethodPost, "/api/logout/", token, "application/json", nil)
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return c.classified("logout", status, "ログアウトエンドポイント")
	}

	c.metrics.RecordRequest("logout", "ok")
	return nil
}

// ListPosts はフィードの投稿一覧を取得する。
// 並び順はサーバーの返却順のままで、ソートはフィードキャッシュが行う。
func (c *Client) ListPosts(ctx context.Context, token string) ([]model.Post, error) {
	if err := requireToken(token); err != nil {
		return nil, err
	}

	data, status, err := c.do(ctx, "list_posts", http.MethodGet, "/api/posts/", token, "", nil)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, c.classified("list_posts", status, "投稿一覧")
	}

	var payloads []postPayload
	if err := json.Unmarshal(data, &payloads); err != nil {
		c.metrics.RecordRequest("list_posts", model.ErrCodeMalformedResponse)
		return nil, model.NewMalformedResponseError(err.Error())
	}

	posts := make([]model.Post, len(payloads))
	for i, p := range payloads {
		posts[i] = p.toModel(c.sanitizer)
	}

	c.metrics.RecordRequest("list_posts", "ok")
	return posts, nil
}

// CreatePost はキャプションと画像からなる新規投稿を作成する。
// リクエストはmultipart/form-dataで送信する。
func (c *Client) CreatePost(ctx context.Context, token, caption string, image []byte, filename string) (*model.Post, error) {
	if err := requireToken(token); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("caption", caption); err != nil {
		return nil, fmt.Errorf("failed to write caption field: %w", err)
	}
	fw, err := mw.CreateFormFile("image", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create image part: %w", err)
	}
	if _, err := fw.Write(image); err != nil {
		return nil, fmt.Errorf("failed to write image part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	data, status, err := c.do(ctx, "create_post", http.MethodPost, "/api/upload/", token, mw.FormDataContentType(), &buf)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, c.classified("create_post", status, "投稿アップロード")
	}

	var payload postPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		c.metrics.RecordRequest("create_post", model.ErrCodeMalformedResponse)
		return nil, model.NewMalformedResponseError(err.Error())
	}

	post := payload.toModel(c.sanitizer)
	c.metrics.RecordRequest("create_post", "ok")
	return &post, nil
}

// LikePost は投稿にいいねを付け、サーバーが正とする最新のいいね数を返す。
func (c *Client) LikePost(ctx context.Context, token, postID string) (int, error) {
	if err := requireToken(token); err != nil {
		return 0, err
	}

	body, err := json.Marshal(likeRequest{PostID: postID})
	if err != nil {
		return 0, fmt.Errorf("failed to encode like request: %w", err)
	}

	data, status, err := c.do(ctx, "like_post", http.MethodPost, "/api/like/", token, "application/json", bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	if status < 200 || status >= 300 {
		return 0, c.classified("like_post", status, "投稿 "+postID)
	}

	var resp likeResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		c.metrics.RecordRequest("like_post", model.ErrCodeMalformedResponse)
		return 0, model.NewMalformedResponseError(err.Error())
	}

	c.metrics.RecordRequest("like_post", "ok")
	return resp.NoOfLikes, nil
}

// ListComments は指定投稿のコメント一覧を取得する。
func (c *Client) ListComments(ctx context.Context, token, postID string) ([]model.Comment, error) {
	if err := requireToken(token); err != nil {
		return nil, err
	}

	path := "/api/posts/" + postID + "/comments/"
	data, status, err := c.do(ctx, "list_comments", http.MethodGet, path, token, "", nil)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, c.classified("list_comments", status, "投稿 "+postID+" のコメント")
	}

	var payloads []commentPayload
	if err := json.Unmarshal(data, &payloads); err != nil {
		c.metrics.RecordRequest("list_comments", model.ErrCodeMalformedResponse)
		return nil, model.NewMalformedResponseError(err.Error())
	}

	comments := make([]model.Comment, len(payloads))
	for i, p := range payloads {
		comments[i] = p.toModel(c.sanitizer)
	}

	c.metrics.RecordRequest("list_comments", "ok")
	return comments, nil
}

// CreateComment は指定投稿にコメントを作成し、サーバーが採番したコメントを返す。
func (c *Client) CreateComment(ctx context.Context, token, postID, text string) (*model.Comment, error) {
	if err := requireToken(token); err != nil {
		return nil, err
	}

	body, err := json.Marshal(commentRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("failed to encode comment request: %w", err)
	}

	path := "/api/posts/" + postID + "/comments/"
	data, status, err := c.do(ctx, "create_comment", http.MethodPost, path, token, "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, c.classified("create_comment", status, "投稿 "+postID)
	}

	var payload commentPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		c.metrics.RecordRequest("create_comment", model.ErrCodeMalformedResponse)
		return nil, model.NewMalformedResponseError(err.Error())
	}

	comment := payload.toModel(c.sanitizer)
	c.metrics.RecordRequest("create_comment", "ok")
	return &comment, nil
}

// GetProfile は現在のユーザーのプロフィールを取得する。
func (c *Client) GetProfile(ctx context.Context, token string) (*model.Profile, error) {
	if err := requireToken(token); err != nil {
		return nil, err
	}

	data, status, err := c.do(ctx, "get_profile", http.MethodGet, "/api/profile/", token, "", nil)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, c.classified("get_profile", status, "プロフィール")
	}

	var payload profilePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		c.metrics.RecordRequest("get_profile", model.ErrCodeMalformedResponse)
		return nil, model.NewMalformedResponseError(err.Error())
	}

	profile := payload.toModel(c.sanitizer)
	c.metrics.RecordRequest("get_profile", "ok")
	return &profile, nil
}

// UpdateProfile はプロフィールを更新する。
// 画像が指定された場合はmultipart/form-data、それ以外はJSONで送信する。
func (c *Client) UpdateProfile(ctx context.Context, token string, update model.ProfileUpdate, image []byte, filename string) (*model.Profile, error) {
	if err := requireToken(token); err != nil {
		return nil, err
	}

	var (
		body        io.Reader
		contentType string
	)

	if len(image) > 0 {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		if update.Bio != nil {
			if err := mw.WriteField("bio", *update.Bio); err != nil {
				return nil, fmt.Errorf("failed to write bio field: %w", err)
			}
		}
		if update.Location != nil {
			if err := mw.WriteField("location", *update.Location); err != nil {
				return nil, fmt.Errorf("failed to write location field: %w", err)
			}
		}
		if update.Birthday != nil {
			if err := mw.WriteField("birthday", update.Birthday.Format(time.RFC3339)); err != nil {
				return nil, fmt.Errorf("failed to write birthday field: %w", err)
			}
		}
		fw, err := mw.CreateFormFile("profile_img", filename)
		if err != nil {
			return nil, fmt.Errorf("failed to create profile image part: %w", err)
		}
		if _, err := fw.Write(image); err != nil {
			return nil, fmt.Errorf("failed to write profile image part: %w", err)
		}
		if err := mw.Close(); err != nil {
			return nil, fmt.Errorf("failed to finalize multipart body: %w", err)
		}
		body = &buf
		contentType = mw.FormDataContentType()
	} else {
		fields := map[string]string{}
		if update.Bio != nil {
			fields["bio"] = *update.Bio
		}
		if update.Location != nil {
			fields["location"] = *update.Location
		}
		if update.Birthday != nil {
			fields["birthday"] = update.Birthday.Format(time.RFC3339)
		}
		encoded, err := json.Marshal(fields)
		if err != nil {
			return nil, fmt.Errorf("failed to encode profile update: %w", err)
		}
		body = bytes.NewReader(encoded)
		contentType = "application/json"
	}

	data, status, err := c.do(ctx, "update_profile", http.MethodPatch, "/api/profile/", token, contentType, body)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, c.classified("update_profile", status, "プロフィール")
	}

	var payload profilePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		c.metrics.RecordRequest("update_profile", model.ErrCodeMalformedResponse)
		return nil, model.NewMalformedResponseError(err.Error())
	}

	profile := payload.toModel(c.sanitizer)
	c.metrics.RecordRequest("update_profile", "ok")
	return &profile, nil
}

// do はリクエストの構築・送信とボディの読み取りを行う共通処理。
// クライアント側レート制限で自己制御した上で送信し、
// トランスポートレベルの失敗はNETWORK_ERRORとして返す。
// HTTPステータスの解釈は各操作が行う。
func (c *Client) do(ctx context.Context, operation, method, path, token, contentType string, body io.Reader) ([]byte, int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		c.metrics.RecordRequest(operation, model.ErrCodeNetworkError)
		return nil, 0, model.NewNetworkError("レート制限の待機が中断されました: " + err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	requestID := uuid.New().String()
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-Request-ID", requestID)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.RecordRequestLatency(time.Since(start))
	if err != nil {
		c.logger.Error("APIリクエストが失敗しました",
			slog.String("operation", operation),
			slog.String("request_id", requestID),
			slog.String("error", err.Error()),
		)
		c.metrics.RecordRequest(operation, model.ErrCodeNetworkError)
		return nil, 0, model.NewNetworkError(err.Error())
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		c.metrics.RecordRequest(operation, model.ErrCodeNetworkError)
		return nil, 0, model.NewNetworkError("レスポンスボディの読み取りに失敗しました: " + err.Error())
	}

	return data, resp.StatusCode, nil
}

// classified は非2xxステータスを分類し、メトリクスとログに記録する。
func (c *Client) classified(operation string, status int, resource string) *model.APIError {
	apiErr := ClassifyStatus(status, resource)
	c.logger.Warn("APIがエラーステータスを返しました",
		slog.String("operation", operation),
		slog.Int("http_status", status),
		slog.String("code", apiErr.Code),
	)
	c.metrics.RecordRequest(operation, apiErr.Code)
	return apiErr
}

// requireToken はトークンの存在を検証する。
// 不在の場合はネットワーク呼び出しを行わずローカルで失敗させる。
func requireToken(token string) error {
	if token == "" {
		return model.NewTokenMissingError()
	}
	return nil
}
