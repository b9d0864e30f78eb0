// Package controller はセッションとフィードを結合する反応的な単位を提供する。
//
// セッションストアのトークン遷移を購読し、不在→存在または別トークンへの
// 遷移でフィードを再読み込みし、不在への遷移でキャッシュを完全に破棄する。
// 表示側にはloading/エラー/スナップショットの観測可能な状態のみを公開する。
package controller

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/hikaru/picfeed/internal/model"
)

// FeedCache はコントローラが操作するキャッシュを抽象化する。
// feedcache.Cacheが実装する。
type FeedCache interface {
	Reload(ctx context.Context, token string, epoch uint64) ([]model.Post, error)
	Posts() []model.Post
	CommentIndex() map[string][]model.Comment
	ClearAll()
}

// SessionSource はコントローラが購読するセッションストアを抽象化する。
// session.Storeが実装する。
type SessionSource interface {
	Current() string
	Epoch() uint64
	Subscribe(fn func(token string))
}

// Snapshot は表示側に公開する観測可能な状態。
type Snapshot struct {
	Authenticated bool
	Loading       bool
	Err           error
	Posts         []model.Post
	Comments      map[string][]model.Comment
}

// Controller はセッション/フィードコントローラ。
type Controller struct {
	mu        sync.Mutex
	loading   bool
	lastErr   error
	lastToken string
	started   bool

	sessions SessionSource
	cache    FeedCache
	logger   *slog.Logger

	// 反応的な再読み込みの完了待ち。テストとCLIで使用する。
	reloads sync.WaitGroup
}

// New はControllerを生成する。
func New(sessions SessionSource, cache FeedCache, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		sessions: sessions,
		cache:    cache,
		logger:   logger,
	}
}

// Start はセッションストアの購読を開始する。
// 購読時点でトークンが存在する場合は初回の再読み込みを起動する。
func (c *Controller) Start() {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.mu.Unlock()

	c.sessions.Subscribe(c.onTokenChange)

	if token := c.sessions.Current(); token != "" {
		c.onTokenChange(token)
	}
}

// onTokenChange はトークン遷移に反応する。
// 同一トークンの再通知では何もしない。再読み込みはトークンの
// 同一性が実際に変わったときにのみ起動する。
func (c *Controller) onTokenChange(token string) {
	c.mu.Lock()
	if token == c.lastToken {
		c.mu.Unlock()
		return
	}
	c.lastToken = token
	c.mu.Unlock()

	if token == "" {
		c.cache.ClearAll()
		c.mu.Lock()
		c.lastErr = nil
		c.loading = false
		c.mu.Unlock()
		c.logger.Info("session ended, feed cleared")
		return
	}

	epoch := c.sessions.Epoch()
	c.reloads.Add(1)
	go func() {
		defer c.reloads.Done()
		c.reload(context.Background(), token, epoch)
	}()
}

// reload はフィードの再読み込みを実行し、loading/エラーフラグを更新する。
func (c *Controller) reload(ctx context.Context, token string, epoch uint64) {
	c.mu.Lock()
	c.loading = true
	c.mu.Unlock()

	_, err := c.cache.Reload(ctx, token, epoch)

	c.mu.Lock()
	c.loading = false
	switch {
	case err == nil:
		c.lastErr = nil
	case isStale(err):
		// セッションが切り替わった応答は失敗として扱わない
	default:
		c.lastErr = err
		c.logger.Warn("feed reload failed", slog.String("error", err.Error()))
	}
	c.mu.Unlock()
}

// WaitReloads は実行中の反応的な再読み込みが完了するまでブロックする。
func (c *Controller) WaitReloads() {
	c.reloads.Wait()
}

// Refresh は現在のトークンでフィードを同期的に再読み込みする。
// CLIのような一回限りの呼び出し元が使用する。未ログインの場合は
// ネットワーク呼び出しを行わずエラーを返す。
func (c *Controller) Refresh(ctx context.Context) error {
	token := c.sessions.Current()
	if token == "" {
		return model.NewTokenMissingError()
	}

	c.mu.Lock()
	c.lastToken = token
	c.mu.Unlock()

	epoch := c.sessions.Epoch()
	c.reload(ctx, token, epoch)

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Snapshot は現在の観測可能な状態を返す。
// 返される投稿一覧とコメントインデックスはコピーであり、
// 表示側が保持してもキャッシュと干渉しない。
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	loading := c.loading
	lastErr := c.lastErr
	authenticated := c.lastToken != ""
	c.mu.Unlock()

	return Snapshot{
		Authenticated: authenticated,
		Loading:       loading,
		Err:           lastErr,
		Posts:         c.cache.Posts(),
		Comments:      c.cache.CommentIndex(),
	}
}

// isStale はSTALE_RESPONSEエラーかどうかを判定する。
func isStale(err error) bool {
	var apiErr *model.APIError
	return errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeStaleResponse
}
