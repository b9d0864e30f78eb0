// Package feedcache はフィードとコメントのインメモリキャッシュを提供する。
//
// キャッシュは単一所有で、状態の変更は本パッケージのメソッドのみを通じて行う。
// フィードはcreated_at降順（新しい順）を常に保ち、同時刻の投稿は
// サーバーの返却順を崩さない（安定ソート）。
// コメントインデックスは投稿IDごとの順序付きリストで、未取得の投稿は
// エントリ不在として表現する。不在は「未読込」であり「0件」ではない。
package feedcache

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/hikaru/picfeed/internal/metrics"
	"github.com/hikaru/picfeed/internal/model"
)

// FeedLister はフィード取得操作を抽象化する。gateway.Clientが実装する。
type FeedLister interface {
	// ListPosts はフィードの投稿一覧を取得する。
	ListPosts(ctx context.Context, token string) ([]model.Post, error)
	// ListComments は指定投稿のコメント一覧を取得する。
	ListComments(ctx context.Context, token, postID string) ([]model.Comment, error)
}

// EpochValidator はセッション世代の検証を抽象化する。session.Storeが実装する。
type EpochValidator interface {
	// Valid は指定された世代が現在も有効かを返す。
	Valid(epoch uint64) bool
}

// Cache はフィードとコメントインデックスのインメモリキャッシュ。
type Cache struct {
	mu       sync.RWMutex
	posts    []model.Post
	comments map[string][]model.Comment

	// Reloadが起動したコメントフェッチの完了待ち。
	// CLIのように全コメントの到着を待ちたい呼び出し元が使用する。
	pending sync.WaitGroup

	lister  FeedLister
	epochs  EpochValidator
	metrics metrics.MetricsCollector
	logger  *slog.Logger
}

// NewCache はCacheを生成する。collectorがnilの場合はメトリクスを記録しない。
func NewCache(lister FeedLister, epochs EpochValidator, collector metrics.MetricsCollector, logger *slog.Logger) *Cache {
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		comments: make(map[string][]model.Comment),
		lister:   lister,
		epochs:   epochs,
		metrics:  collector,
		logger:   logger,
	}
}

// Reload はフィード全体を再読み込みする。
//
// 投稿一覧を取得してcreated_at降順に安定ソートし、キャッシュを
// アトミックに置き換える。置き換え後、各投稿のコメントフェッチを
// バックグラウンドで起動する。Reload自体は投稿一覧の反映をもって
// 完了し、コメントの到着は待たない。
//
// epochは発行時点のセッション世代。応答の適用前に再検証し、
// セッションが切り替わっていた場合は何も反映せずSTALE_RESPONSEを返す。
func (c *Cache) Reload(ctx context.Context, token string, epoch uint64) ([]model.Post, error) {
	posts, err := c.lister.ListPosts(ctx, token)
	if err != nil {
		c.metrics.RecordReload(false)
		return nil, err
	}

	sortByCreatedAtDesc(posts)

	if !c.epochs.Valid(epoch) {
		c.metrics.RecordStaleDiscard()
		c.logger.Info("フィード応答を破棄しました（セッション変更）")
		return nil, model.NewStaleResponseError()
	}

	c.mu.Lock()
	c.posts = posts
	// 再読み込みで消えた投稿のコメントは捨てる。生き残った投稿の
	// コメントは新しいフェッチが到着するまで前回値を保持する。
	next := make(map[string][]model.Comment, len(posts))
	for _, p := range posts {
		if existing, ok := c.comments[p.ID]; ok {
			next[p.ID] = existing
		}
	}
	c.comments = next
	c.mu.Unlock()

	c.metrics.RecordReload(true)
	c.metrics.SetFeedSize(len(posts))

	for _, p := range posts {
		postID := p.ID
		c.pending.Add(1)
		go func() {
			defer c.pending.Done()
			c.fetchComments(ctx, token, epoch, postID)
		}()
	}

	return c.Posts(), nil
}

// WaitComments は実行中のコメントフェッチがすべて完了するまでブロックする。
func (c *Cache) WaitComments() {
	c.pending.Wait()
}

// fetchComments は1投稿分のコメントを取得してインデックスに反映する。
// 自分の投稿のエントリにのみ書き込むため、投稿間の干渉はない。
// 取得失敗時はエントリを不在のまま残す（「未読込」状態を維持する）。
func (c *Cache) fetchComments(ctx context.Context, token string, epoch uint64, postID string) {
	comments, err := c.lister.ListComments(ctx, token, postID)
	if err != nil {
		c.logger.Warn("コメントの取得に失敗しました",
			slog.String("post_id", postID),
			slog.String("error", err.Error()),
		)
		return
	}

	if !c.epochs.Valid(epoch) {
		c.metrics.RecordStaleDiscard()
		c.logger.Info("コメント応答を破棄しました（セッション変更）",
			slog.String("post_id", postID),
		)
		return
	}

	c.mu.Lock()
	c.comments[postID] = comments
	c.mu.Unlock()
}

// Posts は現在のフィードのコピーを返す。
func (c *Cache) Posts() []model.Post {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]model.Post, len(c.posts))
	copy(out, c.posts)
	return out
}

// Comments は指定投稿のコメント一覧のコピーを返す。
// 2番目の戻り値は読込済みかどうかを表す。falseは「未読込」であり、
// コメントが0件であることを意味しない。
func (c *Cache) Comments(postID string) ([]model.Comment, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	comments, ok := c.comments[postID]
	if !ok {
		return nil, false
	}
	out := make([]model.Comment, len(comments))
	copy(out, comments)
	return out, true
}

// CommentIndex はコメントインデックス全体のコピーを返す。
func (c *Cache) CommentIndex() map[string][]model.Comment {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string][]model.Comment, len(c.comments))
	for postID, comments := range c.comments {
		cp := make([]model.Comment, len(comments))
		copy(cp, comments)
		out[postID] = cp
	}
	return out
}

// MergeComment はコメントを該当投稿のリスト末尾に追加する。
// 投稿のエントリが未作成の場合は作成する。
func (c *Cache) MergeComment(postID string, comment model.Comment) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.comments[postID] = append(c.comments[postID], comment)
}

// UpsertPost は投稿を挿入または置換し、フィードを再ソートする。
// 同一IDの投稿が存在する場合は置換され、重複は発生しない。
func (c *Cache) UpsertPost(post model.Post) {
	c.mu.Lock()
	defer c.mu.Unlock()

	replaced := false
	for i, p := range c.posts {
		if p.ID == post.ID {
			c.posts[i] = post
			replaced = true
			break
		}
	}
	if !replaced {
		c.posts = append(c.posts, post)
	}

	sortByCreatedAtDesc(c.posts)
	c.metrics.SetFeedSize(len(c.posts))
}

// PatchLikeCount は該当投稿のいいね数のみを置き換える。
// 投稿が存在しない場合は何もしない（後続の再読み込みで消えた投稿がありうる）。
func (c *Cache) PatchLikeCount(postID string, newCount int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.posts {
		if c.posts[i].ID == postID {
			c.posts[i].LikeCount = newCount
			return
		}
	}
}

// ClearAll はフィードとコメントインデックスを完全に破棄する。
// ログアウト時に呼び出され、別セッションのデータが残らないようにする。
func (c *Cache) ClearAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.posts = nil
	c.comments = make(map[string][]model.Comment)
	c.metrics.SetFeedSize(0)
}

// Len はキャッシュ中の投稿数を返す。
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.posts)
}

// sortByCreatedAtDesc は投稿をcreated_at降順に安定ソートする。
// 同時刻の投稿は入力順（サーバー返却順）を保つ。
func sortByCreatedAtDesc(posts []model.Post) {
	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].CreatedAt.After(posts[j].CreatedAt)
	})
}
