// Package interaction はいいね・コメント・投稿の各フローを調停する。
//
// ドラフト（投稿ごとの未送信コメント本文と、作成中の新規投稿）は
// 本パッケージが排他的に所有する。ドラフトのクリアは送信成功後にのみ
// 行い、送信前には決して行わない。失敗した送信が入力欄から
// 黙って消えることはない。
package interaction

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/hikaru/picfeed/internal/model"
)

// GatewayService はコーディネータが使用するリモート操作を抽象化する。
// gateway.Clientが実装する。
type GatewayService interface {
	LikePost(ctx context.Context, token, postID string) (int, error)
	CreateComment(ctx context.Context, token, postID, text string) (*model.Comment, error)
	CreatePost(ctx context.Context, token, caption string, image []byte, filename string) (*model.Post, error)
	UpdateProfile(ctx context.Context, token string, update model.ProfileUpdate, image []byte, filename string) (*model.Profile, error)
}

// CacheService はコーディネータが変更するキャッシュ操作を抽象化する。
// feedcache.Cacheが実装する。
type CacheService interface {
	PatchLikeCount(postID string, newCount int)
	MergeComment(postID string, comment model.Comment)
	UpsertPost(post model.Post)
}

// TokenSource は呼び出し時点の現在のトークンを提供する。session.Storeが実装する。
type TokenSource interface {
	Current() string
}

// PostDraft は作成中の新規投稿を表す。
type PostDraft struct {
	Caption  string
	Image    []byte
	Filename string
}

// Coordinator はユーザー操作のフローを調停する。
type Coordinator struct {
	mu            sync.Mutex
	commentDrafts map[string]string
	postDraft     PostDraft

	gw            GatewayService
	cache         CacheService
	tokens        TokenSource
	uploadMaxSize int64
	logger        *slog.Logger
}

// NewCoordinator はCoordinatorを生成する。
// uploadMaxSizeは投稿画像の上限バイト数（0以下で無制限）。
func NewCoordinator(gw GatewayService, cache CacheService, tokens TokenSource, uploadMaxSize int64, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		commentDrafts: make(map[string]string),
		gw:            gw,
		cache:         cache,
		tokens:        tokens,
		uploadMaxSize: uploadMaxSize,
		logger:        logger,
	}
}

// SetCommentDraft は投稿ごとの未送信コメント本文を更新する。
func (c *Coordinator) SetCommentDraft(postID, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if text == "" {
		delete(c.commentDrafts, postID)
		return
	}
	c.commentDrafts[postID] = text
}

// CommentDraft は投稿ごとの未送信コメント本文を返す。
func (c *Coordinator) CommentDraft(postID string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.commentDrafts[postID]
}

// SetPostDraft は作成中の新規投稿を更新する。
func (c *Coordinator) SetPostDraft(caption string, image []byte, filename string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.postDraft = PostDraft{Caption: caption, Image: image, Filename: filename}
}

// PostDraft は作成中の新規投稿を返す。
func (c *Coordinator) PostDraft() PostDraft {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.postDraft
}

// Like は投稿にいいねを付ける。
//
// 成功時はサーバーが返した最新カウントでキャッシュを更新する。
// クライアント側でカウントを加算しないため、連打しても二重計上されない。
// 失敗時は表示中のカウントに手を付けず、エラーを呼び出し元に返す。
// 自動リトライは行わない。
func (c *Coordinator) Like(ctx context.Context, postID string) (int, error) {
	token := c.tokens.Current()
	if token == "" {
		return 0, model.NewTokenMissingError()
	}

	count, err := c.gw.LikePost(ctx, token, postID)
	if err != nil {
		return 0, err
	}

	c.cache.PatchLikeCount(postID, count)
	return count, nil
}

// SubmitComment は投稿のコメントドラフトを送信する。
//
// 成功時はサーバーが採番したコメントをキャッシュに追記し、ドラフトを
// クリアする。失敗時はドラフトを残し、ユーザーが再送信できるようにする。
func (c *Coordinator) SubmitComment(ctx context.Context, postID string) (*model.Comment, error) {
	c.mu.Lock()
	draft := strings.TrimSpace(c.commentDrafts[postID])
	c.mu.Unlock()

	if draft == "" {
		return nil, model.NewEmptyCommentError()
	}

	token := c.tokens.Current()
	if token == "" {
		return nil, model.NewTokenMissingError()
	}

	comment, err := c.gw.CreateComment(ctx, token, postID, draft)
	if err != nil {
		return nil, err
	}

	c.cache.MergeComment(postID, *comment)

	c.mu.Lock()
	delete(c.commentDrafts, postID)
	c.mu.Unlock()

	c.logger.Info("comment submitted",
		slog.String("post_id", postID),
		slog.Int("comment_id", comment.ID),
	)
	return comment, nil
}

// SubmitPost は新規投稿ドラフトを送信する。
//
// キャプション・画像・トークンの存在を検証してから送信する。
// 成功時はサーバーが採番した投稿をキャッシュに反映（挿入＋再ソート）し、
// ドラフトをクリアする。失敗時はドラフトを残す。
func (c *Coordinator) SubmitPost(ctx context.Context) (*model.Post, error) {
	c.mu.Lock()
	draft := c.postDraft
	c.mu.Unlock()

	if strings.TrimSpace(draft.Caption) == "" {
		return nil, model.NewEmptyCaptionError()
	}
	if len(draft.Image) == 0 {
		return nil, model.NewNoImageSelectedError()
	}
	if c.uploadMaxSize > 0 && int64(len(draft.Image)) > c.uploadMaxSize {
		return nil, model.NewImageTooLargeError(int64(len(draft.Image)), c.uploadMaxSize)
	}

	token := c.tokens.Current()
	if token == "" {
		return nil, model.NewTokenMissingError()
	}

	post, err := c.gw.CreatePost(ctx, token, draft.Caption, draft.Image, draft.Filename)
	if err != nil {
		return nil, err
	}

	c.cache.UpsertPost(*post)

	c.mu.Lock()
	c.postDraft = PostDraft{}
	c.mu.Unlock()

	c.logger.Info("post submitted", slog.String("post_id", post.ID))
	return post, nil
}

// UpdateProfile はプロフィールを更新する。
// 更新内容はドラフトとして保持しないため、失敗時は呼び出し元の入力が
// そのまま残る。
func (c *Coordinator) UpdateProfile(ctx context.Context, update model.ProfileUpdate, image []byte, filename string) (*model.Profile, error) {
	token := c.tokens.Current()
	if token == "" {
		return nil, model.NewTokenMissingError()
	}

	return c.gw.UpdateProfile(ctx, token, update, image, filename)
}
