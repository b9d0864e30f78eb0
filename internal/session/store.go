// Package session は認証トークンのライフサイクル管理を提供する。
// トークンの唯一の所有者であり、すべての利用側は呼び出し時点の現在値を
// Current()で読む。値を捕捉して持ち回ることは想定しない。
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hikaru/picfeed/internal/model"
	"github.com/hikaru/picfeed/internal/repository"
)

// Authenticator は認証エンドポイントへのアクセスを抽象化する。
// gateway.Clientが実装する。
type Authenticator interface {
	// Authenticate は資格情報をベアラートークンに交換する。
	Authenticate(ctx context.Context, username, password string) (string, error)
	// Signup はアカウントを作成し、ベアラートークンを返す。
	Signup(ctx context.Context, username, email, password string) (string, error)
	// Logout はサーバー側のセッションを破棄する。
	Logout(ctx context.Context, token string) error
}

// Store はベアラートークンとその永続化スロットを所有するセッションストア。
//
// トークンの遷移ごとに世代カウンタ（エポック）を進める。実行中の
// 非同期フェッチは発行時点のエポックを捕捉し、応答の適用前にValidで
// 再検証することで、セッション切り替え後に到着した応答を破棄できる。
type Store struct {
	mu    sync.Mutex
	token string
	epoch uint64
	subs  []func(token string)

	repo   repository.TokenRepository
	auth   Authenticator
	logger *slog.Logger
}

// NewStore はStoreを生成する。
func NewStore(repo repository.TokenRepository, auth Authenticator, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		repo:   repo,
		auth:   auth,
		logger: logger,
	}
}

// Load は永続化スロットからトークンを読み込み、初期状態として設定する。
// 起動時に1回呼び出す。トークンが保存されていた場合は購読者に通知される。
func (s *Store) Load(ctx context.Context) error {
	token, err := s.repo.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load persisted token: %w", err)
	}
	if token == "" {
		return nil
	}

	s.mu.Lock()
	s.token = token
	s.epoch++
	subs := append([]func(string){}, s.subs...)
	s.mu.Unlock()

	s.notify(subs, token)
	return nil
}

// Current は現在のトークンを返す。未ログインの場合は空文字列。
func (s *Store) Current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// Epoch は現在のセッション世代を返す。
// 非同期フェッチは発行時にこの値を捕捉し、応答適用前にValidで再検証する。
func (s *Store) Epoch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch
}

// Valid は指定された世代が現在も有効かを返す。
func (s *Store) Valid(epoch uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch == epoch
}

// Subscribe はトークン遷移の通知先を登録する。
// 通知はロック外で、遷移後のトークン値とともに呼び出される。
func (s *Store) Subscribe(fn func(token string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, fn)
}

// Set はトークンを更新し、永続化スロットと同期する。
// メモリ上の値とスロットはロック中に両方更新するため、
// 片方だけが新しい状態を他の呼び出しが観測することはない。
func (s *Store) Set(ctx context.Context, token string) error {
	s.mu.Lock()

	var err error
	if token == "" {
		err = s.repo.Clear(ctx)
	} else {
		err = s.repo.Save(ctx, token)
	}
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to persist token: %w", err)
	}

	s.token = token
	s.epoch++
	subs := append([]func(string){}, s.subs...)
	s.mu.Unlock()

	s.notify(subs, token)
	return nil
}

// Clear はトークンを破棄する。
// エポックが進むため、実行中のフェッチの応答は適用時に破棄される。
func (s *Store) Clear(ctx context.Context) error {
	return s.Set(ctx, "")
}

// Login は資格情報でログインし、取得したトークンを保存して返す。
// 認証失敗時は既存のトークンに手を付けない。
func (s *Store) Login(ctx context.Context, username, password string) (string, error) {
	token, err := s.auth.Authenticate(ctx, username, password)
	if err != nil {
		return "", err
	}

	if err := s.Set(ctx, token); err != nil {
		return "", err
	}

	s.logger.Info("logged in", slog.String("username", username))
	return token, nil
}

// Signup はアカウントを作成し、取得したトークンを保存して返す。
func (s *Store) Signup(ctx context.Context, username, email, password string) (string, error) {
	token, err := s.auth.Signup(ctx, username, email, password)
	if err != nil {
		return "", err
	}

	if err := s.Set(ctx, token); err != nil {
		return "", err
	}

	s.logger.Info("signed up", slog.String("username", username))
	return token, nil
}

// Logout はサーバー側セッションの破棄を試みた上で、ローカルのトークンを破棄する。
// サーバー呼び出しの失敗はログに残すだけで、ローカルの破棄は常に行う。
func (s *Store) Logout(ctx context.Context) error {
	token := s.Current()
	if token == "" {
		return nil
	}

	if err := s.auth.Logout(ctx, token); err != nil {
		s.logger.Warn("server-side logout failed, clearing local token anyway",
			slog.String("error", err.Error()),
		)
	}

	if err := s.Clear(ctx); err != nil {
		return err
	}

	s.logger.Info("logged out")
	return nil
}

// notify は購読者へトークン遷移を通知する。
func (s *Store) notify(subs []func(string), token string) {
	for _, fn := range subs {
		fn(token)
	}
}

// RequireCurrent は現在のトークンを返し、未ログインの場合はエラーを返す。
func (s *Store) RequireCurrent() (string, error) {
	token := s.Current()
	if token == "" {
		return "", model.NewTokenMissingError()
	}
	return token, nil
}
