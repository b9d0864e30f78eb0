// Package app はCLIのエントリーポイントと依存関係のワイヤリングを提供する。
//
// CLIは表示側コラボレータの1つに過ぎず、エンジンの操作を呼び出して
// 観測可能な状態を出力するだけで、エンジンの内部状態には直接触れない。
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hikaru/picfeed/internal/config"
	"github.com/hikaru/picfeed/internal/controller"
	"github.com/hikaru/picfeed/internal/database"
	"github.com/hikaru/picfeed/internal/feedcache"
	"github.com/hikaru/picfeed/internal/gateway"
	"github.com/hikaru/picfeed/internal/interaction"
	"github.com/hikaru/picfeed/internal/logger"
	"github.com/hikaru/picfeed/internal/media"
	"github.com/hikaru/picfeed/internal/metrics"
	"github.com/hikaru/picfeed/internal/repository"
	"github.com/hikaru/picfeed/internal/security"
	"github.com/hikaru/picfeed/internal/session"
)

// version はCLIのバージョン文字列。
const version = "1.0.0"

// Init はアプリケーションの初期化を行う。
// JSON構造化ログをセットアップし、環境変数からConfigを読み込む。
// logWriterがnilの場合、ログはos.Stderrに出力される。
func Init(logWriter io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(logWriter)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応する操作を実行する。
// 表示出力はwへ書き込む。argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd, rest := ParseCommand(args)

	// version と help は軽量サブコマンドのため、フル初期化をスキップする
	switch cmd {
	case CommandVersion:
		fmt.Fprintf(w, "picfeed %s\n", version)
		return nil
	case CommandHelp:
		printUsage(w)
		return nil
	}

	cfg, err := Init(nil)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	ctx := context.Background()

	e, cleanup, err := buildEngine(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	// 永続化スロットからトークンを読み込む（起動時の読み取り）
	if err := e.store.Load(ctx); err != nil {
		return err
	}

	switch cmd {
	case CommandLogin:
		return runLogin(ctx, w, e, rest)
	case CommandSignup:
		return runSignup(ctx, w, e, rest)
	case CommandLogout:
		return runLogout(ctx, w, e)
	case CommandFeed:
		return runFeed(ctx, w, e)
	case CommandComments:
		return runComments(ctx, w, e, rest)
	case CommandPost:
		return runPost(ctx, w, e, rest)
	case CommandLike:
		return runLike(ctx, w, e, rest)
	case CommandComment:
		return runComment(ctx, w, e, rest)
	case CommandProfile:
		return runProfile(ctx, w, e)
	case CommandImage:
		return runImage(ctx, w, e, rest)
	default:
		printUsage(w)
		return nil
	}
}

// engine はワイヤリング済みの依存一式を保持する。
type engine struct {
	cfg   *config.Config
	gw    *gateway.Client
	store *session.Store
	cache *feedcache.Cache
	coord *interaction.Coordinator
	ctrl  *controller.Controller
	media *media.Fetcher
}

// buildEngine は全依存関係をワイヤリングする。
// 2番目の戻り値は後始末用のクローズ関数。
func buildEngine(cfg *config.Config) (*engine, func(), error) {
	// 1. ローカル状態DBを開き、マイグレーションを適用する
	db, err := database.Open(cfg.StateDBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open state database: %w", err)
	}
	if err := database.RunMigrations(db); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("migration failed: %w", err)
	}

	// 2. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	if cfg.MetricsAddr != "" {
		go func() {
			slog.Info("metrics listener starting", slog.String("addr", cfg.MetricsAddr))
			if err := http.ListenAndServe(cfg.MetricsAddr, metrics.SetupMetricsRoute(registry)); err != nil {
				slog.Error("metrics listener error", slog.String("error", err.Error()))
			}
		}()
	}

	// 3. セキュリティサービスの初期化
	sanitizer := security.NewTextSanitizer()
	ssrfGuard := security.NewSSRFGuard()

	// 4. エンジン各層のワイヤリング
	gw := gateway.NewClient(gateway.ClientConfig{
		BaseURL:    cfg.APIBaseURL,
		Timeout:    cfg.RequestTimeout,
		RatePerMin: cfg.RateLimitPerMin,
		RateBurst:  cfg.RateBurst,
	}, sanitizer, collector, slog.Default())

	tokenRepo := repository.NewSQLiteTokenRepo(db)
	store := session.NewStore(tokenRepo, gw, slog.Default())
	cache := feedcache.NewCache(gw, store, collector, slog.Default())
	coord := interaction.NewCoordinator(gw, cache, store, cfg.UploadMaxSize, slog.Default())
	ctrl := controller.New(store, cache, slog.Default())
	fetcher := media.NewFetcher(ssrfGuard, cfg.ImageTimeout, cfg.ImageMaxSize, slog.Default())

	// コントローラの購読はトークン読込前に開始し、
	// 起動時のトークン遷移にも反応できるようにする
	ctrl.Start()

	e := &engine{
		cfg:   cfg,
		gw:    gw,
		store: store,
		cache: cache,
		coord: coord,
		ctrl:  ctrl,
		media: fetcher,
	}

	cleanup := func() {
		e.ctrl.WaitReloads()
		db.Close()
	}

	return e, cleanup, nil
}

func runLogin(ctx context.Context, w io.Writer, e *engine, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: picfeed login <username> <password>")
	}

	if _, err := e.store.Login(ctx, args[0], args[1]); err != nil {
		return err
	}

	fmt.Fprintln(w, "ログインしました。")
	return nil
}

func runSignup(ctx context.Context, w io.Writer, e *engine, args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("usage: picfeed signup <username> <email> <password>")
	}

	if _, err := e.store.Signup(ctx, args[0], args[1], args[2]); err != nil {
		return err
	}

	fmt.Fprintln(w, "アカウントを作成してログインしました。")
	return nil
}

func runLogout(ctx context.Context, w io.Writer, e *engine) error {
	if err := e.store.Logout(ctx); err != nil {
		return err
	}

	fmt.Fprintln(w, "ログアウトしました。")
	return nil
}

func runFeed(ctx context.Context, w io.Writer, e *engine) error {
	if err := e.ctrl.Refresh(ctx); err != nil {
		return err
	}
	e.cache.WaitComments()

	snap := e.ctrl.Snapshot()
	if len(snap.Posts) == 0 {
		fmt.Fprintln(w, "投稿はありません。")
		return nil
	}

	for _, p := range snap.Posts {
		commentCount := len(snap.Comments[p.ID])
		fmt.Fprintf(w, "%s  %s\n", p.CreatedAt.Format("2006-01-02 15:04"), p.Caption)
		fmt.Fprintf(w, "  id=%s  いいね=%d  コメント=%d\n", p.ID, p.LikeCount, commentCount)
	}
	return nil
}

func runComments(ctx context.Context, w io.Writer, e *engine, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: picfeed comments <post-id>")
	}
	postID := args[0]

	if err := e.ctrl.Refresh(ctx); err != nil {
		return err
	}
	e.cache.WaitComments()

	comments, loaded := e.cache.Comments(postID)
	if !loaded {
		fmt.Fprintln(w, "コメントは未読込です。")
		return nil
	}
	if len(comments) == 0 {
		fmt.Fprintln(w, "コメントはありません。")
		return nil
	}

	for _, c := range comments {
		fmt.Fprintf(w, "%s  %s: %s\n", c.CreatedAt.Format("2006-01-02 15:04"), c.AuthorName, c.Text)
	}
	return nil
}

func runPost(ctx context.Context, w io.Writer, e *engine, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: picfeed post <caption> <image-path>")
	}

	image, err := os.ReadFile(args[1])
	if err != nil {
		return fmt.Errorf("failed to read image file: %w", err)
	}

	e.coord.SetPostDraft(args[0], image, filepath.Base(args[1]))
	post, err := e.coord.SubmitPost(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "投稿しました: %s\n", post.ID)
	return nil
}

func runLike(ctx context.Context, w io.Writer, e *engine, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: picfeed like <post-id>")
	}

	count, err := e.coord.Like(ctx, args[0])
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "いいね: %d\n", count)
	return nil
}

func runComment(ctx context.Context, w io.Writer, e *engine, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: picfeed comment <post-id> <text>")
	}
	postID := args[0]
	text := strings.Join(args[1:], " ")

	e.coord.SetCommentDraft(postID, text)
	comment, err := e.coord.SubmitComment(ctx, postID)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "コメントしました: #%d\n", comment.ID)
	return nil
}

func runProfile(ctx context.Context, w io.Writer, e *engine) error {
	token, err := e.store.RequireCurrent()
	if err != nil {
		return err
	}

	profile, err := e.gw.GetProfile(ctx, token)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "ユーザー: %s (id=%d)\n", profile.Username, profile.UserID)
	if profile.Bio != "" {
		fmt.Fprintf(w, "自己紹介: %s\n", profile.Bio)
	}
	if profile.Location != "" {
		fmt.Fprintf(w, "場所: %s\n", profile.Location)
	}
	return nil
}

func runImage(ctx context.Context, w io.Writer, e *engine, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: picfeed image <post-id> <output-path>")
	}
	postID := args[0]

	if err := e.ctrl.Refresh(ctx); err != nil {
		return err
	}

	var imageURL string
	for _, p := range e.cache.Posts() {
		if p.ID == postID {
			imageURL = p.ImageURL
			break
		}
	}
	if imageURL == "" {
		return fmt.Errorf("post not found in feed: %s", postID)
	}

	data, mimeType, err := e.media.Fetch(ctx, imageURL)
	if err != nil {
		return err
	}

	if err := os.WriteFile(args[1], data, 0o600); err != nil {
		return fmt.Errorf("failed to write image file: %w", err)
	}

	fmt.Fprintf(w, "画像を保存しました: %s (%s, %dバイト)\n", args[1], mimeType, len(data))
	return nil
}

// printUsage は使い方を出力する。
func printUsage(w io.Writer) {
	fmt.Fprintln(w, "usage: picfeed <command> [args]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "commands:")
	fmt.Fprintln(w, "  login <username> <password>        ログイン")
	fmt.Fprintln(w, "  signup <username> <email> <pass>   アカウント作成")
	fmt.Fprintln(w, "  logout                             ログアウト")
	fmt.Fprintln(w, "  feed                               フィード表示")
	fmt.Fprintln(w, "  comments <post-id>                 コメント表示")
	fmt.Fprintln(w, "  post <caption> <image-path>        新規投稿")
	fmt.Fprintln(w, "  like <post-id>                     いいね")
	fmt.Fprintln(w, "  comment <post-id> <text>           コメント送信")
	fmt.Fprintln(w, "  profile                            プロフィール表示")
	fmt.Fprintln(w, "  image <post-id> <output-path>      投稿画像の保存")
	fmt.Fprintln(w, "  version                            バージョン表示")
}
