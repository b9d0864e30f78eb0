package gateway

import (
	"time"

	"github.com/hikaru/picfeed/internal/model"
	"github.com/hikaru/picfeed/internal/security"
)

// postPayload は投稿のワイヤーフォーマット。
// フィールド名はサーバーのシリアライザに合わせる。
type postPayload struct {
	ID        string    `json:"id"`
	User      int       `json:"user"`
	Image     string    `json:"image"`
	Caption   string    `json:"caption"`
	CreatedAt time.Time `json:"created_at"`
	NoOfLikes int       `json:"no_of_likes"`
}

// toModel はワイヤーフォーマットをドメインモデルに変換する。
// サーバー由来の表示テキストはこの境界でサニタイズする。
func (p postPayload) toModel(s security.TextSanitizerService) model.Post {
	return model.Post{
		ID:        p.ID,
		OwnerID:   p.User,
		ImageURL:  p.Image,
		Caption:   s.SanitizeText(p.Caption),
		CreatedAt: p.CreatedAt,
		LikeCount: p.NoOfLikes,
	}
}

// commentPayload はコメントのワイヤーフォーマット。
type commentPayload struct {
	ID        int       `json:"id"`
	Post      string    `json:"post"`
	User      int       `json:"user"`
	Username  string    `json:"username"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

func (p commentPayload) toModel(s security.TextSanitizerService) model.Comment {
	return model.Comment{
		ID:         p.ID,
		PostID:     p.Post,
		AuthorID:   p.User,
		AuthorName: s.SanitizeText(p.Username),
		Text:       s.SanitizeText(p.Text),
		CreatedAt:  p.CreatedAt,
	}
}

// profilePayload はプロフィールのワイヤーフォーマット。
type profilePayload struct {
	User       int        `json:"user"`
	Username   string     `json:"username"`
	ProfileImg string     `json:"profile_img"`
	Bio        string     `json:"bio"`
	Location   string     `json:"location"`
	Birthday   *time.Time `json:"birthday"`
}

func (p profilePayload) toModel(s security.TextSanitizerService) model.Profile {
	return model.Profile{
		UserID:   p.User,
		Username: s.SanitizeText(p.Username),
		ImageURL: p.ProfileImg,
		Bio:      s.SanitizeText(p.Bio),
		Location: s.SanitizeText(p.Location),
		Birthday: p.Birthday,
	}
}

// authRequest は認証リクエストのボディ。
type authRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// signupRequest はサインアップリクエストのボディ。
type signupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// authResponse は認証・サインアップ成功時のレスポンス。
// accessフィールドにベアラートークンが入る。
type authResponse struct {
	Access string `json:"access"`
}

// likeRequest はいいねリクエストのボディ。
type likeRequest struct {
	PostID string `json:"post_id"`
}

// likeResponse はいいね成功時のレスポンス。サーバーが正とする最新カウントを返す。
type likeResponse struct {
	NoOfLikes int `json:"no_of_likes"`
}

// commentRequest はコメント作成リクエストのボディ。
type commentRequest struct {
	Text string `json:"text"`
}
