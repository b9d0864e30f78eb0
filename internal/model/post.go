// Package model はドメインモデルを定義する。
package model

import "time"

// Post は写真共有サービスの投稿を表す。
// IDはサーバー側で採番され、クライアントは変更しない。
// LikeCountはサーバーが正とする値（クライアント側で加算しない）。
type Post struct {
	ID        string
	OwnerID   int
	ImageURL  string
	Caption   string
	CreatedAt time.Time
	LikeCount int
}

// Comment は投稿に対するコメントを表す。
// 1つの投稿に属し、投稿内では観測順（古い順）に並ぶ。
type Comment struct {
	ID         int
	PostID     string
	AuthorID   int
	AuthorName string
	Text       string
	CreatedAt  time.Time
}

// Profile はユーザーのプロフィール情報を表す。
type Profile struct {
	UserID   int
	Username string
	ImageURL string
	Bio      string
	Location string
	Birthday *time.Time
}

// ProfileUpdate はプロフィール更新のリクエスト内容を表す。
// nilのフィールドは更新対象外を意味する。
type ProfileUpdate struct {
	Bio      *string
	Location *string
	Birthday *time.Time
}
