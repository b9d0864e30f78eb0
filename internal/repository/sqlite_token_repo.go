package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SQLiteTokenRepo はSQLiteを使用したトークンリポジトリ。
type SQLiteTokenRepo struct {
	db *sql.DB
}

// NewSQLiteTokenRepo はSQLiteTokenRepoを生成する。
func NewSQLiteTokenRepo(db *sql.DB) *SQLiteTokenRepo {
	return &SQLiteTokenRepo{db: db}
}

// Load は保存されているトークンを取得する。未保存の場合は空文字列を返す。
func (r *SQLiteTokenRepo) Load(ctx context.Context) (string, error) {
	var token string
	err := r.db.QueryRowContext(ctx,
		`SELECT token FROM auth_token WHERE id = 1`,
	).Scan(&token)

	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load token: %w", err)
	}

	return token, nil
}

// Save はトークンをスロットに保存する。既存の値は上書きされる。
func (r *SQLiteTokenRepo) Save(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO auth_token (id, token, updated_at) VALUES (1, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET token = excluded.token, updated_at = excluded.updated_at`,
		token, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	return nil
}

// Clear はスロットを空にする。未保存の場合も成功とする。
func (r *SQLiteTokenRepo) Clear(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM auth_token WHERE id = 1`,
	)
	if err != nil {
		return fmt.Errorf("failed to clear token: %w", err)
	}
	return nil
}

// compile-time interface check
var _ TokenRepository = (*SQLiteTokenRepo)(nil)
