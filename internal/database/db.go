// Package database はローカル状態DBの接続とマイグレーション管理を提供する。
// クライアントが永続化するのは認証トークンのスロットのみで、
// フィードやコメントはオフライン保存しない。
package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// Open はローカル状態DB（SQLite）を開く。
// 親ディレクトリが存在しない場合は作成する。
// sql.Openは接続を試行しないため、実際の確認にはdb.Ping()を使用すること。
func Open(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create state directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}

	// SQLiteは多重接続での書き込みに弱いため、接続を1本に制限する
	db.SetMaxOpenConns(1)

	return db, nil
}
