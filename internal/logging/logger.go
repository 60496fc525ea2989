// Package logging は slog ベースの構造化ロガーを生成します。
package logging

import (
	"io"
	"log/slog"
	"os"
)

// New は指定レベルの JSON ロガーを作成します。
// 不正なレベル文字列の場合は info になります。
func New(level string) *slog.Logger {
	lvl := new(slog.LevelVar)
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl.Set(slog.LevelInfo)
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	return slog.New(handler)
}

// Discard は何も出力しないロガーを返します（テスト用）。
func Discard() *slog.Logger {
	handler := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError})
	return slog.New(handler)
}
