//go:build !go1.24

package logging

import (
	"context"
	"log/slog"
)

// discardHandler mirrors slog.DiscardHandler for toolchains older than Go 1.24.
var discardHandler slog.Handler = discardingHandler{}

type discardingHandler struct{}

func (discardingHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardingHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardingHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardingHandler) WithGroup(string) slog.Handler           { return d }
