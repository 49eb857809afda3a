// Package logx provides structured logging for seekbot on top of zerolog.
//
// It exposes a small Logger facade with closure-based fields and a Service
// that owns the configured sinks (console, file, operator Telegram chat) and
// can swap them at runtime when the config file is reloaded.
package logx
