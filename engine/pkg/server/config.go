package server

import (
	"errors"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/qrnglabs/qrng/engine/pkg/ledger"
	"github.com/qrnglabs/qrng/engine/pkg/program"
)

// VersionInfo contains build-time version information.
type VersionInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

type Config struct {
	Logger            *slog.Logger
	ListenAddr        string
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
	VersionInfo       VersionInfo
	Dispatcher        *program.Dispatcher
	Store             ledger.Store

	// SubmitRate limits instruction submissions per client IP.
	SubmitRate  rate.Limit
	SubmitBurst int
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.ListenAddr == "" {
		return errors.New("listen addr is required")
	}
	if cfg.Dispatcher == nil {
		return errors.New("dispatcher is required")
	}
	if cfg.Store == nil {
		return errors.New("ledger store is required")
	}
	if cfg.ReadHeaderTimeout <= 0 {
		cfg.ReadHeaderTimeout = 10 * time.Second
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.SubmitRate == 0 {
		// 600 submissions per minute per IP with a burst of 20.
		cfg.SubmitRate = rate.Every(time.Minute / 600)
		cfg.SubmitBurst = 20
	}
	if cfg.SubmitBurst <= 0 {
		cfg.SubmitBurst = 20
	}
	return nil
}
