package commands

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/nhle/noticeboard/internal/credential"
	"github.com/nhle/noticeboard/internal/gateway"
	"github.com/nhle/noticeboard/internal/kv"
	"github.com/nhle/noticeboard/internal/logging"
	"github.com/nhle/noticeboard/internal/model"
	"github.com/nhle/noticeboard/internal/session"
	"github.com/nhle/noticeboard/internal/store"
	notifysync "github.com/nhle/noticeboard/internal/sync"
	"github.com/nhle/noticeboard/internal/toast"
	"github.com/nhle/noticeboard/internal/watermark"
)

// App holds the wired components shared by every command. It is built
// once in the root Before hook.
type App struct {
	Config   *model.AppConfig
	Tokens   session.TokenStore
	Sessions *session.FileProvider
	Gateway  *gateway.Client
	Marks    *watermark.Store
	Toasts   *toast.Scheduler
	Poller   *notifysync.Poller

	closers []func() error
}

// NewApp wires the notification stack from cfg. With ephemeral set the
// watermarks live in memory instead of the SQLite state database.
func NewApp(cfg *model.AppConfig, ephemeral bool) (*App, error) {
	a := &App{Config: cfg}

	var backend kv.KV
	if ephemeral {
		backend = kv.NewMemory()
	} else {
		db, err := store.NewSQLiteStore(cfg.Storage.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open state database: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		backend = db
	}

	keyring := credential.NewKeyring()
	a.Tokens = keyring
	a.Sessions = session.NewFileProvider(cfg.Session.Path, keyring, logging.Component("session"))

	a.Gateway = gateway.NewClient(gateway.Config{
		BaseURL:    cfg.API.BaseURL,
		Timeout:    cfg.API.Timeout(),
		MaxRetries: cfg.API.MaxRetries,
		RatePerSec: cfg.API.RatePerSec,
	}, keyring, logging.Component("gateway"))

	a.Marks = watermark.New(backend, watermark.WithLogger(logging.Component("watermark")))
	a.Toasts = toast.New(cfg.Notifications.ToastDelay())
	a.Poller = notifysync.New(a.Gateway, a.Marks, a.Toasts, notifysync.Options{
		Interval:    cfg.Notifications.PollInterval(),
		RetainLimit: cfg.Notifications.RetainLimit,
		Logger:      logging.Component("poller"),
	})

	return a, nil
}

// Close stops polling and releases storage.
func (a *App) Close() error {
	if a.Poller != nil {
		a.Poller.Stop()
	}

	var firstErr error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Error().Err(err).Msg("failed to close resource")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
