package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"slices"

	"github.com/casbin/casbin/v3"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/shandysiswandi/gomailer/internal/pkg/clock"
	"github.com/shandysiswandi/gomailer/internal/pkg/config"
	"github.com/shandysiswandi/gomailer/internal/pkg/goroutine"
	"github.com/shandysiswandi/gomailer/internal/pkg/idempotency"
	"github.com/shandysiswandi/gomailer/internal/pkg/instrument"
	"github.com/shandysiswandi/gomailer/internal/pkg/jwt"
	"github.com/shandysiswandi/gomailer/internal/pkg/mail"
	"github.com/shandysiswandi/gomailer/internal/pkg/messaging"
	"github.com/shandysiswandi/gomailer/internal/pkg/router"
	"github.com/shandysiswandi/gomailer/internal/pkg/storage"
	"github.com/shandysiswandi/gomailer/internal/pkg/uid"
	"github.com/shandysiswandi/gomailer/internal/pkg/validator"
)

// Options are the process-level inputs that cannot come from the config file.
type Options struct {
	// ConfigPath is the YAML config file.
	ConfigPath string
}

// App owns every process resource of the mail service: the HTTP API, the
// transport, the queue connection and the optional stores.
type App struct {
	opts   Options
	ctx    context.Context
	cancel context.CancelFunc

	config config.Config
	ins    instrument.Instrumentation

	goroutine *goroutine.Manager
	validator validator.Validator
	clock     clock.Clocker
	uid       uid.NumberID
	uuid      uid.StringID
	jwt       jwt.JWT
	registry  *prometheus.Registry

	// nil when disabled in config
	dbConn    *pgxpool.Pool
	cacheConn *redis.Client
	idemp     idempotency.Idempotency
	storage   storage.Storage
	casbin    *casbin.Enforcer

	mail      mail.Mail
	messaging messaging.Messaging

	router     *router.Router
	httpServer *http.Server

	closers []closer
}

type closer struct {
	name string
	fn   func(context.Context) error
}

// New runs every init step in order. When a step fails the resources opened
// by earlier steps are released before the error is returned.
func New(opts Options) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())
	a := &App{opts: opts, ctx: ctx, cancel: cancel}

	steps := []struct {
		name string
		run  func() error
	}{
		{"config", a.initConfig},
		{"instrument", a.initInstrument},
		{"libraries", a.initLibraries},
		{"jwt", a.initJWT},
		{"database", a.initDatabase},
		{"cache", a.initCache},
		{"mail", a.initMail},
		{"storage", a.initStorage},
		{"messaging", a.initMessaging},
		{"casbin", a.initCasbin},
		{"http server", a.initHTTPServer},
		{"modules", a.initModules},
	}

	for _, step := range steps {
		if err := step.run(); err != nil {
			cancel()
			a.release(context.Background())
			return nil, fmt.Errorf("init %s: %w", step.name, err)
		}
	}

	return a, nil
}

// onClose registers fn to run on shutdown. Closers run in reverse order of
// registration, so config and telemetry are released last.
func (a *App) onClose(name string, fn func(context.Context) error) {
	a.closers = append(a.closers, closer{name: name, fn: fn})
}

func (a *App) release(ctx context.Context) {
	for _, c := range slices.Backward(a.closers) {
		if err := c.fn(ctx); err != nil {
			slog.ErrorContext(ctx, "failed to close resource", "name", c.name, "error", err)
		}
	}
	a.closers = nil
}
