package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
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

const pingTimeout = 5 * time.Second

func (a *App) initConfig() error {
	cfg, err := config.NewViper(a.opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("%s: %w", a.opts.ConfigPath, err)
	}

	required := []string{"app.server.http.address", "mail.service", "messaging.driver"}
	if cfg.GetBool("jwt.enabled") {
		required = append(required, "jwt.secret")
	}
	if err := config.Require(cfg, required...); err != nil {
		return err
	}

	if tz := cfg.GetString("app.tz"); tz != "" {
		//nolint:errcheck,gosec // an unknown zone falls back to UTC
		os.Setenv("TZ", tz)
	}

	a.config = cfg
	a.onClose("config", func(context.Context) error { return cfg.Close() })
	return nil
}

func (a *App) initInstrument() error {
	var cfg instrument.Config
	if err := a.config.Unmarshal("instrument", &cfg); err != nil {
		return err
	}

	ins, err := instrument.New(a.ctx, cfg)
	if err != nil {
		return err
	}

	a.ins = ins
	a.onClose("instrument", ins.Shutdown)
	return nil
}

func (a *App) initLibraries() error {
	v, err := validator.NewV10Validator()
	if err != nil {
		return fmt.Errorf("validator: %w", err)
	}

	snow, err := uid.NewSnowflake(a.config.GetInt64("app.node_id"))
	if err != nil {
		return err
	}

	a.validator = v
	a.uid = snow
	a.uuid = uid.NewUUID()
	a.clock = clock.New()
	a.goroutine = goroutine.NewManager(a.config.GetInt("app.server.max_goroutine"))

	a.registry = prometheus.NewRegistry()
	for _, c := range []prometheus.Collector{
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := a.registry.Register(c); err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
	}
	return nil
}

func (a *App) initJWT() error {
	if !a.config.GetBool("jwt.enabled") {
		return nil
	}

	tokens, err := jwt.NewHS512(jwt.Config{
		Secret:    []byte(a.config.GetString("jwt.secret")),
		Issuer:    a.config.GetString("jwt.issuer"),
		Audiences: a.config.GetArray("jwt.audiences"),
		TTL:       a.config.GetMinute("jwt.ttl_minutes"),
		Clock:     a.clock,
		UUID:      a.uuid,
	})
	if err != nil {
		return err
	}

	a.jwt = tokens
	return nil
}

// initDatabase opens the delivery log pool when enabled.
func (a *App) initDatabase() error {
	if !a.config.GetBool("database.enabled") {
		slog.Info("database disabled, delivery log is off")
		return nil
	}

	pc, err := pgxpool.ParseConfig(a.config.GetString("database.url"))
	if err != nil {
		return fmt.Errorf("parse url: %w", err)
	}
	pc.MaxConns = a.config.GetInt32("database.pool.max_conns")
	pc.MinConns = a.config.GetInt32("database.pool.min_conns")
	pc.MaxConnLifetime = a.config.GetSecond("database.pool.max_conn_lifetime_seconds")
	pc.MaxConnIdleTime = a.config.GetSecond("database.pool.max_conn_idle_seconds")
	pc.HealthCheckPeriod = a.config.GetSecond("database.pool.health_check_period_seconds")

	pool, err := pgxpool.NewWithConfig(a.ctx, pc)
	if err != nil {
		return err
	}
	a.onClose("database", func(context.Context) error { pool.Close(); return nil })

	ctx, cancel := context.WithTimeout(a.ctx, pingTimeout)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}

	a.dbConn = pool
	return nil
}

// initCache connects redis, which backs job idempotency.
func (a *App) initCache() error {
	if !a.config.GetBool("redis.enabled") {
		slog.Info("redis disabled, queue jobs are processed without idempotency")
		return nil
	}

	opt, err := redis.ParseURL(a.config.GetString("redis.url"))
	if err != nil {
		return fmt.Errorf("parse url: %w", err)
	}

	rdb := redis.NewClient(opt)
	a.onClose("redis", func(context.Context) error { return rdb.Close() })

	ctx, cancel := context.WithTimeout(a.ctx, pingTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping: %w", err)
	}

	a.cacheConn = rdb
	a.idemp = idempotency.New(rdb, idempotency.WithPrefix("gomailer:job:"))
	return nil
}

func (a *App) initMail() error {
	var cfg mail.Config
	if err := a.config.Unmarshal("mail", &cfg); err != nil {
		return err
	}

	client, err := mail.New(cfg, mail.WithHooks(mail.Hooks{
		OnToken: func(t mail.Token) {
			slog.Info("mail transport fetched a new access token", "user", t.User, "expires", t.Expires)
		},
		OnError: func(svc mail.Service, err error) {
			slog.Warn("mail transport error", "service", svc.String(), "error", err)
		},
	}))
	if err != nil {
		return fmt.Errorf("%s: %w", cfg.Service, err)
	}

	a.mail = client
	a.onClose("mail", func(context.Context) error { return client.Close() })
	return nil
}

// initStorage opens the attachment bucket when enabled.
func (a *App) initStorage() error {
	if !a.config.GetBool("storage.enabled") {
		slog.Info("storage disabled, attachment references and uploads are off")
		return nil
	}

	var opts storage.FactoryOptions
	if err := a.config.Unmarshal("storage", &opts); err != nil {
		return err
	}

	driver := strings.TrimSpace(a.config.GetString("storage.driver"))
	stg, err := storage.NewFromDriver(a.ctx, driver, opts)
	if err != nil {
		return fmt.Errorf("%s: %w", driver, err)
	}

	a.storage = stg
	a.onClose("storage", func(context.Context) error { return stg.Close() })
	return nil
}

func (a *App) initMessaging() error {
	var opts messaging.FactoryOptions
	if err := a.config.Unmarshal("messaging", &opts); err != nil {
		return err
	}

	// AMQP_URL predates the GOMAILER_ prefix and is only a fallback.
	if opts.AMQP.URL == "" {
		opts.AMQP.URL = os.Getenv("AMQP_URL")
	}

	opts.NATS.Options = []nats.Option{
		nats.Name(a.config.GetString("messaging.nats.name")),
		nats.MaxReconnects(a.config.GetInt("messaging.nats.max_reconnects")),
		nats.Timeout(a.config.GetSecond("messaging.nats.timeout_seconds")),
		nats.ReconnectWait(a.config.GetSecond("messaging.nats.reconnect_wait_seconds")),
		nats.PingInterval(a.config.GetSecond("messaging.nats.ping_interval_seconds")),
		nats.MaxPingsOutstanding(a.config.GetInt("messaging.nats.max_pings_outstanding")),
		nats.RetryOnFailedConnect(a.config.GetBool("messaging.nats.retry_on_failed_connect")),
	}

	driver := a.config.GetString("messaging.driver")
	client, err := messaging.NewFromDriver(a.ctx, driver, opts)
	if err != nil {
		return fmt.Errorf("%s: %w", driver, err)
	}

	a.messaging = client
	a.onClose("messaging", func(context.Context) error { return client.Close() })
	return nil
}

// initCasbin loads the authorization policies. Without a token verifier
// every endpoint is public and no enforcer is built.
func (a *App) initCasbin() error {
	if a.jwt == nil {
		return nil
	}

	var policies router.Policies
	if err := a.config.Unmarshal("authz", &policies); err != nil {
		return err
	}

	e, err := router.NewEnforcer(policies)
	if err != nil {
		return err
	}

	a.casbin = e
	return nil
}

func (a *App) initHTTPServer() error {
	a.router = router.NewRouter(router.Config{
		Config:       a.config,
		UUID:         a.uuid,
		JWT:          a.jwt,
		Instrument:   a.ins,
		Enforcer:     a.casbin,
		Health:       a.health,
		Metrics:      promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{Registry: a.registry}),
		MaxBodyBytes: a.config.GetInt64("app.server.http.max_body_bytes"),
	})

	handler := cors.New(cors.Options{
		AllowedOrigins:   a.config.GetArray("app.server.cors"),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}).Handler(a.router)

	a.httpServer = &http.Server{
		Addr:              a.config.GetString("app.server.http.address"),
		Handler:           handler,
		ReadTimeout:       a.config.GetSecond("app.server.http.read_timeout_seconds"),
		ReadHeaderTimeout: a.config.GetSecond("app.server.http.read_header_timeout_seconds"),
		WriteTimeout:      a.config.GetSecond("app.server.http.write_timeout_seconds"),
		IdleTimeout:       a.config.GetSecond("app.server.http.idle_timeout_seconds"),
	}
	return nil
}

// health pings the optional backing stores.
func (a *App) health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	var errs []error
	if a.dbConn != nil {
		errs = append(errs, a.dbConn.Ping(ctx))
	}
	if a.cacheConn != nil {
		errs = append(errs, a.cacheConn.Ping(ctx).Err())
	}
	return errors.Join(errs...)
}
