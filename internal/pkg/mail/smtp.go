package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	gomail "github.com/go-mail/mail"
)

const (
	defaultSMTPTimeout    = 30 * time.Second
	defaultMaxConnections = 5
	defaultMaxMessages    = 100
)

type smtpDialer interface {
	Dial() (gomail.SendCloser, error)
}

// SMTP delivers through an SMTP relay. It also serves Mailtrap and the Gmail
// app password mode.
type SMTP struct {
	provider Service
	dialer   smtpDialer
	from     string
	pool     *connPool
	opts     options
	closed   atomic.Bool
}

func newSMTP(provider Service, cfg SMTPConfig, o options) (*SMTP, error) {
	if cfg.Host == "" {
		return nil, invalidConfig(provider, "host")
	}
	if cfg.Port == 0 {
		cfg.Port = 587
		if cfg.Secure {
			cfg.Port = 465
		}
	}

	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Auth.User, cfg.Auth.Pass)
	d.SSL = cfg.Secure
	d.TLSConfig = &tls.Config{
		ServerName:         cfg.Host,
		InsecureSkipVerify: cfg.TLS.InsecureSkipVerify, //nolint:gosec // opt-in for local relays
	}
	if cfg.TLS.ServerName != "" {
		d.TLSConfig.ServerName = cfg.TLS.ServerName
	}
	switch {
	case cfg.RequireTLS:
		d.StartTLSPolicy = gomail.MandatoryStartTLS
	case cfg.IgnoreTLS:
		d.StartTLSPolicy = gomail.NoStartTLS
	default:
		d.StartTLSPolicy = gomail.OpportunisticStartTLS
	}
	if cfg.LocalName != "" {
		d.LocalName = cfg.LocalName
	}
	d.Timeout = cfg.Timeout
	if d.Timeout <= 0 {
		d.Timeout = defaultSMTPTimeout
	}

	s := &SMTP{provider: provider, dialer: d, from: cfg.From, opts: o}
	if cfg.Pool {
		s.pool = newConnPool(d, cfg.MaxConnections, cfg.MaxMessages)
	}
	return s, nil
}

func (s *SMTP) Provider() Service { return s.provider }

// Verify dials, authenticates and hangs up.
func (s *SMTP) Verify(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return s.opts.verifyFailed(s.provider, err)
	}
	sc, err := s.dialer.Dial()
	if err != nil {
		return s.opts.verifyFailed(s.provider, err)
	}
	if err := sc.Close(); err != nil {
		return s.opts.verifyFailed(s.provider, err)
	}
	return nil
}

func (s *SMTP) Send(ctx context.Context, msg Message) (Receipt, error) {
	if s.closed.Load() {
		return Receipt{}, ErrClosed
	}
	raw, env, err := compose(msg, s.from, s.opts.now())
	if err != nil {
		return Receipt{}, err
	}
	if err := ctx.Err(); err != nil {
		return Receipt{}, err
	}

	if s.pool != nil {
		err = s.sendPooled(ctx, env, raw)
	} else {
		err = s.sendOnce(env, raw)
	}
	if err != nil {
		return Receipt{}, s.opts.fail(s.provider, fmt.Errorf("pkgmail: %s send: %w", s.provider, err))
	}

	return Receipt{Provider: s.provider, MessageID: headerValue(raw, "Message-ID"), Response: "250 accepted"}, nil
}

func (s *SMTP) sendOnce(env envelope, raw []byte) error {
	sc, err := s.dialer.Dial()
	if err != nil {
		return err
	}
	if err := sc.Send(env.From, env.Recipients, rawMessage(raw)); err != nil {
		_ = sc.Close()
		return err
	}
	return sc.Close()
}

// sendPooled retries once on a fresh connection when an idle one turns out
// to be closed by the relay.
func (s *SMTP) sendPooled(ctx context.Context, env envelope, raw []byte) error {
	pc, err := s.pool.acquire(ctx)
	if err != nil {
		return err
	}

	reused := pc.sent > 0
	err = s.deliver(pc, env, raw)
	if err == nil || !reused || !connectionLost(err) {
		return err
	}

	if pc, err = s.pool.dial(ctx); err != nil {
		return err
	}
	return s.deliver(pc, env, raw)
}

func (s *SMTP) deliver(pc *pooledConn, env envelope, raw []byte) error {
	err := pc.sc.Send(env.From, env.Recipients, rawMessage(raw))
	if err == nil {
		pc.sent++
	}
	s.pool.release(pc, err == nil)
	return err
}

func (s *SMTP) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	if s.pool != nil {
		return s.pool.close()
	}
	return nil
}

type pooledConn struct {
	sc   gomail.SendCloser
	sent int
}

// connPool keeps at most maxConns open connections and retires each one
// after maxMessages deliveries.
type connPool struct {
	dialer      smtpDialer
	maxMessages int
	idle        chan *pooledConn
	slots       chan struct{}

	mu     sync.Mutex
	closed bool
}

func newConnPool(d smtpDialer, maxConns, maxMessages int) *connPool {
	if maxConns <= 0 {
		maxConns = defaultMaxConnections
	}
	if maxMessages <= 0 {
		maxMessages = defaultMaxMessages
	}
	return &connPool{
		dialer:      d,
		maxMessages: maxMessages,
		idle:        make(chan *pooledConn, maxConns),
		slots:       make(chan struct{}, maxConns),
	}
}

func (p *connPool) acquire(ctx context.Context) (*pooledConn, error) {
	select {
	case pc := <-p.idle:
		return pc, nil
	default:
	}

	select {
	case pc := <-p.idle:
		return pc, nil
	case p.slots <- struct{}{}:
		return p.open()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// dial skips idle connections and waits for a slot to open a new one.
func (p *connPool) dial(ctx context.Context) (*pooledConn, error) {
	select {
	case p.slots <- struct{}{}:
		return p.open()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// open dials on a slot the caller already holds.
func (p *connPool) open() (*pooledConn, error) {
	sc, err := p.dialer.Dial()
	if err != nil {
		<-p.slots
		return nil, err
	}
	return &pooledConn{sc: sc}, nil
}

func (p *connPool) release(pc *pooledConn, healthy bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed || !healthy || pc.sent >= p.maxMessages {
		_ = pc.sc.Close()
		<-p.slots
		return
	}
	p.idle <- pc
}

func (p *connPool) close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	var firstErr error
	for {
		select {
		case pc := <-p.idle:
			if err := pc.sc.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
			<-p.slots
		default:
			return firstErr
		}
	}
}
