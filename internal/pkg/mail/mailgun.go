package mail

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mailgun/mailgun-go/v4"
)

// Mailgun delivers through the Mailgun HTTP API.
type Mailgun struct {
	mg   *mailgun.MailgunImpl
	cfg  MailgunConfig
	opts options
}

func newMailgun(cfg MailgunConfig, o options) (*Mailgun, error) {
	if cfg.Domain == "" {
		return nil, invalidConfig(ServiceMailgun, "domain")
	}
	if cfg.Key == "" {
		return nil, invalidConfig(ServiceMailgun, "key")
	}

	mg := mailgun.NewMailgun(cfg.Domain, cfg.Key)
	if cfg.Host != "" {
		mg.SetAPIBase(apiBaseV3(cfg.Host))
	}

	client := o.httpClient
	if cfg.Debug {
		client = withDebugTransport(client, ServiceMailgun)
	}
	mg.SetClient(client)

	return &Mailgun{mg: mg, cfg: cfg, opts: o}, nil
}

// apiBaseV3 accepts both "https://api.eu.mailgun.net" and ".../v3".
func apiBaseV3(host string) string {
	host = strings.TrimRight(host, "/")
	if strings.HasSuffix(host, "/v3") {
		return host
	}
	return host + "/v3"
}

func (m *Mailgun) Provider() Service { return ServiceMailgun }

func (m *Mailgun) Verify(ctx context.Context) error {
	if _, err := m.mg.GetDomain(ctx, m.cfg.Domain); err != nil {
		return m.opts.verifyFailed(ServiceMailgun, mailgunError(err))
	}
	return nil
}

func (m *Mailgun) Send(ctx context.Context, msg Message) (Receipt, error) {
	from := msg.From
	if from == "" {
		from = m.cfg.From
	}
	if from == "" {
		return Receipt{}, ErrNoSender
	}
	if len(msg.To)+len(msg.Cc)+len(msg.Bcc) == 0 {
		return Receipt{}, ErrNoRecipients
	}

	message := m.mg.NewMessage(from, msg.Subject, msg.Text, msg.To...)
	if msg.HTML != "" {
		message.SetHtml(msg.HTML)
	}
	for _, cc := range msg.Cc {
		message.AddCC(cc)
	}
	for _, bcc := range msg.Bcc {
		message.AddBCC(bcc)
	}
	if len(msg.ReplyTo) > 0 {
		message.SetReplyTo(strings.Join(msg.ReplyTo, ", "))
	}
	for _, a := range msg.Attachments {
		if a.ContentID != "" {
			message.AddReaderInline(a.Filename, io.NopCloser(bytes.NewReader(a.Content)))
			continue
		}
		message.AddBufferAttachment(a.Filename, a.Content)
	}

	if err := m.applyOptions(message, msg); err != nil {
		return Receipt{}, err
	}

	resp, id, err := m.mg.Send(ctx, message)
	if err != nil {
		return Receipt{}, m.opts.fail(ServiceMailgun, fmt.Errorf("pkgmail: mailgun send: %w", mailgunError(err)))
	}
	return Receipt{Provider: ServiceMailgun, MessageID: id, Response: resp}, nil
}

func (m *Mailgun) applyOptions(message *mailgun.Message, msg Message) error {
	cfg := m.cfg

	if len(cfg.Tags) > 0 {
		if err := message.AddTag(cfg.Tags...); err != nil {
			return fmt.Errorf("pkgmail: mailgun tags: %w", err)
		}
	}
	switch {
	case cfg.DKIM != nil:
		message.SetDKIM(*cfg.DKIM)
	case msg.DKIM != nil:
		message.SetDKIM(true)
	}
	if !cfg.DeliveryTime.IsZero() {
		message.SetDeliveryTime(cfg.DeliveryTime)
	}
	if cfg.TestMode {
		message.EnableTestMode()
	}
	if cfg.Tracking != nil {
		message.SetTracking(*cfg.Tracking)
	}
	if cfg.TrackingClicks != nil {
		message.SetTrackingClicks(*cfg.TrackingClicks)
	}
	if cfg.TrackingOpens != nil {
		message.SetTrackingOpens(*cfg.TrackingOpens)
	}

	for k, v := range cfg.Headers {
		message.AddHeader(k, v)
	}
	for k, v := range apiHeaders(msg) {
		message.AddHeader(k, v)
	}
	for k, v := range cfg.Variables {
		if err := message.AddVariable(k, v); err != nil {
			return fmt.Errorf("pkgmail: mailgun variable %s: %w", k, err)
		}
	}
	return nil
}

func (m *Mailgun) Close() error { return nil }

func mailgunError(err error) error {
	if status := mailgun.GetStatusFromErr(err); status > 0 {
		return &ProviderError{Provider: ServiceMailgun, StatusCode: status, Message: err.Error()}
	}
	return err
}

type debugTransport struct {
	provider Service
	next     http.RoundTripper
}

func withDebugTransport(c *http.Client, provider Service) *http.Client {
	next := c.Transport
	if next == nil {
		next = http.DefaultTransport
	}
	clone := *c
	clone.Transport = &debugTransport{provider: provider, next: next}
	return &clone
}

func (d *debugTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	resp, err := d.next.RoundTrip(r)
	if err != nil {
		slog.DebugContext(r.Context(), "mail provider request failed", "provider", d.provider, "method", r.Method, "path", r.URL.Path, "error", err)
		return nil, err
	}
	slog.DebugContext(r.Context(), "mail provider request", "provider", d.provider, "method", r.Method, "path", r.URL.Path, "status", resp.StatusCode)
	return resp, nil
}
