package mail

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/resend/resend-go/v2"
)

// Resend delivers through the Resend HTTP API.
type Resend struct {
	client *resend.Client
	cfg    ResendConfig
	opts   options
}

func newResend(cfg ResendConfig, o options) (*Resend, error) {
	if cfg.Key == "" {
		return nil, invalidConfig(ServiceResend, "key")
	}

	client := resend.NewCustomClient(o.httpClient, cfg.Key)
	if cfg.Host != "" {
		base, err := url.Parse(strings.TrimRight(cfg.Host, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("%w: resend host: %v", ErrInvalidConfig, err)
		}
		client.BaseURL = base
	}
	return &Resend{client: client, cfg: cfg, opts: o}, nil
}

func (r *Resend) Provider() Service { return ServiceResend }

func (r *Resend) Verify(ctx context.Context) error {
	if _, err := r.client.Domains.ListWithContext(ctx); err != nil {
		return r.opts.verifyFailed(ServiceResend, err)
	}
	return nil
}

func (r *Resend) Send(ctx context.Context, msg Message) (Receipt, error) {
	from := msg.From
	if from == "" {
		from = r.cfg.From
	}
	if from == "" {
		return Receipt{}, ErrNoSender
	}
	if len(msg.To)+len(msg.Cc)+len(msg.Bcc) == 0 {
		return Receipt{}, ErrNoRecipients
	}

	req := &resend.SendEmailRequest{
		From:    from,
		To:      msg.To,
		Cc:      msg.Cc,
		Bcc:     msg.Bcc,
		Subject: msg.Subject,
		Html:    msg.HTML,
		Text:    msg.Text,
		Headers: apiHeaders(msg),
	}
	if len(msg.ReplyTo) > 0 {
		req.ReplyTo = strings.Join(msg.ReplyTo, ", ")
	}
	for _, tag := range r.cfg.Tags {
		req.Tags = append(req.Tags, resend.Tag{Name: tag.Name, Value: tag.Value})
	}
	for _, a := range msg.Attachments {
		req.Attachments = append(req.Attachments, &resend.Attachment{Content: a.Content, Filename: a.Filename})
	}

	sent, err := r.client.Emails.SendWithContext(ctx, req)
	if err != nil {
		return Receipt{}, r.opts.fail(ServiceResend, fmt.Errorf("pkgmail: resend send: %w", err))
	}
	return Receipt{Provider: ServiceResend, MessageID: sent.Id}, nil
}

func (r *Resend) Close() error { return nil }
