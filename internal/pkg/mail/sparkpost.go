package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultSparkPostHost = "https://api.sparkpost.com"

// SparkPost delivers composed MIME messages through the transmissions API.
type SparkPost struct {
	client *http.Client
	host   string
	cfg    SparkPostConfig
	opts   options
}

func newSparkPost(cfg SparkPostConfig, o options) (*SparkPost, error) {
	if cfg.Key == "" {
		return nil, invalidConfig(ServiceSparkPost, "key")
	}
	host := cfg.Host
	if host == "" {
		host = defaultSparkPostHost
	}
	return &SparkPost{client: o.httpClient, host: strings.TrimRight(host, "/"), cfg: cfg, opts: o}, nil
}

type sparkPostAddress struct {
	Email    string `json:"email"`
	HeaderTo string `json:"header_to,omitempty"`
}

type sparkPostRecipient struct {
	Address sparkPostAddress `json:"address"`
}

type sparkPostOptions struct {
	StartTime       string `json:"start_time,omitempty"`
	OpenTracking    *bool  `json:"open_tracking,omitempty"`
	ClickTracking   *bool  `json:"click_tracking,omitempty"`
	InitialOpen     *bool  `json:"initial_open,omitempty"`
	Transactional   *bool  `json:"transactional,omitempty"`
	Sandbox         bool   `json:"sandbox,omitempty"`
	SkipSuppression bool   `json:"skip_suppression,omitempty"`
	IPPool          string `json:"ip_pool,omitempty"`
}

type sparkPostTransmission struct {
	Options    *sparkPostOptions    `json:"options,omitempty"`
	Recipients []sparkPostRecipient `json:"recipients"`
	Content    struct {
		EmailRFC822 string `json:"email_rfc822"`
	} `json:"content"`
}

type sparkPostResponse struct {
	Results struct {
		ID                 string `json:"id"`
		AcceptedRecipients int    `json:"total_accepted_recipients"`
		RejectedRecipients int    `json:"total_rejected_recipients"`
	} `json:"results"`
	Errors []struct {
		Message     string `json:"message"`
		Description string `json:"description"`
		Code        string `json:"code"`
	} `json:"errors"`
}

func (s *SparkPost) Provider() Service { return ServiceSparkPost }

func (s *SparkPost) Verify(ctx context.Context) error {
	if _, err := s.do(ctx, http.MethodGet, "/api/v1/account", nil); err != nil {
		return s.opts.verifyFailed(ServiceSparkPost, err)
	}
	return nil
}

func (s *SparkPost) Send(ctx context.Context, msg Message) (Receipt, error) {
	raw, env, err := compose(msg, s.cfg.From, s.opts.now())
	if err != nil {
		return Receipt{}, err
	}

	var body sparkPostTransmission
	body.Options = s.transmissionOptions()
	headerTo := strings.Join(env.To, ",")
	for _, rcpt := range env.Recipients {
		body.Recipients = append(body.Recipients, sparkPostRecipient{Address: sparkPostAddress{Email: rcpt, HeaderTo: headerTo}})
	}
	body.Content.EmailRFC822 = string(raw)

	payload, err := json.Marshal(body)
	if err != nil {
		return Receipt{}, fmt.Errorf("pkgmail: encode sparkpost transmission: %w", err)
	}

	resp, err := s.do(ctx, http.MethodPost, "/api/v1/transmissions", payload)
	if err != nil {
		return Receipt{}, s.opts.fail(ServiceSparkPost, fmt.Errorf("pkgmail: sparkpost send: %w", err))
	}
	return Receipt{
		Provider:  ServiceSparkPost,
		MessageID: resp.Results.ID,
		Response:  fmt.Sprintf("accepted=%d rejected=%d", resp.Results.AcceptedRecipients, resp.Results.RejectedRecipients),
	}, nil
}

func (s *SparkPost) transmissionOptions() *sparkPostOptions {
	c := s.cfg
	opts := &sparkPostOptions{
		OpenTracking:    c.OpenTracking,
		ClickTracking:   c.ClickTracking,
		InitialOpen:     c.InitialOpen,
		Transactional:   c.Transactional,
		Sandbox:         c.Sandbox,
		SkipSuppression: c.SkipSuppression,
		IPPool:          c.IPPool,
	}
	if !c.StartTime.IsZero() {
		opts.StartTime = c.StartTime.Format(time.RFC3339)
	}
	if *opts == (sparkPostOptions{}) {
		return nil
	}
	return opts
}

func (s *SparkPost) do(ctx context.Context, method, path string, payload []byte) (sparkPostResponse, error) {
	var out sparkPostResponse

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.host+path, body)
	if err != nil {
		return out, err
	}
	req.Header.Set("Authorization", s.cfg.Key)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return out, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return out, err
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil && resp.StatusCode < 300 {
			return out, fmt.Errorf("pkgmail: decode sparkpost response: %w", err)
		}
	}

	if resp.StatusCode >= 300 {
		message := http.StatusText(resp.StatusCode)
		if len(out.Errors) > 0 {
			message = out.Errors[0].Message
			if out.Errors[0].Description != "" {
				message += ": " + out.Errors[0].Description
			}
		}
		return out, &ProviderError{Provider: ServiceSparkPost, StatusCode: resp.StatusCode, Message: message}
	}
	return out, nil
}

func (s *SparkPost) Close() error {
	s.client.CloseIdleConnections()
	return nil
}
