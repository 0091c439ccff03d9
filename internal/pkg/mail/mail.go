package mail

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

var (
	// ErrUnsupportedService matches *UnsupportedServiceError.
	ErrUnsupportedService = errors.New("pkgmail: unsupported service")
	// ErrVerification matches *VerificationError.
	ErrVerification = errors.New("pkgmail: transport verification failed")
	// ErrInvalidConfig is returned when a provider variant misses a required field.
	ErrInvalidConfig = errors.New("pkgmail: invalid transport config")
	// ErrNoRecipients is returned by Send when To, Cc and Bcc are all empty.
	ErrNoRecipients = errors.New("pkgmail: no recipients provided")
	// ErrNoSender is returned by Send when neither the message nor the config has a sender.
	ErrNoSender = errors.New("pkgmail: no sender provided")
	// ErrClosed is returned by Send after Close.
	ErrClosed = errors.New("pkgmail: transport closed")
)

// Mail is a transport bound to one provider.
type Mail interface {
	io.Closer

	// Provider reports the tag the handle was built for.
	Provider() Service
	// Verify checks connectivity and credentials without sending mail.
	Verify(ctx context.Context) error
	// Send submits exactly one message.
	Send(ctx context.Context, msg Message) (Receipt, error)
}

// Receipt acknowledges an accepted message. MessageID is set when the
// provider returns one.
type Receipt struct {
	Provider  Service
	MessageID string
	Response  string
}

// Priority maps to the X-Priority, X-MSMail-Priority and Importance headers.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
)

// Message is a provider neutral email.
type Message struct {
	From       string
	To         []string
	Cc         []string
	Bcc        []string
	ReplyTo    []string
	InReplyTo  string
	References []string
	Subject    string
	HTML       string
	Text       string

	Attachments []Attachment
	Headers     map[string]string
	// List holds List-* headers keyed without the prefix, e.g. "Unsubscribe".
	List      map[string]string
	MessageID string
	Date      time.Time
	// Encoding is the body transfer encoding: "quoted-printable" (default),
	// "base64" or "8bit".
	Encoding string
	Priority Priority
	DKIM     *DKIM
}

// Attachment is an in-memory file. A ContentID embeds it inline.
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
	ContentID   string
}

// DKIM selects the signing key for a message. PrivateKey is PEM encoded.
type DKIM struct {
	DomainName  string `mapstructure:"domain_name"`
	KeySelector string `mapstructure:"key_selector"`
	PrivateKey  string `mapstructure:"private_key"`
}

// Token describes an OAuth2 access token obtained by a transport.
type Token struct {
	User    string
	Expires time.Time
}

// Hooks receive transport events. Both callbacks are optional and must not block.
type Hooks struct {
	// OnToken fires whenever a new access token is fetched.
	OnToken func(Token)
	// OnError fires for every failed Send or Verify.
	OnError func(Service, error)
}

// UnsupportedServiceError reports an unknown tag or a tag whose variant is missing.
type UnsupportedServiceError struct {
	Service string
	Reason  string
}

func (e *UnsupportedServiceError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("pkgmail: unsupported service %q: %s", e.Service, e.Reason)
	}
	return fmt.Sprintf("pkgmail: unsupported service %q", e.Service)
}

func (e *UnsupportedServiceError) Is(target error) bool { return target == ErrUnsupportedService }

// VerificationError wraps a failed Verify.
type VerificationError struct {
	Provider Service
	Err      error
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("pkgmail: verify %s: %v", e.Provider, e.Err)
}

func (e *VerificationError) Unwrap() error        { return e.Err }
func (e *VerificationError) Is(target error) bool { return target == ErrVerification }

// ProviderError is a non-success answer from an HTTP provider API.
type ProviderError struct {
	Provider   Service
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("pkgmail: %s responded %d: %s", e.Provider, e.StatusCode, e.Message)
}

// Option configures New.
type Option func(*options)

type options struct {
	hooks      Hooks
	httpClient *http.Client
	now        func() time.Time
}

func newOptions(opts ...Option) options {
	o := options{httpClient: &http.Client{Timeout: 30 * time.Second}, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

func WithHooks(h Hooks) Option {
	return func(o *options) { o.hooks = h }
}

// WithHTTPClient sets the client used by API based transports.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		if c != nil {
			o.httpClient = c
		}
	}
}

// WithClock overrides the time source for Date headers and token expiry.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// fail reports err to the OnError hook and returns it.
func (o options) fail(provider Service, err error) error {
	if err != nil && o.hooks.OnError != nil {
		o.hooks.OnError(provider, err)
	}
	return err
}

func (o options) verifyFailed(provider Service, err error) error {
	return o.fail(provider, &VerificationError{Provider: provider, Err: err})
}
