package mail

import (
	"strings"
	"time"
)

// Service is the provider tag of a Config.
type Service string

const (
	ServiceSMTP      Service = "SMTP"
	ServiceGmail     Service = "GMAIL"
	ServiceMailgun   Service = "MAILGUN"
	ServiceSparkPost Service = "SPARKPOST"
	ServiceResend    Service = "RESEND"
	ServiceMailtrap  Service = "MAILTRAP"
)

// ParseService normalises s. Unknown tags are returned upper-cased and are
// rejected later by New.
func ParseService(s string) Service {
	return Service(strings.ToUpper(strings.TrimSpace(s)))
}

func (s Service) String() string { return string(s) }

// Config selects a provider. Only the variant matching Service is read.
type Config struct {
	Service   Service          `mapstructure:"service"`
	SMTP      *SMTPConfig      `mapstructure:"smtp"`
	Gmail     *GmailConfig     `mapstructure:"gmail"`
	Mailgun   *MailgunConfig   `mapstructure:"mailgun"`
	SparkPost *SparkPostConfig `mapstructure:"sparkpost"`
	Resend    *ResendConfig    `mapstructure:"resend"`
	Mailtrap  *MailtrapConfig  `mapstructure:"mailtrap"`
}

type Auth struct {
	User string `mapstructure:"user"`
	Pass string `mapstructure:"pass"`
}

type TLSConfig struct {
	ServerName         string `mapstructure:"server_name"`
	InsecureSkipVerify bool   `mapstructure:"insecure_skip_verify"`
}

type SMTPConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	// Secure dials with implicit TLS, usually on port 465.
	Secure     bool      `mapstructure:"secure"`
	Auth       Auth      `mapstructure:"auth"`
	TLS        TLSConfig `mapstructure:"tls"`
	IgnoreTLS  bool      `mapstructure:"ignore_tls"`
	RequireTLS bool      `mapstructure:"require_tls"`

	Pool           bool `mapstructure:"pool"`
	MaxConnections int  `mapstructure:"max_connections"`
	MaxMessages    int  `mapstructure:"max_messages"`

	LocalName string        `mapstructure:"local_name"`
	Timeout   time.Duration `mapstructure:"timeout"`
	// From is used when a message has no sender.
	From string `mapstructure:"from"`
}

type OAuth2Config struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RefreshToken string `mapstructure:"refresh_token"`
	// TokenURL overrides the Google token endpoint.
	TokenURL string `mapstructure:"token_url"`
}

// GmailConfig sends through the Gmail API when AppPassword is empty and
// through smtp.gmail.com otherwise.
type GmailConfig struct {
	User        string       `mapstructure:"user"`
	AppPassword string       `mapstructure:"app_password"`
	OAuth2      OAuth2Config `mapstructure:"oauth2"`
	// CredentialsJSON is a service account key with domain-wide delegation.
	CredentialsJSON string `mapstructure:"credentials_json"`
	CredentialsFile string `mapstructure:"credentials_file"`
	Endpoint        string `mapstructure:"endpoint"`
	Pool            bool   `mapstructure:"pool"`
	From            string `mapstructure:"from"`
}

type MailgunConfig struct {
	Host   string `mapstructure:"host"`
	Key    string `mapstructure:"key"`
	Domain string `mapstructure:"domain"`
	// Debug logs every request and response status through slog.
	Debug          bool              `mapstructure:"debug"`
	DKIM           *bool             `mapstructure:"dkim"`
	Tags           []string          `mapstructure:"tags"`
	DeliveryTime   time.Time         `mapstructure:"delivery_time"`
	TestMode       bool              `mapstructure:"test_mode"`
	Tracking       *bool             `mapstructure:"tracking"`
	TrackingClicks *bool             `mapstructure:"tracking_clicks"`
	TrackingOpens  *bool             `mapstructure:"tracking_opens"`
	Headers        map[string]string `mapstructure:"headers"`
	Variables      map[string]string `mapstructure:"variables"`
	From           string            `mapstructure:"from"`
}

type SparkPostConfig struct {
	Host            string    `mapstructure:"host"`
	Key             string    `mapstructure:"key"`
	StartTime       time.Time `mapstructure:"start_time"`
	OpenTracking    *bool     `mapstructure:"open_tracking"`
	ClickTracking   *bool     `mapstructure:"click_tracking"`
	InitialOpen     *bool     `mapstructure:"initial_open"`
	Transactional   *bool     `mapstructure:"transactional"`
	Sandbox         bool      `mapstructure:"sandbox"`
	SkipSuppression bool      `mapstructure:"skip_suppression"`
	IPPool          string    `mapstructure:"ip_pool"`
	From            string    `mapstructure:"from"`
}

type ResendTag struct {
	Name  string `mapstructure:"name"`
	Value string `mapstructure:"value"`
}

type ResendConfig struct {
	Host string      `mapstructure:"host"`
	Key  string      `mapstructure:"key"`
	Tags []ResendTag `mapstructure:"tags"`
	From string      `mapstructure:"from"`
}

type MailtrapConfig struct {
	Host   string `mapstructure:"host"`
	Port   int    `mapstructure:"port"`
	Auth   Auth   `mapstructure:"auth"`
	Pool   bool   `mapstructure:"pool"`
	Secure bool   `mapstructure:"secure"`
	From   string `mapstructure:"from"`
}
