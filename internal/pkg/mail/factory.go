package mail

import "fmt"

const (
	defaultMailtrapHost = "sandbox.smtp.mailtrap.io"
	defaultMailtrapPort = 2525

	gmailSMTPHost = "smtp.gmail.com"
	gmailSMTPPort = 465
)

// New builds the transport selected by cfg.Service. It performs no network I/O.
func New(cfg Config, opts ...Option) (Mail, error) {
	o := newOptions(opts...)

	service := ParseService(string(cfg.Service))
	switch service {
	case ServiceSMTP:
		if cfg.SMTP == nil {
			return nil, missingVariant(service)
		}
		return newSMTP(ServiceSMTP, *cfg.SMTP, o)

	case ServiceMailtrap:
		if cfg.Mailtrap == nil {
			return nil, missingVariant(service)
		}
		return newSMTP(ServiceMailtrap, mailtrapToSMTP(*cfg.Mailtrap), o)

	case ServiceGmail:
		if cfg.Gmail == nil {
			return nil, missingVariant(service)
		}
		if cfg.Gmail.AppPassword != "" {
			return newSMTP(ServiceGmail, gmailToSMTP(*cfg.Gmail), o)
		}
		return newGmail(*cfg.Gmail, o)

	case ServiceMailgun:
		if cfg.Mailgun == nil {
			return nil, missingVariant(service)
		}
		return newMailgun(*cfg.Mailgun, o)

	case ServiceSparkPost:
		if cfg.SparkPost == nil {
			return nil, missingVariant(service)
		}
		return newSparkPost(*cfg.SparkPost, o)

	case ServiceResend:
		if cfg.Resend == nil {
			return nil, missingVariant(service)
		}
		return newResend(*cfg.Resend, o)

	default:
		return nil, &UnsupportedServiceError{Service: string(cfg.Service)}
	}
}

func missingVariant(s Service) error {
	return &UnsupportedServiceError{Service: string(s), Reason: "missing " + string(s) + " settings"}
}

func invalidConfig(s Service, field string) error {
	return fmt.Errorf("%w: %s requires %s", ErrInvalidConfig, s, field)
}

func mailtrapToSMTP(c MailtrapConfig) SMTPConfig {
	if c.Host == "" {
		c.Host = defaultMailtrapHost
	}
	if c.Port == 0 {
		c.Port = defaultMailtrapPort
	}
	return SMTPConfig{
		Host:   c.Host,
		Port:   c.Port,
		Secure: c.Secure,
		Auth:   c.Auth,
		Pool:   c.Pool,
		From:   c.From,
	}
}

func gmailToSMTP(c GmailConfig) SMTPConfig {
	from := c.From
	if from == "" {
		from = c.User
	}
	return SMTPConfig{
		Host:   gmailSMTPHost,
		Port:   gmailSMTPPort,
		Secure: true,
		Auth:   Auth{User: c.User, Pass: c.AppPassword},
		Pool:   c.Pool,
		From:   from,
	}
}
