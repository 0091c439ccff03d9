package mail

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// Gmail delivers through the Gmail API on behalf of User.
type Gmail struct {
	service *gmail.Service
	user    string
	from    string
	opts    options
}

func newGmail(cfg GmailConfig, o options) (*Gmail, error) {
	if cfg.User == "" {
		return nil, invalidConfig(ServiceGmail, "user")
	}

	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, o.httpClient)
	scopes := []string{gmail.GmailSendScope, gmail.GmailMetadataScope}

	creds := []byte(cfg.CredentialsJSON)
	if len(creds) == 0 && cfg.CredentialsFile != "" {
		b, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("pkgmail: read gmail credentials: %w", err)
		}
		creds = b
	}

	var base oauth2.TokenSource
	switch {
	case len(creds) > 0:
		jwtConfig, err := google.JWTConfigFromJSON(creds, scopes...)
		if err != nil {
			return nil, fmt.Errorf("pkgmail: parse gmail credentials: %w", err)
		}
		jwtConfig.Subject = cfg.User
		base = jwtConfig.TokenSource(ctx)

	case cfg.OAuth2.RefreshToken != "":
		endpoint := google.Endpoint
		if cfg.OAuth2.TokenURL != "" {
			endpoint.TokenURL = cfg.OAuth2.TokenURL
		}
		oauthCfg := &oauth2.Config{
			ClientID:     cfg.OAuth2.ClientID,
			ClientSecret: cfg.OAuth2.ClientSecret,
			Endpoint:     endpoint,
			Scopes:       scopes,
		}
		base = oauthCfg.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.OAuth2.RefreshToken})

	default:
		return nil, invalidConfig(ServiceGmail, "app_password, oauth2.refresh_token or credentials")
	}

	ts := oauth2.ReuseTokenSource(nil, &notifyingTokenSource{base: base, user: cfg.User, onToken: o.hooks.OnToken})
	clientOpts := []option.ClientOption{option.WithHTTPClient(oauth2.NewClient(ctx, ts))}
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(cfg.Endpoint))
	}

	svc, err := gmail.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("pkgmail: create gmail service: %w", err)
	}

	from := cfg.From
	if from == "" {
		from = cfg.User
	}
	return &Gmail{service: svc, user: cfg.User, from: from, opts: o}, nil
}

func (g *Gmail) Provider() Service { return ServiceGmail }

func (g *Gmail) Verify(ctx context.Context) error {
	if _, err := g.service.Users.GetProfile("me").Context(ctx).Do(); err != nil {
		return g.opts.verifyFailed(ServiceGmail, err)
	}
	return nil
}

func (g *Gmail) Send(ctx context.Context, msg Message) (Receipt, error) {
	raw, _, err := compose(msg, g.from, g.opts.now())
	if err != nil {
		return Receipt{}, err
	}
	// The API reads recipients from the headers and the composer never
	// writes Bcc, so it is prepended here.
	if len(msg.Bcc) > 0 {
		raw = append([]byte("Bcc: "+strings.Join(msg.Bcc, ", ")+"\r\n"), raw...)
	}

	sent, err := g.service.Users.Messages.
		Send("me", &gmail.Message{Raw: base64.URLEncoding.EncodeToString(raw)}).
		Context(ctx).
		Do()
	if err != nil {
		return Receipt{}, g.opts.fail(ServiceGmail, fmt.Errorf("pkgmail: gmail send: %w", err))
	}

	return Receipt{Provider: ServiceGmail, MessageID: sent.Id, Response: strings.Join(sent.LabelIds, ",")}, nil
}

func (g *Gmail) Close() error { return nil }

// notifyingTokenSource reports each freshly fetched token to the OnToken hook.
type notifyingTokenSource struct {
	mu      sync.Mutex
	base    oauth2.TokenSource
	user    string
	onToken func(Token)
}

func (n *notifyingTokenSource) Token() (*oauth2.Token, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	tok, err := n.base.Token()
	if err != nil {
		return nil, err
	}
	if n.onToken != nil {
		n.onToken(Token{User: n.user, Expires: tok.Expiry})
	}
	return tok, nil
}
