package mail

import (
	"bytes"
	"fmt"
	"io"
	netmail "net/mail"
	"strings"
	"time"

	gomail "github.com/go-mail/mail"
	"github.com/google/uuid"
)

// envelope is the SMTP level sender and recipient list of a message.
type envelope struct {
	From       string
	Recipients []string
	To         []string
}

func buildEnvelope(msg Message, defaultFrom string) (envelope, *netmail.Address, error) {
	from := msg.From
	if from == "" {
		from = defaultFrom
	}
	if strings.TrimSpace(from) == "" {
		return envelope{}, nil, ErrNoSender
	}

	sender, err := netmail.ParseAddress(from)
	if err != nil {
		return envelope{}, nil, fmt.Errorf("pkgmail: invalid sender %q: %w", from, err)
	}

	env := envelope{From: sender.Address}
	seen := make(map[string]struct{})
	for _, group := range [][]string{msg.To, msg.Cc, msg.Bcc} {
		for _, raw := range group {
			addr, err := netmail.ParseAddress(raw)
			if err != nil {
				return envelope{}, nil, fmt.Errorf("pkgmail: invalid recipient %q: %w", raw, err)
			}
			key := strings.ToLower(addr.Address)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			env.Recipients = append(env.Recipients, addr.Address)
		}
	}
	if len(env.Recipients) == 0 {
		return envelope{}, nil, ErrNoRecipients
	}

	for _, raw := range msg.To {
		if addr, err := netmail.ParseAddress(raw); err == nil {
			env.To = append(env.To, addr.Address)
		}
	}
	return env, sender, nil
}

func encodingOf(name string) gomail.Encoding {
	switch strings.ToLower(name) {
	case "base64":
		return gomail.Base64
	case "8bit", "7bit", "binary":
		return gomail.Unencoded
	default:
		return gomail.QuotedPrintable
	}
}

// compose renders msg as an RFC 5322 message, DKIM signed when msg.DKIM is set.
// Bcc recipients only appear in the returned envelope.
func compose(msg Message, defaultFrom string, now time.Time) ([]byte, envelope, error) {
	env, sender, err := buildEnvelope(msg, defaultFrom)
	if err != nil {
		return nil, envelope{}, err
	}

	m := gomail.NewMessage(gomail.SetEncoding(encodingOf(msg.Encoding)))
	m.SetAddressHeader("From", sender.Address, sender.Name)
	setAddressList(m, "To", msg.To)
	setAddressList(m, "Cc", msg.Cc)
	setAddressList(m, "Reply-To", msg.ReplyTo)
	m.SetHeader("Subject", msg.Subject)

	if msg.InReplyTo != "" {
		m.SetHeader("In-Reply-To", msg.InReplyTo)
	}
	if len(msg.References) > 0 {
		m.SetHeader("References", strings.Join(msg.References, " "))
	}

	messageID := msg.MessageID
	if messageID == "" {
		messageID = newMessageID(sender.Address)
	}
	m.SetHeader("Message-ID", messageID)

	date := msg.Date
	if date.IsZero() {
		date = now
	}
	m.SetDateHeader("Date", date)

	for key, value := range priorityHeaders(msg.Priority) {
		m.SetHeader(key, value)
	}
	for key, value := range listHeaders(msg.List) {
		m.SetHeader(key, value)
	}
	for key, value := range msg.Headers {
		m.SetHeader(key, value)
	}

	switch {
	case msg.Text != "" && msg.HTML != "":
		m.SetBody("text/plain", msg.Text)
		m.AddAlternative("text/html", msg.HTML)
	case msg.HTML != "":
		m.SetBody("text/html", msg.HTML)
	default:
		m.SetBody("text/plain", msg.Text)
	}

	for _, a := range msg.Attachments {
		settings := []gomail.FileSetting{}
		if a.ContentType != "" {
			settings = append(settings, gomail.SetHeader(map[string][]string{"Content-Type": {a.ContentType}}))
		}
		if a.ContentID != "" {
			settings = append(settings, gomail.SetHeader(map[string][]string{"Content-ID": {"<" + strings.Trim(a.ContentID, "<>") + ">"}}))
			m.EmbedReader(a.Filename, bytes.NewReader(a.Content), settings...)
			continue
		}
		m.AttachReader(a.Filename, bytes.NewReader(a.Content), settings...)
	}

	var buf bytes.Buffer
	if _, err := m.WriteTo(&buf); err != nil {
		return nil, envelope{}, fmt.Errorf("pkgmail: render message: %w", err)
	}

	raw := buf.Bytes()
	if msg.DKIM != nil {
		if raw, err = signDKIM(raw, *msg.DKIM); err != nil {
			return nil, envelope{}, err
		}
	}
	return raw, env, nil
}

func setAddressList(m *gomail.Message, field string, list []string) {
	if len(list) == 0 {
		return
	}
	values := make([]string, 0, len(list))
	for _, raw := range list {
		addr, err := netmail.ParseAddress(raw)
		if err != nil {
			values = append(values, raw)
			continue
		}
		values = append(values, m.FormatAddress(addr.Address, addr.Name))
	}
	m.SetHeader(field, values...)
}

func newMessageID(from string) string {
	domain := "localhost"
	if at := strings.LastIndex(from, "@"); at >= 0 && at < len(from)-1 {
		domain = from[at+1:]
	}
	return "<" + uuid.NewString() + "@" + domain + ">"
}

func priorityHeaders(p Priority) map[string]string {
	switch p {
	case PriorityHigh:
		return map[string]string{"X-Priority": "1 (Highest)", "X-MSMail-Priority": "High", "Importance": "High"}
	case PriorityLow:
		return map[string]string{"X-Priority": "5 (Lowest)", "X-MSMail-Priority": "Low", "Importance": "Low"}
	default:
		return nil
	}
}

// listHeaders turns {"unsubscribe": "https://x"} into
// {"List-Unsubscribe": "<https://x>"}. List-ID values are kept as given.
func listHeaders(list map[string]string) map[string]string {
	if len(list) == 0 {
		return nil
	}
	out := make(map[string]string, len(list))
	for key, value := range list {
		name := "List-" + canonicalListKey(key)
		if name != "List-ID" && !strings.HasPrefix(value, "<") {
			value = "<" + value + ">"
		}
		out[name] = value
	}
	return out
}

func canonicalListKey(key string) string {
	key = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(key)), "list-")
	if key == "id" {
		return "ID"
	}
	parts := strings.Split(key, "-")
	for i, part := range parts {
		if part != "" {
			parts[i] = strings.ToUpper(part[:1]) + part[1:]
		}
	}
	return strings.Join(parts, "-")
}

// rawMessage lets composed bytes be handed to go-mail senders.
type rawMessage []byte

func (r rawMessage) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(r)
	return int64(n), err
}

func headerValue(raw []byte, key string) string {
	parsed, err := netmail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return ""
	}
	return parsed.Header.Get(key)
}

// apiHeaders collects the headers API providers accept as a plain map.
func apiHeaders(msg Message) map[string]string {
	out := make(map[string]string)
	if msg.InReplyTo != "" {
		out["In-Reply-To"] = msg.InReplyTo
	}
	if len(msg.References) > 0 {
		out["References"] = strings.Join(msg.References, " ")
	}
	if msg.MessageID != "" {
		out["Message-ID"] = msg.MessageID
	}
	for k, v := range priorityHeaders(msg.Priority) {
		out[k] = v
	}
	for k, v := range listHeaders(msg.List) {
		out[k] = v
	}
	for k, v := range msg.Headers {
		out[k] = v
	}
	return out
}
