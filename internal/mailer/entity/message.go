package entity

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"
)

// Addresses accepts either a JSON array or a single comma separated string.
type Addresses []string

func (a *Addresses) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = splitAddresses(s)
		return nil
	}

	var list []string
	if err := json.Unmarshal(b, &list); err != nil {
		return err
	}
	*a = list
	return nil
}

func splitAddresses(s string) Addresses {
	var out Addresses
	for part := range strings.SplitSeq(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Attachment is either inline content or a reference to an object in storage.
type Attachment struct {
	Filename    string `json:"filename,omitempty"`
	ContentType string `json:"contentType,omitempty"`
	// Content is plain text unless Encoding is "base64".
	Content  string `json:"content,omitempty"`
	Encoding string `json:"encoding,omitempty"`
	// Path is an object storage reference in "bucket/key" form.
	Path string `json:"path,omitempty"`
	CID  string `json:"cid,omitempty"`
}

// Bytes decodes Content.
func (a Attachment) Bytes() ([]byte, error) {
	if strings.EqualFold(a.Encoding, "base64") {
		return base64.StdEncoding.DecodeString(a.Content)
	}
	return []byte(a.Content), nil
}

type DKIM struct {
	DomainName  string `json:"domainName" validate:"required,fqdn"`
	KeySelector string `json:"keySelector" validate:"required"`
	PrivateKey  string `json:"privateKey" validate:"required"`
}

// MailMessage is the wire format of a mail on the HTTP API and the queue.
// Field names follow the nodemailer options so existing producers can
// publish unchanged payloads.
type MailMessage struct {
	From        string            `json:"from,omitempty" validate:"omitempty,mailaddr"`
	To          Addresses         `json:"to,omitempty" validate:"omitempty,dive,mailaddr"`
	Cc          Addresses         `json:"cc,omitempty" validate:"omitempty,dive,mailaddr"`
	Bcc         Addresses         `json:"bcc,omitempty" validate:"omitempty,dive,mailaddr"`
	ReplyTo     Addresses         `json:"replyTo,omitempty" validate:"omitempty,dive,mailaddr"`
	InReplyTo   string            `json:"inReplyTo,omitempty"`
	References  Addresses         `json:"references,omitempty"`
	Subject     string            `json:"subject,omitempty" validate:"max=998"`
	HTML        string            `json:"html,omitempty"`
	Text        string            `json:"text,omitempty"`
	Attachments []Attachment      `json:"attachments,omitempty" validate:"omitempty,dive"`
	Headers     map[string]string `json:"headers,omitempty"`
	List        map[string]string `json:"list,omitempty"`
	MessageID   string            `json:"messageId,omitempty"`
	Date        *time.Time        `json:"date,omitempty"`
	Encoding    string            `json:"encoding,omitempty" validate:"omitempty,oneof=quoted-printable base64 8bit 7bit binary"`
	Priority    string            `json:"priority,omitempty" validate:"omitempty,oneof=high normal low"`
	DKIM        *DKIM             `json:"dkim,omitempty"`
}

// Recipients lists To, Cc and Bcc in that order.
func (m MailMessage) Recipients() []string {
	out := make([]string, 0, len(m.To)+len(m.Cc)+len(m.Bcc))
	out = append(out, m.To...)
	out = append(out, m.Cc...)
	return append(out, m.Bcc...)
}

// WithRecipient returns a copy of m addressed to a single To recipient.
// Cc and Bcc are kept.
func (m MailMessage) WithRecipient(to string) MailMessage {
	m.To = Addresses{to}
	return m
}
