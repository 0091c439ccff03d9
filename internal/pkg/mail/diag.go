package mail

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"

	"google.golang.org/api/googleapi"
)

// Diagnosis classifies a transport failure.
type Diagnosis struct {
	// Code is one of auth, tls, dial, timeout, rate_limited,
	// invalid_recipient, rejected, unavailable, network or unknown.
	Code string
	// Temporary reports whether retrying the same message may succeed.
	Temporary bool
}

// Diagnose inspects errors returned by Send and Verify.
func Diagnose(err error) Diagnosis {
	if err == nil {
		return Diagnosis{Code: "unknown"}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return Diagnosis{Code: "timeout", Temporary: true}
	}
	if errors.Is(err, ErrNoRecipients) || errors.Is(err, ErrNoSender) || errors.Is(err, errDKIMKey) {
		return Diagnosis{Code: "rejected"}
	}

	var pe *ProviderError
	if errors.As(err, &pe) {
		return diagnoseStatus(pe.StatusCode)
	}
	var ge *googleapi.Error
	if errors.As(err, &ge) {
		return diagnoseStatus(ge.Code)
	}

	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return Diagnosis{Code: "timeout", Temporary: true}
	}
	if connectionLost(err) {
		return Diagnosis{Code: "network", Temporary: true}
	}

	s := strings.ToLower(err.Error())
	switch {
	case strings.Contains(s, "timeout"):
		return Diagnosis{Code: "timeout", Temporary: true}
	case strings.Contains(s, "connection refused") ||
		strings.Contains(s, "connectex:") ||
		strings.Contains(s, "no such host") ||
		strings.Contains(s, "dial tcp"):
		return Diagnosis{Code: "dial", Temporary: true}
	case strings.Contains(s, "x509:") ||
		strings.Contains(s, "tls") && (strings.Contains(s, "handshake") || strings.Contains(s, "certificate")):
		return Diagnosis{Code: "tls"}
	case strings.Contains(s, "5.7.8") || strings.Contains(s, "535") ||
		strings.Contains(s, "username and password not accepted") ||
		strings.Contains(s, "authentication failed") ||
		strings.Contains(s, "auth") && strings.Contains(s, "failed"):
		return Diagnosis{Code: "auth"}
	case strings.Contains(s, "4.7.0") ||
		strings.Contains(s, "rate limit") ||
		strings.Contains(s, "try again later") ||
		strings.Contains(s, "temporarily unavailable") ||
		strings.Contains(s, "451") || strings.Contains(s, "421"):
		return Diagnosis{Code: "rate_limited", Temporary: true}
	case strings.Contains(s, "5.1.1") || strings.Contains(s, "user unknown") ||
		strings.Contains(s, "mailbox not found"):
		return Diagnosis{Code: "invalid_recipient"}
	case strings.Contains(s, "5.7.1") ||
		strings.Contains(s, "message rejected") ||
		strings.Contains(s, "policy") ||
		strings.Contains(s, "dmarc") || strings.Contains(s, "spf"):
		return Diagnosis{Code: "rejected"}
	}

	if errors.As(err, &ne) {
		return Diagnosis{Code: "network", Temporary: true}
	}
	return Diagnosis{Code: "unknown"}
}

// connectionLost reports whether the peer dropped the connection, which is
// what a relay closing an idle pooled session looks like.
func connectionLost(err error) bool {
	switch {
	case errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, net.ErrClosed),
		errors.Is(err, syscall.EPIPE),
		errors.Is(err, syscall.ECONNRESET):
		return true
	}
	s := err.Error()
	return strings.Contains(s, "broken pipe") || strings.Contains(s, "connection reset by peer")
}

func diagnoseStatus(status int) Diagnosis {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return Diagnosis{Code: "auth"}
	case status == http.StatusTooManyRequests:
		return Diagnosis{Code: "rate_limited", Temporary: true}
	case status == http.StatusRequestTimeout:
		return Diagnosis{Code: "timeout", Temporary: true}
	case status >= 500:
		return Diagnosis{Code: "unavailable", Temporary: true}
	case status >= 400:
		return Diagnosis{Code: "rejected"}
	default:
		return Diagnosis{Code: "unknown"}
	}
}
