package usecase

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/shandysiswandi/gomailer/internal/pkg/mail"
)

// VerifyTransport checks the transport credentials once. A failure is logged
// as a warning and returned; callers keep running.
func (s *Usecase) VerifyTransport(ctx context.Context) error {
	ctx, span := s.startSpan(ctx, "VerifyTransport")
	defer span.End()

	if err := s.repoMail.Verify(ctx); err != nil {
		slog.WarnContext(ctx, "mail transport verification failed",
			"title", "VerifyTransport",
			"code", mail.Diagnose(err).Code,
			"message", err.Error(),
			"http_status", http.StatusServiceUnavailable,
			"provider", s.repoMail.Provider(),
		)
		return err
	}

	slog.InfoContext(ctx, "mail transport verified",
		"title", "VerifyTransport",
		"code", "ok",
		"message", "Server is ready to take our messages",
		"http_status", http.StatusOK,
		"provider", s.repoMail.Provider(),
	)
	return nil
}
