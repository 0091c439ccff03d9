package mailer

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shandysiswandi/gomailer/internal/mailer/inbound"
	"github.com/shandysiswandi/gomailer/internal/mailer/outbound/attachment"
	"github.com/shandysiswandi/gomailer/internal/mailer/outbound/db"
	"github.com/shandysiswandi/gomailer/internal/mailer/outbound/email"
	"github.com/shandysiswandi/gomailer/internal/mailer/outbound/metrics"
	"github.com/shandysiswandi/gomailer/internal/mailer/outbound/mq"
	"github.com/shandysiswandi/gomailer/internal/mailer/usecase"
	"github.com/shandysiswandi/gomailer/internal/pkg/clock"
	"github.com/shandysiswandi/gomailer/internal/pkg/config"
	"github.com/shandysiswandi/gomailer/internal/pkg/goroutine"
	"github.com/shandysiswandi/gomailer/internal/pkg/idempotency"
	"github.com/shandysiswandi/gomailer/internal/pkg/instrument"
	"github.com/shandysiswandi/gomailer/internal/pkg/mail"
	"github.com/shandysiswandi/gomailer/internal/pkg/messaging"
	"github.com/shandysiswandi/gomailer/internal/pkg/router"
	"github.com/shandysiswandi/gomailer/internal/pkg/storage"
	"github.com/shandysiswandi/gomailer/internal/pkg/uid"
	"github.com/shandysiswandi/gomailer/internal/pkg/validator"
)

const defaultMaxAttachmentBytes int64 = 10 << 20

// Dependency lists what the mailer module needs. DBConn, Idempotency and
// Storage are optional; the features they back are disabled without them.
type Dependency struct {
	Ctx        context.Context            `validate:"required"`
	Mail       mail.Mail                  `validate:"required"`
	Messaging  messaging.Messaging        `validate:"required"`
	Goroutine  *goroutine.Manager         `validate:"required"`
	Router     *router.Router             `validate:"required"`
	Config     config.Config              `validate:"required"`
	Instrument instrument.Instrumentation `validate:"required"`
	UID        uid.NumberID               `validate:"required"`
	UUID       uid.StringID               `validate:"required"`
	Clock      clock.Clocker              `validate:"required"`
	Validator  validator.Validator        `validate:"required"`

	DBConn      *pgxpool.Pool
	Idempotency idempotency.Idempotency
	Storage     storage.Storage
	Registerer  prometheus.Registerer
}

func New(dep Dependency) error {
	if err := dep.Validator.Validate(dep); err != nil {
		return err
	}

	m, err := metrics.New(dep.Registerer)
	if err != nil {
		return err
	}

	maxAttachment := dep.Config.GetInt64("storage.attachments.max_bytes")
	if maxAttachment <= 0 {
		maxAttachment = defaultMaxAttachmentBytes
	}

	ucDep := usecase.Dependency{
		RepoMQ:      mq.NewMessaging(dep.Messaging, dep.Instrument),
		Idempotency: dep.Idempotency,
		Metrics:     m,
		Config:      dep.Config,
		UUID:        dep.UUID,
		UID:         dep.UID,
		Clock:       dep.Clock,
		Validator:   dep.Validator,
		Instrument:  dep.Instrument,
	}

	if dep.Storage != nil {
		files := attachment.New(dep.Storage, dep.Config.GetString("storage.attachments.bucket"), maxAttachment, dep.Instrument)
		ucDep.RepoFile = files
		ucDep.RepoMail = email.New(dep.Mail, files, dep.Instrument)
	} else {
		ucDep.RepoMail = email.New(dep.Mail, nil, dep.Instrument)
	}

	if dep.DBConn != nil {
		ucDep.RepoDB = db.NewDB(dep.DBConn, dep.Instrument)
	}

	uc := usecase.New(ucDep)

	if dep.Config.GetBool("mail.verify_on_start") {
		// Verification never blocks start-up; a failure is logged.
		_ = uc.VerifyTransport(dep.Ctx)
	}

	inbound.RegisterHTTPEndpoint(dep.Router, uc, maxAttachment)

	if dep.Config.GetBool("worker.enabled") {
		inbound.RegisterMQConsumer(dep.Ctx, dep.Config, dep.Goroutine, dep.Messaging, dep.UUID, uc, dep.Instrument)
	} else {
		slog.InfoContext(dep.Ctx, "mail worker disabled, this instance only serves the HTTP API")
	}

	return nil
}
