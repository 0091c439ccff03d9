package usecase

import (
	"context"
	"io"
	"time"

	"github.com/shandysiswandi/gomailer/internal/mailer/entity"
	"github.com/shandysiswandi/gomailer/internal/pkg/clock"
	"github.com/shandysiswandi/gomailer/internal/pkg/config"
	"github.com/shandysiswandi/gomailer/internal/pkg/idempotency"
	"github.com/shandysiswandi/gomailer/internal/pkg/instrument"
	"github.com/shandysiswandi/gomailer/internal/pkg/mail"
	"github.com/shandysiswandi/gomailer/internal/pkg/messaging"
	"github.com/shandysiswandi/gomailer/internal/pkg/uid"
	"github.com/shandysiswandi/gomailer/internal/pkg/validator"
	"go.opentelemetry.io/otel/trace"
)

type repoMail interface {
	Provider() string
	Verify(ctx context.Context) error
	Send(ctx context.Context, msg entity.MailMessage) (mail.Receipt, error)
}

type repoMQ interface {
	DeclareQueue(ctx context.Context, queue string) error
	PublishJob(ctx context.Context, queue string, job entity.QueueJob) (messaging.PublishResult, error)
	PublishDeadLetter(ctx context.Context, queue string, body []byte, reason string) error
}

type repoDB interface {
	CreateDeliveryLog(ctx context.Context, in entity.DeliveryLog) error
	ListDeliveryLogs(ctx context.Context, jobID string) ([]entity.DeliveryLog, error)
}

type repoFile interface {
	Exists(ctx context.Context, ref string) error
	Save(ctx context.Context, key, contentType string, size int64, r io.Reader) (string, error)
}

type metrics interface {
	ObserveSend(provider string, took time.Duration, err error)
	ObserveJob(queue string, outcome entity.Outcome)
	ObserveEnqueue(queue string, err error)
}

// Usecase sends mail through one transport and moves mail jobs through the
// broker. RepoDB, RepoFile, Idempotency and Metrics are optional.
type Usecase struct {
	repoMail    repoMail
	repoMQ      repoMQ
	repoDB      repoDB
	repoFile    repoFile
	idempotency idempotency.Idempotency
	metrics     metrics
	cfg         config.Config
	uuid        uid.StringID
	uid         uid.NumberID
	clock       clock.Clocker
	validator   validator.Validator
	ins         instrument.Instrumentation

	// sleep pauses a worker before it hands back a job locked elsewhere.
	sleep func(ctx context.Context, d time.Duration)
}

type Dependency struct {
	RepoMail    repoMail
	RepoMQ      repoMQ
	RepoDB      repoDB
	RepoFile    repoFile
	Idempotency idempotency.Idempotency
	Metrics     metrics
	Config      config.Config
	UUID        uid.StringID
	UID         uid.NumberID
	Clock       clock.Clocker
	Validator   validator.Validator
	Instrument  instrument.Instrumentation
}

func New(dep Dependency) *Usecase {
	m := dep.Metrics
	if m == nil {
		m = noopMetrics{}
	}

	return &Usecase{
		repoMail:    dep.RepoMail,
		repoMQ:      dep.RepoMQ,
		repoDB:      dep.RepoDB,
		repoFile:    dep.RepoFile,
		idempotency: dep.Idempotency,
		metrics:     m,
		cfg:         dep.Config,
		uuid:        dep.UUID,
		uid:         dep.UID,
		clock:       dep.Clock,
		validator:   dep.Validator,
		ins:         dep.Instrument,
		sleep:       sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

func (s *Usecase) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.ins.Tracer("mailer.usecase").Start(ctx, name)
}

type noopMetrics struct{}

func (noopMetrics) ObserveSend(string, time.Duration, error) {}
func (noopMetrics) ObserveJob(string, entity.Outcome)        {}
func (noopMetrics) ObserveEnqueue(string, error)             {}
