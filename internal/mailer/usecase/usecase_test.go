package usecase

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/shandysiswandi/gomailer/internal/mailer/entity"
	"github.com/shandysiswandi/gomailer/internal/pkg/clock"
	"github.com/shandysiswandi/gomailer/internal/pkg/config"
	"github.com/shandysiswandi/gomailer/internal/pkg/idempotency"
	"github.com/shandysiswandi/gomailer/internal/pkg/instrument"
	"github.com/shandysiswandi/gomailer/internal/pkg/mail"
	"github.com/shandysiswandi/gomailer/internal/pkg/messaging"
	"github.com/shandysiswandi/gomailer/internal/pkg/storage"
	"github.com/shandysiswandi/gomailer/internal/pkg/validator"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

type stubMail struct {
	mu    sync.Mutex
	sent  []entity.MailMessage
	fail  map[string]error // keyed by first To address
	err   error
	calls int
}

func (s *stubMail) Provider() string { return "SMTP" }

func (s *stubMail) Verify(context.Context) error { return s.err }

func (s *stubMail) Send(_ context.Context, msg entity.MailMessage) (mail.Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	if s.err != nil {
		return mail.Receipt{}, s.err
	}
	if len(msg.To) > 0 {
		if err := s.fail[msg.To[0]]; err != nil {
			return mail.Receipt{}, err
		}
	}
	s.sent = append(s.sent, msg)
	return mail.Receipt{Provider: mail.ServiceSMTP, MessageID: "<id-" + msg.To[0] + ">"}, nil
}

type published struct {
	queue string
	job   entity.QueueJob
}

type deadLettered struct {
	queue  string
	body   []byte
	reason string
}

type stubMQ struct {
	declared   []string
	published  []published
	dead       []deadLettered
	declareErr error
	publishErr error
	deadErr    error
}

func (s *stubMQ) DeclareQueue(_ context.Context, queue string) error {
	if s.declareErr != nil {
		return s.declareErr
	}
	s.declared = append(s.declared, queue)
	return nil
}

func (s *stubMQ) PublishJob(_ context.Context, queue string, job entity.QueueJob) (messaging.PublishResult, error) {
	if s.publishErr != nil {
		return messaging.PublishResult{}, s.publishErr
	}
	s.published = append(s.published, published{queue: queue, job: job})
	return messaging.PublishResult{MessageID: job.ID}, nil
}

func (s *stubMQ) PublishDeadLetter(_ context.Context, queue string, body []byte, reason string) error {
	if s.deadErr != nil {
		return s.deadErr
	}
	s.dead = append(s.dead, deadLettered{queue: queue, body: body, reason: reason})
	return nil
}

type stubDB struct {
	logs    []entity.DeliveryLog
	listErr error
}

func (s *stubDB) CreateDeliveryLog(_ context.Context, in entity.DeliveryLog) error {
	s.logs = append(s.logs, in)
	return nil
}

func (s *stubDB) ListDeliveryLogs(_ context.Context, jobID string) ([]entity.DeliveryLog, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []entity.DeliveryLog
	for _, l := range s.logs {
		if l.JobID == jobID {
			out = append(out, l)
		}
	}
	return out, nil
}

type stubFiles struct {
	objects   map[string]int64
	existsErr error
	saveErr   error
}

func (s *stubFiles) Exists(_ context.Context, ref string) error {
	if s.existsErr != nil {
		return s.existsErr
	}
	if _, ok := s.objects[ref]; !ok {
		return fmt.Errorf("%w: %s", storage.ErrNotFound, ref)
	}
	return nil
}

func (s *stubFiles) Save(_ context.Context, key, _ string, size int64, r io.Reader) (string, error) {
	if s.saveErr != nil {
		return "", s.saveErr
	}
	if _, err := io.Copy(io.Discard, r); err != nil {
		return "", err
	}
	if s.objects == nil {
		s.objects = map[string]int64{}
	}
	s.objects["mail/"+key] = size
	return "mail/" + key, nil
}

type stubIdempotency struct {
	states map[string]idempotency.State
	err    error
}

func newStubIdempotency() *stubIdempotency {
	return &stubIdempotency{states: map[string]idempotency.State{}}
}

func (s *stubIdempotency) Acquire(_ context.Context, key string, _ time.Duration) (idempotency.State, error) {
	if s.err != nil {
		return idempotency.StateError, s.err
	}
	if st, ok := s.states[key]; ok {
		return st, nil
	}
	s.states[key] = idempotency.StateInProgress
	return idempotency.StateNone, nil
}

func (s *stubIdempotency) MarkCompleted(_ context.Context, key string, _ time.Duration) error {
	s.states[key] = idempotency.StateCompleted
	return nil
}

func (s *stubIdempotency) MarkFailed(_ context.Context, key string, _ time.Duration) error {
	s.states[key] = idempotency.StateFailed
	return nil
}

func (s *stubIdempotency) Release(_ context.Context, key string) error {
	delete(s.states, key)
	return nil
}

type stubMessage struct {
	body     []byte
	id       string
	source   string
	acks     int
	nacks    int
	requeued bool
}

func (m *stubMessage) Body() []byte                { return m.body }
func (m *stubMessage) Header(string) string        { return "" }
func (m *stubMessage) Headers() []messaging.Header { return nil }
func (m *stubMessage) ID() string                  { return m.id }
func (m *stubMessage) Source() string              { return m.source }
func (m *stubMessage) Redelivered() bool           { return false }
func (m *stubMessage) Timestamp() time.Time        { return fixedNow }
func (m *stubMessage) Ack(context.Context) error   { m.acks++; return nil }

func (m *stubMessage) Nack(_ context.Context, requeue bool) error {
	m.nacks++
	m.requeued = requeue
	return nil
}

type seqUUID struct{ n int }

func (s *seqUUID) Generate() string {
	s.n++
	return "job-" + strconv.Itoa(s.n)
}

type seqNumber struct{ n int64 }

func (s *seqNumber) Generate() int64 {
	s.n++
	return s.n
}

type fixture struct {
	uc    *Usecase
	mail  *stubMail
	mq    *stubMQ
	db    *stubDB
	files *stubFiles
	idem  *stubIdempotency
}

func newFixture(t *testing.T, yaml string) *fixture {
	t.Helper()

	cfg, err := config.NewViperFromBytes("yaml", []byte(yaml))
	require.NoError(t, err)

	v, err := validator.NewV10Validator()
	require.NoError(t, err)

	f := &fixture{
		mail:  &stubMail{fail: map[string]error{}},
		mq:    &stubMQ{},
		db:    &stubDB{},
		files: &stubFiles{objects: map[string]int64{}},
		idem:  newStubIdempotency(),
	}
	f.uc = New(Dependency{
		RepoMail:    f.mail,
		RepoMQ:      f.mq,
		RepoDB:      f.db,
		RepoFile:    f.files,
		Idempotency: f.idem,
		Config:      cfg,
		UUID:        &seqUUID{},
		UID:         &seqNumber{},
		Clock:       clock.NewFixed(fixedNow),
		Validator:   v,
		Instrument:  instrument.NewNoop(),
	})
	f.uc.sleep = func(context.Context, time.Duration) {}
	return f
}

func validMessage() entity.MailMessage {
	return entity.MailMessage{
		From:    "App <no-reply@example.com>",
		To:      entity.Addresses{"a@example.com"},
		Subject: "Welcome",
		Text:    "hello",
	}
}

// temporaryErr is diagnosed as unavailable and retryable.
var temporaryErr = &mail.ProviderError{Provider: mail.ServiceSMTP, StatusCode: 503, Message: "try later"}

// permanentErr is diagnosed as a rejected message.
var permanentErr = &mail.ProviderError{Provider: mail.ServiceSMTP, StatusCode: 400, Message: "bad recipient"}
