package inbound

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/shandysiswandi/gomailer/internal/mailer/entity"
	"github.com/shandysiswandi/gomailer/internal/mailer/usecase"
	"github.com/shandysiswandi/gomailer/internal/pkg/goerror"
	"github.com/shandysiswandi/gomailer/internal/pkg/router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubUC struct {
	recordingUC

	sendIn     usecase.SendMailInput
	templateIn usecase.SendMailWithTemplateInput
	groupIn    usecase.SendMailToGroupInput
	enqueueIn  usecase.EnqueueInput
	uploadIn   usecase.UploadAttachmentInput
	uploaded   string

	groupReport entity.GroupReport
	err         error
}

func (u *stubUC) SendMail(_ context.Context, in usecase.SendMailInput) (entity.Receipt, error) {
	u.sendIn = in
	return entity.Receipt{Status: 200, Message: "Email sent successfully", Provider: "SMTP", MessageID: "<1@x>"}, u.err
}

func (u *stubUC) SendMailWithTemplate(_ context.Context, in usecase.SendMailWithTemplateInput) (entity.Receipt, error) {
	u.templateIn = in
	return entity.Receipt{Status: 200, Message: "Email sent successfully"}, u.err
}

func (u *stubUC) SendMailToGroup(_ context.Context, in usecase.SendMailToGroupInput) (entity.GroupReport, error) {
	u.groupIn = in
	return u.groupReport, u.err
}

func (u *stubUC) SendMailToGroupWithTemplate(_ context.Context, in usecase.SendMailToGroupWithTemplateInput) (entity.GroupReport, error) {
	return u.groupReport, u.err
}

func (u *stubUC) Enqueue(_ context.Context, in usecase.EnqueueInput) (entity.EnqueueReceipt, error) {
	u.enqueueIn = in
	return entity.EnqueueReceipt{Status: 200, Message: "Message in queue " + in.Queue + " successfully", Queue: in.Queue, JobID: "job-1"}, u.err
}

func (u *stubUC) GetDeliveries(_ context.Context, in usecase.GetDeliveriesInput) ([]entity.DeliveryLog, error) {
	if u.err != nil {
		return nil, u.err
	}
	return []entity.DeliveryLog{{
		ID:        1,
		JobID:     in.JobID,
		Status:    entity.DeliveryStatusSent,
		CreatedAt: time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC),
	}}, nil
}

func (u *stubUC) UploadAttachment(_ context.Context, in usecase.UploadAttachmentInput) (entity.AttachmentRef, error) {
	u.uploadIn = in
	b, _ := io.ReadAll(in.Body)
	u.uploaded = string(b)
	return entity.AttachmentRef{Path: "mail/" + in.Filename, Filename: in.Filename, ContentType: in.ContentType, Size: in.Size}, u.err
}

func newRequest(method, target, body string, params ...httprouter.Param) *router.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if len(params) > 0 {
		req = req.WithContext(context.WithValue(req.Context(), httprouter.ParamsKey, httprouter.Params(params)))
	}
	return &router.Request{Request: req}
}

func TestHTTPEndpoint_SendMail(t *testing.T) {
	// Arrange
	uc := &stubUC{}
	h := &HTTPEndpoint{uc: uc}
	body := `{"from":"no-reply@example.com","to":"a@example.com, b@example.com","subject":"Hi","text":"hello"}`

	// Act
	resp, err := h.SendMail(newRequest(http.MethodPost, "/api/v1/mail/send", body))

	// Assert
	require.NoError(t, err)
	assert.Equal(t, entity.Addresses{"a@example.com", "b@example.com"}, uc.sendIn.Message.To)
	sr, ok := resp.(SendResponse)
	require.True(t, ok)
	assert.Equal(t, 200, sr.Status)
	assert.Equal(t, "Email sent successfully", sr.Message())
	assert.Equal(t, "<1@x>", sr.MessageID)
}

func TestHTTPEndpoint_SendMail_BadBody(t *testing.T) {
	h := &HTTPEndpoint{uc: &stubUC{}}

	tests := []struct {
		name string
		body string
		want goerror.Code
	}{
		{name: "unknown field", body: `{"unknown":1}`, want: goerror.CodeInvalidInput},
		{name: "wrong type", body: `{"subject":7}`, want: goerror.CodeInvalidInput},
		{name: "not json", body: `subject=hi`, want: goerror.CodeInvalidFormat},
		{name: "two documents", body: `{} {}`, want: goerror.CodeInvalidFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.SendMail(newRequest(http.MethodPost, "/api/v1/mail/send", tt.body))

			assert.Equal(t, tt.want, goerror.CodeOf(err))
		})
	}
}

func TestHTTPEndpoint_SendMailWithTemplate(t *testing.T) {
	uc := &stubUC{}
	h := &HTTPEndpoint{uc: uc}
	body := `{"message":{"to":["a@example.com"],"subject":"Hi"},"view":{"user":{"username":"ana"},"app_name":"Acme"}}`

	_, err := h.SendMailWithTemplate(newRequest(http.MethodPost, "/api/v1/mail/send/template", body))

	require.NoError(t, err)
	assert.Equal(t, "ana", uc.templateIn.View.User.Username)
	assert.Equal(t, "Acme", uc.templateIn.View.AppName)
}

func TestHTTPEndpoint_SendMailToGroup(t *testing.T) {
	report := entity.GroupReport{Mode: entity.GroupModeStopOnError}
	report.Record(entity.RecipientOutcome{Recipient: "a@example.com", Status: entity.RecipientStatusSent})
	report.Record(entity.RecipientOutcome{Recipient: "b@example.com", Status: entity.RecipientStatusFailed, Error: "550"})

	tests := []struct {
		name       string
		report     entity.GroupReport
		err        error
		wantErr    bool
		wantStatus int
	}{
		{name: "all sent", report: report, wantStatus: http.StatusOK},
		{name: "partial failure keeps report", report: report, err: goerror.NewUpstream(assert.AnError, "Failed to send email to b@example.com"), wantStatus: http.StatusBadGateway},
		{name: "malformed recipient keeps report", report: report, err: goerror.NewInvalidInput(nil, "to", "b@example.com is not a valid email address"), wantStatus: http.StatusUnprocessableEntity},
		{name: "validation error", err: goerror.NewInvalidInput(nil, "to", "required"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uc := &stubUC{groupReport: tt.report, err: tt.err}
			h := &HTTPEndpoint{uc: uc}

			resp, err := h.SendMailToGroup(newRequest(http.MethodPost, "/api/v1/mail/send/group",
				`{"message":{"to":["a@example.com","b@example.com"]},"mode":"stop_on_error"}`))

			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, entity.GroupModeStopOnError, uc.groupIn.Mode)
			gr, ok := resp.(GroupResponse)
			require.True(t, ok)
			assert.Equal(t, tt.wantStatus, gr.StatusCode())
			assert.Equal(t, 1, gr.Sent)
			assert.Equal(t, 1, gr.Failed)
			assert.Len(t, gr.Outcomes, 2)
		})
	}
}

func TestHTTPEndpoint_Enqueue(t *testing.T) {
	uc := &stubUC{}
	h := &HTTPEndpoint{uc: uc}

	resp, err := h.Enqueue(newRequest(http.MethodPost, "/api/v1/mail/queues/mail/jobs",
		`{"to":"a@example.com","subject":"Hi"}`, httprouter.Param{Key: "queue", Value: "mail"}))

	require.NoError(t, err)
	assert.Equal(t, "mail", uc.enqueueIn.Queue)
	er, ok := resp.(EnqueueResponse)
	require.True(t, ok)
	assert.Equal(t, "job-1", er.JobID)
	assert.Equal(t, "Message in queue mail successfully", er.Message())
}

func TestHTTPEndpoint_GetDeliveries(t *testing.T) {
	h := &HTTPEndpoint{uc: &stubUC{}}

	resp, err := h.GetDeliveries(newRequest(http.MethodGet, "/api/v1/mail/deliveries/job-7", "",
		httprouter.Param{Key: "job_id", Value: "job-7"}))

	require.NoError(t, err)
	dr, ok := resp.(DeliveriesResponse)
	require.True(t, ok)
	assert.Equal(t, "job-7", dr.JobID)
	require.Len(t, dr.Deliveries, 1)
	assert.Equal(t, "sent", dr.Deliveries[0].Status)
	assert.Equal(t, "2026-10-19T09:00:00Z", dr.Deliveries[0].CreatedAt)
}

func TestHTTPEndpoint_UploadAttachment(t *testing.T) {
	// Arrange
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "report.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte("quarterly numbers"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/mail/attachments", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	uc := &stubUC{}
	h := &HTTPEndpoint{uc: uc, maxUploadBytes: 1 << 20}

	// Act
	resp, err := h.UploadAttachment(&router.Request{Request: req})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "report.txt", uc.uploadIn.Filename)
	assert.Equal(t, int64(len("quarterly numbers")), uc.uploadIn.Size)
	assert.Equal(t, "quarterly numbers", uc.uploaded)
	ar, ok := resp.(AttachmentResponse)
	require.True(t, ok)
	assert.Equal(t, "mail/report.txt", ar.Path)
	assert.Equal(t, http.StatusCreated, ar.StatusCode())
}

func TestHTTPEndpoint_UploadAttachment_NotMultipart(t *testing.T) {
	h := &HTTPEndpoint{uc: &stubUC{}}

	_, err := h.UploadAttachment(newRequest(http.MethodPost, "/api/v1/mail/attachments", `{}`))

	assert.Equal(t, goerror.CodeInvalidFormat, goerror.CodeOf(err))
}
