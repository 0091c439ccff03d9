package inbound

import (
	"context"
	"log/slog"

	"github.com/shandysiswandi/gomailer/internal/pkg/instrument"
	"github.com/shandysiswandi/gomailer/internal/pkg/messaging"
	"github.com/shandysiswandi/gomailer/internal/pkg/uid"
	"github.com/shandysiswandi/gomailer/internal/shared/event"
)

type MQHandler struct {
	uc   ucConsumer
	uuid uid.StringID
	ins  instrument.Instrumentation
}

func (h *MQHandler) ensureCorrelationID(ctx context.Context, msg messaging.Message) context.Context {
	if msg != nil {
		if cID := msg.Header(event.HeaderCorrelationID); cID != "" {
			return instrument.SetCorrelationID(ctx, cID)
		}
	}
	return instrument.SetCorrelationID(ctx, h.uuid.Generate())
}

// ProcessMailJob hands one delivery to the dispatcher. The delivery is
// always settled by the use case, so the handler never reports an error
// back to the driver.
func (h *MQHandler) ProcessMailJob(ctx context.Context, msg messaging.Message) error {
	ctx = h.ensureCorrelationID(ctx, msg)

	ctx, span := h.ins.Tracer("mailer.inbound.mq").Start(ctx, "ProcessMailJob")
	defer span.End()

	if msg != nil {
		slog.InfoContext(ctx, "consume: mail job", "queue", msg.Source(), "message_id", msg.ID(), "redelivered", msg.Redelivered())
	}

	res := h.uc.ProcessJob(ctx, msg)
	if res.Err != nil {
		span.RecordError(res.Err)
	}

	slog.InfoContext(ctx, "consume: mail job settled",
		"status", res.Status,
		"message", res.Message,
		"outcome", res.Outcome.String(),
		"job_id", res.JobID,
		"attempt", res.Attempt,
	)
	return nil
}
