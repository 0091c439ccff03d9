package inbound

import (
	"context"

	"github.com/shandysiswandi/gomailer/internal/mailer/entity"
	"github.com/shandysiswandi/gomailer/internal/mailer/usecase"
	"github.com/shandysiswandi/gomailer/internal/pkg/messaging"
)

type ucConsumer interface {
	ProcessJob(ctx context.Context, msg messaging.Message) entity.ProcessResult
}

type uc interface {
	ucConsumer

	SendMail(ctx context.Context, in usecase.SendMailInput) (entity.Receipt, error)
	SendMailWithTemplate(ctx context.Context, in usecase.SendMailWithTemplateInput) (entity.Receipt, error)
	SendMailToGroup(ctx context.Context, in usecase.SendMailToGroupInput) (entity.GroupReport, error)
	SendMailToGroupWithTemplate(ctx context.Context, in usecase.SendMailToGroupWithTemplateInput) (entity.GroupReport, error)
	Enqueue(ctx context.Context, in usecase.EnqueueInput) (entity.EnqueueReceipt, error)
	GetDeliveries(ctx context.Context, in usecase.GetDeliveriesInput) ([]entity.DeliveryLog, error)
	UploadAttachment(ctx context.Context, in usecase.UploadAttachmentInput) (entity.AttachmentRef, error)
}
