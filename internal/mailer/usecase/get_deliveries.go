package usecase

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shandysiswandi/gomailer/internal/mailer/entity"
	"github.com/shandysiswandi/gomailer/internal/pkg/goerror"
)

type GetDeliveriesInput struct {
	JobID string `validate:"required,max=64"`
}

func (s *Usecase) GetDeliveries(ctx context.Context, in GetDeliveriesInput) ([]entity.DeliveryLog, error) {
	ctx, span := s.startSpan(ctx, "GetDeliveries")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	if s.repoDB == nil {
		return nil, goerror.NewBusiness("delivery log is disabled", goerror.CodeUnavailable)
	}

	logs, err := s.repoDB.ListDeliveryLogs(ctx, in.JobID)
	if errors.Is(err, goerror.ErrNotFound) {
		return nil, goerror.NewBusiness("no delivery recorded for this job", goerror.CodeNotFound)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo list delivery logs", "job_id", in.JobID, "error", err)
		return nil, goerror.NewServer(err)
	}

	return logs, nil
}
