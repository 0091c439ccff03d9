package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/shandysiswandi/gomailer/internal/mailer/entity"
	"github.com/shandysiswandi/gomailer/internal/pkg/goerror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUsecase_GetDeliveries(t *testing.T) {
	tests := []struct {
		name     string
		jobID    string
		setup    func(f *fixture)
		wantErr  bool
		wantCode goerror.Code
		wantLen  int
	}{
		{
			name:  "found",
			jobID: "job-1",
			setup: func(f *fixture) {
				f.db.logs = []entity.DeliveryLog{
					{ID: 1, JobID: "job-1", Status: entity.DeliveryStatusRequeued},
					{ID: 2, JobID: "job-2", Status: entity.DeliveryStatusSent},
					{ID: 3, JobID: "job-1", Attempt: 1, Status: entity.DeliveryStatusSent},
				}
			},
			wantLen: 2,
		},
		{
			name:     "missing job id",
			wantErr:  true,
			wantCode: goerror.CodeInvalidInput,
		},
		{
			name:     "not found",
			jobID:    "job-1",
			setup:    func(f *fixture) { f.db.listErr = goerror.ErrNotFound },
			wantErr:  true,
			wantCode: goerror.CodeNotFound,
		},
		{
			name:     "database down",
			jobID:    "job-1",
			setup:    func(f *fixture) { f.db.listErr = errors.New("conn closed") },
			wantErr:  true,
			wantCode: goerror.CodeInternal,
		},
		{
			name:     "log disabled",
			jobID:    "job-1",
			setup:    func(f *fixture) { f.uc.repoDB = nil },
			wantErr:  true,
			wantCode: goerror.CodeUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			f := newFixture(t, "")
			if tt.setup != nil {
				tt.setup(f)
			}

			// Act
			logs, err := f.uc.GetDeliveries(context.Background(), GetDeliveriesInput{JobID: tt.jobID})

			// Assert
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, tt.wantCode, goerror.CodeOf(err))
				return
			}
			require.NoError(t, err)
			assert.Len(t, logs, tt.wantLen)
		})
	}
}
