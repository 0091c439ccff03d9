package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/shandysiswandi/gomailer/internal/mailer/entity"
)

const insertDeliveryLog = `
INSERT INTO mail_delivery_logs
    (id, job_id, queue, provider, subject, recipients, status, attempt, message_id, error_code, error, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

const listDeliveryLogsByJobID = `
SELECT id, job_id, queue, provider, subject, recipients, status, attempt, message_id, error_code, error, created_at
FROM mail_delivery_logs
WHERE job_id = $1
ORDER BY attempt, id`

func (s *DB) CreateDeliveryLog(ctx context.Context, in entity.DeliveryLog) (err error) {
	ctx, span := s.startSpan(ctx, "CreateDeliveryLog")
	defer func() { s.endSpan(span, err) }()

	recipients := in.Recipients
	if recipients == nil {
		recipients = []string{}
	}

	_, err = s.conn.Exec(ctx, insertDeliveryLog,
		in.ID, in.JobID, in.Queue, in.Provider, in.Subject, recipients,
		in.Status.String(), in.Attempt, in.MessageID, in.ErrorCode, in.Error, in.CreatedAt,
	)
	err = s.mapError(err)
	return err
}

// ListDeliveryLogs returns every attempt recorded for jobID, oldest first.
// It returns goerror.ErrNotFound when nothing was recorded.
func (s *DB) ListDeliveryLogs(ctx context.Context, jobID string) (_ []entity.DeliveryLog, err error) {
	ctx, span := s.startSpan(ctx, "ListDeliveryLogs")
	defer func() { s.endSpan(span, err) }()

	rows, err := s.conn.Query(ctx, listDeliveryLogsByJobID, jobID)
	if err != nil {
		return nil, s.mapError(err)
	}

	logs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (entity.DeliveryLog, error) {
		var (
			l      entity.DeliveryLog
			status string
		)
		err := row.Scan(&l.ID, &l.JobID, &l.Queue, &l.Provider, &l.Subject, &l.Recipients,
			&status, &l.Attempt, &l.MessageID, &l.ErrorCode, &l.Error, &l.CreatedAt)
		l.Status = entity.DeliveryStatus(status)
		return l, err
	})
	if err != nil {
		return nil, s.mapError(err)
	}
	if len(logs) == 0 {
		return nil, s.mapError(pgx.ErrNoRows)
	}

	return logs, nil
}
