package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/shandysiswandi/gomailer/internal/mailer/entity"
	"github.com/shandysiswandi/gomailer/internal/pkg/goerror"
)

type UploadAttachmentInput struct {
	Filename    string `validate:"required,max=255"`
	ContentType string
	Size        int64 `validate:"gt=0"`
	Body        io.Reader
}

// UploadAttachment stores a file so later jobs can reference it by path
// instead of carrying the content.
func (s *Usecase) UploadAttachment(ctx context.Context, in UploadAttachmentInput) (entity.AttachmentRef, error) {
	ctx, span := s.startSpan(ctx, "UploadAttachment")
	defer span.End()

	in.Filename = path.Base(strings.ReplaceAll(strings.TrimSpace(in.Filename), "\\", "/"))
	if in.Filename == "." || in.Filename == "/" {
		in.Filename = ""
	}
	if in.ContentType == "" {
		in.ContentType = "application/octet-stream"
	}

	if err := s.validator.Validate(in); err != nil {
		return entity.AttachmentRef{}, goerror.NewInvalidInput(err)
	}

	if s.repoFile == nil {
		return entity.AttachmentRef{}, goerror.NewBusiness("object storage is disabled", goerror.CodeUnavailable)
	}

	key := s.clock.Now().UTC().Format("2006/01/02") + "/" + s.uuid.Generate() + "/" + in.Filename

	ref, err := s.repoFile.Save(ctx, key, in.ContentType, in.Size, in.Body)
	if errors.Is(err, entity.ErrAttachmentTooLarge) {
		return entity.AttachmentRef{}, goerror.NewInvalidInput(nil, "file", "file exceeds the size limit")
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo save attachment", "key", key, "error", err)
		return entity.AttachmentRef{}, goerror.NewServer(err)
	}

	return entity.AttachmentRef{
		Path:        ref,
		Filename:    in.Filename,
		ContentType: in.ContentType,
		Size:        in.Size,
	}, nil
}
