package attachment

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/shandysiswandi/gomailer/internal/mailer/entity"
	"github.com/shandysiswandi/gomailer/internal/pkg/instrument"
	"github.com/shandysiswandi/gomailer/internal/pkg/storage"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var ErrDisabled = errors.New("object storage is not configured")

// Store reads and writes attachment objects by "bucket/key" reference.
type Store struct {
	store   storage.Storage
	bucket  string
	maxSize int64
	ins     instrument.Instrumentation
}

func New(store storage.Storage, bucket string, maxSize int64, ins instrument.Instrumentation) *Store {
	return &Store{store: store, bucket: bucket, maxSize: maxSize, ins: ins}
}

func (s *Store) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.ins.Tracer("mailer.outbound.attachment").Start(ctx, name)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Load returns the object content and its stored content type.
func (s *Store) Load(ctx context.Context, ref string) (_ []byte, _ string, err error) {
	ctx, span := s.startSpan(ctx, "Load")
	defer func() { endSpan(span, err) }()

	if s.store == nil {
		return nil, "", ErrDisabled
	}

	bucket, key, err := storage.ParseRef(ref)
	if err != nil {
		return nil, "", err
	}

	rc, info, err := s.store.GetObject(ctx, bucket, key)
	if err != nil {
		return nil, "", fmt.Errorf("get %s: %w", ref, err)
	}
	defer rc.Close()

	if s.maxSize > 0 && info.Size > s.maxSize {
		return nil, "", fmt.Errorf("%w: %s is %d bytes", entity.ErrAttachmentTooLarge, ref, info.Size)
	}

	var r io.Reader = rc
	if s.maxSize > 0 {
		r = io.LimitReader(rc, s.maxSize+1)
	}
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", ref, err)
	}
	if s.maxSize > 0 && int64(len(content)) > s.maxSize {
		return nil, "", fmt.Errorf("%w: %s", entity.ErrAttachmentTooLarge, ref)
	}

	return content, info.ContentType, nil
}

// Exists reports whether ref points at a readable object.
func (s *Store) Exists(ctx context.Context, ref string) (err error) {
	ctx, span := s.startSpan(ctx, "Exists")
	defer func() { endSpan(span, err) }()

	if s.store == nil {
		return ErrDisabled
	}

	bucket, key, err := storage.ParseRef(ref)
	if err != nil {
		return err
	}

	info, err := s.store.StatObject(ctx, bucket, key)
	if err != nil {
		return fmt.Errorf("stat %s: %w", ref, err)
	}
	if s.maxSize > 0 && info.Size > s.maxSize {
		return fmt.Errorf("%w: %s is %d bytes", entity.ErrAttachmentTooLarge, ref, info.Size)
	}
	return nil
}

// Save uploads r under key in the configured bucket and returns its reference.
func (s *Store) Save(ctx context.Context, key, contentType string, size int64, r io.Reader) (_ string, err error) {
	ctx, span := s.startSpan(ctx, "Save")
	defer func() { endSpan(span, err) }()

	if s.store == nil {
		return "", ErrDisabled
	}
	if s.maxSize > 0 && size > s.maxSize {
		return "", fmt.Errorf("%w: %d bytes", entity.ErrAttachmentTooLarge, size)
	}

	info, err := s.store.PutObject(ctx, s.bucket, key, r, storage.PutOptions{Size: size, ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("put %s: %w", key, err)
	}

	return storage.Ref(info.Bucket, info.Key), nil
}
