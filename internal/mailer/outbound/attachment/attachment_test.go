package attachment

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/shandysiswandi/gomailer/internal/mailer/entity"
	"github.com/shandysiswandi/gomailer/internal/pkg/instrument"
	"github.com/shandysiswandi/gomailer/internal/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStorage struct {
	objects map[string][]byte
	types   map[string]string
}

func newMemStorage() *memStorage {
	return &memStorage{objects: map[string][]byte{}, types: map[string]string{}}
}

func (m *memStorage) Close() error { return nil }

func (m *memStorage) PutObject(_ context.Context, bucket, key string, r io.Reader, opts storage.PutOptions) (storage.ObjectInfo, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	ref := storage.Ref(bucket, key)
	m.objects[ref] = b
	m.types[ref] = opts.ContentType
	return storage.ObjectInfo{Bucket: bucket, Key: key, Size: int64(len(b)), ContentType: opts.ContentType}, nil
}

func (m *memStorage) GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, storage.ObjectInfo, error) {
	info, err := m.StatObject(ctx, bucket, key)
	if err != nil {
		return nil, storage.ObjectInfo{}, err
	}
	return io.NopCloser(bytes.NewReader(m.objects[storage.Ref(bucket, key)])), info, nil
}

func (m *memStorage) StatObject(_ context.Context, bucket, key string) (storage.ObjectInfo, error) {
	ref := storage.Ref(bucket, key)
	b, ok := m.objects[ref]
	if !ok {
		return storage.ObjectInfo{}, errors.New("not found")
	}
	return storage.ObjectInfo{Bucket: bucket, Key: key, Size: int64(len(b)), ContentType: m.types[ref]}, nil
}

func TestStore_SaveLoad(t *testing.T) {
	// Arrange
	s := New(newMemStorage(), "mail", 16, instrument.NewNoop())
	ctx := context.Background()

	// Act
	ref, err := s.Save(ctx, "2026/report.csv", "text/csv", 5, strings.NewReader("a,b,c"))
	require.NoError(t, err)
	content, contentType, loadErr := s.Load(ctx, ref)

	// Assert
	assert.Equal(t, "mail/2026/report.csv", ref)
	require.NoError(t, loadErr)
	assert.Equal(t, []byte("a,b,c"), content)
	assert.Equal(t, "text/csv", contentType)
	assert.NoError(t, s.Exists(ctx, ref))
}

func TestStore_Limits(t *testing.T) {
	mem := newMemStorage()
	mem.objects["mail/big.bin"] = bytes.Repeat([]byte("x"), 32)
	s := New(mem, "mail", 16, instrument.NewNoop())
	ctx := context.Background()

	_, _, err := s.Load(ctx, "mail/big.bin")
	assert.ErrorIs(t, err, entity.ErrAttachmentTooLarge)
	assert.ErrorIs(t, s.Exists(ctx, "mail/big.bin"), entity.ErrAttachmentTooLarge)

	_, err = s.Save(ctx, "k", "", 32, strings.NewReader("x"))
	assert.ErrorIs(t, err, entity.ErrAttachmentTooLarge)

	_, _, err = s.Load(ctx, "no-slash")
	assert.ErrorIs(t, err, storage.ErrInvalidRef)

	assert.Error(t, s.Exists(ctx, "mail/missing"))
}

func TestStore_Disabled(t *testing.T) {
	s := New(nil, "mail", 0, instrument.NewNoop())

	_, _, err := s.Load(context.Background(), "mail/a")
	assert.ErrorIs(t, err, ErrDisabled)
	assert.ErrorIs(t, s.Exists(context.Background(), "mail/a"), ErrDisabled)
}
