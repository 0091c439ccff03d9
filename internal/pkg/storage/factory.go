package storage

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
)

var ErrUnknownDriver = errors.New("storage: unknown driver")

// FactoryOptions mirrors the "storage" config section. Only the block of the
// selected driver is read.
type FactoryOptions struct {
	S3    S3Options    `mapstructure:"s3"`
	GCS   GCSOptions   `mapstructure:"gcs"`
	MinIO MinIOOptions `mapstructure:"minio"`
}

var drivers = map[string]func(context.Context, FactoryOptions) (Storage, error){
	"s3": func(ctx context.Context, o FactoryOptions) (Storage, error) {
		return NewS3(ctx, o.S3)
	},
	"gcs": func(ctx context.Context, o FactoryOptions) (Storage, error) {
		return NewGCS(ctx, o.GCS)
	},
	"minio": func(_ context.Context, o FactoryOptions) (Storage, error) {
		return NewMinIO(o.MinIO)
	},
}

// Drivers lists the accepted driver names.
func Drivers() []string {
	return slices.Sorted(maps.Keys(drivers))
}

// NewFromDriver opens the backend named by driver, case-insensitively.
func NewFromDriver(ctx context.Context, driver string, opts FactoryOptions) (Storage, error) {
	open, ok := drivers[strings.ToLower(strings.TrimSpace(driver))]
	if !ok {
		return nil, fmt.Errorf("%w %q, want one of %v", ErrUnknownDriver, driver, Drivers())
	}
	return open(ctx, opts)
}
