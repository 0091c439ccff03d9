package storage

import (
	"context"
	"errors"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// fallbackRegion signs requests to custom endpoints that ignore the region.
const fallbackRegion = "us-east-1"

type S3Options struct {
	Region       string `mapstructure:"region"`
	Endpoint     string `mapstructure:"endpoint"`
	AccessKey    string `mapstructure:"access_key"`
	SecretKey    string `mapstructure:"secret_key"`
	SessionToken string `mapstructure:"session_token"`
	UsePathStyle bool   `mapstructure:"use_path_style"`
}

func (o S3Options) loadOptions() []func(*config.LoadOptions) error {
	var out []func(*config.LoadOptions) error

	region := o.Region
	if region == "" && o.Endpoint != "" {
		region = fallbackRegion
	}
	if region != "" {
		out = append(out, config.WithRegion(region))
	}
	if o.AccessKey != "" || o.SecretKey != "" {
		out = append(out, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(o.AccessKey, o.SecretKey, o.SessionToken),
		))
	}
	return out
}

// S3Adapter keeps attachments in AWS S3 or any S3 compatible endpoint.
// Without static keys the default AWS credential chain applies.
type S3Adapter struct {
	client *s3.Client
}

func NewS3(ctx context.Context, opts S3Options) (*S3Adapter, error) {
	cfg, err := config.LoadDefaultConfig(ctx, opts.loadOptions()...)
	if err != nil {
		return nil, err
	}

	return &S3Adapter{client: s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = opts.UsePathStyle
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
	})}, nil
}

func (s *S3Adapter) PutObject(ctx context.Context, bucket, key string, r io.Reader, opts PutOptions) (ObjectInfo, error) {
	in := &s3.PutObjectInput{
		Bucket:   aws.String(bucket),
		Key:      aws.String(key),
		Body:     r,
		Metadata: opts.Metadata,
	}
	if opts.ContentType != "" {
		in.ContentType = aws.String(opts.ContentType)
	}
	if opts.Size > 0 {
		in.ContentLength = aws.Int64(opts.Size)
	}

	out, err := s.client.PutObject(ctx, in)
	if err != nil {
		return ObjectInfo{}, err
	}

	return ObjectInfo{
		Bucket:      bucket,
		Key:         key,
		Size:        opts.Size,
		ETag:        aws.ToString(out.ETag),
		ContentType: opts.ContentType,
		Metadata:    opts.Metadata,
	}, nil
}

func (s *S3Adapter) GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, ObjectInfo, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
	if err != nil {
		return nil, ObjectInfo{}, s.wrap(err, bucket, key)
	}

	info := ObjectInfo{Bucket: bucket, Key: key, Metadata: out.Metadata}
	info.Size = aws.ToInt64(out.ContentLength)
	info.ETag = aws.ToString(out.ETag)
	info.ContentType = aws.ToString(out.ContentType)
	info.UpdatedAt = aws.ToTime(out.LastModified)
	return out.Body, info, nil
}

func (s *S3Adapter) StatObject(ctx context.Context, bucket, key string) (ObjectInfo, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
	if err != nil {
		return ObjectInfo{}, s.wrap(err, bucket, key)
	}

	info := ObjectInfo{Bucket: bucket, Key: key, Metadata: out.Metadata}
	info.Size = aws.ToInt64(out.ContentLength)
	info.ETag = aws.ToString(out.ETag)
	info.ContentType = aws.ToString(out.ContentType)
	info.UpdatedAt = aws.ToTime(out.LastModified)
	return info, nil
}

func (s *S3Adapter) Close() error { return nil }

// wrap marks NoSuchKey (GetObject) and NotFound (HeadObject) as ErrNotFound.
func (s *S3Adapter) wrap(err error, bucket, key string) error {
	var noKey *types.NoSuchKey
	var head *types.NotFound
	var noBucket *types.NoSuchBucket
	return notFound(err, Ref(bucket, key), errors.As(err, &noKey) || errors.As(err, &head) || errors.As(err, &noBucket))
}
