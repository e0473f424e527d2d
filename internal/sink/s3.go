package sink

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ppiankov/floodclaims/internal/model"
	"github.com/ppiankov/floodclaims/internal/worker"
)

// ObjectPutter is the subset of the S3 client used by S3Sink
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Sink uploads each table as <prefix><table>.csv
type S3Sink struct {
	client  ObjectPutter
	bucket  string
	prefix  string
	limiter *worker.Limiter
}

// NewS3Sink creates an S3 sink. If cfg.Endpoint is non-empty, path-style
// addressing is enabled (for MinIO and similar).
func NewS3Sink(ctx context.Context, cfg model.S3Config) (*S3Sink, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 mirror: bucket is required")
	}

	httpClient := awshttp.NewBuildableClient().WithTransportOptions(func(tr *http.Transport) {
		tr.Proxy = proxyFunc(cfg.HTTPProxy, cfg.HTTPSProxy, cfg.NoProxy)
	})

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithHTTPClient(httpClient),
	)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var s3opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3opts = append(s3opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}

	return newS3Sink(s3.NewFromConfig(awsCfg, s3opts...), cfg), nil
}

func newS3Sink(client ObjectPutter, cfg model.S3Config) *S3Sink {
	return &S3Sink{
		client:  client,
		bucket:  cfg.Bucket,
		prefix:  cfg.Prefix,
		limiter: worker.NewLimiter(cfg.RequestsPerSecond, cfg.Burst),
	}
}

// Name returns the s3:// URL of the destination prefix
func (s *S3Sink) Name() string {
	return "s3://" + path.Join(s.bucket, s.prefix)
}

// Key returns the object key for a table
func (s *S3Sink) Key(table string) string {
	return s.prefix + table + ".csv"
}

// Put uploads the encoded table
func (s *S3Sink) Put(ctx context.Context, runID string, t *model.Table, data []byte) error {
	key := s.Key(t.Name)
	if err := s.limiter.Wait(ctx, s.bucket); err != nil {
		return &model.WriteError{Table: t.Name, Path: "s3://" + s.bucket + "/" + key, Err: err}
	}

	contentType := "text/csv"
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: &contentType,
		Metadata:    map[string]string{"run-id": runID},
	})
	if err != nil {
		return &model.WriteError{Table: t.Name, Path: "s3://" + s.bucket + "/" + key, Err: fmt.Errorf("s3 put object: %w", err)}
	}
	return nil
}

// Close is a no-op
func (s *S3Sink) Close() error {
	return nil
}
