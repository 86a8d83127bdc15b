package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config configures an S3Sink.
type S3Config struct {
	// Bucket receives the audit objects. Required.
	Bucket string

	// Region is the AWS region. Default: "us-east-1".
	Region string

	// Endpoint is the S3 endpoint URL (e.g., "http://localhost:9000" for MinIO).
	// If empty, uses the default AWS endpoint for the region.
	Endpoint string

	// AccessKeyID and SecretAccessKey select static credentials.
	// If empty, uses the default credential chain.
	AccessKeyID     string
	SecretAccessKey string

	// UsePathStyle enables path-style addressing (required for MinIO).
	UsePathStyle bool

	// Prefix is prepended to every object key.
	Prefix string

	Compression Compression

	// BatchSize is the number of events per object. Default: 10000.
	BatchSize int
}

// putObjectAPI is the subset of *s3.Client used by S3Sink.
type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Sink writes events as newline-delimited JSON objects named
// <prefix>/<runID>/<seq>.ndjson[.ext], one object per BatchSize events.
// A run change or Flush closes the current object early. Objects whose upload
// fails are kept and retried, in order, by the next upload attempt.
type S3Sink struct {
	client putObjectAPI
	cfg    S3Config

	mu      sync.Mutex
	buf     bytes.Buffer
	pending int
	runID   string
	seq     int
	unsent  []s3Object
	closed  bool
}

// s3Object is a sealed batch waiting for upload.
type s3Object struct {
	key    string
	body   []byte
	events int
}

// NewS3Sink loads AWS configuration the same way the object store does and
// returns a sink writing to cfg.Bucket.
func NewS3Sink(ctx context.Context, cfg S3Config) (*S3Sink, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("audit: s3 bucket name is required")
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("audit: failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.DisableLogOutputChecksumValidationSkipped = true
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return newS3Sink(client, cfg), nil
}

func newS3Sink(client putObjectAPI, cfg S3Config) *S3Sink {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10000
	}
	if cfg.Compression == "" {
		cfg.Compression = CompressionNone
	}
	return &S3Sink{client: client, cfg: cfg}
}

// Record buffers ev and uploads the batch once it is full.
func (s *S3Sink) Record(ctx context.Context, ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.New("audit: s3 sink is closed")
	}

	line, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("audit: encode event: %w", err)
	}

	var flushErr error
	if ev.RunID != s.runID {
		flushErr = s.flushLocked(ctx)
		s.runID = ev.RunID
		s.seq = 0
	}

	s.buf.Write(line)
	s.buf.WriteByte('\n')
	s.pending++

	if s.pending >= s.cfg.BatchSize {
		if err := s.flushLocked(ctx); err != nil && flushErr == nil {
			flushErr = err
		}
	}
	return flushErr
}

// Flush uploads buffered events, if any.
func (s *S3Sink) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked(ctx)
}

// Close flushes and rejects further events. Calling Close again retries
// uploads that failed.
func (s *S3Sink) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return s.flushLocked(ctx)
}

func (s *S3Sink) objectKey() string {
	name := fmt.Sprintf("%06d.ndjson%s", s.seq, s.cfg.Compression.Extension())
	return path.Join(s.cfg.Prefix, s.runID, name)
}

// sealLocked moves the buffered events into a new unsent object.
func (s *S3Sink) sealLocked() error {
	if s.pending == 0 {
		return nil
	}

	// The buffer is reused; unsent objects must not alias it.
	body, err := Compress(s.cfg.Compression, bytes.Clone(s.buf.Bytes()))
	if err != nil {
		return err
	}
	s.unsent = append(s.unsent, s3Object{key: s.objectKey(), body: body, events: s.pending})
	s.buf.Reset()
	s.pending = 0
	s.seq++
	return nil
}

func (s *S3Sink) flushLocked(ctx context.Context) error {
	if err := s.sealLocked(); err != nil {
		return err
	}

	for len(s.unsent) > 0 {
		obj := s.unsent[0]
		_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:        aws.String(s.cfg.Bucket),
			Key:           aws.String(obj.key),
			Body:          bytes.NewReader(obj.body),
			ContentLength: aws.Int64(int64(len(obj.body))),
			ContentType:   aws.String("application/x-ndjson"),
		})
		if err != nil {
			return fmt.Errorf("audit: upload %d events to s3://%s/%s: %w", obj.events, s.cfg.Bucket, obj.key, err)
		}
		s.unsent = s.unsent[1:]
	}
	s.unsent = nil
	return nil
}

var _ Sink = (*S3Sink)(nil)
