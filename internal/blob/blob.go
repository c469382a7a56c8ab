// Package blob stores export artifacts in S3-compatible object storage.
package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dietops/backend/internal/config"
	"go.uber.org/zap"
)

// ErrIncompleteConfig indicates that required bucket settings are missing.
var ErrIncompleteConfig = errors.New("blob: s3 configuration incomplete")

// Store uploads objects and issues time-limited download links.
type Store interface {
	PutObject(ctx context.Context, key string, data []byte, contentType string) (int64, error)
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// S3Store implements Store with the AWS SDK v2 against any S3-compatible endpoint.
type S3Store struct {
	client        *s3.Client
	presignClient *s3.PresignClient
	bucket        string
}

// NewS3Store builds a store with static credentials. An empty endpoint uses AWS defaults.
func NewS3Store(ctx context.Context, cfg config.S3Config) (*S3Store, error) {
	if missing := cfg.MissingRequired(); len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", ErrIncompleteConfig, strings.Join(missing, ", "))
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("blob: load s3 config: %w", err)
	}

	endpoint := strings.TrimSpace(cfg.Endpoint)
	client := s3.NewFromConfig(awsCfg, func(options *s3.Options) {
		if endpoint != "" {
			options.BaseEndpoint = aws.String(endpoint)
			options.UsePathStyle = true
		}
	})

	return &S3Store{
		client:        client,
		presignClient: s3.NewPresignClient(client),
		bucket:        cfg.Bucket,
	}, nil
}

func (s *S3Store) PutObject(ctx context.Context, key string, data []byte, contentType string) (int64, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return 0, fmt.Errorf("blob: put object %s: %w", key, err)
	}
	return int64(len(data)), nil
}

func (s *S3Store) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	request, err := s.presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("blob: presign %s: %w", key, err)
	}
	return request.URL, nil
}

// NewStoreFromConfig returns an S3Store when the bucket is configured and nil otherwise,
// in which case exports are returned inline.
func NewStoreFromConfig(ctx context.Context, cfg config.S3Config, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if strings.TrimSpace(cfg.Bucket) == "" {
		logger.Info("export storage disabled; artifacts are returned inline")
		return nil, nil
	}
	store, err := NewS3Store(ctx, cfg)
	if err != nil {
		return nil, err
	}
	logger.Info("export storage enabled",
		zap.String("bucket", cfg.Bucket),
		zap.String("endpoint", cfg.Endpoint),
		zap.String("region", cfg.Region))
	return store, nil
}

// MemoryStore keeps objects in process memory. Presigned URLs use the memory:// scheme.
type MemoryStore struct {
	mu      sync.Mutex
	objects map[string]Object
}

// Object is a stored payload with its content type.
type Object struct {
	Data        []byte
	ContentType string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string]Object)}
}

func (m *MemoryStore) PutObject(ctx context.Context, key string, data []byte, contentType string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := make([]byte, len(data))
	copy(stored, data)
	m.objects[key] = Object{Data: stored, ContentType: contentType}
	return int64(len(data)), nil
}

func (m *MemoryStore) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[key]; !ok {
		return "", fmt.Errorf("blob: object %s not found", key)
	}
	return fmt.Sprintf("memory://%s?ttl=%d", key, int(ttl.Seconds())), nil
}

// Get returns a stored object.
func (m *MemoryStore) Get(key string) (Object, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	object, ok := m.objects[key]
	return object, ok
}
