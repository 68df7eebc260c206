// Package minio stores run artifacts (LP and MPS exports, result documents)
// and serves case files to workers from S3-compatible object storage.
package minio

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/lifecycle"

	"github.com/turtacn/ProcSynth/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ProcSynth/pkg/errors"
)

// ObjectAPI is the subset of the SDK the store uses. GetObject returns a
// ReadCloser so tests can stub it without a live endpoint.
type ObjectAPI interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	SetBucketLifecycle(ctx context.Context, bucket string, cfg *lifecycle.Configuration) error
	PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	GetObject(ctx context.Context, bucket, key string, opts minio.GetObjectOptions) (io.ReadCloser, error)
	StatObject(ctx context.Context, bucket, key string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	ListObjects(ctx context.Context, bucket string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
	RemoveObject(ctx context.Context, bucket, key string, opts minio.RemoveObjectOptions) error
}

type sdkAPI struct{ *minio.Client }

func (a sdkAPI) GetObject(ctx context.Context, bucket, key string, opts minio.GetObjectOptions) (io.ReadCloser, error) {
	return a.Client.GetObject(ctx, bucket, key, opts)
}

// Config selects the endpoint and buckets.
type Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	Region          string `mapstructure:"region"`
	ArtifactBucket  string `mapstructure:"artifact_bucket"`
	CaseBucket      string `mapstructure:"case_bucket"`
	// ArtifactExpiryDays is the lifecycle expiry of the artifact bucket; zero keeps artifacts.
	ArtifactExpiryDays int `mapstructure:"artifact_expiry_days"`
}

func (c *Config) applyDefaults() {
	if c.Region == "" {
		c.Region = "us-east-1"
	}
	if c.ArtifactBucket == "" {
		c.ArtifactBucket = "procsynth-artifacts"
	}
	if c.CaseBucket == "" {
		c.CaseBucket = "procsynth-cases"
	}
}

// Client owns the SDK handle and the bucket layout.
type Client struct {
	api    ObjectAPI
	cfg    Config
	logger logging.Logger
	mu     sync.RWMutex
	closed bool
}

var ErrClientClosed = errors.New(errors.ErrCodeObjectStorage, "object storage client is closed")

// NewClient connects, creates missing buckets and installs lifecycle rules.
func NewClient(cfg Config, log logging.Logger) (*Client, error) {
	cfg.applyDefaults()
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeObjectStorage, "failed to create minio client")
	}
	c := NewClientWithAPI(sdkAPI{mc}, cfg, log)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.EnsureBuckets(ctx); err != nil {
		return nil, err
	}
	c.logger.Info("object storage connected", logging.String("endpoint", cfg.Endpoint), logging.Bool("ssl", cfg.UseSSL))
	return c, nil
}

// NewClientWithAPI builds a client over an existing API.
func NewClientWithAPI(api ObjectAPI, cfg Config, log logging.Logger) *Client {
	cfg.applyDefaults()
	return &Client{api: api, cfg: cfg, logger: logging.OrNop(log).Named("minio")}
}

// EnsureBuckets creates the artifact and case buckets when missing.
func (c *Client) EnsureBuckets(ctx context.Context) error {
	for _, bucket := range []string{c.cfg.ArtifactBucket, c.cfg.CaseBucket} {
		exists, err := c.api.BucketExists(ctx, bucket)
		if err != nil {
			return errors.Wrapf(err, errors.ErrCodeObjectStorage, "failed to check bucket %s", bucket)
		}
		if exists {
			continue
		}
		if err := c.api.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: c.cfg.Region}); err != nil {
			return errors.Wrapf(err, errors.ErrCodeObjectStorage, "failed to create bucket %s", bucket)
		}
		c.logger.Info("created bucket", logging.String("bucket", bucket))
	}

	if c.cfg.ArtifactExpiryDays > 0 {
		lc := lifecycle.NewConfiguration()
		lc.Rules = []lifecycle.Rule{{
			ID:         "artifact-expiry",
			Status:     "Enabled",
			Expiration: lifecycle.Expiration{Days: lifecycle.ExpirationDays(c.cfg.ArtifactExpiryDays)},
		}}
		if err := c.api.SetBucketLifecycle(ctx, c.cfg.ArtifactBucket, lc); err != nil {
			c.logger.Warn("failed to set artifact lifecycle", logging.Err(err))
		}
	}
	return nil
}

// HealthCheck verifies that both buckets are reachable.
func (c *Client) HealthCheck(ctx context.Context) error {
	for _, bucket := range []string{c.cfg.ArtifactBucket, c.cfg.CaseBucket} {
		ok, err := c.api.BucketExists(ctx, bucket)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeObjectStorage, "object storage unreachable")
		}
		if !ok {
			return errors.New(errors.ErrCodeObjectStorage, "bucket missing").WithDetail(bucket)
		}
	}
	return nil
}

// Close marks the client closed; the SDK holds no persistent connections.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *Client) ready() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClientClosed
	}
	return nil
}
