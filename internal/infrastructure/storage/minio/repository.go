package minio

import (
	"bytes"
	"context"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"

	"github.com/turtacn/ProcSynth/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ProcSynth/pkg/errors"
)

var ErrObjectNotFound = errors.New(errors.ErrCodeNotFound, "object not found")

// Artifact describes one stored run artifact.
type Artifact struct {
	Key         string
	Name        string
	Size        int64
	ContentType string
	ETag        string
	UploadedAt  time.Time
}

// ArtifactStore persists run artifacts and reads case files.
type ArtifactStore interface {
	PutArtifact(ctx context.Context, runID, name, contentType string, data []byte) (*Artifact, error)
	GetArtifact(ctx context.Context, runID, name string) ([]byte, error)
	ListArtifacts(ctx context.Context, runID string) ([]Artifact, error)
	DeleteArtifacts(ctx context.Context, runID string) error
	PutCase(ctx context.Context, name string, data []byte) error
	GetCase(ctx context.Context, name string) ([]byte, error)
}

type store struct {
	client *Client
	logger logging.Logger
}

// NewArtifactStore returns an ArtifactStore over client.
func NewArtifactStore(client *Client, log logging.Logger) ArtifactStore {
	return &store{client: client, logger: logging.OrNop(log).Named("artifacts")}
}

// ArtifactKey is the object key of an artifact of a run.
func ArtifactKey(runID, name string) string {
	return path.Join("runs", runID, name)
}

func (s *store) PutArtifact(ctx context.Context, runID, name, contentType string, data []byte) (*Artifact, error) {
	if runID == "" || name == "" {
		return nil, errors.InvalidParam("artifact needs a run id and a name")
	}
	if err := s.client.ready(); err != nil {
		return nil, err
	}
	key := ArtifactKey(runID, name)
	info, err := s.put(ctx, s.client.cfg.ArtifactBucket, key, contentType, data, map[string]string{"run-id": runID})
	if err != nil {
		return nil, err
	}
	s.logger.Debug("artifact stored", logging.RunID(runID), logging.String("key", key), logging.Int64("size", info.Size))
	return &Artifact{
		Key:         key,
		Name:        name,
		Size:        info.Size,
		ContentType: contentType,
		ETag:        info.ETag,
		UploadedAt:  time.Now(),
	}, nil
}

func (s *store) GetArtifact(ctx context.Context, runID, name string) ([]byte, error) {
	return s.get(ctx, s.client.cfg.ArtifactBucket, ArtifactKey(runID, name))
}

func (s *store) ListArtifacts(ctx context.Context, runID string) ([]Artifact, error) {
	if err := s.client.ready(); err != nil {
		return nil, err
	}
	prefix := ArtifactKey(runID, "") + "/"
	var out []Artifact
	for obj := range s.client.api.ListObjects(ctx, s.client.cfg.ArtifactBucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, errors.Wrap(obj.Err, errors.ErrCodeObjectStorage, "failed to list artifacts")
		}
		out = append(out, Artifact{
			Key:         obj.Key,
			Name:        strings.TrimPrefix(obj.Key, prefix),
			Size:        obj.Size,
			ContentType: obj.ContentType,
			ETag:        obj.ETag,
			UploadedAt:  obj.LastModified,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *store) DeleteArtifacts(ctx context.Context, runID string) error {
	list, err := s.ListArtifacts(ctx, runID)
	if err != nil {
		return err
	}
	for _, a := range list {
		if err := s.client.api.RemoveObject(ctx, s.client.cfg.ArtifactBucket, a.Key, minio.RemoveObjectOptions{}); err != nil {
			return errors.Wrapf(err, errors.ErrCodeObjectStorage, "failed to delete %s", a.Key)
		}
	}
	return nil
}

func (s *store) PutCase(ctx context.Context, name string, data []byte) error {
	if err := s.client.ready(); err != nil {
		return err
	}
	_, err := s.put(ctx, s.client.cfg.CaseBucket, name, "application/yaml", data, nil)
	return err
}

func (s *store) GetCase(ctx context.Context, name string) ([]byte, error) {
	return s.get(ctx, s.client.cfg.CaseBucket, name)
}

func (s *store) put(ctx context.Context, bucket, key, contentType string, data []byte, meta map[string]string) (minio.UploadInfo, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	info, err := s.client.api.PutObject(ctx, bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType:  contentType,
		UserMetadata: meta,
	})
	if err != nil {
		return minio.UploadInfo{}, errors.Wrapf(err, errors.ErrCodeObjectStorage, "upload of %s failed", key)
	}
	return info, nil
}

func (s *store) get(ctx context.Context, bucket, key string) ([]byte, error) {
	if err := s.client.ready(); err != nil {
		return nil, err
	}
	obj, err := s.client.api.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, s.readErr(err, key)
	}
	defer obj.Close()
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, s.readErr(err, key)
	}
	return data, nil
}

func (s *store) readErr(err error, key string) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return ErrObjectNotFound.WithDetail(key)
	}
	return errors.Wrapf(err, errors.ErrCodeObjectStorage, "download of %s failed", key)
}
