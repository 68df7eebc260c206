package minio

import (
	"context"
	stderrors "errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/lifecycle"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/turtacn/ProcSynth/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ProcSynth/pkg/errors"
)

type MockObjectAPI struct {
	mock.Mock
}

func (m *MockObjectAPI) BucketExists(ctx context.Context, bucket string) (bool, error) {
	args := m.Called(ctx, bucket)
	return args.Bool(0), args.Error(1)
}

func (m *MockObjectAPI) MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error {
	return m.Called(ctx, bucket, opts).Error(0)
}

func (m *MockObjectAPI) SetBucketLifecycle(ctx context.Context, bucket string, cfg *lifecycle.Configuration) error {
	return m.Called(ctx, bucket, cfg).Error(0)
}

func (m *MockObjectAPI) PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	args := m.Called(ctx, bucket, key, r, size, opts)
	return args.Get(0).(minio.UploadInfo), args.Error(1)
}

func (m *MockObjectAPI) GetObject(ctx context.Context, bucket, key string, opts minio.GetObjectOptions) (io.ReadCloser, error) {
	args := m.Called(ctx, bucket, key, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.ReadCloser), args.Error(1)
}

func (m *MockObjectAPI) StatObject(ctx context.Context, bucket, key string, opts minio.StatObjectOptions) (minio.ObjectInfo, error) {
	args := m.Called(ctx, bucket, key, opts)
	return args.Get(0).(minio.ObjectInfo), args.Error(1)
}

func (m *MockObjectAPI) ListObjects(ctx context.Context, bucket string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo {
	args := m.Called(ctx, bucket, opts)
	return args.Get(0).(<-chan minio.ObjectInfo)
}

func (m *MockObjectAPI) RemoveObject(ctx context.Context, bucket, key string, opts minio.RemoveObjectOptions) error {
	return m.Called(ctx, bucket, key, opts).Error(0)
}

func objects(infos ...minio.ObjectInfo) <-chan minio.ObjectInfo {
	ch := make(chan minio.ObjectInfo, len(infos))
	for _, i := range infos {
		ch <- i
	}
	close(ch)
	return ch
}

type ArtifactStoreTestSuite struct {
	suite.Suite
	api    *MockObjectAPI
	client *Client
	store  ArtifactStore
}

func (s *ArtifactStoreTestSuite) SetupTest() {
	s.api = new(MockObjectAPI)
	s.client = NewClientWithAPI(s.api, Config{ArtifactExpiryDays: 30}, logging.NewNopLogger())
	s.store = NewArtifactStore(s.client, nil)
}

func (s *ArtifactStoreTestSuite) TearDownTest() {
	s.api.AssertExpectations(s.T())
}

func (s *ArtifactStoreTestSuite) TestEnsureBuckets_CreatesMissing() {
	s.api.On("BucketExists", mock.Anything, "procsynth-artifacts").Return(true, nil)
	s.api.On("BucketExists", mock.Anything, "procsynth-cases").Return(false, nil)
	s.api.On("MakeBucket", mock.Anything, "procsynth-cases", minio.MakeBucketOptions{Region: "us-east-1"}).Return(nil)
	s.api.On("SetBucketLifecycle", mock.Anything, "procsynth-artifacts", mock.MatchedBy(func(c *lifecycle.Configuration) bool {
		return len(c.Rules) == 1 && c.Rules[0].Expiration.Days == 30
	})).Return(nil)

	s.NoError(s.client.EnsureBuckets(context.Background()))
}

func (s *ArtifactStoreTestSuite) TestEnsureBuckets_Unreachable() {
	s.api.On("BucketExists", mock.Anything, "procsynth-artifacts").Return(false, stderrors.New("dial tcp: refused"))

	err := s.client.EnsureBuckets(context.Background())
	s.True(errors.IsCode(err, errors.ErrCodeObjectStorage))
}

func (s *ArtifactStoreTestSuite) TestPutArtifact() {
	s.api.On("PutObject", mock.Anything, "procsynth-artifacts", "runs/r1/model.lp", mock.Anything, int64(11),
		mock.MatchedBy(func(o minio.PutObjectOptions) bool {
			return o.ContentType == "text/plain" && o.UserMetadata["run-id"] == "r1"
		})).
		Return(minio.UploadInfo{Key: "runs/r1/model.lp", ETag: "abc", Size: 11}, nil)

	a, err := s.store.PutArtifact(context.Background(), "r1", "model.lp", "text/plain", []byte("Minimize\n x"))
	s.Require().NoError(err)
	s.Equal("runs/r1/model.lp", a.Key)
	s.Equal("abc", a.ETag)
	s.EqualValues(11, a.Size)
}

func (s *ArtifactStoreTestSuite) TestPutArtifact_RequiresRunAndName() {
	_, err := s.store.PutArtifact(context.Background(), "", "model.lp", "", nil)
	s.True(errors.IsCode(err, errors.CodeInvalidParam))
}

func (s *ArtifactStoreTestSuite) TestGetCase() {
	s.api.On("GetObject", mock.Anything, "procsynth-cases", "reactor.yaml", mock.Anything).
		Return(io.NopCloser(strings.NewReader("name: reactor\n")), nil)

	data, err := s.store.GetCase(context.Background(), "reactor.yaml")
	s.Require().NoError(err)
	s.Equal("name: reactor\n", string(data))
}

func (s *ArtifactStoreTestSuite) TestGetArtifact_NotFound() {
	s.api.On("GetObject", mock.Anything, "procsynth-artifacts", "runs/r1/result.json", mock.Anything).
		Return(nil, minio.ErrorResponse{Code: "NoSuchKey", Message: "missing"})

	_, err := s.store.GetArtifact(context.Background(), "r1", "result.json")
	s.True(errors.IsCode(err, errors.ErrCodeNotFound))
}

func (s *ArtifactStoreTestSuite) TestListAndDeleteArtifacts() {
	now := time.Now()
	s.api.On("ListObjects", mock.Anything, "procsynth-artifacts", minio.ListObjectsOptions{Prefix: "runs/r1/", Recursive: true}).
		Return(objects(
			minio.ObjectInfo{Key: "runs/r1/result.json", Size: 10, LastModified: now},
			minio.ObjectInfo{Key: "runs/r1/model.lp", Size: 20, LastModified: now},
		))
	s.api.On("RemoveObject", mock.Anything, "procsynth-artifacts", "runs/r1/model.lp", mock.Anything).Return(nil)
	s.api.On("RemoveObject", mock.Anything, "procsynth-artifacts", "runs/r1/result.json", mock.Anything).Return(nil)

	s.NoError(s.store.DeleteArtifacts(context.Background(), "r1"))
}

func (s *ArtifactStoreTestSuite) TestListArtifacts_SortedWithNames() {
	s.api.On("ListObjects", mock.Anything, "procsynth-artifacts", mock.Anything).
		Return(objects(
			minio.ObjectInfo{Key: "runs/r2/result.json"},
			minio.ObjectInfo{Key: "runs/r2/model.mps"},
		))

	list, err := s.store.ListArtifacts(context.Background(), "r2")
	s.Require().NoError(err)
	s.Require().Len(list, 2)
	s.Equal("model.mps", list[0].Name)
	s.Equal("result.json", list[1].Name)
}

func (s *ArtifactStoreTestSuite) TestClosedClient() {
	s.Require().NoError(s.client.Close())
	_, err := s.store.GetCase(context.Background(), "x.yaml")
	s.ErrorIs(err, ErrClientClosed)
}

func TestArtifactStoreTestSuite(t *testing.T) {
	suite.Run(t, new(ArtifactStoreTestSuite))
}
