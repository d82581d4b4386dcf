package durable

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Add(ctx context.Context, files ...string) error {
	return m.Called(files).Error(0)
}

func (m *MockRepository) Remove(ctx context.Context, files ...string) error {
	return m.Called(files).Error(0)
}

func (m *MockRepository) Commit(ctx context.Context, message string) error {
	return m.Called(message).Error(0)
}

func (m *MockRepository) Push(ctx context.Context) error {
	return m.Called().Error(0)
}

func (m *MockRepository) RelativePath(path string) (string, error) {
	return filepath.ToSlash(path), nil
}

func TestGitLogCommitsAndPushes(t *testing.T) {
	repo := new(MockRepository)
	repo.On("Add", []string{"schedules/processed/a.json"}).Return(nil).Once()
	repo.On("Remove", []string{"schedules/a.json"}).Return(nil).Once()
	repo.On("Commit", "Processed schedule a.json").Return(nil).Once()
	repo.On("Push").Return(nil).Once()

	log := NewGitLog(repo, "", true, zap.NewNop())
	err := log.Commit(context.Background(), Change{
		Added:   []string{"schedules/processed/a.json"},
		Removed: []string{"schedules/a.json"},
		Message: "Processed schedule a.json",
	})

	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestGitLogPushFailureIsCommitError(t *testing.T) {
	repo := new(MockRepository)
	repo.On("Add", mock.Anything).Return(nil)
	repo.On("Remove", mock.Anything).Return(nil)
	repo.On("Commit", mock.Anything).Return(nil)
	repo.On("Push").Return(errors.New("rejected: non-fast-forward"))

	log := NewGitLog(repo, "", true, zap.NewNop())
	err := log.Commit(context.Background(), Change{Added: []string{"a.json"}, Message: "m"})

	var commitErr *CommitError
	require.ErrorAs(t, err, &commitErr)
	assert.Equal(t, BackendGit, commitErr.Backend)
	assert.Contains(t, err.Error(), "non-fast-forward")
}

func TestGitLogSkipsPushWhenDisabled(t *testing.T) {
	repo := new(MockRepository)
	repo.On("Add", mock.Anything).Return(nil)
	repo.On("Remove", mock.Anything).Return(nil)
	repo.On("Commit", mock.Anything).Return(nil)

	log := NewGitLog(repo, "", false, zap.NewNop())
	require.NoError(t, log.Commit(context.Background(), Change{Added: []string{"a.json"}}))

	repo.AssertNotCalled(t, "Push")
}

func TestGitLogIgnoresEmptyChange(t *testing.T) {
	repo := new(MockRepository)
	log := NewGitLog(repo, "", true, zap.NewNop())

	require.NoError(t, log.Commit(context.Background(), Change{Message: "nothing"}))
	repo.AssertNotCalled(t, "Commit", mock.Anything)
}

type fakeObjects struct {
	puts    map[string]string
	deletes []string
	putErr  error
}

func (f *fakeObjects) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	body, _ := io.ReadAll(params.Body)
	f.puts[*params.Key] = string(body)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeObjects) DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.deletes = append(f.deletes, *params.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3LogUploadsThenDeletes(t *testing.T) {
	root := t.TempDir()
	archived := filepath.Join(root, "schedules", "processed", "a.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(archived), 0755))
	require.NoError(t, os.WriteFile(archived, []byte(`{"status":"processed"}`), 0644))

	objects := &fakeObjects{puts: map[string]string{}}
	log := NewS3Log(objects, S3Config{Bucket: "posts", Prefix: "/ig/"}, root, zap.NewNop())

	err := log.Commit(context.Background(), Change{
		Added:   []string{"schedules/processed/a.json"},
		Removed: []string{"schedules/a.json"},
	})
	require.NoError(t, err)

	assert.Equal(t, `{"status":"processed"}`, objects.puts["ig/schedules/processed/a.json"])
	assert.Equal(t, []string{"ig/schedules/a.json"}, objects.deletes)
}

func TestS3LogKeepsPendingKeyWhenUploadFails(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.json"), []byte(`{}`), 0644))

	objects := &fakeObjects{puts: map[string]string{}, putErr: errors.New("access denied")}
	log := NewS3Log(objects, S3Config{Bucket: "posts"}, root, zap.NewNop())

	err := log.Commit(context.Background(), Change{Added: []string{"a.json"}, Removed: []string{"b.json"}})

	var commitErr *CommitError
	require.ErrorAs(t, err, &commitErr)
	assert.Equal(t, BackendS3, commitErr.Backend)
	assert.Empty(t, objects.deletes)
}

func TestLocalLogAcceptsEverything(t *testing.T) {
	assert.NoError(t, LocalLog{}.Commit(context.Background(), Change{Added: []string{"a.json"}}))
}
