package backup

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patric-chuzhbe/flatapi/internal/recordstore"
)

type bucketStub struct {
	mu      sync.Mutex
	objects map[string]string
	failOn  string
}

func (b *bucketStub) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	key := aws.ToString(in.Key)
	if key == b.failOn {
		return nil, errors.New("access denied")
	}

	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.objects == nil {
		b.objects = map[string]string{}
	}
	b.objects[aws.ToString(in.Bucket)+"/"+key] = string(body)

	return &s3.PutObjectOutput{}, nil
}

func TestBackupUploadsEveryRecord(t *testing.T) {
	ctx := context.Background()
	db := recordstore.NewMemoryStore()
	require.NoError(t, db.Create(ctx, "users", "5551234567", map[string]string{"phone": "5551234567"}))
	require.NoError(t, db.Create(ctx, "checks", "abc", map[string]string{"id": "abc"}))
	require.NoError(t, db.Create(ctx, "checks", "def", map[string]string{"id": "def"}))

	bucket := &bucketStub{}
	b := New(db, bucket, "flat", "nightly")

	written, err := b.Backup(ctx)

	require.NoError(t, err)
	assert.Equal(t, 3, written)
	assert.JSONEq(t, `{"phone":"5551234567"}`, bucket.objects["flat/nightly/users/5551234567.json"])
	assert.JSONEq(t, `{"id":"abc"}`, bucket.objects["flat/nightly/checks/abc.json"])
	assert.Contains(t, bucket.objects, "flat/nightly/checks/def.json")
}

func TestBackupStopsOnUploadFailure(t *testing.T) {
	ctx := context.Background()
	db := recordstore.NewMemoryStore()
	require.NoError(t, db.Create(ctx, "users", "a", map[string]string{}))

	b := New(db, &bucketStub{failOn: "users/a.json"}, "flat", "")

	written, err := b.Backup(ctx)

	assert.Equal(t, 0, written)
	assert.ErrorContains(t, err, "access denied")
}

func TestNewS3RequiresBucket(t *testing.T) {
	_, err := NewS3(context.Background(), recordstore.NewMemoryStore(), Config{Region: "us-east-1"})

	assert.ErrorIs(t, err, ErrNotConfigured)
}
