package fetcher

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/census-consolidator/internal/resilience"
)

type mockS3Client struct {
	mock.Mock
}

func (m *mockS3Client) GetObject(ctx context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	args := m.Called(ctx, params)
	if out := args.Get(0); out != nil {
		return out.(*s3.GetObjectOutput), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestParseS3URL(t *testing.T) {
	bucket, key, err := parseS3URL("s3://tiger-mirror/TABBLOCK/2010/tl_2010_06037_tabblock10.zip")
	require.NoError(t, err)
	assert.Equal(t, "tiger-mirror", bucket)
	assert.Equal(t, "TABBLOCK/2010/tl_2010_06037_tabblock10.zip", key)

	_, _, err = parseS3URL("s3://bucket-only")
	assert.Error(t, err)

	_, _, err = parseS3URL("https://bucket/key")
	assert.Error(t, err)
}

func TestS3DownloadToFile(t *testing.T) {
	client := new(mockS3Client)
	client.On("GetObject", mock.Anything, mock.MatchedBy(func(in *s3.GetObjectInput) bool {
		return *in.Bucket == "tiger-mirror" && *in.Key == "blocks/a.zip"
	})).Return(&s3.GetObjectOutput{
		Body: io.NopCloser(strings.NewReader("zip bytes")),
	}, nil).Once()

	f := NewS3Fetcher(client, resilience.NoRetry())
	path := filepath.Join(t.TempDir(), "a.zip")

	n, err := f.DownloadToFile(context.Background(), "s3://tiger-mirror/blocks/a.zip", path)
	require.NoError(t, err)
	assert.Equal(t, int64(9), n)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "zip bytes", string(data))
	client.AssertExpectations(t)
}

func TestS3DownloadError(t *testing.T) {
	client := new(mockS3Client)
	client.On("GetObject", mock.Anything, mock.Anything).Return(nil, errors.New("NoSuchKey")).Once()

	f := NewS3Fetcher(client, resilience.NoRetry())
	_, err := f.DownloadToFile(context.Background(), "s3://tiger-mirror/missing.zip", filepath.Join(t.TempDir(), "x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NoSuchKey")
	client.AssertExpectations(t)
}
