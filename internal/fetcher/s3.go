package fetcher

import (
	"context"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/census-consolidator/internal/resilience"
)

// S3Client is the subset of the S3 API used by S3Fetcher.
type S3Client interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Options configures an S3 client for a bucket that mirrors TIGER archives.
type S3Options struct {
	Region string
	// Endpoint overrides the S3 endpoint (MinIO, LocalStack). Path-style
	// addressing is used when set.
	Endpoint string
	Retry    resilience.Policy
}

// S3Fetcher downloads s3://bucket/key URLs.
type S3Fetcher struct {
	client S3Client
	retry  resilience.Policy
}

// NewS3Fetcher wraps an existing S3 client.
func NewS3Fetcher(client S3Client, retry resilience.Policy) *S3Fetcher {
	if retry.Name == "" {
		retry.Name = "s3.download"
	}
	return &S3Fetcher{client: client, retry: retry}
}

// NewS3FetcherFromConfig builds a client from the default AWS credential chain.
func NewS3FetcherFromConfig(ctx context.Context, opts S3Options) (*S3Fetcher, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, eris.Wrap(err, "s3: load aws config")
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewS3Fetcher(client, opts.Retry), nil
}

// parseS3URL splits s3://bucket/key/path into bucket and key.
func parseS3URL(rawURL string) (bucket, key string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", eris.Wrap(err, "parse s3 url")
	}
	if u.Scheme != "s3" {
		return "", "", eris.Errorf("expected s3 scheme, got %q", u.Scheme)
	}
	key = strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || key == "" {
		return "", "", eris.Errorf("s3 url %q needs a bucket and key", rawURL)
	}
	return u.Host, key, nil
}

// Download fetches the object body.
func (f *S3Fetcher) Download(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	bucket, key, err := parseS3URL(rawURL)
	if err != nil {
		return nil, err
	}

	var body io.ReadCloser
	err = resilience.Do(ctx, f.retry, func(ctx context.Context) error {
		out, err := f.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return eris.Wrapf(err, "s3: get s3://%s/%s", bucket, key)
		}
		body = out.Body
		return nil
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

// DownloadToFile writes the object to path. Returns bytes written.
func (f *S3Fetcher) DownloadToFile(ctx context.Context, rawURL string, path string) (int64, error) {
	body, err := f.Download(ctx, rawURL)
	if err != nil {
		return 0, err
	}
	defer body.Close() //nolint:errcheck

	n, err := copyToFile(body, path)
	if err != nil {
		return n, eris.Wrap(err, "s3: write object")
	}

	zap.L().Debug("s3: download complete", zap.String("url", rawURL), zap.Int64("bytes", n))
	return n, nil
}
