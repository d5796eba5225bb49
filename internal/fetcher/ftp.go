package fetcher

import (
	"context"
	"errors"
	"io"
	"net"
	"net/textproto"
	"net/url"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/census-consolidator/internal/resilience"
)

// FTPOptions configures the FTP fetcher.
type FTPOptions struct {
	Timeout time.Duration
	// User and Password default to anonymous login.
	User     string
	Password string
	Retry    resilience.Policy
}

// FTPFetcher downloads files over FTP, e.g. from the legacy
// ftp2.census.gov TIGER mirror.
type FTPFetcher struct {
	opts FTPOptions
}

// NewFTPFetcher creates a new FTPFetcher with the given options.
func NewFTPFetcher(opts FTPOptions) *FTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.User == "" {
		opts.User = "anonymous"
		opts.Password = "anonymous@"
	}
	if opts.Retry.Name == "" {
		opts.Retry.Name = "ftp.download"
	}
	return &FTPFetcher{opts: opts}
}

// parseFTPURL extracts host:port and path from an FTP URL.
func parseFTPURL(rawURL string) (host string, path string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", eris.Wrap(err, "parse ftp url")
	}
	if u.Scheme != "ftp" {
		return "", "", eris.Errorf("expected ftp scheme, got %q", u.Scheme)
	}

	host = u.Host
	if _, _, splitErr := net.SplitHostPort(host); splitErr != nil {
		host = net.JoinHostPort(host, "21")
	}

	if u.Path == "" || u.Path == "/" {
		return "", "", eris.New("empty path in ftp url")
	}
	return host, u.Path, nil
}

// ftpBody closes the transfer and the control connection together.
type ftpBody struct {
	resp *ftp.Response
	conn *ftp.ServerConn
}

func (b *ftpBody) Read(p []byte) (int, error) {
	return b.resp.Read(p)
}

func (b *ftpBody) Close() error {
	respErr := b.resp.Close()
	quitErr := b.conn.Quit()
	if respErr != nil {
		return eris.Wrap(respErr, "close ftp transfer")
	}
	if quitErr != nil {
		return eris.Wrap(quitErr, "quit ftp connection")
	}
	return nil
}

// classifyFTPError marks 4xx FTP replies as transient.
func classifyFTPError(err error) error {
	var tpErr *textproto.Error
	if errors.As(err, &tpErr) && resilience.IsTransientFTPStatus(tpErr.Code) {
		return resilience.NewTransientError(err, tpErr.Code)
	}
	return err
}

func (f *FTPFetcher) open(ctx context.Context, ftpURL string) (*ftpBody, error) {
	host, path, err := parseFTPURL(ftpURL)
	if err != nil {
		return nil, err
	}

	zap.L().Debug("ftp: connecting", zap.String("host", host), zap.String("path", path))

	conn, err := ftp.Dial(host, ftp.DialWithTimeout(f.opts.Timeout), ftp.DialWithContext(ctx))
	if err != nil {
		return nil, eris.Wrap(classifyFTPError(err), "ftp dial")
	}

	if err := conn.Login(f.opts.User, f.opts.Password); err != nil {
		_ = conn.Quit()
		return nil, eris.Wrap(classifyFTPError(err), "ftp login")
	}

	resp, err := conn.Retr(path)
	if err != nil {
		_ = conn.Quit()
		return nil, eris.Wrap(classifyFTPError(err), "ftp retrieve")
	}

	return &ftpBody{resp: resp, conn: conn}, nil
}

// Download retrieves the file and returns a reader. Closing the reader
// releases the FTP connection.
func (f *FTPFetcher) Download(ctx context.Context, ftpURL string) (io.ReadCloser, error) {
	var body *ftpBody
	err := resilience.Do(ctx, f.opts.Retry, func(ctx context.Context) error {
		b, err := f.open(ctx, ftpURL)
		if err != nil {
			return err
		}
		body = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

// DownloadToFile downloads the FTP URL to a local file. Returns bytes written.
func (f *FTPFetcher) DownloadToFile(ctx context.Context, ftpURL string, path string) (int64, error) {
	var n int64
	err := resilience.Do(ctx, f.opts.Retry, func(ctx context.Context) error {
		body, err := f.open(ctx, ftpURL)
		if err != nil {
			return err
		}
		defer body.Close() //nolint:errcheck

		n, err = copyToFile(body, path)
		return err
	})
	return n, err
}
