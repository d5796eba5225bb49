package fetcher

import (
	"errors"
	"net/textproto"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/census-consolidator/internal/resilience"
)

func TestParseFTPURL(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		wantHost string
		wantPath string
		wantErr  bool
	}{
		{
			name:     "census mirror",
			url:      "ftp://ftp2.census.gov/geo/tiger/TIGER2010/TABBLOCK/2010/tl_2010_06037_tabblock10.zip",
			wantHost: "ftp2.census.gov:21",
			wantPath: "/geo/tiger/TIGER2010/TABBLOCK/2010/tl_2010_06037_tabblock10.zip",
		},
		{
			name:     "explicit port",
			url:      "ftp://ftp.example.com:2121/data/file.zip",
			wantHost: "ftp.example.com:2121",
			wantPath: "/data/file.zip",
		},
		{
			name:    "http scheme rejected",
			url:     "http://example.com/file.zip",
			wantErr: true,
		},
		{
			name:    "empty path",
			url:     "ftp://ftp.example.com",
			wantErr: true,
		},
		{
			name:    "root path",
			url:     "ftp://ftp.example.com/",
			wantErr: true,
		},
		{
			name:    "invalid url",
			url:     "://bad",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host, path, err := parseFTPURL(tt.url)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantHost, host)
			assert.Equal(t, tt.wantPath, path)
		})
	}
}

func TestClassifyFTPError(t *testing.T) {
	busy := &textproto.Error{Code: 421, Msg: "too many connections"}
	assert.True(t, resilience.IsTransient(classifyFTPError(busy)))

	missing := &textproto.Error{Code: 550, Msg: "no such file"}
	assert.False(t, resilience.IsTransient(classifyFTPError(missing)))

	plain := errors.New("boom")
	assert.Equal(t, plain, classifyFTPError(plain))
}

func TestNewFTPFetcher_AnonymousDefaults(t *testing.T) {
	f := NewFTPFetcher(FTPOptions{})
	assert.Equal(t, "anonymous", f.opts.User)
	assert.Equal(t, "anonymous@", f.opts.Password)
	assert.NotZero(t, f.opts.Timeout)

	f = NewFTPFetcher(FTPOptions{User: "census", Password: "secret"})
	assert.Equal(t, "census", f.opts.User)
	assert.Equal(t, "secret", f.opts.Password)
}
