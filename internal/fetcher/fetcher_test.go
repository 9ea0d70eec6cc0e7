package fetcher

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubFetcher struct {
	name string
	urls []string
}

func (s *stubFetcher) Download(_ context.Context, url string) (io.ReadCloser, error) {
	s.urls = append(s.urls, url)
	return io.NopCloser(strings.NewReader(s.name)), nil
}

func (s *stubFetcher) DownloadToFile(_ context.Context, url string, path string) (int64, error) {
	s.urls = append(s.urls, url)
	return writeFile(path, strings.NewReader(s.name))
}

func TestRouter_DispatchesByScheme(t *testing.T) {
	httpF := &stubFetcher{name: "http"}
	ftpF := &stubFetcher{name: "ftp"}
	fileF := &stubFetcher{name: "file"}
	r := &Router{HTTP: httpF, FTP: ftpF, File: fileF}

	tests := []struct {
		url  string
		want string
	}{
		{"https://example.com/a.json", "http"},
		{"HTTP://example.com/a.json", "http"},
		{"ftp://ftp.example.com/a.zip", "ftp"},
		{"file:///tmp/a.json", "file"},
		{"./data/a.json", "file"},
	}
	for _, tt := range tests {
		rc, err := r.Download(context.Background(), tt.url)
		require.NoError(t, err, tt.url)
		data, _ := io.ReadAll(rc)
		assert.Equal(t, tt.want, string(data), tt.url)
	}
}

func TestRouter_UnsupportedScheme(t *testing.T) {
	r := &Router{File: FileFetcher{}}
	_, err := r.Download(context.Background(), "s3://bucket/key")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported scheme")

	_, err = r.Download(context.Background(), "https://example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no fetcher configured")
}

func TestRouter_DownloadToFile(t *testing.T) {
	ftpF := &stubFetcher{name: "zip bytes"}
	r := &Router{FTP: ftpF}
	path := filepath.Join(t.TempDir(), "out.zip")

	n, err := r.DownloadToFile(context.Background(), "ftp://host/x.zip", path)
	require.NoError(t, err)
	assert.Equal(t, int64(9), n)
	assert.Equal(t, []string{"ftp://host/x.zip"}, ftpF.urls)
}

func TestNewRouter(t *testing.T) {
	r := NewRouter(HTTPOptions{}, FTPOptions{})
	assert.NotNil(t, r.HTTP)
	assert.NotNil(t, r.FTP)
	assert.NotNil(t, r.File)
}

func TestFileFetcher(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "stats.json")
	require.NoError(t, os.WriteFile(src, []byte("[]"), 0o644))

	var ff FileFetcher
	for _, u := range []string{src, "file://" + src} {
		rc, err := ff.Download(context.Background(), u)
		require.NoError(t, err)
		data, _ := io.ReadAll(rc)
		rc.Close()
		assert.Equal(t, "[]", string(data))
	}

	dst := filepath.Join(dir, "copy.json")
	n, err := ff.DownloadToFile(context.Background(), src, dst)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, err = ff.Download(context.Background(), filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestLocalPath(t *testing.T) {
	p, err := LocalPath("file:///data/x.shp")
	require.NoError(t, err)
	assert.Equal(t, "/data/x.shp", p)

	p, err = LocalPath("relative/x.shp")
	require.NoError(t, err)
	assert.Equal(t, "relative/x.shp", p)

	_, err = LocalPath("file://")
	assert.Error(t, err)
}
