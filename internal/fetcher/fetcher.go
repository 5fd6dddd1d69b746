// Package fetcher retrieves input datasets and directory pages from local
// paths, HTTP(S) and FTP, and parses CSV, XLSX and ZIP payloads.
package fetcher

import (
	"context"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Fetcher downloads a remote resource.
type Fetcher interface {
	// Download fetches rawURL and returns the response body.
	Download(ctx context.Context, rawURL string) (io.ReadCloser, error)
}

// Opener resolves a dataset source (local path or URL) to a readable stream.
type Opener struct {
	HTTP Fetcher
	FTP  Fetcher
}

// NewOpener creates an Opener backed by the given fetchers. Either may be nil,
// in which case sources using that scheme are rejected.
func NewOpener(httpF, ftpF Fetcher) *Opener {
	return &Opener{HTTP: httpF, FTP: ftpF}
}

// IsRemote reports whether src is an http, https or ftp URL.
func IsRemote(src string) bool {
	u, err := url.Parse(src)
	if err != nil {
		return false
	}
	switch u.Scheme {
	case "http", "https", "ftp":
		return true
	}
	return false
}

// Ext returns the lowercase extension of src, ignoring any URL query.
func Ext(src string) string {
	if IsRemote(src) {
		u, _ := url.Parse(src)
		return strings.ToLower(path.Ext(u.Path))
	}
	return strings.ToLower(filepath.Ext(src))
}

// Open returns a reader for src. Local paths are opened directly.
func (o *Opener) Open(ctx context.Context, src string) (io.ReadCloser, error) {
	if !IsRemote(src) {
		f, err := os.Open(src)
		if err != nil {
			return nil, eris.Wrapf(err, "fetcher: open %s", src)
		}
		return f, nil
	}

	u, _ := url.Parse(src)
	var f Fetcher
	switch u.Scheme {
	case "ftp":
		f = o.FTP
	default:
		f = o.HTTP
	}
	if f == nil {
		return nil, eris.Errorf("fetcher: no fetcher configured for scheme %q", u.Scheme)
	}

	zap.L().Debug("fetcher: downloading", zap.String("url", src))
	rc, err := f.Download(ctx, src)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: download %s", src)
	}
	return rc, nil
}

// Materialize returns a local file path holding src. Remote sources are
// copied into dir under their base name; local paths are returned unchanged.
func (o *Opener) Materialize(ctx context.Context, src, dir string) (string, error) {
	if !IsRemote(src) {
		return src, nil
	}

	rc, err := o.Open(ctx, src)
	if err != nil {
		return "", err
	}
	defer rc.Close() //nolint:errcheck

	u, _ := url.Parse(src)
	name := path.Base(u.Path)
	if name == "" || name == "/" || name == "." {
		name = "download"
	}
	dest := filepath.Join(dir, name)

	out, err := os.Create(dest)
	if err != nil {
		return "", eris.Wrap(err, "fetcher: create local copy")
	}
	defer out.Close() //nolint:errcheck

	n, err := io.Copy(out, rc)
	if err != nil {
		return "", eris.Wrap(err, "fetcher: write local copy")
	}
	zap.L().Info("fetcher: downloaded dataset",
		zap.String("url", src),
		zap.String("path", dest),
		zap.Int64("bytes", n),
	)
	return dest, nil
}
