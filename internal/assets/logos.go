// Package assets downloads coin logo images alongside the snapshot files.
package assets

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var allowedExtensions = map[string]struct{}{
	"png":  {},
	"jpg":  {},
	"jpeg": {},
	"svg":  {},
	"webp": {},
}

// Downloader fetches logo images into a local directory, one file per coin
// keyed by external id. Requests are rate limited so logo traffic never
// bursts against the image CDN.
type Downloader struct {
	dir     string
	client  *http.Client
	limiter *rate.Limiter
}

// New creates a downloader writing into dir.
func New(dir string) (*Downloader, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrap(err, "assets: create logo dir")
	}
	return &Downloader{
		dir:     dir,
		client:  &http.Client{Timeout: 15 * time.Second},
		limiter: rate.NewLimiter(rate.Every(500*time.Millisecond), 2),
	}, nil
}

// WithClient replaces the HTTP client, for tests.
func (d *Downloader) WithClient(c *http.Client) *Downloader {
	d.client = c
	return d
}

// Fetch downloads srcURL to <dir>/<externalID>.<ext> and returns the local
// path. An existing file is reused without a request. A missing or
// undownloadable logo is an absence signal, not an error: Fetch logs and
// returns false.
func (d *Downloader) Fetch(ctx context.Context, srcURL, externalID string) (string, bool) {
	if srcURL == "" || externalID == "" {
		return "", false
	}

	local := filepath.Join(d.dir, externalID+"."+extensionOf(srcURL))
	if _, err := os.Stat(local); err == nil {
		return local, true
	}

	if err := d.limiter.Wait(ctx); err != nil {
		return "", false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srcURL, nil)
	if err != nil {
		zap.L().Warn("assets: bad logo url", zap.String("url", srcURL), zap.Error(err))
		return "", false
	}
	resp, err := d.client.Do(req)
	if err != nil {
		zap.L().Warn("assets: logo download failed", zap.String("url", srcURL), zap.Error(err))
		return "", false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		zap.L().Warn("assets: logo not available",
			zap.String("url", srcURL),
			zap.Int("status", resp.StatusCode),
		)
		return "", false
	}

	f, err := os.Create(local)
	if err != nil {
		zap.L().Warn("assets: create logo file", zap.Error(err))
		return "", false
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(local)
		zap.L().Warn("assets: write logo file", zap.Error(err))
		return "", false
	}
	if err := f.Close(); err != nil {
		os.Remove(local)
		return "", false
	}

	zap.L().Debug("assets: logo saved", zap.String("path", local))
	return local, true
}

// Files lists the downloaded logo files.
func (d *Downloader) Files() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(d.dir, "*"))
	if err != nil {
		return nil, eris.Wrap(err, "assets: list logos")
	}
	return matches, nil
}

// extensionOf normalizes the source URL's image extension, defaulting to
// png for query-string-mangled or extensionless URLs.
func extensionOf(srcURL string) string {
	u, err := url.Parse(srcURL)
	if err != nil {
		return "png"
	}
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(u.Path), "."))
	if _, ok := allowedExtensions[ext]; ok {
		return ext
	}
	return "png"
}
