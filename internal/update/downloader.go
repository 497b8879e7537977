package update

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/parley-irc/parley/internal/log"
)

// DefaultDownloadTimeout bounds a whole download.
const DefaultDownloadTimeout = 10 * time.Minute

// HTTPDownloader downloads update payloads over HTTP
type HTTPDownloader struct {
	client *http.Client
}

// NewHTTPDownloader creates a new HTTP downloader
func NewHTTPDownloader() *HTTPDownloader {
	return &HTTPDownloader{
		client: &http.Client{
			Timeout: DefaultDownloadTimeout,
		},
	}
}

// WithHTTPClient replaces the HTTP client.
func (d *HTTPDownloader) WithHTTPClient(client *http.Client) *HTTPDownloader {
	d.client = client
	return d
}

// Download streams src to dst, reporting progress as a percentage when the
// server announces a content length. A partial file is removed on failure.
func (d *HTTPDownloader) Download(ctx context.Context, src, dst string, progress func(percent float64)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download %s: %w", src, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to download %s: status %d", src, resp.StatusCode)
	}

	tmp := dst + ".part"
	out, err := os.OpenFile(tmp, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", tmp, err)
	}

	var body io.Reader = resp.Body
	if progress != nil {
		progress(0)
		body = &progressReader{r: resp.Body, total: resp.ContentLength, report: progress}
	}

	if _, err := io.Copy(out, body); err != nil {
		_ = out.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to write %s: %w", dst, err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to close %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to move download into place: %w", err)
	}

	if progress != nil {
		progress(100)
	}
	return nil
}

// progressReader reports whole-percent progress while reading.
type progressReader struct {
	r      io.Reader
	total  int64
	read   int64
	last   int
	report func(float64)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.read += int64(n)
	if p.total > 0 {
		pct := int(p.read * 100 / p.total)
		if pct > p.last && pct < 100 {
			p.last = pct
			p.report(float64(pct))
		}
	}
	return n, err
}

// DownloadStrategy retrieves positive check results by downloading their URL
// into a directory.
type DownloadStrategy struct {
	dir        string
	downloader Downloader
	listeners  listenerList[RetrievalListener]
	log        zerolog.Logger
}

// NewDownloadStrategy creates a strategy saving files under dir.
func NewDownloadStrategy(dir string, downloader Downloader) *DownloadStrategy {
	if downloader == nil {
		downloader = NewHTTPDownloader()
	}
	return &DownloadStrategy{
		dir:        dir,
		downloader: downloader,
		log:        log.WithComponent("retriever").With().Str("strategy", "download").Logger(),
	}
}

// CanHandle implements RetrievalStrategy.
func (s *DownloadStrategy) CanHandle(r CheckResult) bool {
	return r.Available && r.URL != "" && r.Component != nil
}

// Retrieve implements RetrievalStrategy.
func (s *DownloadStrategy) Retrieve(ctx context.Context, r CheckResult) RetrievalResult {
	if !s.CanHandle(r) {
		return &FailedRetrieval{Check: r, Err: ErrCannotHandle}
	}

	c := r.Component
	dst := filepath.Join(s.dir, downloadFileName(r))
	s.log.Info().Str("component", c.Name()).Str("url", r.URL).Str("path", dst).Msg("Downloading update")

	progress := func(percent float64) {
		s.listeners.each(func(l RetrievalListener) { l.RetrievalProgressChanged(c, percent) })
	}

	err := os.MkdirAll(s.dir, 0755)
	if err == nil {
		err = s.downloader.Download(ctx, r.URL, dst, progress)
	}
	if err != nil {
		s.log.Error().Err(err).Str("component", c.Name()).Msg("Download failed")
		s.listeners.each(func(l RetrievalListener) { l.RetrievalFailed(c) })
		return &FailedRetrieval{Check: r, Err: err}
	}

	s.listeners.each(func(l RetrievalListener) { l.RetrievalCompleted(c) })
	if IsArchive(dst) {
		return &ArchiveResult{Check: r, Path: dst}
	}
	return &SingleFileResult{Check: r, Path: dst}
}

// AddListener implements RetrievalStrategy.
func (s *DownloadStrategy) AddListener(l RetrievalListener) {
	s.listeners.add(l)
}

// RemoveListener implements RetrievalStrategy.
func (s *DownloadStrategy) RemoveListener(l RetrievalListener) {
	s.listeners.remove(l)
}

// downloadFileName names the local copy "<component>-<version><ext>", keeping
// the extension of the remote file.
func downloadFileName(r CheckResult) string {
	base := ""
	if u, err := url.Parse(r.URL); err == nil && u.Path != "" {
		base = path.Base(u.Path)
	}
	ext := ""
	for _, known := range []string{".tar.gz", ".tar.bz2", ".tar.xz", ".tgz"} {
		if strings.HasSuffix(base, known) {
			ext = known
			break
		}
	}
	if ext == "" {
		ext = path.Ext(base)
	}
	name := fmt.Sprintf("%s-%s%s", r.Component.Name(), r.Version, ext)
	return strings.Map(func(ch rune) rune {
		if ch == '/' || ch == '\\' || ch == os.PathSeparator {
			return '_'
		}
		return ch
	}, name)
}
