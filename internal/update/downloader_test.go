package update

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/parley-irc/parley/internal/types"
)

func TestNewHTTPDownloader(t *testing.T) {
	downloader := NewHTTPDownloader()

	if downloader.client == nil {
		t.Error("HTTP client should not be nil")
	}
	if downloader.client.Timeout != DefaultDownloadTimeout {
		t.Errorf("Timeout = %v, want %v", downloader.client.Timeout, DefaultDownloadTimeout)
	}
}

func TestHTTPDownloaderDownload_Success(t *testing.T) {
	testContent := []byte(strings.Repeat("plugin payload ", 1000))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(testContent)
	}))
	defer server.Close()

	dstPath := filepath.Join(t.TempDir(), "plugin-foo-1.1.jar")

	var progress []float64
	err := NewHTTPDownloader().Download(context.Background(), server.URL, dstPath, func(p float64) {
		progress = append(progress, p)
	})
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}

	content, err := os.ReadFile(dstPath)
	if err != nil {
		t.Fatalf("Failed to read downloaded file: %v", err)
	}
	if string(content) != string(testContent) {
		t.Errorf("Content mismatch: got %d bytes, want %d", len(content), len(testContent))
	}

	if len(progress) < 2 || progress[0] != 0 || progress[len(progress)-1] != 100 {
		t.Errorf("progress = %v, want to start at 0 and end at 100", progress)
	}
	for i := 1; i < len(progress); i++ {
		if progress[i] <= progress[i-1] {
			t.Errorf("progress not increasing: %v", progress)
			break
		}
	}

	if _, err := os.Stat(dstPath + ".part"); !os.IsNotExist(err) {
		t.Error("partial file should be gone after a successful download")
	}
}

func TestHTTPDownloaderDownload_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	dstPath := filepath.Join(t.TempDir(), "test-binary")

	err := NewHTTPDownloader().Download(context.Background(), server.URL, dstPath, nil)
	if err == nil {
		t.Error("Expected error for 404 response")
	}

	if _, err := os.Stat(dstPath); !os.IsNotExist(err) {
		t.Error("File should not exist after failed download")
	}
}

func TestHTTPDownloaderDownload_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	server.Close()

	dstPath := filepath.Join(t.TempDir(), "test-binary")
	if err := NewHTTPDownloader().Download(context.Background(), server.URL, dstPath, nil); err == nil {
		t.Error("Expected error for closed server")
	}
}

func TestHTTPDownloaderDownload_Cancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("payload"))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	dstPath := filepath.Join(t.TempDir(), "test-binary")
	err := NewHTTPDownloader().Download(ctx, server.URL, dstPath, nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Download() error = %v, want context.Canceled", err)
	}
}

func TestHTTPDownloaderDownload_InvalidDestination(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("test"))
	}))
	defer server.Close()

	dst := filepath.Join(t.TempDir(), "missing", "dir", "file")
	if err := NewHTTPDownloader().Download(context.Background(), server.URL, dst, nil); err == nil {
		t.Error("Expected error for invalid destination path")
	}
}

func TestDownloadFileName(t *testing.T) {
	foo := newPlugin("plugin-foo", "1.0")
	tests := []struct {
		url  string
		want string
	}{
		{"https://example.com/plugin-foo.jar", "plugin-foo-1.1.jar"},
		{"https://example.com/builds/plugin-foo-1.1-nightly.tar.gz?token=x", "plugin-foo-1.1.tar.gz"},
		{"https://example.com/download", "plugin-foo-1.1"},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			r := UpdateAvailable(foo, "test", NewVersion("1.1"), "", tt.url)
			if got := downloadFileName(r); got != tt.want {
				t.Errorf("downloadFileName() = %q, want %q", got, tt.want)
			}
		})
	}
}

type retrievalRecorder struct {
	mu        sync.Mutex
	progress  []float64
	failed    int
	completed int
}

func (r *retrievalRecorder) RetrievalProgressChanged(_ Component, p float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = append(r.progress, p)
}

func (r *retrievalRecorder) RetrievalFailed(Component) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed++
}

func (r *retrievalRecorder) RetrievalCompleted(Component) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completed++
}

func TestDownloadStrategy(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.jar" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("jar bytes"))
	}))
	defer server.Close()

	dir := filepath.Join(t.TempDir(), "downloads")
	strategy := NewDownloadStrategy(dir, nil)
	recorder := &retrievalRecorder{}
	strategy.AddListener(recorder)

	foo := newPlugin("plugin-foo", "1.0")

	t.Run("rejects negative results", func(t *testing.T) {
		if strategy.CanHandle(NoUpdate(foo, "test")) {
			t.Error("CanHandle() accepted a negative result")
		}
		if strategy.CanHandle(UpdateAvailable(foo, "test", NewVersion("1.1"), "", "")) {
			t.Error("CanHandle() accepted a result without URL")
		}
		r := strategy.Retrieve(context.Background(), NoUpdate(foo, "test"))
		if r.Successful() {
			t.Error("Retrieve() of a negative result succeeded")
		}
	})

	t.Run("success", func(t *testing.T) {
		check := UpdateAvailable(foo, "test", NewVersion("1.1"), "", server.URL+"/plugin-foo.jar")
		if !strategy.CanHandle(check) {
			t.Fatal("CanHandle() = false")
		}
		r := strategy.Retrieve(context.Background(), check)
		file, ok := r.(*SingleFileResult)
		if !ok {
			t.Fatalf("Retrieve() = %T, want *SingleFileResult", r)
		}
		if file.Path != filepath.Join(dir, "plugin-foo-1.1.jar") {
			t.Errorf("Path = %s", file.Path)
		}
		data, err := os.ReadFile(file.Path)
		if err != nil || string(data) != "jar bytes" {
			t.Errorf("downloaded %q, %v", data, err)
		}
		if recorder.completed != 1 {
			t.Errorf("completed = %d, want 1", recorder.completed)
		}
	})

	t.Run("archive", func(t *testing.T) {
		client := newClient("1.0")
		check := UpdateAvailable(client, "test", NewVersion("2.0"), "", server.URL+"/parley-linux-amd64.tar.gz")
		r := strategy.Retrieve(context.Background(), check)
		archive, ok := r.(*ArchiveResult)
		if !ok {
			t.Fatalf("Retrieve() = %T, want *ArchiveResult", r)
		}
		if archive.Path != filepath.Join(dir, "client-2.0.tar.gz") {
			t.Errorf("Path = %s", archive.Path)
		}
		if r.Kind() != types.ResultArchive {
			t.Errorf("Kind() = %s", r.Kind())
		}
	})

	t.Run("failure", func(t *testing.T) {
		check := UpdateAvailable(foo, "test", NewVersion("1.2"), "", server.URL+"/missing.jar")
		r := strategy.Retrieve(context.Background(), check)
		failed, ok := r.(*FailedRetrieval)
		if !ok {
			t.Fatalf("Retrieve() = %T, want *FailedRetrieval", r)
		}
		if failed.Err == nil || r.Successful() {
			t.Error("failed retrieval should carry an error and report unsuccessful")
		}
		if recorder.failed != 1 {
			t.Errorf("failed = %d, want 1", recorder.failed)
		}
	})

	strategy.RemoveListener(recorder)
	check := UpdateAvailable(foo, "test", NewVersion("1.3"), "", server.URL+"/plugin-foo.jar")
	strategy.Retrieve(context.Background(), check)
	if recorder.completed != 2 {
		t.Errorf("removed listener notified: completed = %d", recorder.completed)
	}
}
