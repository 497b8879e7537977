package update

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/parley-irc/parley/internal/types"
)

// ClientBinaryName is the executable a client release archive carries.
const ClientBinaryName = "parley"

// ErrNotInArchive is returned when an archive holds no file with the wanted name.
var ErrNotInArchive = errors.New("file not found in archive")

// NewArchiveStrategy returns the strategy that unpacks the client executable
// from a release archive and hands it to the client's Install method.
func NewArchiveStrategy() *TypedStrategy {
	return NewTypedStrategy("archive", types.ComponentClient, types.ResultArchive, installFromArchive(ClientBinaryName))
}

func installFromArchive(binary string) InstallFunc {
	return func(_ context.Context, r RetrievalResult, progress func(float64)) error {
		archive, ok := r.(*ArchiveResult)
		if !ok {
			return fmt.Errorf("%w: %T is tagged %s", ErrCannotHandle, r, r.Kind())
		}
		progress(0)

		dir, err := os.MkdirTemp(filepath.Dir(archive.Path), "extract-")
		if err != nil {
			return fmt.Errorf("failed to create extraction directory: %w", err)
		}
		defer os.RemoveAll(dir)

		path, err := ExtractFile(archive.Path, binary, dir)
		if err != nil {
			return err
		}
		progress(50)

		c := archive.Check.Component
		if err := c.Install(path); err != nil {
			return fmt.Errorf("install %s from %s: %w", c.Name(), archive.Path, err)
		}
		progress(100)
		return nil
	}
}

// IsArchive reports whether name looks like an archive ExtractFile can read.
func IsArchive(name string) bool {
	lower := strings.ToLower(name)
	for _, ext := range []string{".tar.gz", ".tgz", ".zip"} {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// ExtractFile writes the first regular file in the archive at src whose base
// name is name into destDir and returns its path.
func ExtractFile(src, name, destDir string) (string, error) {
	if strings.HasSuffix(strings.ToLower(src), ".zip") {
		return extractZip(src, name, destDir)
	}

	f, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()
	return extractTarball(f, name, destDir)
}

func extractTarball(r io.Reader, name, destDir string) (string, error) {
	gzr, err := gzip.NewReader(r)
	if err != nil {
		return "", fmt.Errorf("create gzip reader: %w", err)
	}
	defer func() { _ = gzr.Close() }()

	tr := tar.NewReader(gzr)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			return "", fmt.Errorf("%s: %w", name, ErrNotInArchive)
		}
		if err != nil {
			return "", fmt.Errorf("read tar: %w", err)
		}
		if header.Typeflag != tar.TypeReg || filepath.Base(header.Name) != name {
			continue
		}
		return writeExtracted(tr, filepath.Join(destDir, name))
	}
}

func extractZip(src, name, destDir string) (string, error) {
	zr, err := zip.OpenReader(src)
	if err != nil {
		return "", fmt.Errorf("open zip: %w", err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if f.FileInfo().IsDir() || filepath.Base(f.Name) != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("read zip: %w", err)
		}
		defer rc.Close()
		return writeExtracted(rc, filepath.Join(destDir, name))
	}
	return "", fmt.Errorf("%s: %w", name, ErrNotInArchive)
}

func writeExtracted(r io.Reader, dst string) (string, error) {
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0755)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	if _, err := io.Copy(out, r); err != nil {
		_ = out.Close()
		return "", fmt.Errorf("extract file: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("extract file: %w", err)
	}
	return dst, nil
}
