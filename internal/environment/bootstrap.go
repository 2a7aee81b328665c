package environment

import (
	"archive/tar"
	"bufio"
	"bytes"
	"compress/bzip2"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"

	"github.com/cenkalti/backoff/v4"
	"github.com/specialistvlad/bioflow/internal/ctxlog"
)

// maxBootstrapAttempts bounds the download retries.
const maxBootstrapAttempts = 4

// Bootstrap installs the package-manager binary if it is missing.
func (r *Registry) Bootstrap(ctx context.Context) error {
	r.bootstrapMu.Lock()
	defer r.bootstrapMu.Unlock()

	target := r.cfg.ManagerPath()
	if _, err := os.Stat(target); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to check package manager: %w", err)
	}

	url := fmt.Sprintf(r.cfg.BootstrapURL, r.cfg.Platform)
	logger := ctxlog.FromContext(ctx).With("url", url)
	logger.Info("Downloading package manager.")

	var archive []byte
	attempt := 0
	op := func() error {
		attempt++
		data, err := r.download(ctx, url)
		if err != nil {
			logger.Warn("Package manager download failed.", "attempt", attempt, "error", err)
			return err
		}
		archive = data
		return nil
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(r.backOff(), maxBootstrapAttempts-1), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return fmt.Errorf("failed to download package manager from %s: %w", url, err)
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(target), err)
	}
	if err := extractBinary(archive, filepath.Base(target), target); err != nil {
		return err
	}
	logger.Info("Package manager installed.", "path", target)
	return nil
}

func (r *Registry) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("server returned %s", resp.Status)
	default:
		return nil, backoff.Permanent(fmt.Errorf("server returned %s", resp.Status))
	}
	return io.ReadAll(resp.Body)
}

// extractBinary copies the first tar member named name (at any depth) to
// target and marks it executable. The archive may be bzip2 or gzip
// compressed.
func extractBinary(archive []byte, name, target string) error {
	br := bufio.NewReader(bytes.NewReader(archive))
	magic, _ := br.Peek(3)

	var stream io.Reader
	switch {
	case bytes.HasPrefix(magic, []byte("BZh")):
		stream = bzip2.NewReader(br)
	case bytes.HasPrefix(magic, []byte{0x1f, 0x8b}):
		gz, err := gzip.NewReader(br)
		if err != nil {
			return fmt.Errorf("failed to open package manager archive: %w", err)
		}
		defer gz.Close()
		stream = gz
	default:
		return errors.New("package manager archive is neither bzip2 nor gzip")
	}

	tr := tar.NewReader(stream)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return fmt.Errorf("package manager archive has no %s", name)
		}
		if err != nil {
			return fmt.Errorf("failed to read package manager archive: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg || path.Base(hdr.Name) != name {
			continue
		}

		tmp := target + ".part"
		f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o755)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", tmp, err)
		}
		if _, err := io.Copy(f, tr); err != nil {
			f.Close()
			os.Remove(tmp)
			return fmt.Errorf("failed to extract %s: %w", name, err)
		}
		if err := f.Close(); err != nil {
			os.Remove(tmp)
			return err
		}
		return os.Rename(tmp, target)
	}
}
