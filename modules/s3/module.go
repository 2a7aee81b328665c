package s3

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/specialistvlad/bioflow/internal/ctxlog"
	"github.com/specialistvlad/bioflow/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct {
	// Client performs uploads. Defaults to http.DefaultClient.
	Client *http.Client
}

func (m *Module) client() *http.Client {
	if m.Client == nil {
		return http.DefaultClient
	}
	return m.Client
}

// Upload PUTs the file at args[0] to the pre-signed URL args[1].
func (m *Module) Upload(ctx context.Context, args []any) (any, error) {
	sourcePath, err := registry.String(args, 0)
	if err != nil {
		return nil, err
	}
	uploadURL, err := registry.String(args, 1)
	if err != nil {
		return nil, err
	}
	logger := ctxlog.FromContext(ctx).With("action", "upload")

	file, err := os.Open(sourcePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open source file '%s': %w", sourcePath, err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to get file stats for '%s': %w", sourcePath, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, file)
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 upload request: %w", err)
	}

	contentType := mime.TypeByExtension(filepath.Ext(sourcePath))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", contentType)
	req.ContentLength = stat.Size()

	logger.Info("Uploading file to S3", "source", sourcePath, "size", stat.Size(), "contentType", contentType)

	resp, err := m.client().Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute S3 upload request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("S3 upload failed with status: %s", resp.Status)
	}

	logger.Info("Successfully uploaded file", "status", resp.Status)
	return map[string]any{
		"success": true,
		"status":  resp.Status,
	}, nil
}

// Register registers the module's functions.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterFunction("s3", "upload", m.Upload)
}
