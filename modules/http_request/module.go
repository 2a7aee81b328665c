// Package http_request lets tasks call HTTP services, e.g. to fetch inputs or
// notify a LIMS once results are ready.
package http_request

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/specialistvlad/bioflow/internal/ctxlog"
	"github.com/specialistvlad/bioflow/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct {
	// Client performs requests. Defaults to http.DefaultClient.
	Client *http.Client
}

func (m *Module) client() *http.Client {
	if m.Client == nil {
		return http.DefaultClient
	}
	return m.Client
}

// Get fetches args[0] and returns {status_code, body}.
func (m *Module) Get(ctx context.Context, args []any) (any, error) {
	url, err := registry.String(args, 0)
	if err != nil {
		return nil, err
	}
	return m.do(ctx, http.MethodGet, url, nil, nil)
}

// Request sends args[1] with method args[0]. args[2], when present, is the
// body and args[3] an object of headers.
func (m *Module) Request(ctx context.Context, args []any) (any, error) {
	method, err := registry.String(args, 0)
	if err != nil {
		return nil, err
	}
	url, err := registry.String(args, 1)
	if err != nil {
		return nil, err
	}
	var body io.Reader
	if len(args) > 2 && args[2] != nil {
		s, err := registry.String(args, 2)
		if err != nil {
			return nil, err
		}
		body = strings.NewReader(s)
	}
	var headers map[string]any
	if len(args) > 3 && args[3] != nil {
		if headers, err = registry.Map(args, 3); err != nil {
			return nil, err
		}
	}
	return m.do(ctx, strings.ToUpper(method), url, body, headers)
}

func (m *Module) do(ctx context.Context, method, url string, body io.Reader, headers map[string]any) (any, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Info("Making HTTP request", "method", method, "url", url)

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, fmt.Sprint(v))
	}

	resp, err := m.client().Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	logger.Info("Received HTTP response", "status", resp.Status)

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return map[string]any{
		"status_code": float64(resp.StatusCode),
		"body":        string(bodyBytes),
	}, nil
}

// Register registers the module's functions.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterFunction("http_request", "get", m.Get)
	r.RegisterFunction("http_request", "request", m.Request)
}
