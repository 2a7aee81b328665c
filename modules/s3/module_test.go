package s3

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpload(t *testing.T) {
	var body []byte
	var contentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		contentType = r.Header.Get("Content-Type")
		body, _ = io.ReadAll(r.Body)
	}))
	defer srv.Close()

	src := filepath.Join(t.TempDir(), "masks.json")
	require.NoError(t, os.WriteFile(src, []byte(`{"cells":3}`), 0o644))

	m := &Module{Client: srv.Client()}
	got, err := m.Upload(context.Background(), []any{src, srv.URL + "/bucket/masks.json"})
	require.NoError(t, err)
	assert.Equal(t, true, got.(map[string]any)["success"])
	assert.Equal(t, `{"cells":3}`, string(body))
	assert.Equal(t, "application/json", contentType)

	t.Run("server error", func(t *testing.T) {
		fail := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		}))
		defer fail.Close()
		_, err := m.Upload(context.Background(), []any{src, fail.URL})
		assert.ErrorContains(t, err, "403")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := m.Upload(context.Background(), []any{filepath.Join(t.TempDir(), "nope"), srv.URL})
		assert.ErrorContains(t, err, "failed to open source file")
	})
}
