package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/specialistvlad/bioflow/internal/scheduler"
	"github.com/stretchr/testify/assert"
)

func TestPrinter_Plain(t *testing.T) {
	var buf bytes.Buffer
	p := newPrinter(&buf)

	p.plan([]string{"load", "align"})
	p.result("align", map[string]any{"reads": 10.0})

	assert.Equal(t, "Execution plan (2 tasks):\n   1. load\n   2. align\n  ✔ align {\"reads\":10}\n", buf.String())
}

func TestPrinter_Fatal(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		wantCode int
		wantOut  string
	}{
		{
			name:     "task error with traceback",
			err:      fmt.Errorf("run: %w", &scheduler.TaskError{TaskID: "align", Message: "boom", Traceback: "Traceback (most recent call last):"}),
			wantCode: 1,
			wantOut:  "✘ task 'align' failed: boom\nTraceback (most recent call last):\n",
		},
		{name: "plain error", err: errors.New("failed to load pipeline"), wantCode: 1, wantOut: "✘ failed to load pipeline\n"},
		{name: "canceled", err: fmt.Errorf("run: %w", context.Canceled), wantCode: 130, wantOut: "✘ canceled\n"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			err := newPrinter(&buf).fatal(tc.err)

			var exitErr *ExitError
			assert.True(t, errors.As(err, &exitErr))
			assert.Equal(t, tc.wantCode, exitErr.Code)
			assert.Equal(t, tc.wantOut, buf.String())
		})
	}
}
