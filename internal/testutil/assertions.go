package testutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// AssertTaskRan checks captured text logs for the finish line of task id.
func AssertTaskRan(t *testing.T, logs, id string) {
	t.Helper()
	for _, line := range strings.Split(logs, "\n") {
		if strings.Contains(line, "Task finished") && strings.Contains(line, "task="+id+" ") {
			return
		}
		if strings.Contains(line, "Task finished") && strings.HasSuffix(line, "task="+id) {
			return
		}
	}
	require.Fail(t, "task did not run", "expected a finish line for task %q in logs", id)
}
