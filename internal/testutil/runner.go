package testutil

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// RunnerRule answers command batches whose text contains Match.
type RunnerRule struct {
	Match  string
	Output string
	Err    error
	// Do runs before the rule answers, e.g. to create files a real command
	// would have created.
	Do func(commands []string)
}

// FakeRunner is a launcher.CommandRunner that records every batch and
// answers from rules. Unmatched batches succeed with empty output.
type FakeRunner struct {
	mu    sync.Mutex
	rules []RunnerRule
	calls [][]string
	envs  [][]string
}

// NewFakeRunner creates a runner with the given rules. The first matching
// rule wins.
func NewFakeRunner(rules ...RunnerRule) *FakeRunner {
	return &FakeRunner{rules: rules}
}

// Run implements launcher.CommandRunner.
func (f *FakeRunner) Run(_ context.Context, commands []string, env []string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]string(nil), commands...))
	f.envs = append(f.envs, append([]string(nil), env...))
	rules := f.rules
	f.mu.Unlock()

	joined := strings.Join(commands, "\n")
	for _, rule := range rules {
		if !strings.Contains(joined, rule.Match) {
			continue
		}
		if rule.Do != nil {
			rule.Do(commands)
		}
		return rule.Output, rule.Err
	}
	return "", nil
}

// Calls returns every recorded batch.
func (f *FakeRunner) Calls() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]string(nil), f.calls...)
}

// Envs returns the environment passed with each batch.
func (f *FakeRunner) Envs() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]string(nil), f.envs...)
}

// CallsMatching counts batches containing substr.
func (f *FakeRunner) CallsMatching(substr string) int {
	n := 0
	for _, c := range f.Calls() {
		if strings.Contains(strings.Join(c, "\n"), substr) {
			n++
		}
	}
	return n
}

// CreatesEnvironments is a rule that leaves the conda-meta marker of every
// environment path ("-p <path>") named by a create command.
func CreatesEnvironments() RunnerRule {
	return RunnerRule{Match: " create ", Do: func(commands []string) {
		for _, c := range commands {
			if i := strings.Index(c, " -p "); i >= 0 {
				path := strings.Fields(c[i+4:])[0]
				os.MkdirAll(filepath.Join(path, "conda-meta"), 0o755)
			}
		}
	}}
}
