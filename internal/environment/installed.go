package environment

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/specialistvlad/bioflow/internal/deps"
)

// installed is the package snapshot of one environment.
type installed struct {
	conda map[string]string
	pip   map[string]string
}

// satisfies reports whether every resolved dependency is present with a
// matching version. Pip requirements may also be met by conda packages.
func (in *installed) satisfies(res deps.Resolved) bool {
	if res.Python != "" {
		want := pythonRequirement(res.Python)
		if v, ok := in.conda["python"]; !ok || !want.SatisfiedBy(v) {
			return false
		}
	}
	for _, pkg := range res.Conda {
		req := deps.ParseRequirement(pkg)
		v, ok := in.conda[req.Name]
		if !ok || !req.SatisfiedBy(v) {
			return false
		}
	}
	for _, pkg := range append(append([]string(nil), res.Pip...), res.PipNoDeps...) {
		req := deps.ParseRequirement(pkg)
		v, ok := in.pip[req.Name]
		if !ok {
			v, ok = in.conda[req.Name]
		}
		if !ok || !req.SatisfiedBy(v) {
			return false
		}
	}
	return true
}

// pythonRequirement accepts a bare version ("3.10") or a specifier
// (">=3.9").
func pythonRequirement(spec string) deps.Requirement {
	if !strings.ContainsAny(spec[:1], "=<>!~") {
		spec = "==" + spec
	}
	return deps.ParseRequirement("python" + spec)
}

// DependenciesAreInstalled reports whether env already provides res. The
// package lists are fetched once per environment and cached until the next
// install into it.
func (r *Registry) DependenciesAreInstalled(ctx context.Context, env string, res deps.Resolved) (bool, error) {
	r.mu.Lock()
	snapshot, ok := r.installed[env]
	r.mu.Unlock()

	if !ok {
		var err error
		snapshot, err = r.loadInstalled(ctx, env)
		if err != nil {
			return false, err
		}
		r.mu.Lock()
		r.installed[env] = snapshot
		r.mu.Unlock()
	}
	return snapshot.satisfies(res), nil
}

func (r *Registry) loadInstalled(ctx context.Context, env string) (*installed, error) {
	proxy := r.proxyEnv(ctx)
	condaOut, err := r.runner.Run(ctx, r.manager.ListConda(env), proxy)
	if err != nil {
		return nil, fmt.Errorf("failed to list conda packages of %s: %w", env, err)
	}
	conda, err := parseCondaList(condaOut)
	if err != nil {
		return nil, fmt.Errorf("failed to list conda packages of %s: %w", env, err)
	}
	pipOut, err := r.runner.Run(ctx, r.manager.FreezePip(env), proxy)
	if err != nil {
		return nil, fmt.Errorf("failed to list pip packages of %s: %w", env, err)
	}
	return &installed{conda: conda, pip: parsePipFreeze(pipOut)}, nil
}

// parseCondaList reads `list --json` output. Text printed before the JSON
// array, such as warnings on the merged stream, is skipped.
func parseCondaList(out string) (map[string]string, error) {
	start := strings.Index(out, "[")
	if start < 0 {
		return nil, fmt.Errorf("no package list in output: %q", out)
	}
	var entries []struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	}
	if err := json.NewDecoder(strings.NewReader(out[start:])).Decode(&entries); err != nil {
		return nil, fmt.Errorf("failed to decode package list: %w", err)
	}
	pkgs := make(map[string]string, len(entries))
	for _, e := range entries {
		pkgs[deps.NormalizeName(e.Name)] = e.Version
	}
	return pkgs, nil
}

// parsePipFreeze reads `pip freeze` lines. Editable installs are skipped and
// direct references ("name @ url") are recorded without a version.
func parsePipFreeze(out string) map[string]string {
	pkgs := make(map[string]string)
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "-") {
			continue
		}
		if name, _, found := strings.Cut(line, " @ "); found {
			pkgs[deps.NormalizeName(name)] = ""
			continue
		}
		if name, version, found := strings.Cut(line, "=="); found {
			pkgs[deps.NormalizeName(name)] = strings.TrimSpace(version)
		}
	}
	return pkgs
}
