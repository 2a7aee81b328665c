package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/specialistvlad/bioflow/internal/ctxlog"
	"github.com/specialistvlad/bioflow/internal/deps"
)

// Load reads every pipeline file matched by paths and merges them. A path
// is a file, a directory searched recursively for *.hcl files, or a
// doublestar pattern such as "pipelines/**/*.hcl".
func Load(ctx context.Context, paths ...string) (*Pipeline, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Pipeline loader started.", "path_count", len(paths))

	files, err := FindFiles(paths...)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no pipeline files found in %s", strings.Join(paths, ", "))
	}
	logger.Debug("Discovered pipeline files.", "count", len(files))

	p := newPipeline()
	parser := hclparse.NewParser()
	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse pipeline file %s: %w", file, diags)
		}

		var root fileRoot
		if diags := gohcl.DecodeBody(hclFile.Body, nil, &root); diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode pipeline file %s: %w", file, diags)
		}

		for _, b := range root.Environments {
			if err := p.addEnvironment(file, b); err != nil {
				return nil, err
			}
		}
		for _, b := range root.Tasks {
			if err := p.addTask(file, b); err != nil {
				return nil, err
			}
		}
		p.Files = append(p.Files, file)
	}

	if err := p.validate(); err != nil {
		return nil, err
	}
	logger.Debug("Pipeline loading complete.", "environments", len(p.Environments), "tasks", len(p.Tasks))
	return p, nil
}

// FindFiles expands paths into a sorted list of distinct .hcl files. Paths
// that match nothing are skipped.
func FindFiles(paths ...string) ([]string, error) {
	seen := make(map[string]struct{})
	var files []string
	add := func(f string) {
		if filepath.Ext(f) != ".hcl" {
			return
		}
		if abs, err := filepath.Abs(f); err == nil {
			f = abs
		}
		if _, ok := seen[f]; ok {
			return
		}
		seen[f] = struct{}{}
		files = append(files, f)
	}

	for _, path := range paths {
		pattern := path
		if info, err := os.Stat(path); err == nil {
			if !info.IsDir() {
				add(path)
				continue
			}
			pattern = filepath.Join(path, "**", "*.hcl")
		}
		matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("invalid pipeline path %s: %w", path, err)
		}
		for _, m := range matches {
			add(m)
		}
	}
	sort.Strings(files)
	return files, nil
}

func (p *Pipeline) addEnvironment(file string, b *environmentBlock) error {
	if prev, ok := p.Environments[b.Name]; ok {
		return fmt.Errorf("environment '%s' in %s is already declared in %s", b.Name, file, prev.File)
	}
	spec := &deps.Spec{
		Python:    b.Python,
		Conda:     b.Conda,
		Pip:       b.Pip,
		PipNoDeps: b.PipNoDeps,
	}
	if b.Optional != nil {
		spec.Optional = &deps.Spec{Conda: b.Optional.Conda, Pip: b.Optional.Pip, PipNoDeps: b.Optional.PipNoDeps}
	}

	env := &Environment{Name: b.Name, Spec: spec, File: file}
	for _, in := range b.Install {
		platform := deps.Platform(in.Platform)
		if env.Install == nil {
			env.Install = make(map[deps.Platform][]string)
		}
		env.Install[platform] = append(env.Install[platform], in.Commands...)
	}
	p.Environments[b.Name] = env
	return nil
}

func (p *Pipeline) addTask(file string, b *taskBlock) error {
	if prev, ok := p.byID[b.ID]; ok {
		return fmt.Errorf("task '%s' in %s is already declared in %s", b.ID, file, prev.File)
	}
	refs, err := references(b.Args)
	if err != nil {
		return fmt.Errorf("task '%s' in %s: %w", b.ID, file, err)
	}
	t := &Task{
		ID:          b.ID,
		Environment: b.Environment,
		Module:      b.Module,
		Function:    b.Function,
		DependsOn:   appendMissing(b.DependsOn, refs...),
		Participate: b.Participate == nil || *b.Participate,
		File:        file,
		refs:        refs,
		argsExpr:    b.Args,
	}
	// Args without references are evaluated once, here.
	if len(refs) == 0 {
		if t.Args, err = evaluateArgs(b.Args, nil); err != nil {
			return fmt.Errorf("task '%s' in %s: %w", b.ID, file, err)
		}
	}
	p.Tasks = append(p.Tasks, t)
	p.byID[t.ID] = t
	return nil
}

// validate checks the references between blocks once every file is merged.
func (p *Pipeline) validate() error {
	for _, t := range p.Tasks {
		if t.Environment != "" {
			if _, ok := p.Environments[t.Environment]; !ok {
				return fmt.Errorf("task '%s' uses unknown environment '%s'", t.ID, t.Environment)
			}
		}
		for _, up := range t.DependsOn {
			if _, ok := p.byID[up]; !ok {
				return fmt.Errorf("task '%s' depends on unknown task '%s'", t.ID, up)
			}
		}
	}
	return nil
}

func appendMissing(dst []string, values ...string) []string {
	for _, v := range values {
		if !slices.Contains(dst, v) {
			dst = append(dst, v)
		}
	}
	return dst
}
