package deps

import (
	"fmt"
	"strings"
)

// Spec is a dependency descriptor as found in tool and pipeline definitions.
type Spec struct {
	Python    string   `json:"python,omitempty" yaml:"python,omitempty"`
	Conda     []string `json:"conda,omitempty" yaml:"conda,omitempty"`
	Pip       []string `json:"pip,omitempty" yaml:"pip,omitempty"`
	PipNoDeps []string `json:"pip_no_deps,omitempty" yaml:"pip_no_deps,omitempty"`
	Optional  *Spec    `json:"optional,omitempty" yaml:"optional,omitempty"`
}

// Empty reports whether the descriptor declares no packages at all.
func (s *Spec) Empty() bool {
	if s == nil {
		return true
	}
	return len(s.Conda) == 0 && len(s.Pip) == 0 && len(s.PipNoDeps) == 0 && s.Optional.Empty()
}

// Resolved holds the package lists that apply to one platform, with
// platform suffixes removed.
type Resolved struct {
	Python    string
	Conda     []string
	Pip       []string
	PipNoDeps []string
}

// Empty reports whether nothing needs to be installed.
func (r Resolved) Empty() bool {
	return len(r.Conda) == 0 && len(r.Pip) == 0 && len(r.PipNoDeps) == 0
}

// All returns every resolved package, conda first.
func (r Resolved) All() []string {
	all := make([]string, 0, len(r.Conda)+len(r.Pip)+len(r.PipNoDeps))
	all = append(all, r.Conda...)
	all = append(all, r.Pip...)
	all = append(all, r.PipNoDeps...)
	return all
}

// ResolveOptions tunes Resolve.
type ResolveOptions struct {
	// IncludeOptional merges the supported optional references after the
	// required ones.
	IncludeOptional bool
	// Lenient drops unsupported required references instead of failing.
	Lenient bool
}

// DefaultResolveOptions fails on unsupported required references and keeps
// supported optional ones.
var DefaultResolveOptions = ResolveOptions{IncludeOptional: true}

// IncompatibilityError is returned when required references do not support
// the current platform.
type IncompatibilityError struct {
	Platform Platform
	Refs     []string
}

func (e *IncompatibilityError) Error() string {
	return fmt.Sprintf("dependencies not supported on %s: %s", e.Platform, strings.Join(e.Refs, ", "))
}

// Resolve filters spec for platform using DefaultResolveOptions.
func Resolve(spec *Spec, platform Platform) (Resolved, error) {
	return ResolveWithOptions(spec, platform, DefaultResolveOptions)
}

// ResolveWithOptions filters spec for platform.
func ResolveWithOptions(spec *Spec, platform Platform, opts ResolveOptions) (Resolved, error) {
	if spec == nil {
		return Resolved{}, nil
	}

	var unsupported []string
	required := func(refs []string) []string {
		kept, dropped := filter(refs, platform)
		if !opts.Lenient {
			unsupported = append(unsupported, dropped...)
		}
		return kept
	}

	res := Resolved{
		Python:    strings.TrimSpace(spec.Python),
		Conda:     required(spec.Conda),
		Pip:       required(spec.Pip),
		PipNoDeps: required(spec.PipNoDeps),
	}
	if len(unsupported) > 0 {
		return Resolved{}, &IncompatibilityError{Platform: platform, Refs: unsupported}
	}

	if opts.IncludeOptional && spec.Optional != nil {
		// Optional references are never fatal, whatever the options say.
		conda, _ := filter(spec.Optional.Conda, platform)
		pip, _ := filter(spec.Optional.Pip, platform)
		pipNoDeps, _ := filter(spec.Optional.PipNoDeps, platform)
		res.Conda = appendUnique(res.Conda, conda...)
		res.Pip = appendUnique(res.Pip, pip...)
		res.PipNoDeps = appendUnique(res.PipNoDeps, pipNoDeps...)
	}
	return res, nil
}

// filter splits refs into the packages that apply to platform and the raw
// references that do not.
func filter(refs []string, platform Platform) (kept, dropped []string) {
	for _, raw := range refs {
		ref := ParseRef(raw)
		if ref.Package == "" {
			continue
		}
		if ref.Supports(platform) {
			kept = append(kept, ref.Package)
		} else {
			dropped = append(dropped, raw)
		}
	}
	return kept, dropped
}

func appendUnique(dst []string, values ...string) []string {
	seen := make(map[string]struct{}, len(dst))
	for _, v := range dst {
		seen[v] = struct{}{}
	}
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		dst = append(dst, v)
	}
	return dst
}
