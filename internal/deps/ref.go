package deps

import "strings"

// platformSeparator splits a package reference from its platform list.
const platformSeparator = "|"

// Ref is a parsed package reference.
type Ref struct {
	// Package is the reference without its platform restriction, e.g.
	// "cellpose==3.0.8".
	Package string
	// Platforms lists the platforms the reference applies to. An empty list
	// means the reference applies everywhere.
	Platforms []Platform
}

// ParseRef splits a raw reference such as "pkg==1.0|win-64,linux-64".
func ParseRef(raw string) Ref {
	pkg, platforms, found := strings.Cut(raw, platformSeparator)
	ref := Ref{Package: strings.TrimSpace(pkg)}
	if !found {
		return ref
	}
	for _, p := range strings.Split(platforms, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			ref.Platforms = append(ref.Platforms, Platform(p))
		}
	}
	return ref
}

// Supports reports whether the reference applies to the given platform.
func (r Ref) Supports(p Platform) bool {
	if len(r.Platforms) == 0 {
		return true
	}
	for _, candidate := range r.Platforms {
		if candidate == p {
			return true
		}
	}
	return false
}
