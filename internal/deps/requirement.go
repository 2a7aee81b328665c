package deps

import "strings"

// Requirement is a package reference reduced to what the installed package
// cache can check: a normalized name and, for exact pins, a version.
type Requirement struct {
	Name    string
	Version string
}

// versionOperators are checked longest first so that "==" wins over "=".
var versionOperators = []string{"===", "==", ">=", "<=", "~=", "!=", "=", ">", "<"}

// ParseRequirement parses conda and pip style package specifiers such as
// "numpy==1.26", "numpy=1.26", "conda-forge::numpy" or "numpy>=1.2". Only
// exact pins keep their version; range operators reduce to a name check.
func ParseRequirement(pkg string) Requirement {
	pkg = strings.TrimSpace(ParseRef(pkg).Package)
	if _, after, found := strings.Cut(pkg, "::"); found {
		pkg = after
	}
	// Drop extras and environment markers: "pkg[extra]; python_version>'3'".
	if i := strings.IndexAny(pkg, ";"); i >= 0 {
		pkg = strings.TrimSpace(pkg[:i])
	}
	if i := strings.Index(pkg, "["); i >= 0 {
		if j := strings.Index(pkg[i:], "]"); j >= 0 {
			pkg = pkg[:i] + pkg[i+j+1:]
		}
	}

	for _, op := range versionOperators {
		i := strings.Index(pkg, op)
		if i < 0 {
			continue
		}
		name := NormalizeName(pkg[:i])
		switch op {
		case "==", "===", "=":
			version := strings.TrimSpace(pkg[i+len(op):])
			// Conda allows "pkg=1.2=build"; the build string is ignored.
			version, _, _ = strings.Cut(version, "=")
			return Requirement{Name: name, Version: strings.TrimSuffix(version, ".*")}
		default:
			return Requirement{Name: name}
		}
	}

	// Conda also accepts "pkg 1.2".
	if name, version, found := strings.Cut(pkg, " "); found {
		return Requirement{Name: NormalizeName(name), Version: strings.TrimSpace(version)}
	}
	return Requirement{Name: NormalizeName(pkg)}
}

// NormalizeName folds case and the interchangeable '-', '_' and '.'
// separators used by pip.
func NormalizeName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.NewReplacer("_", "-", ".", "-").Replace(name)
}

// SatisfiedBy reports whether an installed version satisfies the requirement.
// A requirement without version accepts any installed version; a pinned
// version also accepts installed versions that extend it ("1.2" matches
// "1.2.3").
func (r Requirement) SatisfiedBy(installedVersion string) bool {
	if r.Version == "" {
		return true
	}
	if installedVersion == r.Version {
		return true
	}
	return strings.HasPrefix(installedVersion, r.Version+".")
}
