package containerd

import "strings"

const (
	defaultDomain = "docker.io"
	officialRepo  = "library"
)

// NormalizeRef expands a short image reference the way docker does:
// "ubuntu" becomes "docker.io/library/ubuntu:latest" and
// "org/img:1" becomes "docker.io/org/img:1".
// containerd stores images under fully qualified names only.
func NormalizeRef(ref string) string {
	name, suffix := splitSuffix(ref)

	first, _, hasSlash := strings.Cut(name, "/")
	switch {
	case !hasSlash:
		name = defaultDomain + "/" + officialRepo + "/" + name
	case !strings.ContainsAny(first, ".:") && first != "localhost":
		name = defaultDomain + "/" + name
	}

	if suffix == "" {
		suffix = ":latest"
	}
	return name + suffix
}

// splitSuffix separates the repository from its ":tag" or "@digest".
func splitSuffix(ref string) (string, string) {
	if i := strings.Index(ref, "@"); i >= 0 {
		return ref[:i], ref[i:]
	}
	// A colon after the last slash is a tag; before it, a registry port.
	if i := strings.LastIndex(ref, ":"); i > strings.LastIndex(ref, "/") {
		return ref[:i], ref[i:]
	}
	return ref, ""
}
