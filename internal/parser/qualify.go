package parser

import (
	"path/filepath"
	"strings"
)

// ModuleQN derives the qualified name of a file's module from its
// repo-relative path: "src/net/sock.c" -> "src.net.sock".
// Python package markers and JS index files collapse into their directory.
func ModuleQN(relPath string) string {
	p := strings.TrimSuffix(filepath.ToSlash(relPath), filepath.Ext(relPath))
	parts := strings.Split(p, "/")
	if n := len(parts); n > 0 {
		switch parts[n-1] {
		case "__init__", "index":
			parts = parts[:n-1]
		}
	}
	return strings.Join(parts, ".")
}

// JoinQN appends scope segments to a qualified name.
func JoinQN(base string, segments ...string) string {
	all := append([]string{base}, segments...)
	return strings.Join(all, ".")
}

// SimpleName returns the last dot-separated segment of a qualified or
// dotted name.
func SimpleName(qn string) string {
	if idx := strings.LastIndex(qn, "."); idx >= 0 {
		return qn[idx+1:]
	}
	return qn
}
