package fixtures

import (
	"go/token"
	"path/filepath"
	"strings"
)

// TargetName derives a target name from a source file path: the base name
// without its extension. The same name keys the fixtures and names the
// callable inside the source unit.
func TargetName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// IsIdentifier reports whether name can serve as both a fixture key and a Go
// function name.
func IsIdentifier(name string) bool {
	return token.IsIdentifier(name) && !token.IsKeyword(name)
}
