package binder

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeUnit(t *testing.T, dir, name, src string) string {
	t.Helper()
	path := filepath.Join(dir, name+".go")
	require.NoError(t, os.WriteFile(path, []byte(src), 0644))
	return path
}

func args(vals ...string) []json.RawMessage {
	out := make([]json.RawMessage, len(vals))
	for i, v := range vals {
		out[i] = json.RawMessage(v)
	}
	return out
}

func TestBind_ResolvesFunctionNamedAfterFile(t *testing.T) {
	path := writeUnit(t, t.TempDir(), "add", `package main

func add(a, b int) int {
	return a + b
}
`)
	c, err := Bind(path)
	require.NoError(t, err)
	assert.Equal(t, "add", c.Name)
	assert.Equal(t, "func(int, int) int", c.Signature())

	got, err := c.Call(args("3", "5"))
	require.NoError(t, err)
	assert.EqualValues(t, 8, got)
}

func TestBind_WrapsUnitWithoutPackageClause(t *testing.T) {
	c, err := BindSource("gcd", `
func gcd(a, b int) int {
	if b == 0 {
		return a
	}
	return gcd(b, a%b)
}
`)
	require.NoError(t, err)
	got, err := c.Call(args("35", "21"))
	require.NoError(t, err)
	assert.EqualValues(t, 7, got)
}

func TestBind_PackageLookalikeInRawString(t *testing.T) {
	src := "func banner() string {\n\treturn `\npackage fake\n`\n}\n\nfunc greet() string { return banner() }\n"

	c, err := BindSource("greet", src)
	require.NoError(t, err)
	got, err := c.Call(nil)
	require.NoError(t, err)
	assert.Equal(t, "\npackage fake\n", got)
}

func TestPackageName(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"clause", "package main\n\nfunc f() {}\n", "main"},
		{"after line comment", "// Package gcd.\npackage gcd\n", "gcd"},
		{"lookalike in block comment", "/*\npackage fake\n*/\npackage real\n", "real"},
		{"lookalike in raw string", "func f() string { return `\npackage fake\n` }\n", ""},
		{"no clause", "func f() {}\n", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, packageName(tt.src))
		})
	}
}

func TestBind_LoadError(t *testing.T) {
	_, err := BindSource("broken", "package main\n\nfunc broken( {\n")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLoad), "got %v", err)
}

func TestBind_NotFound(t *testing.T) {
	_, err := BindSource("wanted", "package main\n\nfunc other() int { return 1 }\n")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound), "got %v", err)
}

func TestBind_NotAFunction(t *testing.T) {
	_, err := BindSource("limit", "package main\n\nvar limit = 3\n")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound), "got %v", err)
}

func TestBind_InvalidFileName(t *testing.T) {
	path := writeUnit(t, t.TempDir(), "not-an-ident", "package main\n")
	_, err := Bind(path)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestBind_UnitsAreIsolated(t *testing.T) {
	// Both units define helper(); each binding must see only its own.
	a, err := BindSource("first", `package main
func helper() int { return 1 }
func first() int { return helper() }
`)
	require.NoError(t, err)

	b, err := BindSource("second", `package main
func helper() int { return 2 }
func second() int { return helper() }
`)
	require.NoError(t, err)

	gotA, err := a.Call(nil)
	require.NoError(t, err)
	gotB, err := b.Call(nil)
	require.NoError(t, err)
	assert.EqualValues(t, 1, gotA)
	assert.EqualValues(t, 2, gotB)

	// A stale definition of "first" must not satisfy a unit that lacks it.
	_, err = BindSource("first", "package main\nfunc unrelated() {}\n")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestCall_SlicesAndVariadic(t *testing.T) {
	c, err := BindSource("sum", `package main
func sum(base int, xs ...int) int {
	for _, x := range xs {
		base += x
	}
	return base
}
`)
	require.NoError(t, err)
	got, err := c.Call(args("1", "2", "3"))
	require.NoError(t, err)
	assert.EqualValues(t, 6, got)

	rev, err := BindSource("reverse", `package main
func reverse(xs []int) []int {
	out := make([]int, 0, len(xs))
	for i := len(xs) - 1; i >= 0; i-- {
		out = append(out, xs[i])
	}
	return out
}
`)
	require.NoError(t, err)
	got, err = rev.Call(args("[1, 2, 3]"))
	require.NoError(t, err)
	assert.Equal(t, []int{3, 2, 1}, got)
}

func TestCall_PanicIsReturned(t *testing.T) {
	c, err := BindSource("explode", `package main
func explode(xs []int) int { return xs[10] }
`)
	require.NoError(t, err)
	_, err = c.Call(args("[1]"))
	var pe *PanicError
	assert.True(t, errors.As(err, &pe), "got %v", err)
}

func TestCall_ArgumentMismatch(t *testing.T) {
	c, err := BindSource("double", "package main\nfunc double(n int) int { return 2 * n }\n")
	require.NoError(t, err)

	var ae *ArgumentError
	_, err = c.Call(args("1", "2"))
	assert.True(t, errors.As(err, &ae))

	_, err = c.Call(args(`"text"`))
	assert.True(t, errors.As(err, &ae))
}

func TestCall_ErrorResult(t *testing.T) {
	c, err := BindSource("parse", `package main
import "strconv"
func parse(s string) (int, error) { return strconv.Atoi(s) }
`)
	require.NoError(t, err)

	got, err := c.Call(args(`"42"`))
	require.NoError(t, err)
	assert.EqualValues(t, 42, got)

	_, err = c.Call(args(`"x"`))
	assert.Error(t, err)
}
