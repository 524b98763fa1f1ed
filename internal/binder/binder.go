// Package binder loads an untrusted Go source unit into a fresh yaegi
// interpreter and resolves the function named after the file.
//
// Binding executes candidate code (package initialisation, and main if the
// unit declares one). It is meant to run inside the harness child process
// only; the orchestrator never binds candidates in its own process.
package binder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"reflect"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"mender/internal/fixtures"
	"mender/internal/logging"
)

var (
	// ErrLoad means the source unit could not be read, parsed or evaluated.
	ErrLoad = errors.New("load error")
	// ErrNotFound means no function named after the unit exists after loading.
	ErrNotFound = errors.New("callable not found")
)

// Callable is a resolved entry point bound to its own interpreter.
type Callable struct {
	Name string
	fn   reflect.Value
}

// Bind loads the unit at sourcePath and resolves the function whose name is
// the file's base name. Every call uses a new interpreter so definitions from
// one unit never leak into another.
func Bind(sourcePath string) (*Callable, error) {
	name := fixtures.TargetName(sourcePath)
	if !fixtures.IsIdentifier(name) {
		return nil, fmt.Errorf("%w: %q is not a valid function name", ErrNotFound, name)
	}

	src, err := os.ReadFile(sourcePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoad, err)
	}

	return BindSource(name, string(src))
}

// BindSource is Bind for source text already in memory.
func BindSource(name, src string) (c *Callable, err error) {
	// yaegi reports some compile failures as panics
	defer func() {
		if r := recover(); r != nil {
			c = nil
			err = fmt.Errorf("%w: panic while loading: %v", ErrLoad, r)
		}
	}()

	pkg, code := wrapCode(src)

	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("%w: failed to load stdlib: %v", ErrLoad, err)
	}

	if _, err := i.Eval(code); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoad, err)
	}

	v, err := i.Eval(pkg + "." + name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s.%s: %v", ErrNotFound, pkg, name, err)
	}
	if !v.IsValid() || v.Kind() != reflect.Func {
		return nil, fmt.Errorf("%w: %s.%s is not a function", ErrNotFound, pkg, name)
	}

	logging.BinderDebug("bound %s.%s (%s)", pkg, name, v.Type())
	return &Callable{Name: name, fn: v}, nil
}

// wrapCode returns the unit's package name and the code to evaluate, adding a
// package main clause when the unit has none.
func wrapCode(src string) (string, string) {
	if pkg := packageName(src); pkg != "" {
		return pkg, src
	}
	return "main", "package main\n\n" + src
}

// packageName returns the name in the unit's package clause, which must be
// the first top-level node after comments. Text that only looks like a
// clause, inside a comment or string, is ignored.
func packageName(src string) string {
	content := []byte(src)
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(golang.GetLanguage())

	tree, err := parser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return ""
	}
	defer tree.Close()

	root := tree.RootNode()
	for i := 0; i < int(root.NamedChildCount()); i++ {
		n := root.NamedChild(i)
		switch n.Type() {
		case "comment":
			continue
		case "package_clause":
			for j := 0; j < int(n.NamedChildCount()); j++ {
				if id := n.NamedChild(j); id.Type() == "package_identifier" {
					return id.Content(content)
				}
			}
		}
		return ""
	}
	return ""
}

// Signature returns the function type, for diagnostics.
func (c *Callable) Signature() string {
	return c.fn.Type().String()
}

// Call decodes args into the parameter types, invokes the function and
// returns its result. Panics raised by the candidate are returned as errors.
func (c *Callable) Call(args []json.RawMessage) (result any, err error) {
	in, err := c.decodeArgs(args)
	if err != nil {
		return nil, err
	}

	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = &PanicError{Value: r}
		}
	}()

	out := c.fn.Call(in)
	return collectResults(out)
}

func (c *Callable) decodeArgs(args []json.RawMessage) ([]reflect.Value, error) {
	ft := c.fn.Type()
	numIn := ft.NumIn()

	if ft.IsVariadic() {
		if len(args) < numIn-1 {
			return nil, &ArgumentError{Msg: fmt.Sprintf("%s takes at least %d arguments, got %d", c.Name, numIn-1, len(args))}
		}
	} else if len(args) != numIn {
		return nil, &ArgumentError{Msg: fmt.Sprintf("%s takes %d arguments, got %d", c.Name, numIn, len(args))}
	}

	in := make([]reflect.Value, len(args))
	for idx, a := range args {
		var pt reflect.Type
		if ft.IsVariadic() && idx >= numIn-1 {
			pt = ft.In(numIn - 1).Elem()
		} else {
			pt = ft.In(idx)
		}
		ptr := reflect.New(pt)
		if err := json.Unmarshal(a, ptr.Interface()); err != nil {
			return nil, &ArgumentError{Msg: fmt.Sprintf("argument %d: cannot decode %s into %s: %v", idx, string(a), pt, err)}
		}
		in[idx] = ptr.Elem()
	}
	return in, nil
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// collectResults maps Go return values onto a single comparable value:
// nothing -> nil, one value -> that value, (v, err) -> v or the error, and
// several values -> a slice of them.
func collectResults(out []reflect.Value) (any, error) {
	if n := len(out); n > 0 && out[n-1].Type() == errorType {
		if !out[n-1].IsNil() {
			return nil, out[n-1].Interface().(error)
		}
		out = out[:n-1]
	}

	switch len(out) {
	case 0:
		return nil, nil
	case 1:
		return out[0].Interface(), nil
	default:
		values := make([]any, len(out))
		for i, v := range out {
			values[i] = v.Interface()
		}
		return values, nil
	}
}

// PanicError wraps a value recovered from a panicking candidate.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// ArgumentError means fixture arguments do not fit the callable's signature.
type ArgumentError struct {
	Msg string
}

func (e *ArgumentError) Error() string {
	return e.Msg
}
