// Package checker inspects a candidate Go source unit without executing it.
// All sub-checks are advisory; the harness verdict decides acceptance.
package checker

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"

	"mender/internal/logging"
)

// DefaultMaxLineLength is used when a non-positive limit is given.
const DefaultMaxLineLength = 120

// Check runs every static check over source. It never panics: a parse
// failure, or a failure of the checker itself, is reported in the syntax
// field with overall status error.
func Check(source string, maxLineLength int) (report Report) {
	if maxLineLength <= 0 {
		maxLineLength = DefaultMaxLineLength
	}
	report = newReport()

	defer func() {
		if r := recover(); r != nil {
			logging.CheckerWarn("static check aborted: %v", r)
			report = newReport()
			report.OverallStatus = StatusError
			report.Syntax = SyntaxCheck{
				Status:  StatusError,
				Message: "An unexpected error occurred during syntax checking.",
				Details: fmt.Sprint(r),
			}
		}
	}()

	content := []byte(source)
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(golang.GetLanguage())

	tree, err := parser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		report.OverallStatus = StatusError
		report.Syntax = SyntaxCheck{
			Status:  StatusError,
			Message: "An unexpected error occurred during syntax checking.",
			Details: err.Error(),
		}
		return report
	}
	defer tree.Close()
	root := tree.RootNode()

	if root.HasError() {
		report.OverallStatus = StatusError
		report.Syntax = syntaxError(root, content)
		return report
	}

	report.LineLength.Issues = checkLineLength(source, maxLineLength)
	report.BareRecover.Issues = checkBareRecover(root, content)
	report.UnusedImports.Issues = checkUnusedImports(root, content)

	for _, c := range []*IssueCheck{&report.LineLength, &report.BareRecover, &report.UnusedImports} {
		if len(c.Issues) > 0 {
			c.Status = StatusWarning
			report.OverallStatus = StatusWarning
		}
	}

	logging.CheckerDebug("static check: %s (%d issues)", report.OverallStatus, report.IssueCount())
	return report
}

// syntaxError locates the first ERROR or missing node in document order.
func syntaxError(root *sitter.Node, content []byte) SyntaxCheck {
	check := SyntaxCheck{
		Status:  StatusError,
		Message: "Syntax Error",
		Details: "invalid syntax",
		Line:    int(root.StartPoint().Row) + 1,
		Column:  int(root.StartPoint().Column) + 1,
	}

	var bad *sitter.Node
	walk(root, func(n *sitter.Node) bool {
		if bad != nil {
			return false
		}
		if n.IsMissing() || n.Type() == "ERROR" {
			bad = n
			return false
		}
		return n.HasError()
	})
	if bad == nil {
		return check
	}

	check.Line = int(bad.StartPoint().Row) + 1
	check.Column = int(bad.StartPoint().Column) + 1
	if bad.IsMissing() {
		check.Details = fmt.Sprintf("missing %s", bad.Type())
	} else {
		snippet := strings.TrimSpace(bad.Content(content))
		if len(snippet) > 40 {
			snippet = snippet[:40] + "..."
		}
		check.Details = fmt.Sprintf("unexpected %q", snippet)
	}
	return check
}

// checkLineLength reports physical lines longer than max runes.
func checkLineLength(source string, max int) []string {
	issues := []string{}
	for i, line := range strings.Split(source, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if n := utf8.RuneCountInString(line); n > max {
			issues = append(issues, fmt.Sprintf("Line %d exceeds max length of %d chars (%d chars).", i+1, max, n))
		}
	}
	return issues
}

// checkBareRecover flags recover() calls whose value is thrown away: the
// panic is swallowed without inspecting what was recovered.
func checkBareRecover(root *sitter.Node, content []byte) []string {
	issues := []string{}
	walk(root, func(n *sitter.Node) bool {
		if n.Type() != "call_expression" || !isRecoverCall(n, content) {
			return true
		}
		if discardsValue(n, content) {
			issues = append(issues, fmt.Sprintf("Bare 'recover()' found on line %d.", n.StartPoint().Row+1))
		}
		return true
	})
	return issues
}

func isRecoverCall(call *sitter.Node, content []byte) bool {
	fn := call.ChildByFieldName("function")
	if fn == nil || fn.Type() != "identifier" || fn.Content(content) != "recover" {
		return false
	}
	args := call.ChildByFieldName("arguments")
	return args == nil || args.NamedChildCount() == 0
}

func discardsValue(call *sitter.Node, content []byte) bool {
	parent := call.Parent()
	if parent == nil {
		return false
	}
	switch parent.Type() {
	case "expression_statement":
		return true
	case "expression_list":
		stmt := parent.Parent()
		if stmt == nil || stmt.Type() != "assignment_statement" {
			return false
		}
		left := stmt.ChildByFieldName("left")
		if left == nil {
			return false
		}
		for i := 0; i < int(left.NamedChildCount()); i++ {
			if left.NamedChild(i).Content(content) != "_" {
				return false
			}
		}
		return true
	}
	return false
}

// checkUnusedImports is a lexical heuristic: an import is used when its
// name shows up as any identifier or package qualifier outside the import
// and package clauses. Scope is ignored, so a shadowing local hides an unused
// import, and paths whose last segment is not the package name (".../v2",
// "go-foo") are reported even when used.
func checkUnusedImports(root *sitter.Node, content []byte) []string {
	type imported struct {
		name string
		line int
	}
	var imports []imported
	used := make(map[string]bool)

	walk(root, func(n *sitter.Node) bool {
		switch n.Type() {
		case "package_clause":
			return false
		case "import_declaration":
			walk(n, func(spec *sitter.Node) bool {
				if spec.Type() != "import_spec" {
					return true
				}
				if name := importName(spec, content); name != "" {
					imports = append(imports, imported{name: name, line: int(spec.StartPoint().Row) + 1})
				}
				return false
			})
			return false
		case "identifier", "package_identifier":
			used[n.Content(content)] = true
		}
		return true
	})

	sort.SliceStable(imports, func(i, j int) bool { return imports[i].line < imports[j].line })

	issues := []string{}
	seen := make(map[string]bool)
	for _, imp := range imports {
		if used[imp.name] || seen[imp.name] {
			continue
		}
		seen[imp.name] = true
		issues = append(issues, fmt.Sprintf("Imported '%s' appears to be unused. (line %d)", imp.name, imp.line))
	}
	return issues
}

// importName returns the name an import_spec binds, or "" for blank and dot
// imports.
func importName(spec *sitter.Node, content []byte) string {
	if alias := spec.ChildByFieldName("name"); alias != nil {
		switch alias.Type() {
		case "blank_identifier", "dot":
			return ""
		}
		name := alias.Content(content)
		if name == "_" || name == "." {
			return ""
		}
		return name
	}
	pathNode := spec.ChildByFieldName("path")
	if pathNode == nil {
		return ""
	}
	p := strings.Trim(pathNode.Content(content), "\"`")
	if p == "" {
		return ""
	}
	return path.Base(p)
}

// walk visits n and its descendants depth-first; visit returns false to
// skip a node's children.
func walk(n *sitter.Node, visit func(*sitter.Node) bool) {
	if n == nil || n.IsNull() {
		return
	}
	if !visit(n) {
		return
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		walk(n.Child(i), visit)
	}
}
