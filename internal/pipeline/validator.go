package pipeline

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/toolforge/api/internal/model"
)

// disallowedForms are syntax forms the assembled component must not use
var disallowedForms = []string{
	"eval(",
	"new Function",
	"dangerouslySetInnerHTML",
	"document.write",
	".innerHTML",
}

var jsKeywords = map[string]bool{
	"return": true, "if": true, "else": true, "for": true, "while": true,
	"switch": true, "case": true, "const": true, "let": true, "var": true,
	"function": true, "new": true, "typeof": true, "true": true, "false": true,
	"null": true, "undefined": true, "try": true, "catch": true, "throw": true,
	"do": true, "break": true, "continue": true, "default": true,
	"import": true, "export": true, "class": true, "this": true,
}

// jsxExpressionIdent matches the leading identifier of a JSX expression,
// e.g. {monthlyPayment} or {calculate(...)} or {total.toFixed(2)}.
var jsxExpressionIdent = regexp.MustCompile(`\{\s*([A-Za-z_$][A-Za-z0-9_$]*)`)

// inputTag matches an <input ...> opening tag for accessibility checks
var inputTag = regexp.MustCompile(`<input\b[^>]*>`)

var imgTag = regexp.MustCompile(`<img\b[^>]*>`)

// ValidateComponent statically checks an assembled unit against the fixed
// rule set: no undeclared identifiers, no disallowed syntax forms, required
// accessibility attributes present. It is deterministic and performs no
// external calls.
func ValidateComponent(code string) model.ValidationResult {
	var diags []model.Diagnostic

	errf := func(where, format string, args ...interface{}) {
		diags = append(diags, model.Diagnostic{
			Severity: "error",
			Message:  fmt.Sprintf(format, args...),
			Where:    where,
		})
	}

	if !strings.Contains(code, "export default") {
		errf("module", "component is not exported as default")
	}

	for _, form := range disallowedForms {
		if strings.Contains(code, form) {
			errf("syntax", "disallowed syntax form %q", form)
		}
	}

	for _, m := range jsxExpressionIdent.FindAllStringSubmatch(code, -1) {
		ident := m[1]
		if jsKeywords[ident] {
			continue
		}
		if !identifierDeclared(code, ident) {
			errf("identifiers", "identifier %q is referenced but never declared", ident)
		}
	}

	for _, tag := range inputTag.FindAllString(code, -1) {
		if !strings.Contains(tag, "aria-label") {
			errf("accessibility", "input element missing aria-label: %s", truncate(tag, 60))
		}
	}
	for _, tag := range imgTag.FindAllString(code, -1) {
		if !strings.Contains(tag, "alt=") {
			errf("accessibility", "img element missing alt text: %s", truncate(tag, 60))
		}
	}

	return model.ValidationResult{
		IsValid:     len(diags) == 0,
		Diagnostics: diags,
	}
}

// identifierDeclared reports whether ident has a declaration in code,
// covering const/let/var/function declarations and array destructuring
// (useState pairs).
func identifierDeclared(code, ident string) bool {
	decl := regexp.MustCompile(`(?:const|let|var|function)\s+` + regexp.QuoteMeta(ident) + `\b`)
	if decl.MatchString(code) {
		return true
	}
	destructured := regexp.MustCompile(`[\[,]\s*` + regexp.QuoteMeta(ident) + `\s*[\],]`)
	return destructured.MatchString(code)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
