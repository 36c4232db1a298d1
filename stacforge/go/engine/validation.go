package engine

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"text/template/parse"

	"go.stacforge.org/infra/go/sflog"
)

// ValidationErrorType classifies the problems static validation can find.
type ValidationErrorType string

const (
	// SecurityError is reserved for execution-based validation, which can
	// trip the sandbox; static parsing never produces it.
	SecurityError        ValidationErrorType = "SecurityError"
	SyntaxError          ValidationErrorType = "SyntaxError"
	UndeclaredVariable   ValidationErrorType = "UndeclaredVariable"
	UnsupportedReference ValidationErrorType = "UnsupportedReference"
)

// ErrNotImplemented is returned when validation is asked to execute the
// template against a sample scene.
var ErrNotImplemented = errors.New("template execution is not yet supported")

// ValidationError is one problem found in a template.
type ValidationError struct {
	Type    ValidationErrorType `json:"type"`
	Message string              `json:"message"`
	// Line is 1-based, 0 when the location is unknown.
	Line int `json:"lineno,omitempty"`
}

// ValidateWithScene validates a template, optionally executing it against a
// sample scene. Execution is not supported yet; passing a non-empty sceneInfo
// returns ErrNotImplemented.
func (e *Environment) ValidateWithScene(source, sceneInfo string) (bool, []ValidationError, error) {
	if sceneInfo != "" {
		sflog.Warningf("Template execution is not yet supported")
		return false, nil, ErrNotImplemented
	}
	valid, errs := e.Validate(source)
	return valid, errs, nil
}

// syntaxErrRE extracts the line number from a template parse error, which has
// the form "template: name:LINE: message".
var syntaxErrRE = regexp.MustCompile(`:(\d+): (.*)$`)

// Validate statically checks template source without executing it: syntax
// errors, references to names that are neither installed functions nor the
// scene_info input, and references to other templates, which renders do not
// support.
func (e *Environment) Validate(source string) (bool, []ValidationError) {
	errs := []ValidationError{}

	trees := map[string]*parse.Tree{}
	t := parse.New("template")
	t.Mode = parse.SkipFuncCheck
	if _, err := t.Parse(source, "", "", trees); err != nil {
		msg := err.Error()
		line := 0
		if m := syntaxErrRE.FindStringSubmatch(msg); m != nil {
			line, _ = strconv.Atoi(m[1])
			msg = m[2]
		}
		typ := SyntaxError
		if strings.Contains(msg, "undefined variable") {
			typ = UndeclaredVariable
		}
		sflog.Warningf("Template error at line %d: %s", line, msg)
		errs = append(errs, ValidationError{
			Type:    typ,
			Message: msg,
			Line:    line,
		})
		return false, errs
	}

	known := map[string]bool{"scene_info": true}
	for name := range e.baseFuncs {
		known[name] = true
	}
	// The render-time functions are bound per template; list them by name.
	for name := range (&GeoTemplate{}).functions() {
		known[name] = true
	}

	for _, tree := range trees {
		walk(tree.Root, func(n parse.Node) {
			switch node := n.(type) {
			case *parse.IdentifierNode:
				if !known[node.Ident] {
					errs = append(errs, validationErrorAt(tree, source, n, UndeclaredVariable,
						"Found undeclared variable '"+node.Ident+"'"))
				}
			case *parse.FieldNode:
				if len(node.Ident) > 0 && !known[node.Ident[0]] {
					errs = append(errs, validationErrorAt(tree, source, n, UndeclaredVariable,
						"Found undeclared variable '"+node.Ident[0]+"'"))
				}
			case *parse.TemplateNode:
				errs = append(errs, validationErrorAt(tree, source, n, UnsupportedReference,
					"Found unsupported referenced template '"+node.Name+"'"))
			}
		})
	}

	if len(errs) == 0 {
		sflog.Infof("Template is valid")
		return true, errs
	}
	sflog.Warningf("Template is invalid: %d errors found", len(errs))
	return false, errs
}

func validationErrorAt(tree *parse.Tree, source string, n parse.Node, typ ValidationErrorType, msg string) ValidationError {
	line := lineOf(source, int(n.Position()))
	sflog.Warningf("%s at line %d", msg, line)
	return ValidationError{
		Type:    typ,
		Message: msg,
		Line:    line,
	}
}

// lineOf converts a byte offset in source to a 1-based line number.
func lineOf(source string, pos int) int {
	if pos > len(source) {
		pos = len(source)
	}
	return strings.Count(source[:pos], "\n") + 1
}

// walk visits every node of a parse tree.
func walk(n parse.Node, visit func(parse.Node)) {
	if n == nil {
		return
	}
	visit(n)
	switch node := n.(type) {
	case *parse.ListNode:
		for _, c := range node.Nodes {
			walk(c, visit)
		}
	case *parse.ActionNode:
		walk(node.Pipe, visit)
	case *parse.PipeNode:
		for _, cmd := range node.Cmds {
			walk(cmd, visit)
		}
	case *parse.CommandNode:
		for _, arg := range node.Args {
			walk(arg, visit)
		}
	case *parse.IfNode:
		walkBranch(&node.BranchNode, visit)
	case *parse.RangeNode:
		walkBranch(&node.BranchNode, visit)
	case *parse.WithNode:
		walkBranch(&node.BranchNode, visit)
	case *parse.TemplateNode:
		walk(node.Pipe, visit)
	}
}

func walkBranch(b *parse.BranchNode, visit func(parse.Node)) {
	walk(b.Pipe, visit)
	walk(b.List, visit)
	walk(b.ElseList, visit)
}
