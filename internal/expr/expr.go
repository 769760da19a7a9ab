// Package expr evaluates the arithmetic price formulas users edit for each product model.
//
// The language is deliberately small: numeric literals, variable references, the four
// arithmetic operators, unary sign and parentheses. It has no functions, assignments or
// loops, so evaluating a formula cannot have side effects and always terminates.
package expr

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Program is a compiled expression. It is immutable and safe for concurrent use.
type Program struct {
	source    string
	root      node
	variables []string
}

// Compile parses expression and reports syntax errors without evaluating it.
func Compile(expression string) (*Program, error) {
	if strings.TrimSpace(expression) == "" {
		return nil, &Error{Kind: ErrEvaluation, Message: "expression is empty"}
	}

	tokens, err := tokenize(expression)
	if err != nil {
		return nil, err
	}

	p := &parser{tokens: tokens, vars: make(map[string]struct{})}
	root, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, syntaxError(t.pos, "unexpected %s", t.describe())
	}

	names := make([]string, 0, len(p.vars))
	for name := range p.vars {
		names = append(names, name)
	}
	sort.Strings(names)

	return &Program{source: expression, root: root, variables: names}, nil
}

// Eval computes the program with the given bindings. vars is only read.
func (p *Program) Eval(vars map[string]float64) (float64, error) {
	result, err := p.root.eval(vars)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(result) || math.IsInf(result, 0) {
		return 0, &Error{
			Kind:    ErrNonFiniteResult,
			Message: fmt.Sprintf("result is not a finite number: %v", result),
		}
	}
	return result, nil
}

// Variables lists the identifiers referenced by the program, sorted.
func (p *Program) Variables() []string {
	out := make([]string, len(p.variables))
	copy(out, p.variables)
	return out
}

func (p *Program) String() string { return p.source }

// Evaluate compiles and evaluates expression in one step.
func Evaluate(expression string, vars map[string]float64) (float64, error) {
	program, err := Compile(expression)
	if err != nil {
		return 0, err
	}
	return program.Eval(vars)
}
