// Copyright (c) 2021 Siemens AG
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of
// this software and associated documentation files (the "Software"), to deal in
// the Software without restriction, including without limitation the rights to
// use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies of
// the Software, and to permit persons to whom the Software is furnished to do so,
// subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY, FITNESS
// FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE AUTHORS OR
// COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
// IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
// CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
//
// Author(s): Jonas Plum

package engine

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/pkg/errors"

	"github.com/forensicanalysis/winsearch/config"
)

// valueVar holds the field value in expressions that use "{Value}" as a
// string literal.
const valueVar = "_value"

var regexps = newRegexpCache()

// Identifier returns the expression variable name of a report title.
// Characters other than letters, digits and underscores become underscores.
func Identifier(title string) string {
	var b strings.Builder
	for i, r := range title {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			if i == 0 {
				b.WriteRune('_')
			}
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

// Flags records for the current record which reports emitted a row. Every
// report is visible to expressions as a boolean variable named after its
// title.
type Flags struct {
	env map[string]interface{}
}

// NewFlags creates flags for the given report titles, all unset.
func NewFlags(titles []string) *Flags {
	f := &Flags{env: map[string]interface{}{valueVar: ""}}
	for _, title := range titles {
		f.env[Identifier(title)] = false
	}
	return f
}

// Reset clears all flags.
func (f *Flags) Reset() {
	for k, v := range f.env {
		if _, ok := v.(bool); ok {
			f.env[k] = false
		}
	}
}

// Set sets the flag of a report.
func (f *Flags) Set(title string, emitted bool) {
	f.env[Identifier(title)] = emitted
}

// Get returns the flag of a report.
func (f *Flags) Get(title string) bool {
	v, _ := f.env[Identifier(title)].(bool)
	return v
}

// A Validator decides whether a field value is accepted.
type Validator interface {
	Validate(value string, flags *Flags) (bool, error)
}

// NewValidator creates the validator of a constraint token, either a
// regex_matches(<pattern>) call on the field value or an expression using
// {Value}. A malformed pattern yields a validator that fails on every value,
// so only the reports using it are affected.
func NewValidator(constraint string) Validator {
	if strings.Contains(constraint, config.ValuePlaceholder) {
		return newExprValidator(constraint)
	}
	if pattern := config.RegexPattern(constraint); pattern != "" {
		re, err := regexps.compile(pattern)
		return &regexValidator{re: re, err: errors.Wrapf(err, "constraint %s", constraint)}
	}
	return newExprValidator(constraint)
}

type regexValidator struct {
	re  *regexp.Regexp
	err error
}

func (v *regexValidator) Validate(value string, _ *Flags) (bool, error) {
	if v.err != nil {
		return false, v.err
	}
	return v.re.MatchString(value), nil
}

// exprValidator evaluates a boolean expression. "{Value}" is replaced by the
// field value; as a quoted string literal it is bound to a variable instead
// so the program is compiled only once.
type exprValidator struct {
	source  string
	static  bool
	program *vm.Program
	err     error
}

func newExprValidator(source string) *exprValidator {
	quoted := `"` + config.ValuePlaceholder + `"`
	if strings.Count(source, config.ValuePlaceholder) == strings.Count(source, quoted) {
		return &exprValidator{source: strings.ReplaceAll(source, quoted, valueVar), static: true}
	}
	return &exprValidator{source: source}
}

func regexMatches(params ...interface{}) (interface{}, error) {
	re, err := regexps.compile(params[1].(string))
	if err != nil {
		return nil, err
	}
	return re.MatchString(params[0].(string)), nil
}

func compile(source string, env map[string]interface{}) (*vm.Program, error) {
	program, err := expr.Compile(source,
		expr.Env(env),
		expr.AsBool(),
		expr.Function("regex_matches", regexMatches, new(func(string, string) bool)),
	)
	return program, errors.Wrapf(err, "compile %q", source)
}

func (v *exprValidator) Validate(value string, flags *Flags) (bool, error) {
	program := v.program
	if v.static {
		if program == nil && v.err == nil {
			v.program, v.err = compile(v.source, flags.env)
			program = v.program
		}
		if v.err != nil {
			return false, v.err
		}
	} else {
		var err error
		program, err = compile(strings.ReplaceAll(v.source, config.ValuePlaceholder, value), flags.env)
		if err != nil {
			return false, err
		}
	}

	flags.env[valueVar] = value
	out, err := expr.Run(program, flags.env)
	if err != nil {
		return false, errors.Wrapf(err, "evaluate %q", v.source)
	}
	accepted, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("%q is not a boolean expression", v.source)
	}
	return accepted, nil
}

// Condition is the constraint of a report, an expression over the flags of
// the other reports.
type Condition struct {
	validator *exprValidator
}

// NewCondition creates the condition for a report constraint.
func NewCondition(source string) *Condition {
	return &Condition{validator: newExprValidator(source)}
}

// Eval evaluates the condition for the current record.
func (c *Condition) Eval(flags *Flags) (bool, error) {
	return c.validator.Validate("", flags)
}

// Check compiles the constraints of all reports in cfg. Expressions that
// substitute {Value} as text are only compiled per value and not checked.
func Check(cfg *config.ReportsCfg) error {
	titles := make([]string, len(cfg.Reports))
	for i, r := range cfg.Reports {
		titles[i] = r.Title
	}
	flags := NewFlags(titles)

	check := func(v Validator) error {
		switch v := v.(type) {
		case *regexValidator:
			return v.err
		case *exprValidator:
			if v.static {
				_, err := compile(v.source, flags.env)
				return err
			}
		}
		return nil
	}
	for _, r := range cfg.Reports {
		for _, col := range r.Columns {
			for _, binding := range []config.Column{col.Edb, col.Sql} {
				source, ok := binding.Constraint.Validator()
				if !ok {
					continue
				}
				if err := check(NewValidator(source)); err != nil {
					return errors.Wrapf(err, "%s: %s", r.Title, col.Title)
				}
			}
		}
		if r.Constraint != "" {
			if err := check(NewCondition(r.Constraint).validator); err != nil {
				return errors.Wrap(err, r.Title)
			}
		}
	}
	if _, err := unionColumns(cfg.Reports); err != nil {
		return err
	}
	_, err := evaluationOrder(cfg.Reports)
	return err
}
