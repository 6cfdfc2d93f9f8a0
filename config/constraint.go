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

package config

import (
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Constraint tokens with a fixed meaning.
const (
	Hidden   = "hidden"
	Optional = "optional"
	AutoFill = "auto_fill"

	// ValuePlaceholder is replaced by the field value in validator expressions.
	ValuePlaceholder = "{Value}"

	regexPrefix = "regex_matches("
)

// Constraints is the ordered list of constraint tokens of a binding. In YAML
// it is written either as a list or as one comma separated string.
type Constraints []string

// UnmarshalYAML accepts a scalar or a sequence of scalars.
func (c *Constraints) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*c = SplitTokens(node.Value)
		return nil
	case yaml.SequenceNode:
		var tokens []string
		if err := node.Decode(&tokens); err != nil {
			return err
		}
		*c = nil
		for _, token := range tokens {
			if token = strings.TrimSpace(token); token != "" {
				*c = append(*c, token)
			}
		}
		return nil
	}
	return errors.Errorf("line %d: constraint must be a string or a list", node.Line)
}

// Has reports whether token is one of the constraints.
func (c Constraints) Has(token string) bool {
	for _, t := range c {
		if t == token {
			return true
		}
	}
	return false
}

// Validator returns the first token that has to be evaluated against the
// field value: a regex_matches(...) call or an expression using {Value}.
func (c Constraints) Validator() (string, bool) {
	for _, t := range c {
		if IsValidator(t) {
			return t, true
		}
	}
	return "", false
}

// IsValidator reports whether token is evaluated against the field value.
func IsValidator(token string) bool {
	return RegexPattern(token) != "" || strings.Contains(token, ValuePlaceholder)
}

// RegexPattern returns the pattern of a regex_matches(<pattern>) token or the
// empty string. Surrounding quotes of the pattern are removed.
func RegexPattern(token string) string {
	token = strings.TrimSpace(token)
	if !strings.HasPrefix(token, regexPrefix) || !strings.HasSuffix(token, ")") {
		return ""
	}
	pattern := strings.TrimSpace(token[len(regexPrefix) : len(token)-1])
	if len(pattern) >= 2 {
		first, last := pattern[0], pattern[len(pattern)-1]
		if first == last && (first == '"' || first == '\'') {
			pattern = pattern[1 : len(pattern)-1]
		}
	}
	return pattern
}

// SplitTokens splits s at commas that are not inside parentheses or quotes.
func SplitTokens(s string) Constraints {
	var (
		tokens Constraints
		depth  int
		quote  rune
		start  int
	)
	add := func(token string) {
		if token = strings.TrimSpace(token); token != "" {
			tokens = append(tokens, token)
		}
	}
	for i, r := range s {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '"' || r == '\'':
			quote = r
		case r == '(':
			depth++
		case r == ')':
			if depth > 0 {
				depth--
			}
		case r == ',' && depth == 0:
			add(s[start:i])
			start = i + 1
		}
	}
	add(s[start:])
	return tokens
}
