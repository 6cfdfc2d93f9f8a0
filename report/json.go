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

package report

import (
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Layout selects how JSON rows are joined.
type Layout int

// JSON layouts.
const (
	// Lines writes one object per line.
	Lines Layout = iota
	// Array writes one array of objects.
	Array
)

// JSONReport writes rows as JSON objects with keys in insertion order.
type JSONReport struct {
	w      io.Writer
	closer io.Closer
	tag    string
	layout Layout

	pairs []string
	keys  map[string]int

	done bool
	rows int
	err  error
}

// NewJSON creates a JSON report writing to w. The closer, if not nil, is
// closed by Footer. A non empty tag is added to every object as "Report".
func NewJSON(w io.Writer, closer io.Closer, tag string, layout Layout) *JSONReport {
	return &JSONReport{w: w, closer: closer, tag: tag, layout: layout, keys: map[string]int{}}
}

// SetField does nothing, JSON objects carry their keys.
func (r *JSONReport) SetField(string) {}

func (r *JSONReport) put(name, value string) {
	pair := `"` + escape(name) + `":` + value
	if i, ok := r.keys[name]; ok {
		r.pairs[i] = pair
		return
	}
	r.keys[name] = len(r.pairs)
	r.pairs = append(r.pairs, pair)
}

// InsertStrVal sets a string value of the current object.
func (r *JSONReport) InsertStrVal(name, value string) {
	r.put(name, `"`+escape(value)+`"`)
}

// InsertIntVal sets an integer value of the current object.
func (r *JSONReport) InsertIntVal(name string, value int64) {
	r.put(name, strconv.FormatInt(value, 10))
}

// IsSomeValInRecord reports whether the current object has a value.
func (r *JSONReport) IsSomeValInRecord() bool {
	return len(r.pairs) > 0
}

func (r *JSONReport) write(s string) {
	if r.err == nil {
		_, r.err = io.WriteString(r.w, s)
	}
}

// CreateNewRow writes the current object if it has values and starts a new
// one.
func (r *JSONReport) CreateNewRow() error {
	if len(r.pairs) > 0 {
		pairs := r.pairs
		if r.tag != "" {
			pairs = append([]string{`"Report":"` + escape(r.tag) + `"`}, pairs...)
		}
		object := "{" + strings.Join(pairs, ",") + "}"

		switch {
		case r.layout == Lines:
			r.write(object + "\n")
		case r.rows == 0:
			r.write("[" + object)
		default:
			r.write(",\n" + object)
		}
		r.rows++
	}
	r.pairs = r.pairs[:0]
	clear(r.keys)
	return errors.Wrap(r.err, "write json")
}

// Rows returns the number of objects written.
func (r *JSONReport) Rows() int {
	return r.rows
}

// Footer writes the last object and closes the output.
func (r *JSONReport) Footer() error {
	if r.done {
		return nil
	}
	r.done = true
	if err := r.CreateNewRow(); err != nil {
		return err
	}
	if r.layout == Array {
		if r.rows == 0 {
			r.write("[")
		}
		r.write("]\n")
	}
	if r.err != nil {
		return errors.Wrap(r.err, "write json")
	}
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}
