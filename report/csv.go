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

// CSVReport writes rows as comma separated values. The header is written
// with the first row. Strings are quoted, integers are not and missing
// values stay empty.
type CSVReport struct {
	w      io.Writer
	closer io.Closer
	tag    string

	fields []string
	index  map[string]int
	values []string
	filled bool

	header bool
	done   bool
	rows   int
	err    error
}

// NewCSV creates a CSV report writing to w. The closer, if not nil, is
// closed by Footer. A non empty tag is prepended to every line as first
// column.
func NewCSV(w io.Writer, closer io.Closer, tag string) *CSVReport {
	return &CSVReport{w: w, closer: closer, tag: tag, index: map[string]int{}}
}

// SetField declares a column. Columns cannot be added after the header was
// written.
func (r *CSVReport) SetField(name string) {
	if _, ok := r.index[name]; ok || r.header {
		return
	}
	r.index[name] = len(r.fields)
	r.fields = append(r.fields, name)
	r.values = append(r.values, "")
}

func (r *CSVReport) set(name, value string) {
	if _, ok := r.index[name]; !ok {
		r.SetField(name)
	}
	if i, ok := r.index[name]; ok {
		r.values[i] = value
		r.filled = true
	}
}

func quoteCSV(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// InsertStrVal sets a string value of the current row.
func (r *CSVReport) InsertStrVal(name, value string) {
	r.set(name, quoteCSV(value))
}

// InsertIntVal sets an integer value of the current row.
func (r *CSVReport) InsertIntVal(name string, value int64) {
	r.set(name, strconv.FormatInt(value, 10))
}

// IsSomeValInRecord reports whether the current row has a value.
func (r *CSVReport) IsSomeValInRecord() bool {
	return r.filled
}

func (r *CSVReport) writeLine(cells []string) {
	if r.err != nil {
		return
	}
	line := strings.Join(cells, ",")
	if r.tag != "" {
		line = quoteCSV(r.tag) + "," + line
	}
	_, r.err = io.WriteString(r.w, line+"\n")
}

func (r *CSVReport) writeHeader() {
	if r.header {
		return
	}
	r.header = true
	names := make([]string, len(r.fields))
	for i, name := range r.fields {
		if strings.ContainsAny(name, ",\"\n") {
			name = quoteCSV(name)
		}
		names[i] = name
	}
	r.writeLine(names)
}

// CreateNewRow writes the current row if it has values and starts a new one.
func (r *CSVReport) CreateNewRow() error {
	if r.filled {
		r.writeHeader()
		r.writeLine(r.values)
		r.rows++
	}
	for i := range r.values {
		r.values[i] = ""
	}
	r.filled = false
	return errors.Wrap(r.err, "write csv")
}

// Rows returns the number of rows written.
func (r *CSVReport) Rows() int {
	return r.rows
}

// Footer writes the last row and closes the output.
func (r *CSVReport) Footer() error {
	if r.done {
		return nil
	}
	r.done = true
	if err := r.CreateNewRow(); err != nil {
		return err
	}
	r.writeHeader()
	if r.err != nil {
		return errors.Wrap(r.err, "write csv")
	}
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}
