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

package reader

import (
	"encoding/hex"
	"iter"
	"log/slog"
	"strings"
	"time"

	"github.com/Velocidex/ordereddict"
	"github.com/pkg/errors"

	"github.com/forensicanalysis/winsearch/codec"
	"github.com/forensicanalysis/winsearch/config"
	"github.com/forensicanalysis/winsearch/esedb"
)

// EseTable is a table of an ESE database.
type EseTable interface {
	Name() string
	Columns() []esedb.Column
	Dump(fn func(row *ordereddict.Dict) error) error
}

var errStopped = errors.New("scan stopped")

// EseRecordReader reads the rows of an ESE table. Every row is one record.
type EseRecordReader struct {
	table EseTable
	bound map[string]esedb.Column

	next    func() (*ordereddict.Dict, bool)
	stop    func()
	scanErr error
	pending *ordereddict.Dict
	row     *ordereddict.Dict
}

// NewEseRecordReader creates a reader for table.
func NewEseRecordReader(table EseTable) *EseRecordReader {
	return &EseRecordReader{table: table, bound: map[string]esedb.Column{}}
}

// GetUsedColumns binds columns by their ESE name. A name matches a column
// with the same name or, ignoring the numeric prefix, e.g.
// "15F-System_DateModified", with the same trailing part.
func (r *EseRecordReader) GetUsedColumns(columns []config.ColumnSpec) ([]ConstrainedField, error) {
	bound := map[string]esedb.Column{}
	fields := make([]ConstrainedField, 0, len(columns))
	for i, col := range columns {
		field := newField(col, col.Edb, i)
		fields = append(fields, field)
		if col.Edb.Name == "" {
			continue
		}

		c, ok := r.column(col.Edb.Name)
		if !ok {
			if field.Optional {
				slog.Debug("optional column missing", "table", r.table.Name(), "column", col.Edb.Name)
				continue
			}
			return nil, errors.Wrapf(ErrColumnNotFound, "%s in table %s", col.Edb.Name, r.table.Name())
		}
		bound[col.Title] = c
	}
	r.bound = bound
	return fields, nil
}

func (r *EseRecordReader) column(name string) (esedb.Column, bool) {
	columns := r.table.Columns()
	for _, c := range columns {
		if c.Name == name {
			return c, true
		}
	}
	short := trimPrefix(name)
	for _, c := range columns {
		if trimPrefix(c.Name) == short {
			return c, true
		}
	}
	return esedb.Column{}, false
}

// trimPrefix removes a hexadecimal property id prefix like "4447-".
func trimPrefix(name string) string {
	i := strings.IndexByte(name, '-')
	if i <= 0 {
		return name
	}
	for _, r := range name[:i] {
		if !strings.ContainsRune("0123456789abcdefABCDEF", r) {
			return name
		}
	}
	return name[i+1:]
}

// Init restarts the scan at the first row.
func (r *EseRecordReader) Init() (bool, error) {
	r.Close()
	r.scanErr = nil
	r.row = nil

	stopped := false
	seq := func(yield func(*ordereddict.Dict) bool) {
		err := r.table.Dump(func(row *ordereddict.Dict) error {
			if !yield(row) {
				stopped = true
				return errStopped
			}
			return nil
		})
		if err != nil && !stopped {
			r.scanErr = errors.Wrapf(err, "dump %s", r.table.Name())
		}
	}
	r.next, r.stop = iter.Pull(seq)

	row, ok := r.next()
	if !ok {
		return false, r.scanErr
	}
	r.pending = row
	return true, nil
}

// Next moves to the next row.
func (r *EseRecordReader) Next() (bool, error) {
	if r.next == nil {
		if ok, err := r.Init(); !ok {
			return false, err
		}
	}
	if r.pending != nil {
		r.row, r.pending = r.pending, nil
		return true, nil
	}
	row, ok := r.next()
	if !ok {
		r.row = nil
		return false, r.scanErr
	}
	r.row = row
	return true, nil
}

// Close stops a running scan.
func (r *EseRecordReader) Close() error {
	if r.stop != nil {
		r.stop()
	}
	r.next, r.stop, r.pending = nil, nil, nil
	return nil
}

func (r *EseRecordReader) value(title string) (interface{}, esedb.Column, bool) {
	c, ok := r.bound[title]
	if !ok || r.row == nil {
		return nil, c, false
	}
	v, ok := r.row.Get(c.Name)
	if !ok || v == nil {
		return nil, c, false
	}
	return v, c, true
}

// bytesValue returns the raw bytes of binary values.
func bytesValue(v interface{}, c esedb.Column) ([]byte, bool, error) {
	switch v := v.(type) {
	case []byte:
		return v, true, nil
	case string:
		if !strings.Contains(c.Type, "Binary") {
			return nil, false, nil
		}
		b, err := hex.DecodeString(v)
		if err != nil {
			return nil, false, errors.Wrapf(err, "decode %s", c.Name)
		}
		return b, true, nil
	}
	return nil, false, nil
}

// GetStr returns a text value. Binary values are decoded as UTF-16LE.
func (r *EseRecordReader) GetStr(title string) (string, bool, error) {
	v, c, ok := r.value(title)
	if !ok {
		return "", false, nil
	}
	b, isBinary, err := bytesValue(v, c)
	if err != nil {
		return "", false, err
	}
	if isBinary {
		if len(b) == 0 {
			return "", false, nil
		}
		s, err := codec.UTF16LE(b)
		if err != nil {
			return "", false, errors.Wrap(err, title)
		}
		return s, true, nil
	}
	if s, ok := v.(string); ok {
		return s, true, nil
	}
	return "", false, errors.Wrapf(ErrTypeMismatch, "%s is %T, not text", title, v)
}

// GetInt returns an integer value. Binary values are decoded as 1, 2, 4 or 8
// byte signed little endian integers.
func (r *EseRecordReader) GetInt(title string) (int64, bool, error) {
	v, c, ok := r.value(title)
	if !ok {
		return 0, false, nil
	}
	switch v := v.(type) {
	case int64:
		return v, true, nil
	case int32:
		return int64(v), true, nil
	case int16:
		return int64(v), true, nil
	case int8:
		return int64(v), true, nil
	case int:
		return int64(v), true, nil
	case uint64:
		return int64(v), true, nil
	case uint32:
		return int64(v), true, nil
	case uint16:
		return int64(v), true, nil
	case uint8:
		// 1 byte columns are signed
		return int64(int8(v)), true, nil
	case bool:
		if v {
			return 1, true, nil
		}
		return 0, true, nil
	}
	b, isBinary, err := bytesValue(v, c)
	if err != nil {
		return 0, false, err
	}
	if !isBinary {
		return 0, false, errors.Wrapf(ErrTypeMismatch, "%s is %T, not an integer", title, v)
	}
	if len(b) == 0 {
		return 0, false, nil
	}
	i, err := codec.Int(b)
	if err != nil {
		return 0, false, errors.Wrap(err, title)
	}
	return i, true, nil
}

// GetDatetime returns a timestamp. Binary values are read as VARIANT time and,
// if that fails, as FILETIME.
func (r *EseRecordReader) GetDatetime(title string) (time.Time, bool, error) {
	v, c, ok := r.value(title)
	if !ok {
		return time.Time{}, false, nil
	}
	switch v := v.(type) {
	case time.Time:
		return v.UTC(), true, nil
	case float64:
		t, ok := codec.VariantTime(v)
		if !ok {
			return time.Time{}, false, errors.Wrapf(ErrTypeMismatch, "%s: %v is no valid date", title, v)
		}
		return t, true, nil
	case int64:
		return codec.FileTime(uint64(v)), true, nil
	case uint64:
		return codec.FileTime(v), true, nil
	}
	b, isBinary, err := bytesValue(v, c)
	if err != nil {
		return time.Time{}, false, err
	}
	if !isBinary {
		if s, ok := v.(string); ok {
			if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
				return t.UTC(), true, nil
			}
		}
		return time.Time{}, false, errors.Wrapf(ErrTypeMismatch, "%s is %T, not a date", title, v)
	}
	if len(b) == 0 {
		return time.Time{}, false, nil
	}
	t, err := codec.DateTime(b)
	if err != nil {
		return time.Time{}, false, errors.Wrap(err, title)
	}
	return t, true, nil
}

// GetGUID returns the GUID following "<title>=" in a text value. 16 byte
// binary values are formatted as GUID directly.
func (r *EseRecordReader) GetGUID(title string) (string, bool, error) {
	v, c, ok := r.value(title)
	if !ok {
		return "", false, nil
	}
	b, isBinary, err := bytesValue(v, c)
	if err != nil {
		return "", false, err
	}
	if isBinary && len(b) == 16 {
		guid, err := codec.GUIDFromBytes(b)
		return guid, err == nil, err
	}
	s, ok, err := r.GetStr(title)
	if !ok || err != nil {
		return "", false, err
	}
	guid, ok := codec.FindGUID(s, title)
	return guid, ok, nil
}
