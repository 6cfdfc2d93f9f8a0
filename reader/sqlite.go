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
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"crawshaw.io/sqlite"
	"crawshaw.io/sqlite/sqlitex"
	"github.com/pkg/errors"

	"github.com/forensicanalysis/winsearch/codec"
	"github.com/forensicanalysis/winsearch/config"
)

// WorkID is the join key of the SQLite property store. A column bound to
// this name receives the WorkId of the record.
const WorkID = "WorkId"

// Value is one value of the property store.
type Value struct {
	Type  sqlite.ColumnType
	Int   int64
	Float float64
	Text  string
	Blob  []byte
}

type eavRow struct {
	workID   int64
	columnID string
	value    Value
}

type rowSource interface {
	Reset() error
	Step() (eavRow, bool, error)
	Close() error
}

type stmtSource struct {
	stmt *sqlite.Stmt
}

func (s *stmtSource) Reset() error {
	return s.stmt.Reset()
}

func (s *stmtSource) Step() (eavRow, bool, error) {
	hasRow, err := s.stmt.Step()
	if err != nil || !hasRow {
		return eavRow{}, false, err
	}

	row := eavRow{
		workID:   s.stmt.ColumnInt64(0),
		columnID: s.stmt.ColumnText(1),
		value:    Value{Type: s.stmt.ColumnType(2)},
	}
	switch row.value.Type {
	case sqlite.SQLITE_INTEGER:
		row.value.Int = s.stmt.ColumnInt64(2)
	case sqlite.SQLITE_FLOAT:
		row.value.Float = s.stmt.ColumnFloat(2)
	case sqlite.SQLITE_TEXT:
		row.value.Text = s.stmt.ColumnText(2)
	case sqlite.SQLITE_BLOB:
		row.value.Blob = make([]byte, s.stmt.ColumnLen(2))
		s.stmt.ColumnBytes(2, row.value.Blob)
	}
	return row, true, nil
}

func (s *stmtSource) Close() error {
	return s.stmt.Finalize()
}

// SqliteRecordReader rebuilds records from the property store, a table of
// (WorkId, ColumnId, Value) rows ordered by WorkId. All rows of one WorkId form
// one record.
type SqliteRecordReader struct {
	conn   *sqlite.Conn
	owned  bool
	source rowSource

	// property names of the metadata table mapped to their ColumnId
	names map[string]string
	ids   map[string]bool

	bindings map[string][]string
	workIDs  []string

	record     map[string]Value
	pending    *eavRow
	lastWorkID int64
	started    bool
}

// OpenSqlite opens the database at path read only.
func OpenSqlite(path, table string) (*SqliteRecordReader, error) {
	conn, err := sqlite.OpenConn(path, sqlite.SQLITE_OPEN_READONLY|sqlite.SQLITE_OPEN_URI|sqlite.SQLITE_OPEN_NOMUTEX)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	r, err := NewSqliteRecordReader(conn, table)
	if err != nil {
		conn.Close()
		return nil, err
	}
	r.owned = true
	return r, nil
}

// NewSqliteRecordReader creates a reader for the property store table on
// conn. Property names are resolved with the table's _Metadata table if it
// exists.
func NewSqliteRecordReader(conn *sqlite.Conn, table string) (*SqliteRecordReader, error) {
	columns, err := tableColumns(conn, table)
	if err != nil {
		return nil, err
	}
	for _, name := range []string{"WorkId", "ColumnId", "Value"} {
		if !columns[strings.ToLower(name)] {
			return nil, errors.Wrapf(ErrColumnNotFound, "%s in table %s", name, table)
		}
	}

	r := newSqliteRecordReader(nil)
	r.conn = conn
	if err := r.loadMetadata(table + "_Metadata"); err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT WorkId, ColumnId, Value FROM %s ORDER BY WorkId", quote(table))
	stmt, _, err := conn.PrepareTransient(query)
	if err != nil {
		return nil, errors.Wrap(err, "prepare property query")
	}
	r.source = &stmtSource{stmt: stmt}
	return r, nil
}

func newSqliteRecordReader(source rowSource) *SqliteRecordReader {
	return &SqliteRecordReader{
		source:   source,
		bindings: map[string][]string{},
		record:   map[string]Value{},
	}
}

func quote(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// tableColumns returns the lower case column names of table.
func tableColumns(conn *sqlite.Conn, table string) (map[string]bool, error) {
	stmt, _, err := conn.PrepareTransient(fmt.Sprintf("PRAGMA table_info(%s)", quote(table)))
	if err != nil {
		return nil, errors.Wrap(err, "table info")
	}
	defer stmt.Finalize()

	columns := map[string]bool{}
	for {
		hasRow, err := stmt.Step()
		if err != nil {
			return nil, errors.Wrap(err, "table info")
		}
		if !hasRow {
			break
		}
		columns[strings.ToLower(stmt.GetText("name"))] = true
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("table %s not found", table)
	}
	return columns, nil
}

func (r *SqliteRecordReader) loadMetadata(table string) error {
	columns, err := tableColumns(r.conn, table)
	if err != nil || !columns["id"] || !columns["name"] {
		slog.Debug("no property metadata", "table", table)
		return nil
	}

	r.names = map[string]string{}
	r.ids = map[string]bool{}
	err = sqlitex.Exec(r.conn, fmt.Sprintf("SELECT Id, Name FROM %s", quote(table)), func(stmt *sqlite.Stmt) error {
		id := stmt.ColumnText(0)
		r.names[stmt.ColumnText(1)] = id
		r.ids[id] = true
		return nil
	})
	return errors.Wrap(err, "read property metadata")
}

// columnID resolves a numeric ColumnId or a property name like
// System.ItemPathDisplay or System_ItemPathDisplay.
func (r *SqliteRecordReader) columnID(name string) (string, bool) {
	if _, err := strconv.ParseInt(name, 10, 64); err == nil {
		if r.ids == nil {
			return name, true
		}
		return name, r.ids[name]
	}
	if id, ok := r.names[name]; ok {
		return id, true
	}
	id, ok := r.names[strings.ReplaceAll(name, "_", ".")]
	return id, ok
}

// GetUsedColumns maps the ColumnIds of the sql bindings to the column titles.
// One ColumnId may feed several titles.
func (r *SqliteRecordReader) GetUsedColumns(columns []config.ColumnSpec) ([]ConstrainedField, error) {
	bindings := map[string][]string{}
	var workIDs []string
	fields := make([]ConstrainedField, 0, len(columns))
	for i, col := range columns {
		field := newField(col, col.Sql, i)
		fields = append(fields, field)

		name := strings.TrimSpace(col.Sql.Name)
		switch {
		case name == "":
			continue
		case strings.EqualFold(name, WorkID):
			workIDs = append(workIDs, col.Title)
			continue
		}

		id, ok := r.columnID(name)
		if !ok {
			if field.Optional {
				slog.Debug("optional property missing", "property", name)
				continue
			}
			return nil, errors.Wrapf(ErrColumnNotFound, "property %s", name)
		}
		bindings[id] = append(bindings[id], col.Title)
	}
	r.bindings = bindings
	r.workIDs = workIDs
	return fields, nil
}

// Init restarts the scan at the first row.
func (r *SqliteRecordReader) Init() (bool, error) {
	if err := r.source.Reset(); err != nil {
		return false, errors.Wrap(err, "reset property query")
	}
	clear(r.record)
	r.pending = nil
	r.lastWorkID = 0
	r.started = true

	row, ok, err := r.source.Step()
	if err != nil || !ok {
		return false, errors.Wrap(err, "read property store")
	}
	r.pending = &row
	return true, nil
}

func (r *SqliteRecordReader) read() (eavRow, bool, error) {
	if r.pending != nil {
		row := *r.pending
		r.pending = nil
		return row, true, nil
	}
	row, ok, err := r.source.Step()
	return row, ok, errors.Wrap(err, "read property store")
}

// Next collects all rows of the next WorkId into the current record.
//
// A WorkId lower than the one of the previous record ends the scan. The row
// is kept and the last WorkId reset, so a following call starts over with
// that row.
func (r *SqliteRecordReader) Next() (bool, error) {
	if !r.started {
		if ok, err := r.Init(); !ok {
			return false, err
		}
	}
	clear(r.record)

	grouping := false
	var current int64
	for {
		row, ok, err := r.read()
		if err != nil {
			return false, err
		}
		if !ok {
			break
		}

		if !grouping {
			if row.workID < r.lastWorkID {
				r.lastWorkID = 0
				r.pending = &row
				break
			}
			grouping = true
			current = row.workID
			workID := Value{Type: sqlite.SQLITE_INTEGER, Int: current}
			r.record[WorkID] = workID
			for _, title := range r.workIDs {
				r.record[title] = workID
			}
		} else if row.workID != current {
			r.pending = &row
			break
		}

		if row.value.Type == sqlite.SQLITE_NULL {
			continue
		}
		for _, title := range r.bindings[row.columnID] {
			r.record[title] = row.value
		}
	}
	if grouping {
		r.lastWorkID = current
	}
	return len(r.record) > 0, nil
}

// Close releases the prepared statement and, if the reader opened it, the
// connection.
func (r *SqliteRecordReader) Close() error {
	if r.source != nil {
		if err := r.source.Close(); err != nil {
			return err
		}
		r.source = nil
	}
	if r.owned && r.conn != nil {
		return r.conn.Close()
	}
	return nil
}

func (r *SqliteRecordReader) value(title string) (Value, bool) {
	v, ok := r.record[title]
	return v, ok && v.Type != sqlite.SQLITE_NULL
}

func mismatch(title string, v Value, want string) error {
	return errors.Wrapf(ErrTypeMismatch, "%s is %v, not %s", title, v.Type, want)
}

// GetStr returns a text value. Blobs must hold UTF-8 text.
func (r *SqliteRecordReader) GetStr(title string) (string, bool, error) {
	v, ok := r.value(title)
	if !ok {
		return "", false, nil
	}
	switch v.Type {
	case sqlite.SQLITE_TEXT:
		return v.Text, true, nil
	case sqlite.SQLITE_BLOB:
		s, err := codec.UTF8(v.Blob)
		if err != nil {
			return "", false, errors.Wrap(err, title)
		}
		return s, true, nil
	}
	return "", false, mismatch(title, v, "text")
}

// GetInt returns an integer value. Blobs are decoded as 1, 2, 4 or 8 byte
// signed little endian integers.
func (r *SqliteRecordReader) GetInt(title string) (int64, bool, error) {
	v, ok := r.value(title)
	if !ok {
		return 0, false, nil
	}
	switch v.Type {
	case sqlite.SQLITE_INTEGER:
		return v.Int, true, nil
	case sqlite.SQLITE_BLOB:
		i, err := codec.Int(v.Blob)
		if err != nil {
			return 0, false, errors.Wrap(err, title)
		}
		return i, true, nil
	}
	return 0, false, mismatch(title, v, "an integer")
}

// GetDatetime returns a timestamp stored as FILETIME.
func (r *SqliteRecordReader) GetDatetime(title string) (time.Time, bool, error) {
	v, ok := r.value(title)
	if !ok {
		return time.Time{}, false, nil
	}
	switch v.Type {
	case sqlite.SQLITE_INTEGER:
		return codec.FileTime(uint64(v.Int)), true, nil
	case sqlite.SQLITE_BLOB:
		t, err := codec.FileTimeBytes(v.Blob)
		if err != nil {
			return time.Time{}, false, errors.Wrap(err, title)
		}
		return t, true, nil
	case sqlite.SQLITE_FLOAT:
		if t, ok := codec.VariantTime(v.Float); ok {
			return t, true, nil
		}
	}
	return time.Time{}, false, mismatch(title, v, "a date")
}

// GetGUID returns the GUID following "<title>=" in a text value. 16 byte
// blobs are formatted as GUID directly.
func (r *SqliteRecordReader) GetGUID(title string) (string, bool, error) {
	v, ok := r.value(title)
	if !ok {
		return "", false, nil
	}
	if v.Type == sqlite.SQLITE_BLOB && len(v.Blob) == 16 {
		guid, err := codec.GUIDFromBytes(v.Blob)
		return guid, err == nil, err
	}
	s, ok, err := r.GetStr(title)
	if !ok || err != nil {
		return "", false, err
	}
	guid, ok := codec.FindGUID(s, title)
	return guid, ok, nil
}
