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

// Package esedb opens Extensible Storage Engine databases such as the
// Windows Search Windows.edb.
package esedb

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/Velocidex/ordereddict"
	"github.com/pkg/errors"
	"www.velocidex.com/golang/go-ese/parser"
	ntfs "www.velocidex.com/golang/go-ntfs/parser"
)

const (
	headerMagic = 0x89abcdef
	magicOffset = 4
	stateOffset = 52
	pageSize    = 1024
	cachedPages = 10000
)

// State is the database state persisted in the ESE file header.
type State uint32

// Database states.
const (
	JustCreated    State = 1
	DirtyShutdown  State = 2
	CleanShutdown  State = 3
	BeingConverted State = 4
	ForceDetach    State = 5
)

func (s State) String() string {
	switch s {
	case JustCreated:
		return "JustCreated"
	case DirtyShutdown:
		return "DirtyShutdown"
	case CleanShutdown:
		return "CleanShutdown"
	case BeingConverted:
		return "BeingConverted"
	case ForceDetach:
		return "ForceDetach"
	}
	return fmt.Sprintf("State(%d)", uint32(s))
}

// Clean reports whether the database was shut down cleanly.
func (s State) Clean() bool {
	return s == CleanShutdown
}

// ReadState reads the database state from an ESE file header.
func ReadState(r io.ReaderAt) (State, error) {
	header := make([]byte, stateOffset+4)
	if _, err := r.ReadAt(header, 0); err != nil {
		return 0, errors.Wrap(err, "read ese header")
	}
	if magic := binary.LittleEndian.Uint32(header[magicOffset:]); magic != headerMagic {
		return 0, fmt.Errorf("not an ese database: magic %#x", magic)
	}
	return State(binary.LittleEndian.Uint32(header[stateOffset:])), nil
}

// Column describes one column of an ESE table.
type Column struct {
	Name string
	Type string
}

// Database is an opened ESE database.
type Database struct {
	file    *os.File
	catalog *parser.Catalog
	state   State
}

// Open opens the ESE database at path and reads its catalog.
func Open(path string) (*Database, error) {
	f, err := os.Open(path) // #nosec
	if err != nil {
		return nil, err
	}
	db, err := open(f)
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, path)
	}
	return db, nil
}

func open(f *os.File) (*Database, error) {
	state, err := ReadState(f)
	if err != nil {
		return nil, err
	}
	reader, err := ntfs.NewPagedReader(f, pageSize, cachedPages)
	if err != nil {
		return nil, errors.Wrap(err, "create paged reader")
	}
	ctx, err := parser.NewESEContext(reader)
	if err != nil {
		return nil, errors.Wrap(err, "parse ese header")
	}
	catalog, err := parser.ReadCatalog(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "read ese catalog")
	}
	return &Database{file: f, catalog: catalog, state: state}, nil
}

// State returns the state recorded in the file header.
func (db *Database) State() State {
	return db.state
}

// Tables lists the names of all tables in the catalog.
func (db *Database) Tables() []string {
	return db.catalog.Tables.Keys()
}

// Table returns the table called name.
func (db *Database) Table(name string) (*Table, error) {
	value, ok := db.catalog.Tables.Get(name)
	if !ok {
		return nil, fmt.Errorf("table %s not found", name)
	}
	table, ok := value.(*parser.Table)
	if !ok {
		return nil, fmt.Errorf("table %s has unexpected type %T", name, value)
	}

	columns := make([]Column, 0, len(table.Columns))
	for _, c := range table.Columns {
		columns = append(columns, Column{Name: c.Name, Type: c.Type})
	}
	return &Table{catalog: db.catalog, name: name, columns: columns}, nil
}

// Close closes the database file.
func (db *Database) Close() error {
	return db.file.Close()
}

// Table is one table of an ESE database.
type Table struct {
	catalog *parser.Catalog
	name    string
	columns []Column
}

// Name returns the table name.
func (t *Table) Name() string {
	return t.name
}

// Columns returns the columns of the table in catalog order.
func (t *Table) Columns() []Column {
	return t.columns
}

// Dump calls fn for every row of the table. Rows map column names to values;
// binary columns hold hex encoded strings. Dump stops at the first error
// returned by fn.
func (t *Table) Dump(fn func(row *ordereddict.Dict) error) error {
	return t.catalog.DumpTable(t.name, fn)
}
