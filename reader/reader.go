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

// Package reader provides a cursor over the logical records of a Windows
// Search database. The ESE database stores one row per record, the SQLite
// database one row per record property; both are exposed through
// RecordReader.
package reader

import (
	"time"

	"github.com/pkg/errors"

	"github.com/forensicanalysis/winsearch/config"
)

var (
	// ErrColumnNotFound is returned when a required column is missing from
	// the database.
	ErrColumnNotFound = errors.New("column not found")
	// ErrTypeMismatch is returned when a stored value cannot be decoded as
	// the requested type.
	ErrTypeMismatch = errors.New("type mismatch")
)

// RecordReader walks the logical records of one database table.
//
// GetUsedColumns binds the given columns and must be called before Init.
// Every call replaces the previous binding. The getters return false for
// values that are absent or null in the current record.
type RecordReader interface {
	GetUsedColumns(columns []config.ColumnSpec) ([]ConstrainedField, error)
	Init() (bool, error)
	Next() (bool, error)
	GetStr(title string) (string, bool, error)
	GetInt(title string) (int64, bool, error)
	GetDatetime(title string) (time.Time, bool, error)
	GetGUID(title string) (string, bool, error)
	Close() error
}

// ConstrainedField is a column bound to one backend together with the
// constraints of that binding.
type ConstrainedField struct {
	Name string
	Kind config.ValueKind
	// Constraint is the validator expression, empty if there is none.
	Constraint string
	Hidden     bool
	Optional   bool
	AutoFill   bool
	// Position is the index of the column in the report.
	Position int
}

func newField(col config.ColumnSpec, binding config.Column, position int) ConstrainedField {
	validator, _ := binding.Constraint.Validator()
	return ConstrainedField{
		Name:       col.Title,
		Kind:       col.Kind,
		Constraint: validator,
		Hidden:     binding.Constraint.Has(config.Hidden),
		Optional:   binding.Name == "" || binding.Constraint.Has(config.Optional),
		AutoFill:   binding.Constraint.Has(config.AutoFill),
		Position:   position,
	}
}
