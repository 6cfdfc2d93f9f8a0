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

// Package engine generates the configured reports from the records of a
// RecordReader.
//
// All reports are fed from one pass over the records. For every record each
// report either emits a row or not; reports can refer to that decision of the
// other reports in their constraint, e.g. !Internet_History_Report.
package engine

import (
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strconv"

	"github.com/pkg/errors"

	"github.com/forensicanalysis/winsearch/codec"
	"github.com/forensicanalysis/winsearch/config"
	"github.com/forensicanalysis/winsearch/reader"
	"github.com/forensicanalysis/winsearch/report"
)

const (
	// HostnameField holds the computer name of a record.
	HostnameField = "System_ComputerName"
	// ItemTypeField holds the item type of a record, e.g. ".url".
	ItemTypeField = "System_ItemType"
	// UnknownHost is used in file names if no host name was found.
	UnknownHost = "Unknown"

	urlItemType = ".url"
)

// Factory creates the output of a report.
type Factory interface {
	NewReport(name report.Name) (string, report.Report, error)
}

// Summary describes the output of one report.
type Summary struct {
	Title    string
	Location string
	Rows     int
}

// Result is the outcome of one run.
type Result struct {
	Records int
	Reports []Summary
}

// Engine runs the reports of a configuration against one database.
type Engine struct {
	Reader  reader.RecordReader
	Config  *config.ReportsCfg
	Reports Factory
	Logger  *slog.Logger
	// Dirty is passed on to the report names.
	Dirty bool

	names    *valueCache
	fills    *valueCache
	failures map[string]bool
}

// New creates an engine.
func New(r reader.RecordReader, cfg *config.ReportsCfg, reports Factory, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		Reader:   r,
		Config:   cfg,
		Reports:  reports,
		Logger:   logger,
		names:    newValueCache(),
		fills:    newValueCache(),
		failures: map[string]bool{},
	}
}

type fieldValue struct {
	text    string
	num     int64
	isInt   bool
	present bool
}

func (v fieldValue) empty() bool {
	return !v.present || (!v.isInt && v.text == "")
}

func (v fieldValue) String() string {
	if v.isInt {
		return strconv.FormatInt(v.num, 10)
	}
	return v.text
}

type reportState struct {
	spec       *config.ReportSpec
	fields     []reader.ConstrainedField
	validators []Validator
	condition  *Condition

	sink     report.Report
	location string
	rows     int
}

// Run generates all reports.
func (e *Engine) Run() (result *Result, err error) {
	reports := e.Config.Reports
	order, err := evaluationOrder(reports)
	if err != nil {
		return nil, err
	}
	columns, err := unionColumns(reports)
	if err != nil {
		return nil, err
	}

	states := make([]*reportState, 0, len(reports))
	defer func() {
		for _, st := range states {
			if ferr := st.sink.Footer(); ferr != nil && err == nil {
				err = errors.Wrapf(ferr, "finish %s", st.spec.Title)
			}
		}
		if err != nil {
			result = nil
		}
	}()

	for i := range reports {
		st, err := e.setup(&reports[i])
		if err != nil {
			return nil, errors.Wrap(err, reports[i].Title)
		}
		states = append(states, st)
	}
	for _, st := range states {
		if err := e.prefill(st); err != nil {
			return nil, err
		}
	}

	titles := make([]string, len(reports))
	for i := range reports {
		titles[i] = reports[i].Title
	}
	flags := NewFlags(titles)

	if _, err := e.Reader.GetUsedColumns(columns); err != nil {
		return nil, err
	}
	ok, err := e.Reader.Init()
	if err != nil {
		return nil, err
	}

	result = &Result{}
	for ok {
		more, err := e.Reader.Next()
		if err != nil {
			return nil, err
		}
		if !more {
			break
		}
		result.Records++

		flags.Reset()
		for _, i := range order {
			st := states[i]
			emitted, err := e.process(st, flags)
			if err != nil {
				return nil, errors.Wrap(err, st.spec.Title)
			}
			flags.Set(st.spec.Title, emitted)
		}
	}

	for _, st := range states {
		result.Reports = append(result.Reports, Summary{Title: st.spec.Title, Location: st.location, Rows: st.rows})
	}
	return result, nil
}

func (e *Engine) setup(spec *config.ReportSpec) (*reportState, error) {
	fields, err := e.Reader.GetUsedColumns(spec.Columns)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(fields, func(i, j int) bool { return fields[i].Position < fields[j].Position })

	st := &reportState{spec: spec, fields: fields, validators: make([]Validator, len(fields))}
	for i, f := range fields {
		if f.Constraint != "" {
			st.validators[i] = NewValidator(f.Constraint)
		}
	}
	if spec.Constraint != "" {
		st.condition = NewCondition(spec.Constraint)
	}

	hostname, err := e.outputName(spec)
	if err != nil {
		return nil, err
	}
	st.location, st.sink, err = e.Reports.NewReport(report.Name{Hostname: hostname, Title: spec.Title, Dirty: e.Dirty})
	if err != nil {
		return nil, err
	}
	for _, f := range fields {
		if !f.Hidden {
			st.sink.SetField(f.Name)
		}
	}
	return st, nil
}

// outputName finds the value of the report's output_filename field.
func (e *Engine) outputName(spec *config.ReportSpec) (string, error) {
	title := spec.OutputFilename
	if title == "" {
		return UnknownHost, nil
	}
	if v, ok := e.names.get(title); ok {
		return nameOrUnknown(v), nil
	}

	col, ok := spec.Column(title)
	if !ok {
		col, ok = e.Config.Find(title)
	}
	if !ok {
		e.Logger.Warn("output filename field is no column", "report", spec.Title, "field", title)
		return UnknownHost, nil
	}
	v, err := e.scanFirst(col, title == HostnameField)
	if err != nil {
		return "", errors.Wrapf(err, "find %s", title)
	}
	e.names.add(title, v)
	e.Logger.Debug("output filename", "field", title, "value", v.String())
	return nameOrUnknown(v), nil
}

func nameOrUnknown(v fieldValue) string {
	if v.empty() {
		return UnknownHost
	}
	return v.String()
}

// prefill finds the fill values of all auto_fill fields of a report.
func (e *Engine) prefill(st *reportState) error {
	for _, f := range st.fields {
		if !f.AutoFill {
			continue
		}
		if _, ok := e.fills.get(f.Name); ok {
			continue
		}
		col, _ := st.spec.Column(f.Name)
		v, err := e.scanFirst(col, false)
		if err != nil {
			return errors.Wrapf(err, "auto fill %s", f.Name)
		}
		e.fills.add(f.Name, v)
	}
	return nil
}

func optional(col config.ColumnSpec) config.ColumnSpec {
	col.Edb.Constraint = config.Constraints{config.Optional}
	col.Sql.Constraint = config.Constraints{config.Optional}
	return col
}

// scanFirst returns the first non empty value of a column. With excludeURL
// values of records with the item type ".url" are skipped.
func (e *Engine) scanFirst(col config.ColumnSpec, excludeURL bool) (fieldValue, error) {
	columns := []config.ColumnSpec{optional(col)}
	if excludeURL {
		itemType, ok := e.Config.Find(ItemTypeField)
		excludeURL = ok && itemType.Title != col.Title
		if excludeURL {
			columns = append(columns, optional(itemType))
		}
	}
	fields, err := e.Reader.GetUsedColumns(columns)
	if err != nil {
		return fieldValue{}, err
	}
	ok, err := e.Reader.Init()
	if err != nil || !ok {
		return fieldValue{}, err
	}

	for {
		more, err := e.Reader.Next()
		if err != nil || !more {
			return fieldValue{}, err
		}
		v, err := e.read(fields[0])
		if err != nil {
			return fieldValue{}, err
		}
		if v.empty() {
			continue
		}
		if excludeURL {
			itemType, ok, err := e.Reader.GetStr(ItemTypeField)
			if err != nil {
				return fieldValue{}, err
			}
			if ok && itemType == urlItemType {
				continue
			}
		}
		return v, nil
	}
}

// read returns the value of a field in the current record.
func (e *Engine) read(f reader.ConstrainedField) (fieldValue, error) {
	var (
		v   fieldValue
		err error
	)
	switch f.Kind {
	case config.Integer:
		v.num, v.present, err = e.Reader.GetInt(f.Name)
		v.isInt = true
	case config.FileAttributes:
		var flags int64
		flags, v.present, err = e.Reader.GetInt(f.Name)
		v.text = codec.FileAttributes(flags)
	case config.DateTime:
		t, ok, derr := e.Reader.GetDatetime(f.Name)
		if ok {
			v.text = codec.FormatDateTime(t)
		}
		v.present, err = ok, derr
	case config.GUID:
		v.text, v.present, err = e.Reader.GetGUID(f.Name)
	default:
		v.text, v.present, err = e.Reader.GetStr(f.Name)
	}
	if err != nil {
		return fieldValue{}, errors.Wrapf(err, "read %s", f.Name)
	}
	return v, nil
}

func (e *Engine) failed(st *reportState, source string, err error) {
	key := st.spec.Title + "\x00" + source
	if e.failures[key] {
		return
	}
	e.failures[key] = true
	e.Logger.Error("constraint evaluation failed, skipping rows", "report", st.spec.Title, "constraint", source, "error", err)
}

// process emits the row of a report for the current record and reports
// whether a row was emitted.
func (e *Engine) process(st *reportState, flags *Flags) (bool, error) {
	values := make([]fieldValue, len(st.fields))
	for i, f := range st.fields {
		v, err := e.read(f)
		if err != nil {
			return false, err
		}
		if v.empty() && f.AutoFill {
			if fill, ok := e.fills.get(f.Name); ok && !fill.empty() {
				v = fill
			}
		}

		if validator := st.validators[i]; validator != nil {
			if v.empty() {
				if !f.Optional {
					return false, nil
				}
			} else {
				accepted, err := validator.Validate(v.String(), flags)
				if err != nil {
					e.failed(st, f.Constraint, err)
					return false, nil
				}
				if !accepted {
					return false, nil
				}
			}
		}
		values[i] = v
	}

	if st.condition != nil {
		accepted, err := st.condition.Eval(flags)
		if err != nil {
			e.failed(st, st.spec.Constraint, err)
			return false, nil
		}
		if !accepted {
			return false, nil
		}
	}

	if err := st.sink.CreateNewRow(); err != nil {
		return false, err
	}
	for i, f := range st.fields {
		v := values[i]
		if f.Hidden || v.empty() {
			continue
		}
		if v.isInt {
			st.sink.InsertIntVal(f.Name, v.num)
		} else {
			st.sink.InsertStrVal(f.Name, v.text)
		}
	}
	emitted := st.sink.IsSomeValInRecord()
	if emitted {
		st.rows++
	}
	return emitted, nil
}

// ErrBindingConflict is returned if reports bind the same column title to
// different database columns or value kinds.
var ErrBindingConflict = errors.New("conflicting column bindings")

// unionColumns returns the columns of all reports, each title once, bound
// optionally. Missing required columns are reported per report.
func unionColumns(reports []config.ReportSpec) ([]config.ColumnSpec, error) {
	seen := map[string]string{}
	var columns []config.ColumnSpec
	for _, r := range reports {
		for _, col := range r.Columns {
			first, ok := seen[col.Title]
			if !ok {
				seen[col.Title] = r.Title
				columns = append(columns, col)
				continue
			}
			for _, c := range columns {
				if c.Title != col.Title {
					continue
				}
				if c.Kind != col.Kind || c.Edb.Name != col.Edb.Name || c.Sql.Name != col.Sql.Name {
					return nil, errors.Wrapf(ErrBindingConflict, "%s in %s and %s", col.Title, first, r.Title)
				}
			}
		}
	}
	for i := range columns {
		columns[i] = optional(columns[i])
	}
	return columns, nil
}

// evaluationOrder orders the reports so that a report is evaluated after the
// reports its constraint refers to. Otherwise the configured order is kept.
func evaluationOrder(reports []config.ReportSpec) ([]int, error) {
	deps := make([][]int, len(reports))
	for i, r := range reports {
		if r.Constraint == "" {
			continue
		}
		for j, other := range reports {
			if i == j {
				continue
			}
			name := regexp.QuoteMeta(Identifier(other.Title))
			if regexp.MustCompile(`(^|[^A-Za-z0-9_])` + name + `($|[^A-Za-z0-9_])`).MatchString(r.Constraint) {
				deps[i] = append(deps[i], j)
			}
		}
	}

	done := make([]bool, len(reports))
	order := make([]int, 0, len(reports))
	for len(order) < len(reports) {
		next := -1
		for i := range reports {
			if done[i] {
				continue
			}
			ready := true
			for _, j := range deps[i] {
				ready = ready && done[j]
			}
			if ready {
				next = i
				break
			}
		}
		if next < 0 {
			return nil, fmt.Errorf("report constraints refer to each other in a cycle")
		}
		done[next] = true
		order = append(order, next)
	}
	return order, nil
}
