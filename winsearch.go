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

package winsearch

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"

	"github.com/forensicanalysis/winsearch/config"
	"github.com/forensicanalysis/winsearch/engine"
	"github.com/forensicanalysis/winsearch/esedb"
	"github.com/forensicanalysis/winsearch/reader"
)

// Backend is the storage format of a database.
type Backend string

// Backends.
const (
	ESE    Backend = "ese"
	SQLite Backend = "sqlite"
)

var sqliteMagic = []byte("SQLite format 3\x00")

// ErrDirty is returned for databases that were not shut down cleanly if they
// must not be processed.
var ErrDirty = errors.New("the database state is not clean")

// DetectBackend returns the backend of the file at path from its header.
func DetectBackend(path string) (Backend, error) {
	f, err := os.Open(path) // #nosec
	if err != nil {
		return "", err
	}
	defer f.Close()

	header := make([]byte, len(sqliteMagic))
	if _, err := io.ReadFull(f, header); err != nil {
		return "", errors.Wrap(err, "read header")
	}
	if bytes.Equal(header, sqliteMagic) {
		return SQLite, nil
	}
	if _, err := esedb.ReadState(f); err == nil {
		return ESE, nil
	}
	if strings.EqualFold(filepath.Ext(path), ".edb") {
		return ESE, nil
	}
	return SQLite, nil
}

// Database is an opened Windows Search database.
type Database struct {
	Path    string
	Backend Backend
	// State is the ESE header state, CleanShutdown for SQLite databases.
	State  esedb.State
	Reader reader.RecordReader

	ese *esedb.Database
}

// Open opens the database at path and creates a record reader for the
// property table configured in cfg.
func Open(path string, cfg *config.ReportsCfg) (*Database, error) {
	backend, err := DetectBackend(path)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	db := &Database{Path: path, Backend: backend, State: esedb.CleanShutdown}

	if backend == SQLite {
		if db.Reader, err = reader.OpenSqlite(path, cfg.TableSql); err != nil {
			return nil, errors.Wrap(err, path)
		}
		return db, nil
	}

	if db.ese, err = esedb.Open(path); err != nil {
		return nil, err
	}
	db.State = db.ese.State()
	table, err := db.ese.Table(cfg.TableEdb)
	if err != nil {
		db.ese.Close()
		return nil, errors.Wrap(err, path)
	}
	db.Reader = reader.NewEseRecordReader(table)
	return db, nil
}

// Dirty reports whether the database was not shut down cleanly.
func (db *Database) Dirty() bool {
	return !db.State.Clean()
}

// Close closes the reader and the database file.
func (db *Database) Close() error {
	err := db.Reader.Close()
	if db.ese != nil {
		if cerr := db.ese.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// Processor generates the reports of single databases.
type Processor struct {
	Config  *config.ReportsCfg
	Reports engine.Factory
	Logger  *slog.Logger
	// OnDirty is called for databases that were not shut down cleanly. If it
	// returns an error the database is not processed.
	OnDirty func(db *Database) error
}

// Process generates all reports of the database at path.
func (p *Processor) Process(path string) (*engine.Result, error) {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if info, err := os.Stat(path); err == nil {
		logger.Info("processing database", "path", path, "size", humanize.Bytes(uint64(info.Size())))
	}

	db, err := Open(path, p.Config)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	logger.Debug("database opened", "path", path, "backend", db.Backend, "state", db.State.String())
	if db.Dirty() && p.OnDirty != nil {
		if err := p.OnDirty(db); err != nil {
			return nil, err
		}
	}

	e := engine.New(db.Reader, p.Config, p.Reports, logger.With("path", path))
	e.Dirty = db.Dirty()
	result, err := e.Run()
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	logger.Info("database processed", "path", path, "records", humanize.Comma(int64(result.Records)))
	return result, nil
}
