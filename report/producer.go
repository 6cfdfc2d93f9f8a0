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
	"bufio"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// Target is where reports are written to.
type Target string

// Report targets.
const (
	File   Target = "file"
	Stdout Target = "stdout"
)

// ParseTarget parses a target name case insensitively.
func ParseTarget(s string) (Target, bool) {
	switch Target(strings.ToLower(s)) {
	case File:
		return File, true
	case Stdout:
		return Stdout, true
	}
	return "", false
}

const timestampLayout = "20060102_150405"

// Name identifies the report of one input database.
type Name struct {
	Hostname string
	Title    string
	// Dirty marks reports of databases that were not shut down cleanly.
	Dirty bool
}

// Producer creates reports, either as files in a directory or as tagged rows
// on one shared writer.
type Producer struct {
	fs     afero.Fs
	dir    string
	format Format
	target Target

	Layout Layout
	Now    func() time.Time

	out *bufio.Writer
}

// NewProducer creates a producer. For the file target dir is created if it
// does not exist, for the stdout target all rows go to stdout.
func NewProducer(fs afero.Fs, dir string, format Format, target Target, stdout io.Writer) (*Producer, error) {
	p := &Producer{fs: fs, dir: dir, format: format, target: target, Now: time.Now}
	switch target {
	case File:
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrap(err, "create output directory")
		}
	case Stdout:
		p.out = bufio.NewWriter(stdout)
	default:
		return nil, fmt.Errorf("unknown report target %q", target)
	}
	return p, nil
}

// Target returns the report target.
func (p *Producer) Target() Target {
	return p.target
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(`\/:*?"<>| `, r) || r < 0x20 {
			return '_'
		}
		return r
	}, s)
}

// FileName returns {hostname}_{title}_{timestamp}.{ext} for a report.
func (p *Producer) FileName(name Name) string {
	base := fmt.Sprintf("%s_%s_%s", sanitize(name.Hostname), sanitize(name.Title), p.Now().Format(timestampLayout))
	if name.Dirty {
		base += "_dirty"
	}
	return base + p.format.Ext()
}

func (p *Producer) uniquePath(fileName string) (string, error) {
	ext := filepath.Ext(fileName)
	base := strings.TrimSuffix(fileName, ext)
	path := filepath.Join(p.dir, fileName)
	for i := 1; ; i++ {
		exists, err := afero.Exists(p.fs, path)
		if err != nil {
			return "", err
		}
		if !exists {
			return path, nil
		}
		path = filepath.Join(p.dir, fmt.Sprintf("%s_%d%s", base, i, ext))
	}
}

type bufferedFile struct {
	*bufio.Writer
	file afero.File
}

func (f *bufferedFile) Close() error {
	if err := f.Flush(); err != nil {
		f.file.Close()
		return err
	}
	return f.file.Close()
}

type flusher struct {
	*bufio.Writer
}

func (f flusher) Close() error {
	return f.Flush()
}

// NewReport creates the report for name and returns its location, the file
// path or "-" for stdout.
func (p *Producer) NewReport(name Name) (string, Report, error) {
	if p.target == Stdout {
		return "-", p.sink(p.out, flusher{p.out}, name.Title), nil
	}

	path, err := p.uniquePath(p.FileName(name))
	if err != nil {
		return "", nil, err
	}
	f, err := p.fs.Create(path)
	if err != nil {
		return "", nil, errors.Wrap(err, "create report")
	}
	w := &bufferedFile{Writer: bufio.NewWriter(f), file: f}
	return path, p.sink(w, w, ""), nil
}

func (p *Producer) sink(w io.Writer, closer io.Closer, tag string) Report {
	if p.format == JSON {
		return NewJSON(w, closer, tag, p.Layout)
	}
	return NewCSV(w, closer, tag)
}

// Close flushes the shared stdout writer.
func (p *Producer) Close() error {
	if p.out != nil {
		return p.out.Flush()
	}
	return nil
}
