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
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// IsDatabaseFile reports whether name is the name of a Windows Search
// database: Windows.edb, Windows.db or a per user database starting with
// "s-1-".
func IsDatabaseFile(name string) bool {
	switch {
	case strings.EqualFold(name, "Windows.edb"), strings.EqualFold(name, "Windows.db"):
		return true
	}
	return strings.HasPrefix(strings.ToLower(name), "s-1-")
}

// FindDatabases returns all Windows Search databases below root. If root is
// a file it is returned regardless of its name. Unreadable directories are
// skipped.
func FindDatabases(fs afero.Fs, root string) ([]string, error) {
	info, err := fs.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{root}, nil
	}

	var paths []string
	err = afero.Walk(fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if info != nil && info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !info.IsDir() && IsDatabaseFile(info.Name()) {
			paths = append(paths, path)
		}
		return nil
	})
	return paths, err
}
