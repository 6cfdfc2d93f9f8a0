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
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"crawshaw.io/sqlite"
	"crawshaw.io/sqlite/sqlitex"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forensicanalysis/winsearch/config"
	"github.com/forensicanalysis/winsearch/report"
)

const fixtureSchema = `
CREATE TABLE SystemIndex_1_PropertyStore (WorkId INTEGER, ColumnId INTEGER, Value BLOB);
CREATE TABLE SystemIndex_1_PropertyStore_Metadata (Id INTEGER, Name TEXT);
INSERT INTO SystemIndex_1_PropertyStore_Metadata VALUES (1, 'System.ComputerName');
INSERT INTO SystemIndex_1_PropertyStore_Metadata VALUES (2, 'System.ItemPathDisplay');
INSERT INTO SystemIndex_1_PropertyStore_Metadata VALUES (3, 'System.ItemType');
INSERT INTO SystemIndex_1_PropertyStore_Metadata VALUES (4, 'System.Link.TargetUrl');
INSERT INTO SystemIndex_1_PropertyStore_Metadata VALUES (5, 'System.ItemUrl');
INSERT INTO SystemIndex_1_PropertyStore_Metadata VALUES (6, 'System.Size');
INSERT INTO SystemIndex_1_PropertyStore_Metadata VALUES (7, 'System.DateModified');
`

func createWindowsDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "Windows.db")
	conn, err := sqlite.OpenConn(path, sqlite.SQLITE_OPEN_READWRITE|sqlite.SQLITE_OPEN_CREATE|sqlite.SQLITE_OPEN_NOMUTEX)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, sqlitex.ExecScript(conn, fixtureSchema))
	rows := [][]interface{}{
		{1, 1, "DESKTOP-1"},
		{1, 2, `C:\a.txt`},
		{1, 3, ".txt"},
		{1, 6, le64(4096)},
		{1, 7, le64(132645709210000000)},
		{2, 4, "https://example.com/"},
		{2, 3, ".url"},
		{3, 3, "ActivityHistoryItem"},
		{3, 5, "ms-shell:x"},
	}
	for _, row := range rows {
		query := "INSERT INTO SystemIndex_1_PropertyStore VALUES (?, ?, ?)"
		if b, ok := row[2].([]byte); ok {
			// bound byte slices are stored as text
			query = fmt.Sprintf("INSERT INTO SystemIndex_1_PropertyStore VALUES (?, ?, x'%s')", hex.EncodeToString(b))
			row = row[:2]
		}
		require.NoError(t, sqlitex.Exec(conn, query, nil, row...))
	}
	return path
}

func le64(v uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	return b
}

func TestIsDatabaseFile(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"Windows.edb", true},
		{"windows.EDB", true},
		{"Windows.db", true},
		{"S-1-5-21-1000.db", true},
		{"s-1-5-21-1000.edb", true},
		{"Windows.edb.bak", false},
		{"MSS.log", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsDatabaseFile(tt.name))
		})
	}
}

func TestFindDatabases(t *testing.T) {
	fs := afero.NewMemMapFs()
	for _, name := range []string{
		"/case/C/ProgramData/Microsoft/Search/Data/Applications/Windows/Windows.edb",
		"/case/C/ProgramData/Microsoft/Search/Data/Applications/Windows/MSS001.log",
		"/case/D/Windows.db",
		"/case/D/S-1-5-21-42.db",
	} {
		require.NoError(t, afero.WriteFile(fs, name, []byte("x"), 0o644))
	}

	paths, err := FindDatabases(fs, "/case")
	require.NoError(t, err)
	sort.Strings(paths)
	assert.Equal(t, []string{
		filepath.FromSlash("/case/C/ProgramData/Microsoft/Search/Data/Applications/Windows/Windows.edb"),
		filepath.FromSlash("/case/D/S-1-5-21-42.db"),
		filepath.FromSlash("/case/D/Windows.db"),
	}, paths)

	paths, err = FindDatabases(fs, "/case/D/Windows.db")
	require.NoError(t, err)
	assert.Equal(t, []string{"/case/D/Windows.db"}, paths)

	_, err = FindDatabases(fs, "/missing")
	assert.Error(t, err)
}

func TestDetectBackend(t *testing.T) {
	dir := t.TempDir()
	ese := make([]byte, 64)
	binary.LittleEndian.PutUint32(ese[4:], 0x89abcdef)
	binary.LittleEndian.PutUint32(ese[52:], 2)

	tests := []struct {
		name    string
		content []byte
		want    Backend
		wantErr bool
	}{
		{"a.db", append([]byte("SQLite format 3\x00"), make([]byte, 64)...), SQLite, false},
		{"s-1-5.db", ese, ESE, false},
		{"unknown.edb", make([]byte, 64), ESE, false},
		{"unknown.db", make([]byte, 64), SQLite, false},
		{"short.db", []byte("x"), "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name)
			require.NoError(t, os.WriteFile(path, tt.content, 0o600))
			got, err := DetectBackend(path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestProcessSqlite(t *testing.T) {
	fs := afero.NewMemMapFs()
	producer, err := report.NewProducer(fs, "/out", report.CSV, report.File, nil)
	require.NoError(t, err)
	producer.Now = func() time.Time { return time.Date(2023, 1, 2, 3, 4, 5, 0, time.UTC) }

	dirty := false
	p := &Processor{
		Config:  config.Default(),
		Reports: producer,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		OnDirty: func(*Database) error { dirty = true; return nil },
	}
	result, err := p.Process(createWindowsDB(t))
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.Equal(t, 3, result.Records)

	rows := map[string]int{}
	for _, s := range result.Reports {
		rows[s.Title] = s.Rows
		assert.True(t, strings.HasPrefix(filepath.Base(s.Location), "DESKTOP-1_"+s.Title+"_20230102_030405"), s.Location)
	}
	assert.Equal(t, map[string]int{"File_Report": 1, "Internet_History_Report": 1, "Activity_History_Report": 1}, rows)

	content, err := afero.ReadFile(fs, result.Reports[0].Location)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(string(content), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "WorkId,System_ComputerName,System_ItemPathDisplay,"))
	assert.True(t, strings.HasPrefix(lines[1], `1,"DESKTOP-1","C:\a.txt","2021-05-04T03:02:01.0000000Z",`), lines[1])
	assert.Contains(t, lines[1], ",4096,")

	activity, err := afero.ReadFile(fs, result.Reports[2].Location)
	require.NoError(t, err)
	assert.NotContains(t, string(activity), "System_ItemType")
	assert.Contains(t, string(activity), `"ms-shell:x"`)
}

func TestOpenInvalid(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.db"), config.Default())
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "Windows.db")
	require.NoError(t, os.WriteFile(path, append([]byte("SQLite format 3\x00"), make([]byte, 84)...), 0o600))
	_, err = Open(path, config.Default())
	assert.Error(t, err)
}
