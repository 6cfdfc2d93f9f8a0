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

// Package winsearch extracts file, internet history and activity history
// artifacts from the databases of the Windows Search Indexer.
//
// Databases
//
// Windows up to 10 stores the index in the ESE database Windows.edb, Windows
// 11 in the SQLite database Windows.db:
//     - Windows.edb holds one row per indexed item in the table
//       SystemIndex_PropertyStore. Column names carry a hexadecimal property id
//       prefix, e.g. 4447-System_ItemPathDisplay.
//     - Windows.db holds one row per property of an item in the table
//       SystemIndex_1_PropertyStore (WorkId, ColumnId, Value). The property
//       names of the ColumnIds are listed in SystemIndex_1_PropertyStore_Metadata.
//
// Both are read into the same logical records, a map from column title to
// value, from which the configured reports are generated.
//
// Reports
//
// An example directory structure after processing one database:
//     reports/
//     ├── DESKTOP-1_File_Report_20220304_050607.csv
//     ├── DESKTOP-1_Internet_History_Report_20220304_050607.csv
//     └── DESKTOP-1_Activity_History_Report_20220304_050607.csv
package winsearch
