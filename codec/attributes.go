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

package codec

import (
	"fmt"
	"strings"
)

var fileAttributes = []struct {
	flag int64
	name string
}{
	{0x1, "FILE_ATTRIBUTE_READONLY"},
	{0x2, "FILE_ATTRIBUTE_HIDDEN"},
	{0x4, "FILE_ATTRIBUTE_SYSTEM"},
	{0x10, "FILE_ATTRIBUTE_DIRECTORY"},
	{0x20, "FILE_ATTRIBUTE_ARCHIVE"},
	{0x40, "FILE_ATTRIBUTE_DEVICE"},
	{0x80, "FILE_ATTRIBUTE_NORMAL"},
	{0x100, "FILE_ATTRIBUTE_TEMPORARY"},
	{0x200, "FILE_ATTRIBUTE_SPARSE_FILE"},
	{0x400, "FILE_ATTRIBUTE_REPARSE_POINT"},
	{0x800, "FILE_ATTRIBUTE_COMPRESSED"},
	{0x1000, "FILE_ATTRIBUTE_OFFLINE"},
	{0x2000, "FILE_ATTRIBUTE_NOT_CONTENT_INDEXED"},
	{0x4000, "FILE_ATTRIBUTE_ENCRYPTED"},
	{0x8000, "FILE_ATTRIBUTE_INTEGRITY_STREAM"},
	{0x10000, "FILE_ATTRIBUTE_VIRTUAL"},
	{0x20000, "FILE_ATTRIBUTE_NO_SCRUB_DATA"},
	{0x40000, "FILE_ATTRIBUTE_RECALL_ON_OPEN"},
	{0x80000, "FILE_ATTRIBUTE_PINNED"},
	{0x100000, "FILE_ATTRIBUTE_UNPINNED"},
	{0x400000, "FILE_ATTRIBUTE_RECALL_ON_DATA_ACCESS"},
}

// FileAttributes lists the names of the flags set in v, separated by ", ".
// Bits without a name are appended as a hex value.
func FileAttributes(v int64) string {
	var names []string
	rest := v
	for _, a := range fileAttributes {
		if v&a.flag != 0 {
			names = append(names, a.name)
			rest &^= a.flag
		}
	}
	if rest != 0 {
		names = append(names, fmt.Sprintf("0x%x", rest))
	}
	return strings.Join(names, ", ")
}
