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

// Package codec converts the raw values stored by the Windows Search indexer
// into times, integers and text.
package codec

import (
	"bytes"
	"encoding/binary"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/text/encoding/unicode"
)

var (
	// ErrWidth is returned when a buffer does not have the size its type needs.
	ErrWidth = errors.New("invalid value width")
	// ErrEncoding is returned for text that is neither valid UTF-16 nor UTF-8.
	ErrEncoding = errors.New("invalid text encoding")
)

// Int decodes a 1, 2, 4 or 8 byte signed little endian integer.
func Int(b []byte) (int64, error) {
	switch len(b) {
	case 1:
		return int64(int8(b[0])), nil
	case 2:
		return int64(int16(binary.LittleEndian.Uint16(b))), nil
	case 4:
		return int64(int32(binary.LittleEndian.Uint32(b))), nil
	case 8:
		return int64(binary.LittleEndian.Uint64(b)), nil
	}
	return 0, errors.Wrapf(ErrWidth, "integer of %d bytes", len(b))
}

// UTF16LE decodes little endian UTF-16 text and drops trailing NUL characters.
func UTF16LE(b []byte) (string, error) {
	if len(b)%2 != 0 {
		return "", errors.Wrapf(ErrEncoding, "odd utf-16 length %d", len(b))
	}
	decoded, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder().Bytes(b)
	if err != nil {
		return "", errors.Wrap(ErrEncoding, err.Error())
	}
	return string(bytes.TrimRight(decoded, "\x00")), nil
}

// UTF8 returns b as a string if it holds valid UTF-8.
func UTF8(b []byte) (string, error) {
	if !utf8.Valid(b) {
		return "", errors.Wrap(ErrEncoding, "invalid utf-8")
	}
	return string(bytes.TrimRight(b, "\x00")), nil
}

// FindGUID returns the value following "key=" in s up to and including the
// closing brace, e.g. the VolumeId of an activity content URI.
func FindGUID(s, key string) (string, bool) {
	marker := key + "="
	start := strings.Index(s, marker)
	if start < 0 {
		return "", false
	}
	rest := s[start+len(marker):]
	end := strings.IndexByte(rest, '}')
	if end < 0 {
		return "", false
	}
	return rest[:end+1], true
}

// GUIDFromBytes formats a 16 byte Windows GUID, whose first three fields are
// little endian, as {XXXXXXXX-XXXX-XXXX-XXXX-XXXXXXXXXXXX}.
func GUIDFromBytes(b []byte) (string, error) {
	if len(b) != 16 {
		return "", errors.Wrapf(ErrWidth, "guid of %d bytes", len(b))
	}
	var raw [16]byte
	copy(raw[:], b)
	raw[0], raw[1], raw[2], raw[3] = raw[3], raw[2], raw[1], raw[0]
	raw[4], raw[5] = raw[5], raw[4]
	raw[6], raw[7] = raw[7], raw[6]
	id, err := uuid.FromBytes(raw[:])
	if err != nil {
		return "", err
	}
	return "{" + strings.ToUpper(id.String()) + "}", nil
}
