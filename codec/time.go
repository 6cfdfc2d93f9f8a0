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
	"encoding/binary"
	"math"
	"time"

	"github.com/pkg/errors"
)

// DateTimeLayout renders timestamps with the full 100ns FILETIME precision.
const DateTimeLayout = "2006-01-02T15:04:05.0000000Z"

const (
	// seconds between 1601-01-01 and 1970-01-01
	fileTimeEpochDelta = 11644473600
	ticksPerSecond     = 10000000

	secondsPerDay = 86400

	// valid VARIANT date range, 0100-01-01 to 9999-12-31
	minVariantTime = -657434.0
	maxVariantTime = 2958466.0

	// smallest fraction of a day a VARIANT date can carry
	variantResolution = 1.0 / secondsPerDay / 2
)

var variantEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

// FileTime converts a Windows FILETIME (100ns ticks since 1601-01-01) to UTC.
func FileTime(ticks uint64) time.Time {
	secs := int64(ticks/ticksPerSecond) - fileTimeEpochDelta
	nanos := int64(ticks%ticksPerSecond) * 100
	return time.Unix(secs, nanos).UTC()
}

// ToFileTime converts t to a Windows FILETIME, truncating to 100ns.
func ToFileTime(t time.Time) uint64 {
	secs := uint64(t.Unix() + fileTimeEpochDelta)
	return secs*ticksPerSecond + uint64(t.Nanosecond()/100)
}

// FileTimeBytes decodes an 8 byte little endian FILETIME.
func FileTimeBytes(b []byte) (time.Time, error) {
	if len(b) != 8 {
		return time.Time{}, errors.Wrapf(ErrWidth, "filetime needs 8 bytes, got %d", len(b))
	}
	return FileTime(binary.LittleEndian.Uint64(b)), nil
}

// VariantTime converts an OLE automation date (days since 1899-12-30) to UTC.
// It reports false for values no VARIANT date conversion would accept.
func VariantTime(v float64) (time.Time, bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return time.Time{}, false
	}
	if v < minVariantTime || v >= maxVariantTime {
		return time.Time{}, false
	}
	if v != 0 && math.Abs(v) < variantResolution {
		return time.Time{}, false
	}

	days, frac := math.Modf(v)
	// the time of day of negative dates counts forward from midnight
	secs := math.Round(math.Abs(frac) * secondsPerDay)
	return variantEpoch.AddDate(0, 0, int(days)).Add(time.Duration(secs) * time.Second), true
}

// ToVariantTime converts t to an OLE automation date with second precision.
func ToVariantTime(t time.Time) float64 {
	t = t.UTC()
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	days := math.Round(midnight.Sub(variantEpoch).Hours() / 24)
	frac := float64(t.Sub(midnight)/time.Second) / secondsPerDay
	if days < 0 {
		return days - frac
	}
	return days + frac
}

// DateTime decodes an 8 byte date field. The value is tried as a VARIANT date
// first and read as a FILETIME if that conversion fails.
func DateTime(b []byte) (time.Time, error) {
	if len(b) != 8 {
		return time.Time{}, errors.Wrapf(ErrWidth, "date needs 8 bytes, got %d", len(b))
	}
	bits := binary.LittleEndian.Uint64(b)
	if t, ok := VariantTime(math.Float64frombits(bits)); ok {
		return t, nil
	}
	return FileTime(bits), nil
}

// FormatDateTime renders t in UTC as 2006-01-02T15:04:05.0000000Z.
func FormatDateTime(t time.Time) string {
	return t.UTC().Format(DateTimeLayout)
}
