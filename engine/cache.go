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

package engine

import (
	"regexp"
	"sync"
)

// valueCache stores the first value found for a field title.
type valueCache struct {
	sync.RWMutex
	values map[string]fieldValue
}

func newValueCache() *valueCache {
	return &valueCache{values: map[string]fieldValue{}}
}

func (vc *valueCache) get(title string) (fieldValue, bool) {
	vc.RLock()
	defer vc.RUnlock()
	v, ok := vc.values[title]
	return v, ok
}

func (vc *valueCache) add(title string, v fieldValue) {
	vc.Lock()
	if _, ok := vc.values[title]; !ok {
		vc.values[title] = v
	}
	vc.Unlock()
}

// regexpCache holds compiled patterns of regex_matches calls.
type regexpCache struct {
	sync.RWMutex
	patterns map[string]*regexp.Regexp
}

func newRegexpCache() *regexpCache {
	return &regexpCache{patterns: map[string]*regexp.Regexp{}}
}

func (rc *regexpCache) compile(pattern string) (*regexp.Regexp, error) {
	rc.RLock()
	re, ok := rc.patterns[pattern]
	rc.RUnlock()
	if ok {
		return re, nil
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	rc.Lock()
	rc.patterns[pattern] = re
	rc.Unlock()
	return re, nil
}
