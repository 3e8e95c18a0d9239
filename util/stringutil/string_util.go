// Copyright 2017 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

package stringutil

import (
	"fmt"
	"strings"
)

// Copy deep copies a string, so that the result does not keep the memory
// of a larger buffer alive.
func Copy(src string) string {
	var b strings.Builder
	b.Grow(len(src))
	b.WriteString(src)
	return b.String()
}

// Abbreviate cuts s to at most maxLen bytes and marks the cut with "...".
func Abbreviate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

// stringerFunc defines string func implement fmt.Stringer.
type stringerFunc func() string

// String implements fmt.Stringer
func (l stringerFunc) String() string {
	return l()
}

// MemoizeStr returns memoized version of stringFunc.
func MemoizeStr(l func() string) fmt.Stringer {
	var result string
	return stringerFunc(func() string {
		if result != "" {
			return result
		}
		result = l()
		return result
	})
}

// StringerStr defines a alias to normal string.
// implement fmt.Stringer
type StringerStr string

// String implements fmt.Stringer
func (i StringerStr) String() string {
	return string(i)
}
