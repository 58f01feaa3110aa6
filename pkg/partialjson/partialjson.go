// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package partialjson recovers structured values from truncated JSON.
//
// LLM providers stream tool-call arguments as raw text fragments; until the
// call completes, the accumulated text is only a prefix of a valid JSON
// document. This package completes such prefixes into parseable JSON while
// preserving every already-decoded field. It never returns an error: on
// total failure the result is simply nil.
package partialjson

import (
	"encoding/json"
	"strconv"
	"strings"
)

// frame tracks one open container during the scan.
type frame struct {
	delim byte // '{' or '['

	// memberStart is the index where the current in-progress member or
	// element of this container begins
	memberStart int

	// sawColon is true once the current object member has its colon
	sawColon bool
}

// Parse decodes a prefix of a JSON document into the most permissive value
// that a strict parse accepts. Complete valid JSON round-trips unchanged.
// Returns nil when nothing recoverable is found.
func Parse(input string) interface{} {
	completed, ok := Complete(input)
	if ok {
		var v interface{}
		if err := json.Unmarshal([]byte(completed), &v); err == nil {
			return v
		}
	}
	if fields := extractKnownFields(input); len(fields) > 0 {
		return fields
	}
	return nil
}

// ParseObject is Parse restricted to object results. Non-object values and
// total failures both yield nil.
func ParseObject(input string) map[string]interface{} {
	v := Parse(input)
	if m, ok := v.(map[string]interface{}); ok {
		return m
	}
	return nil
}

// Complete returns a balanced completion of the JSON prefix in input.
// The second return is false when input contains no object or array start.
//
// The scan is a single left-to-right pass maintaining a stack of open
// delimiters plus in-string and escape flags; the completion closes any
// unterminated string, drops a trailing member that cannot be finished
// (a dangling key or an unparseable bare literal), and pops the remaining
// stack. The result is at most a few bytes larger than the input.
func Complete(input string) (string, bool) {
	start := strings.IndexAny(input, "{[")
	if start < 0 {
		return "", false
	}
	s := input[start:]

	var stack []frame
	inString := false
	escaped := false
	end := len(s)

	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			if escaped {
				escaped = false
				continue
			}
			switch c {
			case '\\':
				escaped = true
			case '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			stack = append(stack, frame{delim: c, memberStart: i + 1})
		case '}', ']':
			if n := len(stack); n > 0 && matches(stack[n-1].delim, c) {
				stack = stack[:n-1]
			}
		case ',':
			if n := len(stack); n > 0 {
				stack[n-1].memberStart = i + 1
				stack[n-1].sawColon = false
			}
		case ':':
			if n := len(stack); n > 0 && stack[n-1].delim == '{' {
				stack[n-1].sawColon = true
			}
		}
		// A balanced top-level value is done; ignore trailing bytes.
		if len(stack) == 0 && i > 0 {
			end = i + 1
			break
		}
	}

	buf := s[:end]

	if inString {
		top := topFrame(stack)
		if top != nil && top.delim == '{' && !top.sawColon {
			// Truncated key with no value: drop the whole member.
			buf = trimDanglingMember(buf, top.memberStart)
		} else {
			if escaped {
				buf += `\`
			}
			buf += `"`
		}
	} else {
		buf = fixTrailingLiteral(buf, topFrame(stack))
	}

	buf = strings.TrimRight(buf, " \t\r\n")
	buf = strings.TrimRight(buf, ",")
	buf = strings.TrimRight(buf, " \t\r\n")
	if strings.HasSuffix(buf, ":") {
		buf += "null"
	}

	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i].delim == '{' {
			buf += "}"
		} else {
			buf += "]"
		}
	}
	return buf, true
}

func matches(open, close byte) bool {
	return (open == '{' && close == '}') || (open == '[' && close == ']')
}

func topFrame(stack []frame) *frame {
	if len(stack) == 0 {
		return nil
	}
	return &stack[len(stack)-1]
}

// trimDanglingMember cuts buf back to the start of the current member and
// removes the comma that introduced it.
func trimDanglingMember(buf string, memberStart int) string {
	if memberStart > len(buf) {
		memberStart = len(buf)
	}
	out := strings.TrimRight(buf[:memberStart], " \t\r\n")
	out = strings.TrimRight(out, ",")
	return out
}

// fixTrailingLiteral inspects a bare literal at the end of buf (a number,
// true, false, or null). A literal that already parses is kept; a torn one
// takes its whole member with it.
func fixTrailingLiteral(buf string, top *frame) string {
	i := len(buf)
	for i > 0 && isLiteralByte(buf[i-1]) {
		i--
	}
	lit := buf[i:]
	if lit == "" {
		return buf
	}
	if lit == "true" || lit == "false" || lit == "null" {
		return buf
	}
	if _, err := strconv.ParseFloat(lit, 64); err == nil && !strings.HasSuffix(lit, ".") {
		return buf
	}
	// Torn literal: drop the member (object) or element (array) it belongs to.
	if top != nil {
		return trimDanglingMember(buf, top.memberStart)
	}
	return buf[:i]
}

func isLiteralByte(c byte) bool {
	switch {
	case c >= '0' && c <= '9':
		return true
	case c >= 'a' && c <= 'z':
		return true
	case c == '+' || c == '-' || c == '.':
		return true
	case c == 'E':
		return true
	}
	return false
}
