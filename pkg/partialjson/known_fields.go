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

package partialjson

import (
	"encoding/json"
	"regexp"
	"strconv"
)

// The extractor only knows the argument names the built-in tools use.
// It is the last-resort path when structural completion fails.
var (
	knownStringKeys = []string{
		"path", "content", "command", "query", "pattern",
		"old_string", "new_string", "url", "question",
	}
	knownNumberKeys = []string{
		"start_line", "end_line", "line", "column",
	}

	stringFieldRe = map[string]*regexp.Regexp{}
	numberFieldRe = map[string]*regexp.Regexp{}
	pathsArrayRe  = regexp.MustCompile(`"paths"\s*:\s*(\[[^\]]*\])`)
)

func init() {
	for _, key := range knownStringKeys {
		stringFieldRe[key] = regexp.MustCompile(`"` + key + `"\s*:\s*"((?:[^"\\]|\\.)*)`)
	}
	for _, key := range knownNumberKeys {
		numberFieldRe[key] = regexp.MustCompile(`"` + key + `"\s*:\s*(-?\d+)`)
	}
}

// extractKnownFields regex-matches a curated set of argument names out of
// arbitrarily mangled input. Returns nil when nothing matches.
func extractKnownFields(input string) map[string]interface{} {
	fields := make(map[string]interface{})

	for key, re := range stringFieldRe {
		m := re.FindStringSubmatch(input)
		if m == nil {
			continue
		}
		fields[key] = unescapeString(m[1])
	}
	for key, re := range numberFieldRe {
		m := re.FindStringSubmatch(input)
		if m == nil {
			continue
		}
		if n, err := strconv.ParseFloat(m[1], 64); err == nil {
			fields[key] = n
		}
	}
	if m := pathsArrayRe.FindStringSubmatch(input); m != nil {
		var paths []interface{}
		if err := json.Unmarshal([]byte(m[1]), &paths); err == nil {
			fields["paths"] = paths
		}
	}

	if len(fields) == 0 {
		return nil
	}
	return fields
}

// unescapeString decodes JSON string escapes, falling back to the raw text
// when the captured fragment ends mid-escape.
func unescapeString(s string) string {
	var out string
	if err := json.Unmarshal([]byte(`"`+s+`"`), &out); err == nil {
		return out
	}
	return s
}
