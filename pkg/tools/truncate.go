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

package tools

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultMaxResultChars caps tool result text before content-aware
// truncation kicks in.
const DefaultMaxResultChars = 10_000

var (
	errorMarkerRe   = regexp.MustCompile(`(?i)\b(error|exception|failed|fatal|panic|traceback)\b`)
	successMarkerRe = regexp.MustCompile(`(?i)\b(success|succeeded|passed|completed|done|ok)\b`)
)

// truncationRatio is a head/tail keep split.
type truncationRatio struct {
	head float64
	tail float64
}

// TruncateResult applies content-aware truncation: the kept head/tail
// split depends on what the output looks like and which tool produced it.
// Cuts align to newline boundaries; the omitted middle is replaced by an
// explicit marker.
func TruncateResult(text, toolName string, maxChars int, defaultRatio ...float64) string {
	if maxChars <= 0 {
		maxChars = DefaultMaxResultChars
	}
	if len(text) <= maxChars {
		return text
	}

	ratio := pickRatio(text, toolName, maxChars, defaultRatio...)

	headBudget := int(float64(maxChars) * ratio.head)
	tailBudget := int(float64(maxChars) * ratio.tail)

	head := alignHeadToNewline(text[:headBudget])
	tail := alignTailToNewline(text[len(text)-tailBudget:])

	omitted := len(text) - len(head) - len(tail)
	return fmt.Sprintf("%s\n… [truncated: %d chars omitted] …\n%s", head, omitted, tail)
}

func pickRatio(text, toolName string, maxChars int, defaultRatio ...float64) truncationRatio {
	switch {
	case errorMarkerRe.MatchString(text):
		// Failures usually explain themselves at the end.
		return truncationRatio{head: 0.25, tail: 0.70}
	case len(text) < 2*maxChars && successMarkerRe.MatchString(text):
		return truncationRatio{head: 0.80, tail: 0.15}
	}

	switch {
	case strings.Contains(toolName, "command"):
		return truncationRatio{head: 0.20, tail: 0.75}
	case strings.Contains(toolName, "search") || strings.Contains(toolName, "grep") || strings.Contains(toolName, "find"):
		return truncationRatio{head: 0.90, tail: 0.05}
	case toolName == "read_file":
		return truncationRatio{head: 0.70, tail: 0.25}
	}

	if len(defaultRatio) == 2 && defaultRatio[0] > 0 && defaultRatio[1] > 0 {
		return truncationRatio{head: defaultRatio[0], tail: defaultRatio[1]}
	}
	return truncationRatio{head: 0.60, tail: 0.30}
}

// alignHeadToNewline trims the head back to its last complete line.
func alignHeadToNewline(head string) string {
	if idx := strings.LastIndexByte(head, '\n'); idx > 0 {
		return head[:idx]
	}
	return head
}

// alignTailToNewline advances the tail to its first complete line.
func alignTailToNewline(tail string) string {
	if idx := strings.IndexByte(tail, '\n'); idx >= 0 && idx+1 < len(tail) {
		return tail[idx+1:]
	}
	return tail
}
