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
	"path/filepath"
	"strings"
)

// Traversal tokens rejected anywhere in a raw path argument, including
// URL-encoded forms and null bytes.
var traversalTokens = []string{"..", "%2e%2e", "%252e%252e", "\x00"}

// Sensitive directory fragments. Matching is case-insensitive on the
// normalized path.
var sensitiveDirFragments = []string{
	// Windows system dirs
	`c:\windows`, `c:\program files`, `c:\programdata`,
	// Unix system dirs
	"/etc/", "/boot/", "/dev/", "/proc/", "/sys/", "/sbin/", "/usr/bin/", "/usr/sbin/", "/var/run/",
	// credential directories
	"/.ssh/", "/.gnupg/", "/.aws/", "/.azure/", "/.kube/", "/.docker/",
}

// Sensitive file names and suffixes.
var sensitiveBaseNames = []string{
	".env.local", ".env.production",
	"secrets.json", "secrets.yml", "secrets.toml",
	"private_key", "id_rsa", "id_ed25519",
}

var sensitiveSuffixes = []string{".pem", ".key", ".p12", ".pfx"}

var sensitiveSubstrings = []string{"password", "secret", "credential"}

// CheckPathSafety rejects paths that reach outside the workspace or into
// OS and credential territory. Called for every tool argument that names
// a filesystem path, before any side effect.
func CheckPathSafety(raw string) error {
	lowerRaw := strings.ToLower(raw)
	for _, token := range traversalTokens {
		if strings.Contains(lowerRaw, token) {
			return fmt.Errorf("path %q contains traversal token", raw)
		}
	}

	normalized := strings.ToLower(filepath.ToSlash(filepath.Clean(raw)))

	for _, fragment := range sensitiveDirFragments {
		frag := strings.ToLower(filepath.ToSlash(fragment))
		if strings.Contains(normalized+"/", frag) {
			return fmt.Errorf("path %q touches a protected directory", raw)
		}
	}

	base := strings.ToLower(filepath.Base(normalized))
	for _, name := range sensitiveBaseNames {
		if base == name {
			return fmt.Errorf("path %q names a protected file", raw)
		}
	}
	for _, suffix := range sensitiveSuffixes {
		if strings.HasSuffix(base, suffix) {
			return fmt.Errorf("path %q names a protected file", raw)
		}
	}
	for _, sub := range sensitiveSubstrings {
		if strings.Contains(base, sub) {
			return fmt.Errorf("path %q names a protected file", raw)
		}
	}
	return nil
}

// pathArguments lists the argument keys treated as filesystem paths.
var pathArgumentKeys = []string{"path", "paths", "cwd", "directory"}

// checkArgumentPaths runs the safety check over every path-shaped
// argument value.
func checkArgumentPaths(args map[string]interface{}) error {
	for _, key := range pathArgumentKeys {
		raw, ok := args[key]
		if !ok {
			continue
		}
		switch v := raw.(type) {
		case string:
			if err := CheckPathSafety(v); err != nil {
				return err
			}
		case []interface{}:
			for _, item := range v {
				if s, ok := item.(string); ok {
					if err := CheckPathSafety(s); err != nil {
						return err
					}
				}
			}
		}
	}
	return nil
}
