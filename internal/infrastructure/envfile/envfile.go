// Package envfile reads and updates the line-oriented key=value file used to
// hand a logged-in session's cookies from the login helper to the sync daemon.
//
// Updates rewrite only the lines whose key matches, append missing keys at the
// end, and preserve every other line (comments, unrelated keys, blank lines)
// verbatim and in order.
package envfile

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

// Recognized cookie keys
const (
	KeyCookieUserID  = "TONGLIAN_COOKIE_USERID"
	KeyCookieSession = "TONGLIAN_COOKIE_SESSION"
)

// ReadKey returns the value for key in the file at path, or "" if the key
// (or the file) does not exist.
func ReadKey(path, key string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}

	prefix := key + "="
	for _, line := range strings.Split(string(data), "\n") {
		if strings.HasPrefix(line, prefix) {
			return strings.TrimSpace(strings.TrimPrefix(line, prefix)), nil
		}
	}
	return "", nil
}

// ReadCookiePair returns the stored userid and session cookie values.
func ReadCookiePair(path string) (userID, session string, err error) {
	userID, err = ReadKey(path, KeyCookieUserID)
	if err != nil {
		return "", "", err
	}
	session, err = ReadKey(path, KeyCookieSession)
	if err != nil {
		return "", "", err
	}
	return userID, session, nil
}

// UpdateKeys rewrites the file at path so that every key in updates has its
// line replaced in place. Keys not present in the file are appended. All other
// lines are preserved byte for byte.
func UpdateKeys(path string, updates map[string]string) error {
	var lines []string
	hadTrailingNewline := true

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		content := string(data)
		hadTrailingNewline = content == "" || strings.HasSuffix(content, "\n")
		lines = strings.Split(strings.TrimSuffix(content, "\n"), "\n")
		if content == "" {
			lines = nil
		}
	case os.IsNotExist(err):
		// New file: all keys get appended below
	default:
		return err
	}

	seen := make(map[string]bool, len(updates))
	for i, line := range lines {
		for key, value := range updates {
			if strings.HasPrefix(line, key+"=") {
				lines[i] = fmt.Sprintf("%s=%s", key, value)
				seen[key] = true
				break
			}
		}
	}

	// Append missing keys in a stable order
	for _, key := range sortedKeys(updates) {
		if !seen[key] {
			lines = append(lines, fmt.Sprintf("%s=%s", key, updates[key]))
		}
	}

	out := strings.Join(lines, "\n")
	if hadTrailingNewline && out != "" {
		out += "\n"
	}
	return os.WriteFile(path, []byte(out), 0600)
}

// UpdateCookiePair persists the userid and session cookie values.
func UpdateCookiePair(path, userID, session string) error {
	return UpdateKeys(path, map[string]string{
		KeyCookieUserID:  userID,
		KeyCookieSession: session,
	})
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
