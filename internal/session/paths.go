// ABOUTME: Deterministic temp file naming for session inputs and merge output
// ABOUTME: Names embed the user ID and ordinal so concurrent sessions never collide

package session

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
)

// maxNameLen bounds the sanitised original file name component.
const maxNameLen = 100

// InputPath returns the local path for the ordinal-th attachment of userID,
// named {user}_{ordinal}_{originalName}.
func InputPath(dir, userID string, ordinal int, originalName string) string {
	return filepath.Join(dir, fmt.Sprintf("%s_%d_%s", userComponent(userID), ordinal, sanitizeName(originalName)))
}

// OutputPath returns the merge output path for one session of userID, named
// merged_{user}_{sessionID}.pdf. Each session gets its own output.
func OutputPath(dir, userID, sessionID string) string {
	return filepath.Join(dir, "merged_"+userComponent(userID)+"_"+sanitize(sessionID)+".pdf")
}

// userComponent encodes userID for use in a file name. Distinct IDs always
// give distinct components: IDs made only of [A-Za-z0-9.-] are used as is
// (so they never contain '_' or '~'), anything else is sanitised and suffixed
// with '~' and a hash of the raw ID.
func userComponent(userID string) string {
	if isPlainID(userID) {
		return userID
	}
	sum := sha256.Sum256([]byte(userID))
	return sanitize(userID) + "~" + hex.EncodeToString(sum[:4])
}

func isPlainID(s string) bool {
	if strings.Trim(s, ".") == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '.', c == '-':
		default:
			return false
		}
	}
	return true
}

// sanitizeName strips directories from a client-supplied name and bounds its
// length while keeping the extension.
func sanitizeName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)
	if name == "." || name == "/" || name == "" {
		name = "file"
	}
	name = sanitize(name)

	if len(name) > maxNameLen {
		ext := filepath.Ext(name)
		if len(ext) > 10 {
			ext = ""
		}
		name = name[:maxNameLen-len(ext)] + ext
	}
	return name
}

// sanitize replaces every byte outside [A-Za-z0-9._-] with '_'.
func sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '.', c == '_', c == '-':
			b.WriteByte(c)
		default:
			b.WriteByte('_')
		}
	}
	out := b.String()
	if strings.Trim(out, ".") == "" {
		return strings.Repeat("_", len(out)) + "x"
	}
	return out
}
