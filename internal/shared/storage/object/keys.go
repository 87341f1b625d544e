package object

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

const maxNameLen = 128

// ErrInvalidName is returned for object names that cannot be stored safely.
var ErrInvalidName = errors.New("invalid object name")

// OwnerKey returns a path-safe namespace for an owner such as "guest:abc".
func OwnerKey(owner string) string {
	sum := sha256.Sum256([]byte(owner))
	return hex.EncodeToString(sum[:])
}

// CleanName flattens separators, drops control characters and rejects
// traversal patterns.
func CleanName(name string) (string, error) {
	if strings.Contains(name, "..") {
		return "", ErrInvalidName
	}
	s := strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\':
			return '_'
		case unicode.IsControl(r):
			return -1
		default:
			return r
		}
	}, strings.TrimSpace(name))
	if s == "" {
		return "", ErrInvalidName
	}
	if len(s) > maxNameLen {
		s = s[len(s)-maxNameLen:]
	}
	return s, nil
}

// NewKey returns a fresh key of the form <owner>/<id>_<name>.
func NewKey(owner, name string) (string, error) {
	clean, err := CleanName(name)
	if err != nil {
		return "", fmt.Errorf("clean object name: %w", err)
	}
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return path.Join(OwnerKey(owner), id+"_"+clean), nil
}

// Sniff detects the content type from the first bytes of r. The returned
// reader yields the full stream including the sniffed prefix.
func Sniff(r io.Reader) (io.Reader, string, error) {
	var head [512]byte
	n, err := io.ReadFull(r, head[:])
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, "", fmt.Errorf("read sniff: %w", err)
	}
	return io.MultiReader(bytes.NewReader(head[:n]), r), http.DetectContentType(head[:n]), nil
}
