// Package fingerprint computes content hashes used to recognise courses that
// are already in the catalog.
package fingerprint

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/conorfennell/courseboard/internal/domain"
)

// Normalize joins the course's name and description after cleaning each part.
// The ID is not part of the content.
func Normalize(course domain.Course) string {
	normalizePart := func(part string) string {
		p := strings.ToLower(part)
		p = strings.ReplaceAll(p, "\r\n", "\n")
		p = strings.TrimSpace(p)
		return p
	}

	// Fields may span lines, so they are joined with a NUL, which course
	// definition files never contain.
	return normalizePart(course.Name) + "\x00" + normalizePart(course.Description)
}

// Hash returns the SHA-256 of the normalized course as a hex string.
func Hash(course domain.Course) string {
	sum := sha256.Sum256([]byte(Normalize(course)))
	return fmt.Sprintf("%x", sum)
}
