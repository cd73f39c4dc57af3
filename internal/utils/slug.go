package utils

import (
	"fmt"
	"strings"
	"time"
)

// Slugify lowercases a name and collapses every run of non-alphanumeric
// characters into a single hyphen, trimming hyphens from both ends.
// "Elite MMA Academy" becomes "elite-mma-academy".
func Slugify(name string) string {
	var b strings.Builder
	lastHyphen := false
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			lastHyphen = false
			continue
		}
		if !lastHyphen {
			b.WriteByte('-')
			lastHyphen = true
		}
	}
	return strings.Trim(b.String(), "-")
}

// UniqueSlugSuffix appends a millisecond timestamp to disambiguate a slug
// that collided with an existing gym.  Collisions are rare; the tie-break
// does not need to be deterministic, only unique enough that the database's
// unique index on slug is satisfied.
func UniqueSlugSuffix(slug string) string {
	return fmt.Sprintf("%s-%d", slug, time.Now().UnixMilli())
}
