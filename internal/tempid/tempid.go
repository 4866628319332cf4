// Package tempid generates the temporary identifiers given to records that are
// created while the shop is offline.
package tempid

import (
	"encoding/binary"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// suffixLen is the length of the random base36 suffix.
const suffixLen = 9

// Temporary id format: <prefix>_<unix-millis>_<base36 suffix>
// where prefix is "offline" optionally followed by "_<letters>".
var tempIDRegex = regexp.MustCompile(`^offline(_[a-z]+)?_[0-9]+_[0-9a-z]+$`)

// New returns a temporary identifier for the given prefix using the current time.
func New(prefix string) string {
	return NewAt(prefix, time.Now())
}

// NewAt returns a temporary identifier stamped with t.
// Two ids made in the same millisecond differ by their random suffix.
func NewAt(prefix string, t time.Time) string {
	return fmt.Sprintf("%s_%d_%s", prefix, t.UnixMilli(), randomSuffix())
}

// randomSuffix draws 64 random bits from a v4 UUID and renders them in base36.
func randomSuffix() string {
	id := uuid.New()
	n := binary.BigEndian.Uint64(id[8:]) ^ binary.BigEndian.Uint64(id[:8])
	s := strconv.FormatUint(n, 36)
	if len(s) < suffixLen {
		s = strings.Repeat("0", suffixLen-len(s)) + s
	}
	return s[:suffixLen]
}

// IsTemporary reports whether id was synthesized locally.
func IsTemporary(id string) bool {
	return tempIDRegex.MatchString(id)
}
