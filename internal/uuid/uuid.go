// Package uuid provides UUID v4 generation and the local booking id scheme.
package uuid

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// LocalPrefix marks ids that were issued on this side and are not yet remote-confirmed.
const LocalPrefix = "local_"

// UUID v4 format: xxxxxxxx-xxxx-4xxx-yxxx-xxxxxxxxxxxx
// where y is one of [8, 9, a, b] (variant bits)
var uuidV4Regex = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-4[0-9a-fA-F]{3}-[89abAB][0-9a-fA-F]{3}-[0-9a-fA-F]{12}$`)

// New generates a new UUID v4.
func New() string {
	return uuid.New().String()
}

// NewLocal generates a local booking id: local_<unix-ms>_<6 random hex chars>.
func NewLocal(now time.Time) string {
	random := strings.ReplaceAll(uuid.New().String(), "-", "")
	return LocalPrefix + strconv.FormatInt(now.UnixMilli(), 10) + "_" + random[:6]
}

// IsLocal reports whether id was issued locally.
func IsLocal(id string) bool {
	return strings.HasPrefix(id, LocalPrefix)
}

// IsValid checks if a string is a valid UUID v4.
func IsValid(s string) bool {
	return uuidV4Regex.MatchString(s)
}

// Validate returns an error if the string is not a valid UUID v4.
func Validate(s string) error {
	if !IsValid(s) {
		return fmt.Errorf("invalid UUID v4 format: %q", s)
	}
	return nil
}
