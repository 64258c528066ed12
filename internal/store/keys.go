package store

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrInvalidKey = errors.New("store: invalid key")

// ParseKey reads a key written either as decimal or as 0x-prefixed hex.
func ParseKey(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidKey)
	}
	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = s[2:]
		base = 16
	}
	key, err := strconv.ParseUint(s, base, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidKey, s)
	}
	return key, nil
}

// FormatKey renders a key the way ParseKey reads it back.
func FormatKey(key uint64) string {
	return fmt.Sprintf("0x%x", key)
}
