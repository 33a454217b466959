// Package rank implements the ordering-key scheme for board columns.
//
// Ranks are base-36 strings compared lexicographically. Inserting an item
// between two neighbors derives a new key from the neighbors alone, so no
// other row in the column is ever rewritten. Repeated insertion into the
// same gap grows keys; Rebalance hands out fresh evenly-spaced keys when
// NeedsRebalance reports the column has fragmented.
package rank

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// maxLen is the practical key-length bound. Keys only approach it after
// pathological insertion patterns; crossing it signals a rebalance.
const maxLen = 40

// ErrNoRoom is returned when no key exists strictly between the neighbors.
// The caller rebalances the column and retries.
var ErrNoRoom = errors.New("rank: no room between neighbors")

// Initial returns the rank for an item inserted into an empty column:
// the midpoint of the whole key space.
func Initial() string {
	return string(alphabet[len(alphabet)/2])
}

// Between returns a key sorting strictly between prev and next. An empty
// prev means "before next"; an empty next means "after prev"; both empty
// behaves like Initial.
func Between(prev, next string) (string, error) {
	if next != "" && prev >= next {
		return "", fmt.Errorf("rank: neighbors out of order (%q >= %q)", prev, next)
	}
	if next != "" && noRoom(prev, next) {
		return "", ErrNoRoom
	}
	return midpoint(prev, next), nil
}

// midpoint assumes prev < next (next may be empty, meaning the top of the
// key space) and that room exists between them.
func midpoint(a, b string) string {
	if b != "" {
		// Shared prefix, treating a's missing digits as the minimum digit.
		i := 0
		for i < len(b) && digitOrZero(a, i) == b[i] {
			i++
		}
		if i > 0 {
			return b[:i] + midpoint(suffix(a, i), b[i:])
		}
	}

	digitA := 0
	if a != "" {
		digitA = strings.IndexByte(alphabet, a[0])
	}
	digitB := len(alphabet)
	if b != "" {
		digitB = strings.IndexByte(alphabet, b[0])
	}

	if digitB-digitA > 1 {
		return string(alphabet[(digitA+digitB)/2])
	}

	// First digits are consecutive.
	if len(b) > 1 {
		return b[:1]
	}
	return string(alphabet[digitA]) + midpoint(suffix(a, 1), "")
}

func digitOrZero(s string, i int) byte {
	if i < len(s) {
		return s[i]
	}
	return alphabet[0]
}

func suffix(s string, i int) string {
	if i >= len(s) {
		return ""
	}
	return s[i:]
}

// noRoom reports whether nothing can sort strictly between a and b. With
// engine-generated keys (which never end in the minimum digit) this only
// happens when b is a followed solely by zeros.
func noRoom(a, b string) bool {
	if !strings.HasPrefix(b, a) {
		return false
	}
	return strings.Trim(b[len(a):], "0") == ""
}

// NeedsRebalance reports whether a column's ranks have fragmented: any
// sorted-adjacent pair with no insertion room left, a duplicate, or a key
// grown past the practical length bound.
func NeedsRebalance(ranks []string) bool {
	if len(ranks) == 0 {
		return false
	}
	sorted := make([]string, len(ranks))
	copy(sorted, ranks)
	sort.Strings(sorted)

	for i, r := range sorted {
		if len(r) > maxLen {
			return true
		}
		if i == 0 {
			continue
		}
		prev := sorted[i-1]
		if r <= prev || noRoom(prev, r) {
			return true
		}
	}
	return false
}

// Spread returns n fresh evenly-spaced keys in ascending order, used to
// rebalance a column. The keys leave uniform insertion headroom, so
// NeedsRebalance over the result is always false.
func Spread(n int) []string {
	if n <= 0 {
		return nil
	}

	base := len(alphabet)
	width := 3
	span := base * base * base
	for span/(n+1) < 2 {
		span *= base
		width++
	}
	step := span / (n + 1)

	keys := make([]string, n)
	for i := range keys {
		keys[i] = strings.TrimRight(encode((i+1)*step, width), "0")
	}
	return keys
}

// encode renders v as a fixed-width base-36 string.
func encode(v, width int) string {
	buf := make([]byte, width)
	for i := width - 1; i >= 0; i-- {
		buf[i] = alphabet[v%len(alphabet)]
		v /= len(alphabet)
	}
	return string(buf)
}
