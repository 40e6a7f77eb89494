package invoices

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// NumberPrefix starts every invoice number.
const NumberPrefix = "INV-"

// ErrNumberConflict is returned by repositories when the allocated number is
// already taken by a concurrent create.
var ErrNumberConflict = errors.New("invoices: number already allocated")

// NextNumber proposes the number following the highest numeric suffix in
// existing. It is advisory: uniqueness is enforced by the store.
func NextNumber(existing []string) string {
	highest := 0
	for _, n := range existing {
		if v, ok := numericSuffix(n); ok && v > highest {
			highest = v
		}
	}
	return fmt.Sprintf("%s%04d", NumberPrefix, highest+1)
}

func numericSuffix(number string) (int, bool) {
	end := len(number)
	start := strings.LastIndexFunc(number, func(r rune) bool { return !unicode.IsDigit(r) }) + 1
	if start >= end {
		return 0, false
	}
	v, err := strconv.Atoi(number[start:end])
	if err != nil {
		return 0, false
	}
	return v, true
}
