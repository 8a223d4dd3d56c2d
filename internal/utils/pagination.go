// Package utils provides small, generic helper functions used across
// different layers of the application. These utilities are independent
// of domain or business logic.
package utils

import "strconv"

// AtoiDefault converts a string to an int using strconv.Atoi.
// If the string is empty or cannot be parsed as an integer,
// it returns the provided default value instead.
//
// Example:
//
//	n := utils.AtoiDefault("42", 0) // returns 42
//	n = utils.AtoiDefault("", 10)   // returns 10
//	n = utils.AtoiDefault("x", 5)   // returns 5
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// PageBounds returns the half-open index range [lo, hi) of page (1-based) in
// a list of n items. Out-of-range pages yield an empty range at n.
func PageBounds(n, page, pageSize int) (lo, hi int) {
	if page < 1 || pageSize < 1 {
		return 0, 0
	}
	lo = (page - 1) * pageSize
	if lo > n || lo < 0 {
		return n, n
	}
	hi = lo + pageSize
	if hi > n {
		hi = n
	}
	return lo, hi
}

// TotalPages is the number of pages of size pageSize needed for total items.
func TotalPages(total int64, pageSize int) int {
	if pageSize < 1 {
		return 0
	}
	return int((total + int64(pageSize) - 1) / int64(pageSize))
}
