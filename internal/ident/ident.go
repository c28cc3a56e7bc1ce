// Package ident derives slugs and dealer-scoped entity identifiers.
package ident

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// MaxIDAttempts bounds the number of sequential candidates NextID tries.
const MaxIDAttempts = 100

// Entity id prefixes.
const (
	PrefixOrder    = "ORD"
	PrefixProduct  = "PRO"
	PrefixCategory = "CTR"
	PrefixDealer   = "DLR"
)

// ErrIDExhausted is returned when no free id was found within MaxIDAttempts.
var ErrIDExhausted = errors.New("no free identifier within attempt limit")

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases name and collapses every run of other characters into
// a single hyphen. The result may be empty.
func Slugify(name string) string {
	s := nonAlnum.ReplaceAllString(strings.ToLower(name), "-")
	return strings.Trim(s, "-")
}

// UniqueSlug returns base when no existing slug equals it. Otherwise it
// appends one more than the largest numeric suffix found among existing
// slugs that share the prefix; the bare base counts as 1.
func UniqueSlug(base string, existing []string) string {
	taken := false
	max := 0
	for _, s := range existing {
		if s == base {
			taken = true
			if max < 1 {
				max = 1
			}
			continue
		}
		n, ok := numericSuffix(s, base)
		if ok && n > max {
			max = n
		}
	}
	if !taken {
		return base
	}
	return base + strconv.Itoa(max+1)
}

// DealerNumber extracts the digits of a dealer id. Ids without digits fall
// back to their upper-cased alphanumerics.
func DealerNumber(dealerID string) string {
	var digits, alnum strings.Builder
	for _, r := range dealerID {
		switch {
		case unicode.IsDigit(r):
			digits.WriteRune(r)
			alnum.WriteRune(r)
		case unicode.IsLetter(r):
			alnum.WriteRune(unicode.ToUpper(r))
		}
	}
	if digits.Len() > 0 {
		return digits.String()
	}
	return alnum.String()
}

// NextID returns prefix+dealerNumber+sequence where sequence starts one past
// the highest sequence among existing ids. Each candidate is confirmed with
// exists before it is returned.
func NextID(prefix, dealerNumber string, existing []string, exists func(string) (bool, error)) (string, error) {
	head := prefix + dealerNumber
	max := 0
	for _, id := range existing {
		if n, ok := numericSuffix(id, head); ok && n > max {
			max = n
		}
	}

	for i := 1; i <= MaxIDAttempts; i++ {
		candidate := head + strconv.Itoa(max+i)
		taken, err := exists(candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", ErrIDExhausted
}

func numericSuffix(s, prefix string) (int, bool) {
	if !strings.HasPrefix(s, prefix) || len(s) == len(prefix) {
		return 0, false
	}
	rest := s[len(prefix):]
	for _, r := range rest {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(rest)
	if err != nil {
		return 0, false
	}
	return n, true
}
