package domain

import (
	"strconv"
	"strings"
)

// B37Prefix is the literal first segment of a composite variant key.
const B37Prefix = "b37"

// VariantKey is the natural b37 identifier of a variant.
type VariantKey struct {
	Chrom string
	Pos   string
	Ref   string
	Var   string
}

// String renders "b37-{chrom}-{pos}-{ref}-{var}".
func (k VariantKey) String() string {
	return strings.Join([]string{B37Prefix, k.Chrom, k.Pos, k.Ref, k.Var}, "-")
}

// VariantKeyOf extracts the composite key from tags.
func VariantKeyOf(tags Tags) (VariantKey, bool) {
	chrom, ok1 := tags.Get(TagChromB37)
	pos, ok2 := tags.Get(TagPosB37)
	ref, ok3 := tags.Get(TagRefAlleleB37)
	alt, ok4 := tags.Get(TagVarAlleleB37)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return VariantKey{}, false
	}
	return VariantKey{Chrom: chrom, Pos: pos, Ref: ref, Var: alt}, true
}

// Lookup addresses a variant either by numeric id or by composite key.
type Lookup struct {
	ByID bool
	ID   int64
	Key  VariantKey
}

// ParseLookup interprets token. An all-digit token is an id; otherwise the
// token must be exactly five hyphen-separated segments starting with "b37".
// Anything else is reported as no match rather than an error.
func ParseLookup(token string) (Lookup, bool) {
	if isDigits(token) {
		id, err := strconv.ParseInt(token, 10, 64)
		if err != nil {
			return Lookup{}, false
		}
		return Lookup{ByID: true, ID: id}, true
	}
	parts := strings.Split(token, "-")
	if len(parts) != 5 || parts[0] != B37Prefix {
		return Lookup{}, false
	}
	for _, p := range parts[1:] {
		if p == "" {
			return Lookup{}, false
		}
	}
	return Lookup{Key: VariantKey{Chrom: parts[1], Pos: parts[2], Ref: parts[3], Var: parts[4]}}, true
}

// ParseLookupList parses every token, silently skipping the unparseable ones.
func ParseLookupList(tokens []string) []Lookup {
	out := make([]Lookup, 0, len(tokens))
	for _, tok := range tokens {
		if l, ok := ParseLookup(tok); ok {
			out = append(out, l)
		}
	}
	return out
}

// Matches reports whether v satisfies the lookup.
func (l Lookup) Matches(v Variant) bool {
	if l.ByID {
		return v.ID == l.ID
	}
	key, ok := VariantKeyOf(v.Tags)
	return ok && key == l.Key
}

// MatchesAny reports whether v satisfies at least one lookup (OR filter).
func MatchesAny(lookups []Lookup, v Variant) bool {
	for _, l := range lookups {
		if l.Matches(v) {
			return true
		}
	}
	return false
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
