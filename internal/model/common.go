// Package model holds the station's domain entities and their validate()
// routines (spec.md §4.2 "Domain Model & Validators"). Each entity
// implements Validate, returning the first failing invariant as a typed
// *apierr.Error, grounded on the field-bounds table in spec.md §4.2.
package model

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"orbit-station/internal/apierr"
)

// Field bounds, spec.md §4.2.
const (
	UserIdentitiesMin = 1
	UserIdentitiesMax = 10
	UserNameMin       = 1
	UserNameMax       = 100
	AddressMin        = 1
	AddressMax        = 255
	AssetSymbolMin    = 1
	AssetSymbolMax    = 8
	MetadataMaxCount  = 10
	MetadataKeyMin    = 1
	MetadataKeyMax    = 24
	MetadataValueMax  = 255
	MaxRuleDepth      = 10
)

// Metadata is a bounded key/value bag attached to several entities.
type Metadata map[string]string

// Validate enforces the metadata bounds from spec.md §4.2.
func (m Metadata) Validate() error {
	if len(m) > MetadataMaxCount {
		return apierr.Newf(apierr.Validation, "metadata: at most %d entries allowed, got %d", MetadataMaxCount, len(m))
	}
	for k, v := range m {
		if len(k) < MetadataKeyMin || len(k) > MetadataKeyMax {
			return apierr.Newf(apierr.Validation, "metadata key %q must be %d..%d chars", k, MetadataKeyMin, MetadataKeyMax)
		}
		if len(v) > MetadataValueMax {
			return apierr.Newf(apierr.Validation, "metadata value for key %q exceeds %d chars", k, MetadataValueMax)
		}
	}
	return nil
}

// NormalizeName applies NFC normalization, casefolding, and whitespace
// collapsing for uniqueness comparisons (spec.md §4.2). The caller's
// original string is retained separately for display.
func NormalizeName(s string) string {
	folded := norm.NFC.String(s)
	folded = strings.Map(unicode.ToLower, folded)
	fields := strings.Fields(folded)
	return strings.Join(fields, " ")
}

func validateLen(field, value string, min, max int) error {
	if len(value) < min || len(value) > max {
		return apierr.Newf(apierr.Validation, "%s must be %d..%d characters, got %d", field, min, max, len(value))
	}
	return nil
}
