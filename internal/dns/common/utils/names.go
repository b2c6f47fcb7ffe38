// Package utils holds small name helpers shared by the zone loader, the zone
// store and the resolver.
package utils

import (
	"strings"

	"golang.org/x/net/publicsuffix"
)

// CanonicalDNSName trims surrounding whitespace and any trailing root dots.
// Case is preserved: record lookups in rr-relay are exact string matches, and a
// name decoded off the wire never carries a trailing dot.
func CanonicalDNSName(name string) string {
	name = strings.TrimSpace(name)
	for strings.HasSuffix(name, ".") {
		name = strings.TrimSuffix(name, ".")
	}
	return name
}

// GetApexDomain returns the registrable domain (eTLD+1) of name, lowercased.
// Names publicsuffix cannot place, such as single labels, are returned as is.
func GetApexDomain(name string) string {
	name = strings.ToLower(CanonicalDNSName(name))
	apex, err := publicsuffix.EffectiveTLDPlusOne(name)
	if err != nil {
		return name
	}
	return apex
}
