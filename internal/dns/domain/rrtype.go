package domain

import "strconv"

// RRType represents a DNS resource record type (e.g. A, CNAME).
// See IANA DNS Parameters for assigned codes.
type RRType uint16

// DNS Resource Record Type constants
const (
	RRTypeA     RRType = 1  // A - IPv4 address
	RRTypeNS    RRType = 2  // NS - Name server
	RRTypeCNAME RRType = 5  // CNAME - Canonical name
	RRTypeSOA   RRType = 6  // SOA - Start of authority
	RRTypePTR   RRType = 12 // PTR - Pointer
	RRTypeAAAA  RRType = 28 // AAAA - IPv6 address
)

// IsConstructible reports whether records of this type can be built from
// their textual form (zone files).
func (t RRType) IsConstructible() bool {
	return t == RRTypeA || t == RRTypeCNAME
}

// IsCacheable reports whether a decoded payload of this type is a faithful
// rendition of the wire rdata, so the record can be served back later.
func (t RRType) IsCacheable() bool {
	switch t {
	case RRTypeA, RRTypeAAAA, RRTypeNS, RRTypeCNAME, RRTypePTR:
		return true
	default:
		return false
	}
}

// String returns the mnemonic for known types and the decimal code otherwise.
func (t RRType) String() string {
	switch t {
	case RRTypeA:
		return "A"
	case RRTypeNS:
		return "NS"
	case RRTypeCNAME:
		return "CNAME"
	case RRTypeSOA:
		return "SOA"
	case RRTypePTR:
		return "PTR"
	case RRTypeAAAA:
		return "AAAA"
	default:
		return strconv.Itoa(int(t))
	}
}

// ParseRRType converts a mnemonic or a decimal code to an RRType.
func ParseRRType(s string) (RRType, bool) {
	switch s {
	case "A":
		return RRTypeA, true
	case "NS":
		return RRTypeNS, true
	case "CNAME":
		return RRTypeCNAME, true
	case "SOA":
		return RRTypeSOA, true
	case "PTR":
		return RRTypePTR, true
	case "AAAA":
		return RRTypeAAAA, true
	}
	n, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, false
	}
	return RRType(n), true
}
