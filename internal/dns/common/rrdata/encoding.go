package rrdata

import "github.com/haukened/rr-relay/internal/dns/domain"

// Encode encodes a record value based on its type, to its binary representation.
// Types without an address payload are written as an uncompressed name.
func Encode(rrType domain.RRType, data string) ([]byte, error) {
	switch rrType {
	case domain.RRTypeA: // 1
		return EncodeAData(data)
	case domain.RRTypeNS: // 2
		return encodeNSData(data)
	case domain.RRTypeCNAME: // 5
		return encodeCNAMEData(data)
	case domain.RRTypePTR: // 12
		return encodePTRData(data)
	case domain.RRTypeAAAA: // 28
		return EncodeAAAAData(data)
	default:
		return EncodeDomainName(data)
	}
}
