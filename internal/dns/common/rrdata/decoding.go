package rrdata

import "github.com/haukened/rr-relay/internal/dns/domain"

// Decode decodes the payload of a record of type rrType occupying
// msg[start:end]. msg is the whole message so that compressed names can be
// followed. Address payloads of the wrong length and unreadable names of the
// modelled types wrap domain.ErrFormat.
//
// Any other type is read as a name for display only. Such records are never
// cached, so an unreadable payload decodes to "" without error.
func Decode(rrType domain.RRType, msg []byte, start, end int) (string, error) {
	switch rrType {
	case domain.RRTypeA: // 1
		v, err := DecodeAData(msg[start:end])
		if err != nil {
			return "", domain.FormatErrorf("%v", err)
		}
		return v, nil
	case domain.RRTypeNS: // 2
		return decodeNSData(msg, start, end)
	case domain.RRTypeCNAME: // 5
		return decodeCNAMEData(msg, start, end)
	case domain.RRTypePTR: // 12
		return decodePTRData(msg, start, end)
	case domain.RRTypeAAAA: // 28
		v, err := DecodeAAAAData(msg[start:end])
		if err != nil {
			return "", domain.FormatErrorf("%v", err)
		}
		return v, nil
	default:
		if start == end {
			return "", nil
		}
		v, err := decodeName(msg, start, end)
		if err != nil {
			return "", nil
		}
		return v, nil
	}
}
