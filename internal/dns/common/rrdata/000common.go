// Package rrdata converts record payloads between their text form and their
// wire form. Names are written uncompressed and read with compression.
package rrdata

import (
	"bytes"
	"fmt"
	"net"
	"strings"

	"github.com/haukened/rr-relay/internal/dns/domain"
)

const (
	// MaxLabelLength is the longest label a name may carry.
	MaxLabelLength = 63
	// MaxNameLength is the longest name in wire octets, length bytes and the
	// root terminator included.
	MaxNameLength = 255
)

// EncodeDomainName encodes a dot separated name into length-prefixed labels
// ending in the zero root byte. Case is preserved. An empty name or "." is the
// root; empty inner labels are rejected.
func EncodeDomainName(name string) ([]byte, error) {
	name = strings.TrimSuffix(strings.TrimSpace(name), ".")
	if name == "" {
		return []byte{0}, nil
	}
	encoded := make([]byte, 0, len(name)+2)
	for _, label := range strings.Split(name, ".") {
		if len(label) == 0 {
			return nil, fmt.Errorf("empty label in %q", name)
		}
		if len(label) > MaxLabelLength {
			return nil, fmt.Errorf("label too long: %s", label)
		}
		encoded = append(encoded, byte(len(label)))
		encoded = append(encoded, label...)
	}
	encoded = append(encoded, 0)
	if len(encoded) > MaxNameLength {
		return nil, fmt.Errorf("name too long: %d octets", len(encoded))
	}
	return encoded, nil
}

// ReadName decodes the possibly compressed name starting at off in msg. It
// returns the name and the offset just past the name as it appears at off:
// after the root byte, or after the first pointer when one was followed.
//
// Every pointer must target an offset strictly lower than the start of the
// label run it ends. Offsets therefore strictly decrease across jumps, which
// bounds the walk and rejects self, forward and cyclic pointers. A label
// holding a '.' byte could not be told apart from two labels once joined, so
// it is rejected too. Every failure wraps domain.ErrFormat.
func ReadName(msg []byte, off int) (string, int, error) {
	var (
		sb       strings.Builder
		pos      = off
		runStart = off
		next     = -1
		wireLen  = 1 // root byte
	)
	for {
		if pos >= len(msg) {
			return "", 0, domain.FormatErrorf("name at offset %d runs past end of message", off)
		}
		b := int(msg[pos])
		switch b & 0xC0 {
		case 0x00:
			if b == 0 {
				if next < 0 {
					next = pos + 1
				}
				return sb.String(), next, nil
			}
			pos++
			if pos+b > len(msg) {
				return "", 0, domain.FormatErrorf("label at offset %d runs past end of message", pos-1)
			}
			wireLen += b + 1
			if wireLen > MaxNameLength {
				return "", 0, domain.FormatErrorf("name at offset %d exceeds %d octets", off, MaxNameLength)
			}
			label := msg[pos : pos+b]
			if bytes.IndexByte(label, '.') >= 0 {
				return "", 0, domain.FormatErrorf("label at offset %d contains a dot", pos-1)
			}
			if sb.Len() > 0 {
				sb.WriteByte('.')
			}
			sb.Write(label)
			pos += b
		case 0xC0:
			if pos+1 >= len(msg) {
				return "", 0, domain.FormatErrorf("compression pointer at offset %d is truncated", pos)
			}
			target := (b&0x3F)<<8 | int(msg[pos+1])
			if target >= runStart {
				return "", 0, domain.FormatErrorf("compression pointer at offset %d targets %d, not before %d", pos, target, runStart)
			}
			if next < 0 {
				next = pos + 2
			}
			pos = target
			runStart = target
		default:
			return "", 0, domain.FormatErrorf("reserved label type 0x%02X at offset %d", b&0xC0, pos)
		}
	}
}

// decodeName reads the name filling the rdata msg[start:end]. Pointers may
// reach back into msg, but the name itself must not run past end.
func decodeName(msg []byte, start, end int) (string, error) {
	name, next, err := ReadName(msg, start)
	if err != nil {
		return "", err
	}
	if next > end {
		return "", domain.FormatErrorf("name at offset %d overruns rdata ending at %d", start, end)
	}
	return name, nil
}

// isIPv4 checks whether the provided net.IP address is an IPv4 address.
// It returns true if the IP is not nil and can be converted to IPv4 format.
func isIPv4(ip net.IP) bool {
	return ip != nil && ip.To4() != nil
}

// isIPv6 checks whether the provided net.IP is a valid IPv6 address.
// It returns true if the IP is not nil, has a valid 16-byte representation,
// and does not have a valid 4-byte IPv4 representation.
func isIPv6(ip net.IP) bool {
	return ip != nil && ip.To16() != nil && ip.To4() == nil
}
