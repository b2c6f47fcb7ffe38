package domain

import "strconv"

// RRClass represents a DNS class. IN is the only class rr-relay serves.
type RRClass uint16

const RRClassIN RRClass = 1 // IN - Internet

// String returns "IN" for the Internet class and the decimal code otherwise.
func (c RRClass) String() string {
	if c == RRClassIN {
		return "IN"
	}
	return strconv.Itoa(int(c))
}

// ParseRRClass converts a mnemonic or a decimal code to an RRClass.
func ParseRRClass(s string) (RRClass, bool) {
	if s == "IN" {
		return RRClassIN, true
	}
	n, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, false
	}
	return RRClass(n), true
}
