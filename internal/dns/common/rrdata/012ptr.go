package rrdata

// encodePTRData encodes a PTR record string into its binary representation.
func encodePTRData(data string) ([]byte, error) {
	// data = "ptr.example.com"
	return EncodeDomainName(data)
}

// decodePTRData decodes a PTR (Pointer) record's RDATA held in msg[start:end].
func decodePTRData(msg []byte, start, end int) (string, error) {
	return decodeName(msg, start, end)
}
