package rrdata

// encodeNSData encodes an NS record string into its binary representation.
func encodeNSData(data string) ([]byte, error) {
	// data = "ns.example.com"
	return EncodeDomainName(data)
}

// decodeNSData decodes the name server held in msg[start:end].
func decodeNSData(msg []byte, start, end int) (string, error) {
	return decodeName(msg, start, end)
}
