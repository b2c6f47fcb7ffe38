package rrdata

// encodeCNAMEData encodes a CNAME record string into its binary representation.
func encodeCNAMEData(data string) ([]byte, error) {
	// data = "cname.example.com"
	return EncodeDomainName(data)
}

func decodeCNAMEData(msg []byte, start, end int) (string, error) {
	return decodeName(msg, start, end)
}
