package wire

import "github.com/haukened/rr-relay/internal/dns/domain"

// MaxMessageSize is the fixed UDP message size. Larger messages are rejected,
// never truncated.
const MaxMessageSize = 512

// HeaderSize is the length of the fixed message header.
const HeaderSize = 12

// DNSCodec converts messages to and from their wire form.
type DNSCodec interface {
	// Decode parses a datagram. Malformed input yields an error wrapping
	// domain.ErrFormat.
	Decode(data []byte) (domain.Message, error)

	// Encode serializes msg into at most MaxMessageSize bytes. Answers are
	// written without name compression.
	Encode(msg domain.Message) ([]byte, error)
}
