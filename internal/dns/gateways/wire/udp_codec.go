// Package wire provides encoding and decoding of DNS messages for UDP transport.
// It handles the DNS wire format as specified in RFC 1035.
package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/haukened/rr-relay/internal/dns/common/log"
	"github.com/haukened/rr-relay/internal/dns/common/rrdata"
	"github.com/haukened/rr-relay/internal/dns/domain"
)

// udpCodec implements the DNSCodec interface for standard DNS over UDP messages.
type udpCodec struct {
	logger log.Logger
}

// NewUDPCodec creates and returns a new instance of udpCodec using the provided logger.
// The logger is used for logging within the codec.
func NewUDPCodec(logger log.Logger) *udpCodec {
	return &udpCodec{
		logger: logger,
	}
}

// Decode parses the header, the question when QDCount is 1, and the answer
// section. Authority and additional sections are left unread.
func (c *udpCodec) Decode(data []byte) (domain.Message, error) {
	if len(data) < HeaderSize {
		return domain.Message{}, domain.FormatErrorf("message too short: %d bytes", len(data))
	}
	msg := domain.Message{
		Header: domain.Header{
			ID:      binary.BigEndian.Uint16(data[0:2]),
			Flags:   domain.UnpackFlags(binary.BigEndian.Uint16(data[2:4])),
			QDCount: binary.BigEndian.Uint16(data[4:6]),
			ANCount: binary.BigEndian.Uint16(data[6:8]),
			NSCount: binary.BigEndian.Uint16(data[8:10]),
			ARCount: binary.BigEndian.Uint16(data[10:12]),
		},
	}

	offset := HeaderSize
	if msg.Header.QDCount == 1 {
		q, next, err := decodeQuestion(data, offset)
		if err != nil {
			return domain.Message{}, err
		}
		msg.Question = &q
		offset = next
	} else {
		if msg.Header.QDCount > 1 {
			c.logger.Warn(map[string]any{
				"id":      msg.Header.ID,
				"qdcount": msg.Header.QDCount,
			}, "Message carries more than one question, questions ignored")
		}
		for i := 0; i < int(msg.Header.QDCount); i++ {
			_, next, err := decodeQuestion(data, offset)
			if err != nil {
				return domain.Message{}, fmt.Errorf("question %d: %w", i, err)
			}
			offset = next
		}
	}

	msg.Answers = make([]domain.Record, 0, min(int(msg.Header.ANCount), 32))
	for i := 0; i < int(msg.Header.ANCount); i++ {
		rr, next, err := c.decodeRecord(data, offset)
		if err != nil {
			return domain.Message{}, fmt.Errorf("answer %d: %w", i, err)
		}
		msg.Answers = append(msg.Answers, rr)
		offset = next
	}

	c.logger.Debug(map[string]any{
		"id":      msg.Header.ID,
		"qr":      msg.Header.Flags.Response,
		"qdcount": msg.Header.QDCount,
		"ancount": msg.Header.ANCount,
		"size":    len(data),
	}, "Decoded DNS message")
	return msg, nil
}

func decodeQuestion(data []byte, offset int) (domain.Question, int, error) {
	name, offset, err := rrdata.ReadName(data, offset)
	if err != nil {
		return domain.Question{}, 0, err
	}
	if offset+4 > len(data) {
		return domain.Question{}, 0, domain.FormatErrorf("truncated question at offset %d", offset)
	}
	return domain.Question{
		Name:  name,
		Type:  domain.RRType(binary.BigEndian.Uint16(data[offset : offset+2])),
		Class: domain.RRClass(binary.BigEndian.Uint16(data[offset+2 : offset+4])),
	}, offset + 4, nil
}

// decodeRecord extracts a single resource record. The returned offset is
// always rdata start plus rdlength, whatever the payload parser consumed.
func (c *udpCodec) decodeRecord(data []byte, offset int) (domain.Record, int, error) {
	name, offset, err := rrdata.ReadName(data, offset)
	if err != nil {
		return domain.Record{}, 0, err
	}
	if offset+10 > len(data) {
		return domain.Record{}, 0, domain.FormatErrorf("truncated record header at offset %d", offset)
	}
	rrtype := domain.RRType(binary.BigEndian.Uint16(data[offset : offset+2]))
	class := domain.RRClass(binary.BigEndian.Uint16(data[offset+2 : offset+4]))
	//gosec:disable G115 -- TTL is a signed 32 bit field on the wire.
	ttl := int32(binary.BigEndian.Uint32(data[offset+4 : offset+8]))
	rdLen := int(binary.BigEndian.Uint16(data[offset+8 : offset+10]))
	start := offset + 10
	end := start + rdLen
	if end > len(data) {
		return domain.Record{}, 0, domain.FormatErrorf("rdata of %d bytes at offset %d runs past end of message", rdLen, start)
	}

	payload, err := rrdata.Decode(rrtype, data, start, end)
	if err != nil {
		return domain.Record{}, 0, err
	}
	return domain.NewRecord(name, ttl, class, rrtype, payload), end, nil
}

// Encode writes the header, the question if present and every answer,
// uncompressed, into a fixed MaxMessageSize buffer.
func (c *udpCodec) Encode(msg domain.Message) ([]byte, error) {
	if len(msg.Answers) > 0xFFFF {
		return nil, fmt.Errorf("%w: %d answers", domain.ErrMessageTooLarge, len(msg.Answers))
	}
	if size := encodedSize(msg); size > MaxMessageSize {
		return nil, fmt.Errorf("%w: id %d needs %d bytes", domain.ErrMessageTooLarge, msg.Header.ID, size)
	}
	w := newWriter()

	var qdCount uint16
	if msg.Question != nil {
		qdCount = 1
	}
	w.uint16(msg.Header.ID)
	w.uint16(msg.Header.Flags.Pack())
	w.uint16(qdCount)
	w.uint16(uint16(len(msg.Answers)))
	w.uint16(0) // NSCOUNT
	w.uint16(0) // ARCOUNT

	if q := msg.Question; q != nil {
		qname, err := rrdata.EncodeDomainName(q.Name)
		if err != nil {
			return nil, fmt.Errorf("encode question: %w", err)
		}
		w.bytes(qname)
		w.uint16(uint16(q.Type))
		w.uint16(uint16(q.Class))
	}

	for i, rr := range msg.Answers {
		name, err := rrdata.EncodeDomainName(rr.Name)
		if err != nil {
			return nil, fmt.Errorf("encode answer %d name: %w", i, err)
		}
		payload, err := rrdata.Encode(rr.Type, rr.Data)
		if err != nil {
			return nil, fmt.Errorf("encode answer %d data: %w", i, err)
		}
		w.bytes(name)
		w.uint16(uint16(rr.Type))
		w.uint16(uint16(rr.Class))
		//gosec:disable G115 -- TTL is a signed 32 bit field on the wire.
		w.uint32(uint32(rr.TTL))
		w.uint16(uint16(len(payload)))
		w.bytes(payload)

		c.logger.Debug(map[string]any{
			"step": "answer_written",
			"name": rr.Name,
			"type": rr.Type.String(),
			"ttl":  rr.TTL,
			"dlen": len(payload),
		}, "Wrote answer record")
	}

	if w.overflow {
		return nil, fmt.Errorf("%w: id %d with %d answers", domain.ErrMessageTooLarge, msg.Header.ID, len(msg.Answers))
	}
	c.logger.Debug(map[string]any{
		"step": "final_packet",
		"id":   msg.Header.ID,
		"size": w.off,
	}, "Encoded DNS message")
	return w.result(), nil
}

// encodedSize is the uncompressed wire size of msg.
func encodedSize(msg domain.Message) int {
	n := HeaderSize
	if q := msg.Question; q != nil {
		n += domain.NameWireLength(q.Name) + 4
	}
	for _, rr := range msg.Answers {
		n += domain.NameWireLength(rr.Name) + 10 + rr.DataLength()
	}
	return n
}

var _ DNSCodec = &udpCodec{}
