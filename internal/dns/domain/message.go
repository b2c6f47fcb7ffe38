package domain

import (
	"fmt"
	"strings"
)

// Opcode is the 4 bit kind-of-query field.
type Opcode uint8

const OpcodeQuery Opcode = 0

// Flags is the unpacked form of the 16 bit header flags word.
//
//	| QR | Opcode | AA | TC | RD | RA | Z | RCODE |
//	 15   14-11    10   9    8    7   6-4   3-0
type Flags struct {
	Response           bool
	Opcode             Opcode
	Authoritative      bool
	Truncated          bool
	RecursionDesired   bool
	RecursionAvailable bool
	Z                  uint8
	RCode              RCode
}

// Pack folds the flags into their wire word. Pack and UnpackFlags are exact
// inverses for every 16 bit value.
func (f Flags) Pack() uint16 {
	var v uint16
	if f.Response {
		v |= 1 << 15
	}
	v |= uint16(f.Opcode&0xF) << 11
	if f.Authoritative {
		v |= 1 << 10
	}
	if f.Truncated {
		v |= 1 << 9
	}
	if f.RecursionDesired {
		v |= 1 << 8
	}
	if f.RecursionAvailable {
		v |= 1 << 7
	}
	v |= uint16(f.Z&0x7) << 4
	v |= uint16(f.RCode & 0xF)
	return v
}

// UnpackFlags splits a wire flags word into its fields.
func UnpackFlags(v uint16) Flags {
	return Flags{
		Response:           v>>15&0x1 == 1,
		Opcode:             Opcode(v >> 11 & 0xF),
		Authoritative:      v>>10&0x1 == 1,
		Truncated:          v>>9&0x1 == 1,
		RecursionDesired:   v>>8&0x1 == 1,
		RecursionAvailable: v>>7&0x1 == 1,
		Z:                  uint8(v >> 4 & 0x7),
		RCode:              RCode(v & 0xF),
	}
}

// Header is the fixed 12 byte message header.
type Header struct {
	ID      uint16
	Flags   Flags
	QDCount uint16
	ANCount uint16
	NSCount uint16
	ARCount uint16
}

// Message is a decoded DNS message. Question is nil unless the header
// carries exactly one question; authority and additional sections are counted
// but never materialised.
type Message struct {
	Header   Header
	Question *Question
	Answers  []Record
}

// IsQuery reports whether the QR bit is clear.
func (m Message) IsQuery() bool {
	return !m.Header.Flags.Response
}

// NewResponse builds the answer to query. It reuses the id, opcode,
// recursion-desired bit and question of the query, always advertises recursion
// and sets NOERROR when answers is non-empty, NXDOMAIN otherwise.
func NewResponse(query Message, answers []Record, authoritative bool) Message {
	rcode := NOERROR
	if len(answers) == 0 {
		rcode = NXDOMAIN
	}
	resp := newReply(query, rcode)
	resp.Header.Flags.Authoritative = authoritative
	resp.Answers = make([]Record, len(answers))
	copy(resp.Answers, answers)
	resp.Header.ANCount = uint16(len(answers))
	return resp
}

// NewErrorResponse builds an answerless, non-authoritative reply carrying rcode.
func NewErrorResponse(query Message, rcode RCode) Message {
	return newReply(query, rcode)
}

func newReply(query Message, rcode RCode) Message {
	resp := Message{
		Header: Header{
			ID: query.Header.ID,
			Flags: Flags{
				Response:           true,
				Opcode:             query.Header.Flags.Opcode,
				RecursionDesired:   query.Header.Flags.RecursionDesired,
				RecursionAvailable: true,
				RCode:              rcode,
			},
		},
	}
	if query.Question != nil {
		q := *query.Question
		resp.Question = &q
		resp.Header.QDCount = 1
	}
	return resp
}

// String renders the message the way the debug log prints it.
func (m Message) String() string {
	var sb strings.Builder
	h := m.Header
	f := h.Flags
	fmt.Fprintf(&sb, "ID: 0x%04X\n", h.ID)
	fmt.Fprintf(&sb, "Flags: 0x%04X\n", f.Pack())
	switch {
	case !f.Response && f.Opcode == OpcodeQuery:
		sb.WriteString("- Standard Query\n")
	case f.Response && f.RCode == NOERROR:
		sb.WriteString("- Standard Response\n")
	case f.Response && f.RCode == NXDOMAIN:
		sb.WriteString("- Response NXDomain\n")
	default:
		sb.WriteString("- Unexpected QR/opcode\n")
	}
	if f.Authoritative {
		sb.WriteString("- Authoritative Answer\n")
	}
	if f.RecursionDesired {
		sb.WriteString("- Recursion Requested\n")
	}
	if f.RecursionAvailable {
		sb.WriteString("- Recursion Available\n")
	}
	fmt.Fprintf(&sb, "# Questions: %d\n", h.QDCount)
	fmt.Fprintf(&sb, "# Answers: %d\n", h.ANCount)
	fmt.Fprintf(&sb, "# Authority RRs: %d\n", h.NSCount)
	fmt.Fprintf(&sb, "# Additional RRs: %d\n", h.ARCount)
	if m.Question != nil {
		sb.WriteString("Questions:\n")
		fmt.Fprintf(&sb, "- %s\n", m.Question)
	}
	if len(m.Answers) > 0 {
		sb.WriteString("Answers:\n")
		for _, rr := range m.Answers {
			fmt.Fprintf(&sb, "- %s\n", rr)
		}
	}
	return sb.String()
}
