package wire

import (
	"encoding/binary"
	"errors"
	"net"
	"strings"
	"testing"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haukened/rr-relay/internal/dns/common/log"
	"github.com/haukened/rr-relay/internal/dns/domain"
)

func newTestCodec() *udpCodec {
	return NewUDPCodec(log.NewNoopLogger())
}

func rrHeader(name string, rrtype uint16, ttl uint32) dns.RR_Header {
	return dns.RR_Header{Name: name, Rrtype: rrtype, Class: dns.ClassINET, Ttl: ttl}
}

// referenceReply builds a reply with one record of each modelled type plus
// an MX record, packed by an independent implementation.
func referenceReply(t *testing.T, compress bool) []byte {
	t.Helper()
	m := new(dns.Msg)
	m.SetQuestion("www.example.com.", dns.TypeA)
	m.Id = 0x1234
	m.Response = true
	m.RecursionAvailable = true
	m.Compress = compress
	m.Answer = []dns.RR{
		&dns.CNAME{Hdr: rrHeader("www.example.com.", dns.TypeCNAME, 60), Target: "web.example.com."},
		&dns.A{Hdr: rrHeader("web.example.com.", dns.TypeA, 300), A: net.ParseIP("192.0.2.10")},
		&dns.MX{Hdr: rrHeader("example.com.", dns.TypeMX, 3600), Preference: 10, Mx: "mail.example.com."},
		&dns.AAAA{Hdr: rrHeader("web.example.com.", dns.TypeAAAA, 300), AAAA: net.ParseIP("2001:db8::10")},
		&dns.NS{Hdr: rrHeader("example.com.", dns.TypeNS, 86400), Ns: "ns1.example.com."},
		&dns.PTR{Hdr: rrHeader("10.2.0.192.in-addr.arpa.", dns.TypePTR, 120), Ptr: "web.example.com."},
	}
	data, err := m.Pack()
	require.NoError(t, err)
	return data
}

func TestDecode_Query(t *testing.T) {
	m := new(dns.Msg)
	m.SetQuestion("www.example.com.", dns.TypeA)
	m.Id = 0xBEEF
	data, err := m.Pack()
	require.NoError(t, err)

	msg, err := newTestCodec().Decode(data)
	require.NoError(t, err)

	assert.Equal(t, uint16(0xBEEF), msg.Header.ID)
	assert.True(t, msg.IsQuery())
	assert.True(t, msg.Header.Flags.RecursionDesired)
	assert.Equal(t, uint16(1), msg.Header.QDCount)
	require.NotNil(t, msg.Question)
	assert.Equal(t, domain.Question{Name: "www.example.com", Type: domain.RRTypeA, Class: domain.RRClassIN}, *msg.Question)
	assert.Empty(t, msg.Answers)
}

func TestDecode_CompressedReply(t *testing.T) {
	msg, err := newTestCodec().Decode(referenceReply(t, true))
	require.NoError(t, err)

	assert.False(t, msg.IsQuery())
	assert.True(t, msg.Header.Flags.RecursionAvailable)
	require.Len(t, msg.Answers, 6)

	want := []domain.Record{
		domain.NewRecord("www.example.com", 60, domain.RRClassIN, domain.RRTypeCNAME, "web.example.com"),
		domain.NewRecord("web.example.com", 300, domain.RRClassIN, domain.RRTypeA, "192.0.2.10"),
		domain.NewRecord("example.com", 3600, domain.RRClassIN, domain.RRType(dns.TypeMX), msg.Answers[2].Data),
		domain.NewRecord("web.example.com", 300, domain.RRClassIN, domain.RRTypeAAAA, "2001:db8::10"),
		domain.NewRecord("example.com", 86400, domain.RRClassIN, domain.RRTypeNS, "ns1.example.com"),
		domain.NewRecord("10.2.0.192.in-addr.arpa", 120, domain.RRClassIN, domain.RRTypePTR, "web.example.com"),
	}
	assert.Equal(t, want, msg.Answers)
}

func TestDecode_CompressionEquivalence(t *testing.T) {
	codec := newTestCodec()
	compressed := referenceReply(t, true)
	plain := referenceReply(t, false)
	require.Less(t, len(compressed), len(plain))

	a, err := codec.Decode(compressed)
	require.NoError(t, err)
	b, err := codec.Decode(plain)
	require.NoError(t, err)
	assert.Equal(t, b, a)
}

// header returns a 12 byte header with the given counts.
func header(id, flags, qd, an uint16) []byte {
	h := make([]byte, HeaderSize)
	binary.BigEndian.PutUint16(h[0:2], id)
	binary.BigEndian.PutUint16(h[2:4], flags)
	binary.BigEndian.PutUint16(h[4:6], qd)
	binary.BigEndian.PutUint16(h[6:8], an)
	return h
}

func TestDecode_MalformedNames(t *testing.T) {
	tests := []struct {
		name string
		body []byte
	}{
		{"self pointer", []byte{0xC0, 0x0C, 0, 1, 0, 1}},
		{"forward pointer", []byte{0xC0, 0x10, 0, 1, 0, 1, 0}},
		{"label then pointer back to own start", []byte{1, 'a', 0xC0, 0x0C, 0, 1, 0, 1}},
		{"reserved 01 label type", []byte{0x40, 'a', 0, 0, 1, 0, 1}},
		{"reserved 10 label type", []byte{0x80, 'a', 0, 0, 1, 0, 1}},
		{"truncated pointer", []byte{0xC0}},
		{"label past end", []byte{9, 'a', 'b'}},
		{"missing root", []byte{3, 'c', 'o', 'm'}},
		{"dot inside label", []byte{3, 'a', '.', 'b', 3, 'c', 'o', 'm', 0, 0, 1, 0, 1}},
		{"truncated question fields", []byte{3, 'c', 'o', 'm', 0, 0, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := append(header(1, 0x0100, 1, 0), tt.body...)
			_, err := newTestCodec().Decode(data)
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrFormat), "got %v", err)
		})
	}
}

func TestDecode_PointerCycleBetweenAnswers(t *testing.T) {
	// Question "a" at 12. The answer name at 19 points to 21, which points
	// back to 19: the first jump goes forward and is rejected.
	data := header(1, 0x8180, 1, 1)
	data = append(data, 1, 'a', 0, 0, 1, 0, 1) // 12..18
	data = append(data, 0xC0, 21, 0xC0, 19)    // 19..22
	data = append(data, 0, 1, 0, 1, 0, 0, 0, 1, 0, 4, 1, 2, 3, 4)

	_, err := newTestCodec().Decode(data)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrFormat))
}

func TestDecode_NameTooLong(t *testing.T) {
	label := append([]byte{63}, []byte(strings.Repeat("x", 63))...)
	var body []byte
	for i := 0; i < 4; i++ {
		body = append(body, label...)
	}
	body = append(body, 0, 0, 1, 0, 1)

	_, err := newTestCodec().Decode(append(header(1, 0, 1, 0), body...))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrFormat))
}

func TestDecode_ShortAndTruncated(t *testing.T) {
	codec := newTestCodec()

	_, err := codec.Decode(make([]byte, HeaderSize-1))
	assert.True(t, errors.Is(err, domain.ErrFormat))

	_, err = codec.Decode(header(1, 0x8180, 0, 1))
	assert.True(t, errors.Is(err, domain.ErrFormat), "announced answer is missing")

	reply := referenceReply(t, true)
	_, err = codec.Decode(reply[:len(reply)-3])
	assert.True(t, errors.Is(err, domain.ErrFormat), "rdata cut short")
}

func TestDecode_BadAddressLength(t *testing.T) {
	data := header(1, 0x8180, 0, 1)
	data = append(data, 1, 'a', 0, 0, 1, 0, 1, 0, 0, 0, 10, 0, 3, 1, 2, 3)
	_, err := newTestCodec().Decode(data)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrFormat))
}

func TestDecode_UnmodelledPayloadKeepsCursor(t *testing.T) {
	// A TXT record whose rdata is not a name, followed by an A record.
	data := header(7, 0x8180, 0, 2)
	data = append(data, 1, 'a', 0, 0, 16, 0, 1, 0, 0, 0, 5, 0, 3, 0xFF, 'h', 'i')
	data = append(data, 1, 'b', 0, 0, 1, 0, 1, 0, 0, 0, 5, 0, 4, 10, 0, 0, 1)

	msg, err := newTestCodec().Decode(data)
	require.NoError(t, err)
	require.Len(t, msg.Answers, 2)
	assert.Equal(t, domain.RRType(16), msg.Answers[0].Type)
	assert.Equal(t, "", msg.Answers[0].Data)
	assert.Equal(t, domain.NewRecord("b", 5, domain.RRClassIN, domain.RRTypeA, "10.0.0.1"), msg.Answers[1])
}

func TestDecode_QuestionCounts(t *testing.T) {
	answer := []byte{0xC0, 12, 0, 1, 0, 1, 0, 0, 0, 30, 0, 4, 192, 0, 2, 1}

	t.Run("two questions are skipped", func(t *testing.T) {
		data := header(2, 0x8180, 2, 1)
		data = append(data, 1, 'a', 0, 0, 1, 0, 1)
		data = append(data, 1, 'b', 0, 0, 1, 0, 1)
		data = append(data, answer...)

		msg, err := newTestCodec().Decode(data)
		require.NoError(t, err)
		assert.Nil(t, msg.Question)
		assert.Equal(t, uint16(2), msg.Header.QDCount)
		require.Len(t, msg.Answers, 1)
		assert.Equal(t, "a", msg.Answers[0].Name)
	})

	t.Run("no question", func(t *testing.T) {
		data := header(3, 0x8180, 0, 1)
		data = append(data, 1, 'c', 0, 0, 1, 0, 1, 0, 0, 0, 30, 0, 4, 192, 0, 2, 1)

		msg, err := newTestCodec().Decode(data)
		require.NoError(t, err)
		assert.Nil(t, msg.Question)
		require.Len(t, msg.Answers, 1)
		assert.Equal(t, "c", msg.Answers[0].Name)
	})
}

func TestDecode_NegativeTTL(t *testing.T) {
	data := header(1, 0x8180, 0, 1)
	data = append(data, 1, 'a', 0, 0, 1, 0, 1, 0xFF, 0xFF, 0xFF, 0xFF, 0, 4, 1, 2, 3, 4)
	msg, err := newTestCodec().Decode(data)
	require.NoError(t, err)
	assert.Equal(t, int32(-1), msg.Answers[0].TTL)
}

func sampleResponse() domain.Message {
	query := domain.Message{
		Header: domain.Header{
			ID:      0x1234,
			Flags:   domain.Flags{RecursionDesired: true, Z: 5},
			QDCount: 1,
		},
		Question: &domain.Question{Name: "www.example.com", Type: domain.RRTypeA, Class: domain.RRClassIN},
	}
	resp := domain.NewResponse(query, []domain.Record{
		domain.NewRecord("www.example.com", 60, domain.RRClassIN, domain.RRTypeCNAME, "web.example.com"),
		domain.NewRecord("web.example.com", 300, domain.RRClassIN, domain.RRTypeA, "192.0.2.10"),
		domain.NewRecord("web.example.com", 300, domain.RRClassIN, domain.RRTypeAAAA, "2001:db8::10"),
	}, true)
	resp.Header.Flags.Z = 5
	return resp
}

func TestEncode_RoundTrip(t *testing.T) {
	codec := newTestCodec()
	resp := sampleResponse()

	data, err := codec.Encode(resp)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(data), MaxMessageSize)

	got, err := codec.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, resp, got)
}

func TestEncode_ReadableByReference(t *testing.T) {
	data, err := newTestCodec().Encode(sampleResponse())
	require.NoError(t, err)

	m := new(dns.Msg)
	require.NoError(t, m.Unpack(data))

	assert.Equal(t, uint16(0x1234), m.Id)
	assert.True(t, m.Response)
	assert.True(t, m.Authoritative)
	assert.True(t, m.RecursionDesired)
	assert.True(t, m.RecursionAvailable)
	assert.Equal(t, dns.RcodeSuccess, m.Rcode)
	require.Len(t, m.Question, 1)
	assert.Equal(t, "www.example.com.", m.Question[0].Name)
	require.Len(t, m.Answer, 3)

	cname, ok := m.Answer[0].(*dns.CNAME)
	require.True(t, ok)
	assert.Equal(t, "web.example.com.", cname.Target)
	a, ok := m.Answer[1].(*dns.A)
	require.True(t, ok)
	assert.Equal(t, "192.0.2.10", a.A.String())
	assert.Equal(t, uint32(300), a.Hdr.Ttl)
	aaaa, ok := m.Answer[2].(*dns.AAAA)
	require.True(t, ok)
	assert.Equal(t, "2001:db8::10", aaaa.AAAA.String())
}

func TestEncode_NoQuestion(t *testing.T) {
	msg := domain.Message{Header: domain.Header{ID: 9, Flags: domain.Flags{Response: true, RCode: domain.SERVFAIL}}}
	data, err := newTestCodec().Encode(msg)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 9, 0x80, 0x02, 0, 0, 0, 0, 0, 0, 0, 0}, data)
}

func TestEncode_CountsFollowContent(t *testing.T) {
	msg := sampleResponse()
	msg.Header.QDCount = 7
	msg.Header.ANCount = 0
	msg.Header.NSCount = 4
	data, err := newTestCodec().Encode(msg)
	require.NoError(t, err)
	assert.Equal(t, uint16(1), binary.BigEndian.Uint16(data[4:6]))
	assert.Equal(t, uint16(3), binary.BigEndian.Uint16(data[6:8]))
	assert.Equal(t, uint16(0), binary.BigEndian.Uint16(data[8:10]))
	assert.Equal(t, uint16(0), binary.BigEndian.Uint16(data[10:12]))
}

func TestEncode_TooLarge(t *testing.T) {
	msg := sampleResponse()
	name := strings.Repeat("x", 60) + ".example.com"
	for i := 0; i < 10; i++ {
		msg.Answers = append(msg.Answers, domain.NewRecord(name, 60, domain.RRClassIN, domain.RRTypeA, "192.0.2.1"))
	}
	_, err := newTestCodec().Encode(msg)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrMessageTooLarge))
}

func TestEncode_SizeMatchesEstimate(t *testing.T) {
	msg := sampleResponse()
	data, err := newTestCodec().Encode(msg)
	require.NoError(t, err)
	assert.Len(t, data, encodedSize(msg))

	msg.Question = nil
	data, err = newTestCodec().Encode(msg)
	require.NoError(t, err)
	assert.Len(t, data, encodedSize(msg))
}

func TestEncode_TooLargeBeforeWriting(t *testing.T) {
	msg := sampleResponse()
	name := strings.Repeat("x", 60) + ".example.com"
	for encodedSize(msg) <= MaxMessageSize {
		msg.Answers = append(msg.Answers, domain.NewRecord(name, 60, domain.RRClassIN, domain.RRTypeAAAA, "2001:db8::1"))
	}
	_, err := newTestCodec().Encode(msg)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrMessageTooLarge))
	assert.Contains(t, err.Error(), "bytes")
}

func TestEncode_InvalidPayload(t *testing.T) {
	msg := sampleResponse()
	msg.Answers[1].Data = "not-an-address"
	_, err := newTestCodec().Encode(msg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "answer 1")
}
