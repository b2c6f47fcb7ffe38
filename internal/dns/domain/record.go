package domain

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/haukened/rr-relay/internal/dns/common/utils"
)

// Record is a single resource record. Data holds the payload in text form:
// a dotted quad for A, IPv6 text for AAAA and a dot separated name for every
// other type.
type Record struct {
	Name  string
	TTL   int32
	Class RRClass
	Type  RRType
	Data  string
}

// NewRecord builds a record from wire codes. Any code is accepted.
func NewRecord(name string, ttl int32, class RRClass, rrtype RRType, data string) Record {
	return Record{
		Name:  name,
		TTL:   ttl,
		Class: class,
		Type:  rrtype,
		Data:  data,
	}
}

// NewRecordFromText builds a record from its textual class and type, as found
// in a zone file. Only class IN and types A and CNAME are accepted; anything
// else is a configuration error the caller decides how to handle.
func NewRecordFromText(name string, ttl int32, class, rrtype, data string) (Record, error) {
	c, ok := ParseRRClass(class)
	if !ok || c != RRClassIN {
		return Record{}, fmt.Errorf("%w: %q", ErrUnsupportedClass, class)
	}
	t, ok := ParseRRType(rrtype)
	if !ok || !t.IsConstructible() {
		return Record{}, fmt.Errorf("%w: %q", ErrUnsupportedRecordType, rrtype)
	}

	name = utils.CanonicalDNSName(name)
	if name == "" {
		return Record{}, fmt.Errorf("record name must not be empty")
	}

	switch t {
	case RRTypeA:
		ip := net.ParseIP(data)
		if ip == nil || ip.To4() == nil {
			return Record{}, fmt.Errorf("invalid A record address %q", data)
		}
		data = ip.To4().String()
	case RRTypeCNAME:
		data = utils.CanonicalDNSName(data)
		if data == "" {
			return Record{}, fmt.Errorf("CNAME target must not be empty")
		}
	}
	return NewRecord(name, ttl, c, t, data), nil
}

// DataLength returns the wire length of the payload.
func (r Record) DataLength() int {
	switch r.Type {
	case RRTypeA:
		return net.IPv4len
	case RRTypeAAAA:
		return net.IPv6len
	default:
		return NameWireLength(r.Data)
	}
}

// Lifetime is the TTL as a duration. A negative wire TTL counts as zero.
func (r Record) Lifetime() time.Duration {
	if r.TTL < 0 {
		return 0
	}
	return time.Duration(r.TTL) * time.Second
}

// Key returns the exact-match lookup key for the record.
func (r Record) Key() string {
	return GenerateKey(r.Name, r.Type, r.Class)
}

func (r Record) String() string {
	return fmt.Sprintf("%s, %s, %s, %d, %s", r.Name, r.Type, r.Class, r.TTL, r.Data)
}

// GenerateKey returns the lookup key for a (name, type, class) triple. Names
// are compared as is, without case folding.
func GenerateKey(name string, t RRType, c RRClass) string {
	return name + "|" + t.String() + "|" + c.String()
}

// NameWireLength is the uncompressed wire length of a dot separated name.
func NameWireLength(name string) int {
	name = strings.TrimSuffix(name, ".")
	if name == "" {
		return 1
	}
	return len(name) + 2
}
