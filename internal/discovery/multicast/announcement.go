package multicast

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/yndnr/gridmesh/internal/core/domain"
)

// ErrMalformedAnnouncement is returned when a datagram is not an announcement.
var ErrMalformedAnnouncement = errors.New("multicast: malformed announcement")

const (
	fieldHost protowire.Number = 1
	fieldPort protowire.Number = 2
)

// Announcement advertises the member address of a node.
type Announcement struct {
	Host string
	Port int
}

// Address returns the announced member address.
func (a Announcement) Address() domain.Address {
	return domain.NewAddress(a.Host, a.Port)
}

// Marshal encodes the announcement in protobuf wire format.
func (a Announcement) Marshal() []byte {
	b := make([]byte, 0, len(a.Host)+16)
	b = protowire.AppendTag(b, fieldHost, protowire.BytesType)
	b = protowire.AppendString(b, a.Host)
	b = protowire.AppendTag(b, fieldPort, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(a.Port))
	return b
}

// UnmarshalAnnouncement decodes a datagram. Unknown fields are skipped;
// a missing host or an out-of-range port is malformed.
func UnmarshalAnnouncement(b []byte) (Announcement, error) {
	var a Announcement
	var hasPort bool
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return Announcement{}, fmt.Errorf("%w: %v", ErrMalformedAnnouncement, protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == fieldHost && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return Announcement{}, fmt.Errorf("%w: host: %v", ErrMalformedAnnouncement, protowire.ParseError(n))
			}
			a.Host = v
			b = b[n:]
		case num == fieldPort && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return Announcement{}, fmt.Errorf("%w: port: %v", ErrMalformedAnnouncement, protowire.ParseError(n))
			}
			if v == 0 || v > 65535 {
				return Announcement{}, fmt.Errorf("%w: port %d out of range", ErrMalformedAnnouncement, v)
			}
			a.Port = int(v)
			hasPort = true
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return Announcement{}, fmt.Errorf("%w: %v", ErrMalformedAnnouncement, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	if a.Host == "" || !hasPort {
		return Announcement{}, fmt.Errorf("%w: missing host or port", ErrMalformedAnnouncement)
	}
	return a, nil
}
