package clusterserver

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/yndnr/gridmesh/internal/core/domain"
)

// BindRequest is the handshake payload a dialing node sends first.
type BindRequest struct {
	// Address is the sender's member address.
	Address domain.Address
	// Gossip is the sender's gossip address, "" when gossip is disabled.
	Gossip string
}

// Marshal encodes the request in protobuf wire format.
func (b BindRequest) Marshal() []byte {
	out := protowire.AppendTag(nil, 1, protowire.BytesType)
	out = protowire.AppendString(out, b.Address.Host)
	out = protowire.AppendTag(out, 2, protowire.VarintType)
	out = protowire.AppendVarint(out, uint64(b.Address.Port))
	if b.Gossip != "" {
		out = protowire.AppendTag(out, 3, protowire.BytesType)
		out = protowire.AppendString(out, b.Gossip)
	}
	return out
}

// UnmarshalBindRequest decodes a handshake payload.
func UnmarshalBindRequest(p []byte) (BindRequest, error) {
	var b BindRequest
	for len(p) > 0 {
		num, typ, n := protowire.ConsumeTag(p)
		if n < 0 {
			return BindRequest{}, bindError(protowire.ParseError(n))
		}
		p = p[n:]

		switch {
		case num == 1 && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(p)
			if n < 0 {
				return BindRequest{}, bindError(protowire.ParseError(n))
			}
			b.Address.Host, p = v, p[n:]
		case num == 2 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(p)
			if n < 0 {
				return BindRequest{}, bindError(protowire.ParseError(n))
			}
			if v > 65535 {
				return BindRequest{}, bindError(fmt.Errorf("port %d out of range", v))
			}
			b.Address.Port, p = int(v), p[n:]
		case num == 3 && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(p)
			if n < 0 {
				return BindRequest{}, bindError(protowire.ParseError(n))
			}
			b.Gossip, p = v, p[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, p)
			if n < 0 {
				return BindRequest{}, bindError(protowire.ParseError(n))
			}
			p = p[n:]
		}
	}
	if b.Address.Host == "" || b.Address.Port == 0 {
		return BindRequest{}, bindError(fmt.Errorf("missing address"))
	}
	return b, nil
}

func bindError(err error) error {
	return domain.ErrConnectionRejected.WithDetails("bad bind request").WithCause(err)
}
