package clusterserver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/yndnr/gridmesh/internal/core/domain"
)

func TestBindRequest_RoundTrip(t *testing.T) {
	in := BindRequest{Address: domain.NewAddress("10.0.0.7", 5702), Gossip: "10.0.0.7:5801"}

	out, err := UnmarshalBindRequest(in.Marshal())
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestBindRequest_WithoutGossip(t *testing.T) {
	in := BindRequest{Address: domain.NewAddress("10.0.0.7", 5702)}

	out, err := UnmarshalBindRequest(in.Marshal())
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestUnmarshalBindRequest_SkipsUnknownFields(t *testing.T) {
	p := BindRequest{Address: domain.NewAddress("h", 1)}.Marshal()
	p = protowire.AppendTag(p, 9, protowire.VarintType)
	p = protowire.AppendVarint(p, 77)

	out, err := UnmarshalBindRequest(p)
	require.NoError(t, err)
	assert.Equal(t, domain.NewAddress("h", 1), out.Address)
}

func TestUnmarshalBindRequest_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
	}{
		{name: "empty", payload: nil},
		{name: "truncated", payload: []byte{0x0a, 0x05, 'a'}},
		{name: "port out of range", payload: func() []byte {
			p := protowire.AppendTag(nil, 1, protowire.BytesType)
			p = protowire.AppendString(p, "h")
			p = protowire.AppendTag(p, 2, protowire.VarintType)
			return protowire.AppendVarint(p, 70000)
		}()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalBindRequest(tt.payload)
			assert.ErrorIs(t, err, domain.ErrConnectionRejected)
		})
	}
}
