package config

import (
	"crypto/rand"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/yndnr/gridmesh/pkg/portset"
)

// NodeIDPrefix prefixes generated node identifiers.
const NodeIDPrefix = "gmnode-"

// GenerateNodeID returns a new sortable node identifier, e.g.
// "gmnode-01hx3k5v8r9c0q2w4e6t8y0u1i".
func GenerateNodeID() string {
	id := ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader)
	return NodeIDPrefix + strings.ToLower(id.String())
}

// OutboundPorts resolves the outbound port policy of cfg.
func OutboundPorts(cfg *ServerConfig) (portset.Set, error) {
	return portset.Resolve(cfg.Network.OutboundPortDefinitions, cfg.Network.OutboundPorts)
}
