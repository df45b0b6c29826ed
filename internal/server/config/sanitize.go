package config

import (
	"slices"

	"github.com/yndnr/gridmesh/internal/telemetry/logger"
)

// Sanitize returns a copy of cfg that can be logged. The symmetric
// encryption password and salt are masked; slices are copied so the result
// does not alias cfg.
func Sanitize(cfg *ServerConfig) *ServerConfig {
	out := *cfg
	out.Network.OutboundPortDefinitions = slices.Clone(cfg.Network.OutboundPortDefinitions)
	out.Network.OutboundPorts = slices.Clone(cfg.Network.OutboundPorts)
	out.Discovery.Gossip.Seeds = slices.Clone(cfg.Discovery.Gossip.Seeds)
	out.Security.SocketInterceptor.AllowedCIDRs = slices.Clone(cfg.Security.SocketInterceptor.AllowedCIDRs)

	sym := &out.Security.SymmetricEncryption
	sym.Password = mask(sym.Password)
	sym.Salt = mask(sym.Salt)
	return &out
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return logger.Mask(s)
}
