package clusterserver

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yndnr/gridmesh/internal/core/domain"
	"github.com/yndnr/gridmesh/internal/server/config"
)

func TestNewInterceptor_Disabled(t *testing.T) {
	ic, err := NewInterceptor(config.SocketInterceptorConfig{AllowedCIDRs: []string{"10.0.0.0/8"}})
	require.NoError(t, err)
	assert.Nil(t, ic)
}

func TestInterceptor_Allow(t *testing.T) {
	ic, err := NewInterceptor(config.SocketInterceptorConfig{
		Enabled:      true,
		AllowedCIDRs: []string{"10.1.0.0/16", " 192.168.1.7 ", "", "fd00::/8"},
	})
	require.NoError(t, err)

	tests := []struct {
		ip    string
		allow bool
	}{
		{"10.1.2.3", true},
		{"10.2.0.1", false},
		{"192.168.1.7", true},
		{"192.168.1.8", false},
		{"::ffff:10.1.9.9", true},
		{"fd12::1", true},
		{"2001:db8::1", false},
	}
	for _, tt := range tests {
		t.Run(tt.ip, func(t *testing.T) {
			err := ic.Allow(&net.TCPAddr{IP: net.ParseIP(tt.ip), Port: 40000})
			if tt.allow {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, domain.ErrConnectionRejected)
			}
		})
	}
}

func TestNewInterceptor_BadEntry(t *testing.T) {
	_, err := NewInterceptor(config.SocketInterceptorConfig{Enabled: true, AllowedCIDRs: []string{"10.0.0.0/33"}})
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)

	_, err = NewInterceptor(config.SocketInterceptorConfig{Enabled: true, AllowedCIDRs: []string{"not-an-ip"}})
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}
