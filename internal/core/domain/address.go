package domain

import (
	"net"
	"strconv"
)

// Address identifies a cluster member on the network.
//
// Address is a comparable value type: two addresses are the same member
// identity when their host and port are equal.
type Address struct {
	Host string
	Port int
}

// NewAddress returns an Address for host and port.
func NewAddress(host string, port int) Address {
	return Address{Host: host, Port: port}
}

// ParseAddress parses a "host:port" string.
func ParseAddress(s string) (Address, error) {
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		return Address{}, ErrInvalidAddress.WithDetails(s).WithCause(err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 0 || port > 65535 {
		return Address{}, ErrInvalidAddress.WithDetails(s)
	}
	return Address{Host: host, Port: port}, nil
}

// AddressFromNet converts a TCP or UDP net.Addr into an Address.
func AddressFromNet(addr net.Addr) (Address, bool) {
	switch a := addr.(type) {
	case *net.TCPAddr:
		return Address{Host: a.IP.String(), Port: a.Port}, true
	case *net.UDPAddr:
		return Address{Host: a.IP.String(), Port: a.Port}, true
	default:
		if addr == nil {
			return Address{}, false
		}
		parsed, err := ParseAddress(addr.String())
		return parsed, err == nil
	}
}

// String returns the address in "host:port" form.
func (a Address) String() string {
	return net.JoinHostPort(a.Host, strconv.Itoa(a.Port))
}

// Equal reports whether a and other denote the same member identity.
func (a Address) Equal(other Address) bool {
	return a == other
}

// IsZero reports whether the address is unset.
func (a Address) IsZero() bool {
	return a.Host == "" && a.Port == 0
}
