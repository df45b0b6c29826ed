// Package portset resolves outbound port definitions into the set of local
// ports a node may bind when opening member connections.
//
// A definition is a list of tokens separated by ',', ';' or ' '. Each token
// is a port ("5701"), an inclusive range ("33000-33100") or a wildcard
// ("*" or "0"). A wildcard anywhere, an empty input, or a resolved port 0
// all mean "any ephemeral port".
package portset

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/yndnr/gridmesh/internal/core/domain"
)

// MaxPort is the largest valid TCP port.
const MaxPort = 65535

// Set is an immutable set of allowed outbound ports.
//
// The zero value is unrestricted. A restricted Set always contains at least
// one port.
type Set struct {
	ports map[int]struct{}
}

// Unrestricted is the set that allows any local port.
var Unrestricted = Set{}

// Resolve expands port definitions and explicit ports into a Set.
//
// Definitions are scanned for a wildcard before any token is parsed, so the
// result does not depend on token order. Otherwise malformed tokens and
// out-of-range ports are reported as domain.ErrMalformedPort; nothing is
// silently skipped.
func Resolve(definitions []string, explicit []int) (Set, error) {
	if len(definitions) == 0 && len(explicit) == 0 {
		return Unrestricted, nil
	}

	ports := make(map[int]struct{}, len(explicit))
	for _, p := range explicit {
		if p < 0 || p > MaxPort {
			return Unrestricted, domain.ErrMalformedPort.WithDetails(strconv.Itoa(p))
		}
		ports[p] = struct{}{}
	}

	var tokens []string
	for _, def := range definitions {
		tokens = append(tokens, splitTokens(def)...)
	}
	// A wildcard wins over every other token, including malformed ones.
	for _, token := range tokens {
		if token == "*" || token == "0" {
			return Unrestricted, nil
		}
	}
	for _, token := range tokens {
		if err := addToken(ports, token); err != nil {
			return Unrestricted, err
		}
	}

	if _, wildcard := ports[0]; wildcard || len(ports) == 0 {
		return Unrestricted, nil
	}
	return Set{ports: ports}, nil
}

// MustResolve is Resolve for static definitions known to be valid.
func MustResolve(definitions []string, explicit []int) Set {
	s, err := Resolve(definitions, explicit)
	if err != nil {
		panic(err)
	}
	return s
}

func splitTokens(def string) []string {
	return strings.FieldsFunc(def, func(r rune) bool {
		return r == ',' || r == ';' || r == ' '
	})
}

func addToken(ports map[int]struct{}, token string) error {
	if dash := strings.IndexByte(token, '-'); dash > 0 {
		start, err := parsePort(token[:dash], token)
		if err != nil {
			return err
		}
		end, err := parsePort(token[dash+1:], token)
		if err != nil {
			return err
		}
		if start > end {
			return domain.ErrMalformedPort.WithDetails(fmt.Sprintf("%s: range start after end", token))
		}
		for p := start; p <= end; p++ {
			ports[p] = struct{}{}
		}
		return nil
	}

	p, err := parsePort(token, token)
	if err != nil {
		return err
	}
	ports[p] = struct{}{}
	return nil
}

func parsePort(s, token string) (int, error) {
	p, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, domain.ErrMalformedPort.WithDetails(token).WithCause(err)
	}
	if p < 0 || p > MaxPort {
		return 0, domain.ErrMalformedPort.WithDetails(fmt.Sprintf("%s: port out of range", token))
	}
	return p, nil
}

// IsUnrestricted reports whether any local port may be used.
func (s Set) IsUnrestricted() bool {
	return len(s.ports) == 0
}

// Contains reports whether port may be used. Every port is allowed by an
// unrestricted set.
func (s Set) Contains(port int) bool {
	if s.IsUnrestricted() {
		return true
	}
	_, ok := s.ports[port]
	return ok
}

// Len returns the number of allowed ports, 0 for an unrestricted set.
func (s Set) Len() int {
	return len(s.ports)
}

// Ports returns the allowed ports in ascending order, nil when unrestricted.
func (s Set) Ports() []int {
	if s.IsUnrestricted() {
		return nil
	}
	out := make([]int, 0, len(s.ports))
	for p := range s.ports {
		out = append(out, p)
	}
	sort.Ints(out)
	return out
}

// String renders the set compactly, collapsing consecutive ports into ranges.
func (s Set) String() string {
	if s.IsUnrestricted() {
		return "*"
	}
	ports := s.Ports()
	var b strings.Builder
	for i := 0; i < len(ports); {
		j := i
		for j+1 < len(ports) && ports[j+1] == ports[j]+1 {
			j++
		}
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(ports[i]))
		if j > i {
			b.WriteByte('-')
			b.WriteString(strconv.Itoa(ports[j]))
		}
		i = j + 1
	}
	return b.String()
}
