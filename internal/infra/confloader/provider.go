package confloader

import (
	"errors"
	"strings"
)

// errMapBytes is returned by mapProvider.ReadBytes; koanf falls back to Read.
var errMapBytes = errors.New("confloader: map provider has no byte form")

// mapProvider is a koanf.Provider over an in-memory map. Dotted keys are
// expanded into nested maps so that "log.level" and {"log": {"level": ..}}
// are equivalent.
type mapProvider map[string]any

func (m mapProvider) ReadBytes() ([]byte, error) {
	return nil, errMapBytes
}

func (m mapProvider) Read() (map[string]any, error) {
	out := make(map[string]any, len(m))
	for key, val := range m {
		parts := strings.Split(key, ".")
		cur := out
		for _, p := range parts[:len(parts)-1] {
			next, ok := cur[p].(map[string]any)
			if !ok {
				next = make(map[string]any)
				cur[p] = next
			}
			cur = next
		}
		cur[parts[len(parts)-1]] = val
	}
	return out, nil
}
