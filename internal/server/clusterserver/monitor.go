package clusterserver

import (
	"log/slog"
	"sync"
	"time"

	"github.com/yndnr/gridmesh/internal/core/domain"
	"github.com/yndnr/gridmesh/pkg/cmap"
)

// monitor counts connection faults per endpoint. Faults closer together
// than minInterval count once; at maxFaults the endpoint is removed and
// the count starts over.
type monitor struct {
	minInterval time.Duration
	maxFaults   int
	remove      func(addr domain.Address)
	logger      *slog.Logger
	now         func() time.Time

	faults *cmap.Map[domain.Address, *faultCount]
}

type faultCount struct {
	mu        sync.Mutex
	count     int
	lastFault time.Time
}

func newMonitor(minInterval time.Duration, maxFaults int, remove func(domain.Address), logger *slog.Logger) *monitor {
	return &monitor{
		minInterval: minInterval,
		maxFaults:   maxFaults,
		remove:      remove,
		logger:      logger,
		now:         time.Now,
		faults:      cmap.New[domain.Address, *faultCount](domain.Address.String),
	}
}

// onError records a fault on addr and reports whether the endpoint was
// removed as a result.
func (m *monitor) onError(addr domain.Address, err error) bool {
	fc, _ := m.faults.GetOrCreate(addr, func() *faultCount { return &faultCount{} })

	fc.mu.Lock()
	now := m.now()
	if !fc.lastFault.IsZero() && now.Sub(fc.lastFault) < m.minInterval {
		fc.mu.Unlock()
		return false
	}
	fc.lastFault = now
	fc.count++
	count := fc.count
	if count >= m.maxFaults {
		fc.count = 0
		fc.lastFault = time.Time{}
	}
	fc.mu.Unlock()

	m.logger.Debug("connection fault", "endpoint", addr.String(), "faults", count, "max", m.maxFaults, "error", err)
	if count < m.maxFaults {
		return false
	}
	m.logger.Warn("removing endpoint after repeated connection faults", "endpoint", addr.String(), "faults", count)
	m.remove(addr)
	return true
}

// reset clears the faults of addr after a successful connection.
func (m *monitor) reset(addr domain.Address) {
	m.faults.Delete(addr)
}
