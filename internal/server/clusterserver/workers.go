package clusterserver

import (
	"fmt"
	"sync"

	"github.com/spaolacci/murmur3"

	"github.com/yndnr/gridmesh/internal/core/domain"
)

const workerQueueSize = 256

// packetHandler receives decoded packets on a worker goroutine.
type packetHandler interface {
	HandleMemberPacket(p *domain.Packet)
	OnFatalError(err error)
}

// workers is a fixed pool of packet workers. A connection is pinned to one
// worker by the hash of its ID, which keeps its packets in arrival order.
type workers struct {
	handler packetHandler
	queues  []chan *domain.Packet
	wg      sync.WaitGroup
}

func newWorkers(n int, handler packetHandler) *workers {
	if n < 1 {
		n = 1
	}
	w := &workers{
		handler: handler,
		queues:  make([]chan *domain.Packet, n),
	}
	for i := range w.queues {
		w.queues[i] = make(chan *domain.Packet, workerQueueSize)
	}
	return w
}

func (w *workers) start() {
	for _, q := range w.queues {
		w.wg.Add(1)
		go w.run(q)
	}
}

func (w *workers) run(q chan *domain.Packet) {
	defer w.wg.Done()
	for p := range q {
		w.handle(p)
	}
}

func (w *workers) handle(p *domain.Packet) {
	defer func() {
		if r := recover(); r != nil {
			w.handler.OnFatalError(fmt.Errorf("packet worker panic: %v", r))
		}
	}()
	w.handler.HandleMemberPacket(p)
}

// dispatch queues p on the worker of its connection. It blocks while that
// worker's queue is full.
func (w *workers) dispatch(p *domain.Packet) {
	w.queues[w.index(p.Conn.ID())] <- p
}

func (w *workers) index(connID string) int {
	return int(murmur3.Sum32([]byte(connID)) % uint32(len(w.queues)))
}

// stop closes the queues and waits for the workers to drain them. No
// dispatch may happen after stop.
func (w *workers) stop() {
	for _, q := range w.queues {
		close(q)
	}
	w.wg.Wait()
}
