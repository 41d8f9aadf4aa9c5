// Package network is the UDP edge: a read loop feeding decoded commands into
// the game inbox, and a worker pool pushing broadcast datagrams out.
package network

import (
	"net"
	"sync"

	"go.uber.org/zap"

	"github.com/yy58/multiboxes/metrics"
)

type datagram struct {
	payload []byte
	addr    *net.UDPAddr
}

// Broadcaster writes datagrams through a bounded queue so socket latency
// never stalls the tick goroutine. Enqueue is non-blocking: when the queue is
// full the datagram is dropped and counted. Workers only ever read the
// payload bytes they are handed.
type Broadcaster struct {
	conn  net.PacketConn
	queue chan datagram
	log   *zap.SugaredLogger
	mets  *metrics.Metrics
	wg    sync.WaitGroup
}

func NewBroadcaster(conn net.PacketConn, workers, queueSize int, log *zap.SugaredLogger, mets *metrics.Metrics) *Broadcaster {
	b := &Broadcaster{
		conn:  conn,
		queue: make(chan datagram, queueSize),
		log:   log,
		mets:  mets,
	}
	b.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go b.worker()
	}
	return b
}

// Send queues one datagram for delivery. Never blocks.
func (b *Broadcaster) Send(payload []byte, addr *net.UDPAddr) {
	select {
	case b.queue <- datagram{payload: payload, addr: addr}:
	default:
		b.mets.IncSendDropped()
	}
}

// Close drains in-flight sends and stops the workers. The connection itself
// belongs to the caller.
func (b *Broadcaster) Close() {
	close(b.queue)
	b.wg.Wait()
}

func (b *Broadcaster) worker() {
	defer b.wg.Done()
	for d := range b.queue {
		if _, err := b.conn.WriteTo(d.payload, d.addr); err != nil {
			// Unreachable client: drop this send, carry on with the rest.
			b.mets.IncSendDropped()
			b.log.Debugw("send failed", "addr", d.addr.String(), "err", err)
			continue
		}
		b.mets.IncDatagramSent()
	}
}
