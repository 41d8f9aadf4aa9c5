package network

import (
	"context"
	"errors"
	"net"

	"go.uber.org/zap"

	"github.com/yy58/multiboxes/metrics"
	"github.com/yy58/multiboxes/protocol"
)

// maxDatagram comfortably exceeds any message the protocol produces.
const maxDatagram = 64 * 1024

// Listener reads one command per datagram and hands it to the game inbox.
// A datagram that fails to decode is dropped and counted; the loop never
// stops for a bad message.
type Listener struct {
	conn  *net.UDPConn
	inbox chan<- protocol.Command
	log   *zap.SugaredLogger
	mets  *metrics.Metrics
}

func NewListener(conn *net.UDPConn, inbox chan<- protocol.Command, log *zap.SugaredLogger, mets *metrics.Metrics) *Listener {
	return &Listener{conn: conn, inbox: inbox, log: log, mets: mets}
}

// Run blocks reading the socket until the connection is closed. The caller
// closes the connection when ctx is cancelled.
func (l *Listener) Run(ctx context.Context) {
	buf := make([]byte, maxDatagram)
	for {
		n, from, err := l.conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			l.log.Debugw("read failed", "err", err)
			continue
		}

		cmd, err := protocol.DecodeCommand(buf[:n])
		if err != nil {
			l.mets.IncDecodeError()
			l.log.Debugw("malformed datagram dropped", "from", from.String(), "err", err)
			continue
		}
		if cmd == nil {
			// Unknown message type, ignore.
			continue
		}

		// Never block the read loop on a full inbox; the loop goroutine
		// owns the pace.
		select {
		case l.inbox <- cmd:
		default:
			l.mets.IncInboxDropped()
		}
	}
}
