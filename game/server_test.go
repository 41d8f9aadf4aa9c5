package game

import (
	"context"
	"math"
	"net"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/yy58/multiboxes/config"
	"github.com/yy58/multiboxes/logger"
	"github.com/yy58/multiboxes/metrics"
	"github.com/yy58/multiboxes/protocol"
)

type sentDatagram struct {
	payload []byte
	addr    string
}

type fakeSender struct {
	sent []sentDatagram
}

func (f *fakeSender) Send(payload []byte, addr *net.UDPAddr) {
	cp := make([]byte, len(payload))
	copy(cp, payload)
	f.sent = append(f.sent, sentDatagram{payload: cp, addr: addr.String()})
}

// newTestServer drives the server synchronously: tests call handleCommand
// and step directly instead of going through Run, standing in for the single
// loop goroutine.
func newTestServer(t *testing.T) (*Server, *fakeSender, *metrics.Metrics) {
	t.Helper()
	fs := &fakeSender{}
	mets := &metrics.Metrics{}
	s := NewServer(config.Default(), logger.Nop(), mets, fs)
	return s, fs, mets
}

func connectCmd(id string, port int) protocol.Connect {
	return protocol.Connect{PlayerID: id, ClientIP: "127.0.0.1", ClientPort: port}
}

func TestConnectRegistersPlayerAtSpawn(t *testing.T) {
	s, _, mets := newTestServer(t)

	s.handleCommand(connectCmd("p1", 5001))

	if n := s.players.Len(); n != 1 {
		t.Fatalf("players after connect = %d, want 1", n)
	}
	if n := s.clients.Len(); n != 1 {
		t.Fatalf("clients after connect = %d, want 1", n)
	}
	snap := s.players.Snapshot()
	if len(snap) != 1 || snap[0].ID != "p1" {
		t.Fatalf("snapshot = %+v, want one entry for p1", snap)
	}
	if snap[0].X != 50 || snap[0].Y != 100 {
		t.Fatalf("spawn = (%f, %f), want (50, 100)", snap[0].X, snap[0].Y)
	}
	if got := mets.Snapshot()["commands_accepted"].(int64); got != 1 {
		t.Fatalf("commands_accepted after one connect = %d, want 1", got)
	}
}

func TestConnectWithBadEndpointDropped(t *testing.T) {
	s, _, mets := newTestServer(t)

	s.handleCommand(protocol.Connect{PlayerID: "p1", ClientIP: "not-an-ip", ClientPort: 5001})
	s.handleCommand(protocol.Connect{PlayerID: "p2", ClientIP: "127.0.0.1", ClientPort: -4})

	if n := s.players.Len(); n != 0 {
		t.Fatalf("players after bad connects = %d, want 0", n)
	}
	if got := mets.Snapshot()["decode_errors"].(int64); got != 2 {
		t.Fatalf("decode_errors = %d, want 2", got)
	}
	if got := mets.Snapshot()["commands_accepted"].(int64); got != 0 {
		t.Fatalf("commands_accepted after bad connects = %d, want 0", got)
	}
}

// Scenario: a player left alone for a second falls under gravity and stays
// inside the arena.
func TestGravityFallStaysInBounds(t *testing.T) {
	s, _, _ := newTestServer(t)
	s.handleCommand(connectCmd("p1", 5001))

	for i := 0; i < 60; i++ {
		s.step()
	}

	snap := s.players.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("snapshot size = %d, want 1", len(snap))
	}
	p := snap[0]
	if p.Y <= 100 {
		t.Fatalf("y after 60 ticks = %f, want > 100 (gravity)", p.Y)
	}
	if p.X < 0 || p.X > 700 || p.Y < 0 || p.Y > 400 {
		t.Fatalf("player left the arena: (%f, %f)", p.X, p.Y)
	}
}

// Scenario: a rightward input moves the player right and the per-tick clamp
// keeps its speed under the cap.
func TestDirectionalInputMovesAndStaysUnderCap(t *testing.T) {
	s, _, _ := newTestServer(t)
	s.handleCommand(connectCmd("p1", 5001))

	s.handleCommand(protocol.UpdateVelocity{PlayerID: "p1", VX: 1, VY: 0})
	for i := 0; i < 10; i++ {
		s.step()
	}

	snap := s.players.Snapshot()
	if snap[0].X <= 50 {
		t.Fatalf("x after rightward input = %f, want > 50", snap[0].X)
	}
	if speed := s.players.Lookup("p1").Speed(); speed > 200+1e-6 {
		t.Fatalf("speed = %f, want <= 200", speed)
	}
}

func TestVelocityBoundHoldsUnderSustainedInput(t *testing.T) {
	s, _, _ := newTestServer(t)
	s.handleCommand(connectCmd("p1", 5001))

	for i := 0; i < 120; i++ {
		s.handleCommand(protocol.UpdateVelocity{PlayerID: "p1", VX: 1, VY: 1})
		s.step()
		if speed := s.players.Lookup("p1").Speed(); speed > 200+1e-6 {
			t.Fatalf("tick %d: speed = %f, want <= 200", i, speed)
		}
	}
}

func TestUnknownIDIsSilentNoOp(t *testing.T) {
	s, _, mets := newTestServer(t)

	s.handleCommand(protocol.UpdateVelocity{PlayerID: "ghost", VX: 1, VY: 0})

	if n := s.players.Len(); n != 0 {
		t.Fatalf("players after ghost input = %d, want 0", n)
	}
	if len(s.players.Snapshot()) != 0 {
		t.Fatalf("snapshot not empty after ghost input")
	}
	if got := mets.Snapshot()["unknown_player"].(int64); got != 1 {
		t.Fatalf("unknown_player = %d, want 1", got)
	}
	if got := mets.Snapshot()["commands_accepted"].(int64); got != 0 {
		t.Fatalf("commands_accepted after ghost input = %d, want 0", got)
	}
}

func TestUnknownIDDoesNotDisturbOthers(t *testing.T) {
	a, _, _ := newTestServer(t)
	b, _, _ := newTestServer(t)
	a.handleCommand(connectCmd("p1", 5001))
	b.handleCommand(connectCmd("p1", 5001))

	a.handleCommand(protocol.UpdateVelocity{PlayerID: "ghost", VX: 1, VY: 1})
	a.step()
	b.step()

	if !snapshotsEqual(a.players.Snapshot(), b.players.Snapshot()) {
		t.Fatalf("ghost input changed a registered player's state")
	}
}

func TestConnectIDReuseLastWins(t *testing.T) {
	s, _, _ := newTestServer(t)

	s.handleCommand(connectCmd("p1", 5001))
	// Move the first body away from spawn so the replacement is observable.
	s.handleCommand(protocol.UpdateVelocity{PlayerID: "p1", VX: 1, VY: 0})
	for i := 0; i < 30; i++ {
		s.step()
	}
	s.handleCommand(connectCmd("p1", 5001))

	snap := s.players.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("snapshot entries after id reuse = %d, want 1", len(snap))
	}
	if snap[0].X != 50 || snap[0].Y != 100 {
		t.Fatalf("reused id not back at spawn: (%f, %f)", snap[0].X, snap[0].Y)
	}
	if n := s.clients.Len(); n != 1 {
		t.Fatalf("clients after same-endpoint reconnect = %d, want 1", n)
	}
}

func TestZeroInputIsNoOp(t *testing.T) {
	a, _, _ := newTestServer(t)
	b, _, _ := newTestServer(t)
	a.handleCommand(connectCmd("p1", 5001))
	b.handleCommand(connectCmd("p1", 5001))

	// Angular-only input carried by the protocol has no physical effect.
	a.handleCommand(protocol.UpdateVelocity{PlayerID: "p1", VX: 0, VY: 0, Angular: 1})
	a.step()
	b.step()

	if !snapshotsEqual(a.players.Snapshot(), b.players.Snapshot()) {
		t.Fatalf("zero directional input changed the simulation")
	}
}

func TestTickDeterminism(t *testing.T) {
	run := func() []PlayerState {
		s, _, _ := newTestServer(t)
		s.handleCommand(connectCmd("p1", 5001))
		s.handleCommand(connectCmd("p2", 5002))
		for i := 0; i < 30; i++ {
			if i == 5 {
				s.handleCommand(protocol.UpdateVelocity{PlayerID: "p1", VX: 1, VY: 0})
			}
			if i == 12 {
				s.handleCommand(protocol.UpdateVelocity{PlayerID: "p2", VX: -1, VY: 1})
			}
			s.step()
		}
		return s.players.Snapshot()
	}

	first := run()
	second := run()
	if !snapshotsEqual(first, second) {
		t.Fatalf("two identical runs diverged:\n%+v\n%+v", first, second)
	}
}

// Scenario: two connected players, one tick, every client gets one update
// per player.
func TestBroadcastFanOut(t *testing.T) {
	s, fs, _ := newTestServer(t)
	s.handleCommand(connectCmd("p1", 5001))
	s.handleCommand(connectCmd("p2", 5002))

	s.step()

	if len(fs.sent) != 4 {
		t.Fatalf("datagrams after one tick = %d, want 4 (2 players x 2 clients)", len(fs.sent))
	}
	ids := map[string]bool{}
	addrs := map[string]bool{}
	for _, d := range fs.sent {
		up, err := protocol.DecodeUpdatePosition(d.payload)
		if err != nil {
			t.Fatalf("broadcast payload did not decode: %v", err)
		}
		ids[up.PlayerID] = true
		addrs[d.addr] = true
	}
	if len(ids) != 2 || !ids["p1"] || !ids["p2"] {
		t.Fatalf("broadcast ids = %v, want p1 and p2", ids)
	}
	if len(addrs) != 2 {
		t.Fatalf("broadcast endpoints = %v, want 2 distinct", addrs)
	}
}

func TestNoBroadcastWithoutClients(t *testing.T) {
	s, fs, _ := newTestServer(t)

	s.step()

	if len(fs.sent) != 0 {
		t.Fatalf("datagrams with no clients = %d, want 0", len(fs.sent))
	}
}

// closableSender flags any send arriving after the teardown point, the way
// a closed broadcaster queue would blow up.
type closableSender struct {
	mu             sync.Mutex
	sent           int
	closed         bool
	sentAfterClose bool
}

func (c *closableSender) Send(payload []byte, addr *net.UDPAddr) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		c.sentAfterClose = true
		return
	}
	c.sent++
}

func (c *closableSender) sentCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sent
}

func (c *closableSender) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func TestRunStopsBroadcastingAfterCancel(t *testing.T) {
	cfg := config.Default()
	cfg.TickRate = 240 // fast ticks so the test sees broadcasts quickly
	cs := &closableSender{}
	s := NewServer(cfg, logger.Nop(), &metrics.Metrics{}, cs)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	s.Inbox() <- connectCmd("p1", 5001)

	deadline := time.After(2 * time.Second)
	for cs.sentCount() == 0 {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for a broadcast")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not return after cancel")
	}

	// Once Run has returned the sender can be torn down; nothing may send
	// past this point.
	cs.close()
	time.Sleep(50 * time.Millisecond)

	cs.mu.Lock()
	defer cs.mu.Unlock()
	if cs.sentAfterClose {
		t.Fatalf("broadcast arrived after the loop stopped")
	}
}

func snapshotsEqual(a, b []PlayerState) bool {
	if len(a) != len(b) {
		return false
	}
	sortSnap := func(s []PlayerState) {
		sort.Slice(s, func(i, j int) bool { return s[i].ID < s[j].ID })
	}
	sortSnap(a)
	sortSnap(b)
	for i := range a {
		if a[i].ID != b[i].ID {
			return false
		}
		if math.Abs(a[i].X-b[i].X) > 1e-12 ||
			math.Abs(a[i].Y-b[i].Y) > 1e-12 ||
			math.Abs(a[i].Angle-b[i].Angle) > 1e-12 {
			return false
		}
	}
	return true
}
