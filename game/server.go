// Package game owns the authoritative world: the player registry, the client
// set and the fixed-tick loop that advances physics and broadcasts state.
package game

import (
	"context"
	"net"
	"time"

	"github.com/jakecoffman/cp"
	"go.uber.org/zap"

	"github.com/yy58/multiboxes/config"
	"github.com/yy58/multiboxes/metrics"
	"github.com/yy58/multiboxes/physics"
	"github.com/yy58/multiboxes/protocol"
)

// Sender delivers one encoded datagram to one endpoint, best effort. Sends
// must only touch the payload bytes they are handed; the payload is never
// mutated after it crosses this boundary.
type Sender interface {
	Send(payload []byte, addr *net.UDPAddr)
}

// Server is the context object that owns all mutable game state. Exactly one
// goroutine, the one inside Run, touches the world, the registry and the
// client set: inbound commands are funneled through the inbox channel and
// interleaved with ticks, so none of this state needs locking.
type Server struct {
	cfg  config.Config
	log  *zap.SugaredLogger
	mets *metrics.Metrics

	world   *physics.World
	players *Registry
	clients *ClientSet

	sender Sender
	inbox  chan protocol.Command

	dt float64
}

func NewServer(cfg config.Config, log *zap.SugaredLogger, mets *metrics.Metrics, sender Sender) *Server {
	world := physics.NewWorld(physics.Config{
		Width:      cfg.WorldWidth,
		Height:     cfg.WorldHeight,
		GravityY:   cfg.GravityY,
		Elasticity: cfg.WallElasticity,
		Friction:   cfg.WallFriction,
	})
	return &Server{
		cfg:     cfg,
		log:     log,
		mets:    mets,
		world:   world,
		players: NewRegistry(world, cfg.PlayerMass, cfg.PlayerSize),
		clients: NewClientSet(),
		sender:  sender,
		inbox:   make(chan protocol.Command, 256),
		dt:      1.0 / float64(cfg.TickRate),
	}
}

// Inbox is where decoded commands enter the loop goroutine. Producers must
// not block on it; the listener drops when it is full.
func (s *Server) Inbox() chan<- protocol.Command {
	return s.inbox
}

// Run drives the server until ctx is cancelled: drain commands as they
// arrive, advance one tick per ticker fire. One physics step per iteration
// regardless of wall-clock jitter; there is no catch-up.
func (s *Server) Run(ctx context.Context) {
	interval := time.Second / time.Duration(s.cfg.TickRate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.log.Infow("game loop started", "tickRate", s.cfg.TickRate)
	for {
		select {
		case <-ctx.Done():
			s.log.Info("game loop stopped")
			return
		case cmd := <-s.inbox:
			s.handleCommand(cmd)
		case <-ticker.C:
			start := time.Now()
			s.step()
			s.mets.AddTick(time.Since(start).Nanoseconds())
		}
	}
}

// handleCommand applies one decoded command. The switch is exhaustive over
// the protocol.Command variants.
func (s *Server) handleCommand(cmd protocol.Command) {
	switch c := cmd.(type) {
	case protocol.Connect:
		s.handleConnect(c)
	case protocol.UpdateVelocity:
		s.handleUpdateVelocity(c)
	}
}

func (s *Server) handleConnect(c protocol.Connect) {
	ip := net.ParseIP(c.ClientIP)
	if ip == nil || c.ClientPort <= 0 || c.ClientPort > 65535 {
		// Bad endpoint is a decode-class fault: drop this message, keep going.
		s.mets.IncDecodeError()
		s.log.Debugw("connect with bad endpoint dropped", "playerId", c.PlayerID, "ip", c.ClientIP, "port", c.ClientPort)
		return
	}

	spawn := cp.Vector{X: s.cfg.SpawnX, Y: s.cfg.SpawnY}
	s.players.Connect(c.PlayerID, spawn)

	ep := &net.UDPAddr{IP: ip, Port: c.ClientPort}
	s.players.SetEndpoint(c.PlayerID, ep)
	s.clients.Add(ep)

	s.mets.IncCommandAccepted()
	s.log.Infow("player connected", "playerId", c.PlayerID, "endpoint", ep.String())
}

func (s *Server) handleUpdateVelocity(c protocol.UpdateVelocity) {
	body := s.players.Lookup(c.PlayerID)
	if body == nil {
		// Inputs for ids that never connected are silently ignored.
		s.mets.IncUnknownPlayer()
		return
	}
	s.mets.IncCommandAccepted()
	if c.VX == 0 && c.VY == 0 {
		// No directional input, nothing to apply. Angular alone does nothing.
		return
	}
	force := cp.Vector{
		X: float64(c.VX) * s.cfg.SpeedFactor,
		Y: float64(c.VY) * s.cfg.SpeedFactor,
	}
	s.world.ApplyForceAtPoint(body, force, body.Position())
}

// step is one tick: integrate, cap speeds, snapshot, broadcast. Clamping
// after the step means a force can briefly exceed the cap inside a tick but
// speed never accumulates past MaxVelocity across ticks.
func (s *Server) step() {
	s.world.Step(s.dt)

	s.players.ForEach(func(id string, body *physics.Body) {
		s.world.ClampVelocity(body, s.cfg.MaxVelocity)
	})

	snap := s.players.Snapshot()
	s.broadcast(snap)
}

// broadcast fans the snapshot out to every known client: one update_position
// datagram per player per client. Each payload is encoded once and shared
// read-only across sends.
func (s *Server) broadcast(snap []PlayerState) {
	addrs := s.clients.Addrs()
	if len(addrs) == 0 || len(snap) == 0 {
		return
	}
	for _, p := range snap {
		payload, err := protocol.Encode(protocol.MsgUpdatePosition, protocol.UpdatePosition{
			PlayerID: p.ID,
			X:        p.X,
			Y:        p.Y,
			Angle:    p.Angle,
		})
		if err != nil {
			s.log.Errorw("encode update_position failed", "playerId", p.ID, "err", err)
			continue
		}
		for _, addr := range addrs {
			s.sender.Send(payload, addr)
		}
	}
}
