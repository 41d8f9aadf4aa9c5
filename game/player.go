package game

import (
	"net"

	"github.com/jakecoffman/cp"

	"github.com/yy58/multiboxes/physics"
)

// PlayerState is one player's entry in the per-tick snapshot.
type PlayerState struct {
	ID    string
	X     float64
	Y     float64
	Angle float64 // radians
}

// Registry maps client-chosen player ids to their physics bodies and the
// endpoint their updates go to. Ids are trusted as-is; reconnecting with a
// used id overwrites the entry (last write wins) and the replaced body is
// deliberately left in the world.
type Registry struct {
	world *physics.World
	mass  float64
	size  float64

	bodies    map[string]*physics.Body
	endpoints map[string]*net.UDPAddr
}

func NewRegistry(world *physics.World, mass, size float64) *Registry {
	return &Registry{
		world:     world,
		mass:      mass,
		size:      size,
		bodies:    make(map[string]*physics.Body),
		endpoints: make(map[string]*net.UDPAddr),
	}
}

// Connect spawns a body for id at the fixed spawn point and registers it,
// replacing any prior entry for the same id.
func (r *Registry) Connect(id string, spawn cp.Vector) *physics.Body {
	body := r.world.SpawnBody(spawn, r.mass, r.size)
	r.bodies[id] = body
	return body
}

// SetEndpoint records where updates for id are delivered, overwriting any
// earlier endpoint.
func (r *Registry) SetEndpoint(id string, ep *net.UDPAddr) {
	r.endpoints[id] = ep
}

// Lookup returns the body for id, or nil when the id was never connected.
func (r *Registry) Lookup(id string) *physics.Body {
	return r.bodies[id]
}

func (r *Registry) Endpoint(id string) *net.UDPAddr {
	return r.endpoints[id]
}

func (r *Registry) Len() int {
	return len(r.bodies)
}

// ForEach visits every registered body. Only the tick goroutine calls this.
func (r *Registry) ForEach(fn func(id string, body *physics.Body)) {
	for id, body := range r.bodies {
		fn(id, body)
	}
}

// Snapshot reads every player's position and angle. It runs between ticks on
// the loop goroutine, so the read is a consistent point in time.
func (r *Registry) Snapshot() []PlayerState {
	snap := make([]PlayerState, 0, len(r.bodies))
	for id, body := range r.bodies {
		pos := body.Position()
		snap = append(snap, PlayerState{ID: id, X: pos.X, Y: pos.Y, Angle: body.Angle()})
	}
	return snap
}

// ClientSet is the set of broadcast destinations, deduplicated by endpoint.
// It grows on connect and never shrinks; there is no disconnect.
type ClientSet struct {
	addrs map[string]*net.UDPAddr
}

func NewClientSet() *ClientSet {
	return &ClientSet{addrs: make(map[string]*net.UDPAddr)}
}

func (c *ClientSet) Add(addr *net.UDPAddr) {
	c.addrs[addr.String()] = addr
}

func (c *ClientSet) Len() int {
	return len(c.addrs)
}

// Addrs returns the current destinations. The returned slice is fresh; the
// addresses themselves are never mutated after Add.
func (c *ClientSet) Addrs() []*net.UDPAddr {
	out := make([]*net.UDPAddr, 0, len(c.addrs))
	for _, a := range c.addrs {
		out = append(out, a)
	}
	return out
}
