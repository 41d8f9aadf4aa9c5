// Package physics wraps a Chipmunk2D space: one rectangular arena with
// static walls, dynamic box bodies for players, and the per-tick helpers
// the game loop needs (step, velocity clamp, force application).
package physics

import "github.com/jakecoffman/cp"

type Config struct {
	Width      float64
	Height     float64
	GravityY   float64
	Elasticity float64 // shared by walls and player boxes
	Friction   float64
}

// World owns the cp.Space and every body and shape inside it. Callers hold
// *Body handles but never remove or free them directly.
type World struct {
	space *cp.Space
	cfg   Config
}

// Body is the handle to one dynamic box in the world.
type Body struct {
	b *cp.Body
}

// NewWorld builds the space with downward gravity and four immovable segment
// walls along the edges of the cfg.Width x cfg.Height rectangle.
func NewWorld(cfg Config) *World {
	space := cp.NewSpace()
	space.SetGravity(cp.Vector{X: 0, Y: cfg.GravityY})

	w, h := cfg.Width, cfg.Height
	walls := []*cp.Shape{
		cp.NewSegment(space.StaticBody, cp.Vector{X: 0, Y: 0}, cp.Vector{X: 0, Y: h}, 0),
		cp.NewSegment(space.StaticBody, cp.Vector{X: w, Y: 0}, cp.Vector{X: w, Y: h}, 0),
		cp.NewSegment(space.StaticBody, cp.Vector{X: 0, Y: 0}, cp.Vector{X: w, Y: 0}, 0),
		cp.NewSegment(space.StaticBody, cp.Vector{X: 0, Y: h}, cp.Vector{X: w, Y: h}, 0),
	}
	for _, wall := range walls {
		wall.SetElasticity(cfg.Elasticity)
		wall.SetFriction(cfg.Friction)
		space.AddShape(wall)
	}

	return &World{space: space, cfg: cfg}
}

// SpawnBody adds a dynamic body with a size x size box shape at pos. The
// moment of inertia comes from the box dimensions, so off-center forces
// produce rotation.
func (w *World) SpawnBody(pos cp.Vector, mass, size float64) *Body {
	body := cp.NewBody(mass, cp.MomentForBox(mass, size, size))
	body.SetPosition(pos)
	w.space.AddBody(body)

	box := cp.NewBox(body, size, size, 0)
	box.SetElasticity(w.cfg.Elasticity)
	box.SetFriction(w.cfg.Friction)
	w.space.AddShape(box)

	return &Body{b: body}
}

// Step advances the simulation by dt seconds.
func (w *World) Step(dt float64) {
	w.space.Step(dt)
}

// ClampVelocity rescales the body's velocity to maxSpeed when it is faster,
// preserving direction. A zero velocity is left alone.
func (w *World) ClampVelocity(b *Body, maxSpeed float64) {
	v := b.b.Velocity()
	if v.Length() > maxSpeed {
		b.b.SetVelocityVector(v.Normalize().Mult(maxSpeed))
	}
}

// ApplyForceAtPoint applies an instantaneous force at a world-space point.
// The force accumulator is consumed by the next Step.
func (w *World) ApplyForceAtPoint(b *Body, force, point cp.Vector) {
	b.b.ApplyForceAtWorldPoint(force, point)
}

func (b *Body) Position() cp.Vector { return b.b.Position() }
func (b *Body) Velocity() cp.Vector { return b.b.Velocity() }
func (b *Body) Angle() float64      { return b.b.Angle() }

func (b *Body) Speed() float64 { return b.b.Velocity().Length() }
