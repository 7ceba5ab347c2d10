package engine

import "sync/atomic"

const (
	gateIdle int32 = iota
	gateDraining
)

// drainGate admits at most one drain task at a time.
type drainGate struct {
	state atomic.Int32
}

// tryAcquire moves the gate from idle to draining. Only the caller that wins
// the swap may run a drain loop.
func (g *drainGate) tryAcquire() bool {
	return g.state.CompareAndSwap(gateIdle, gateDraining)
}

func (g *drainGate) release() {
	g.state.Store(gateIdle)
}

func (g *drainGate) draining() bool {
	return g.state.Load() == gateDraining
}
