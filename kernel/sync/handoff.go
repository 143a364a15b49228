package sync

import "sync/atomic"

// Handoff is a turn flag shared by tasks that take turns. The current turn is
// only read and written with atomic operations, so a task that observes its
// turn also observes every write the previous holder made before passing it.
//
// The zero value hands the first turn to turn 0.
type Handoff struct {
	turn uint32
}

// Turn returns the current turn.
func (h *Handoff) Turn() uint32 {
	return atomic.LoadUint32(&h.turn)
}

// TryTake returns true if it is currently turn's turn.
func (h *Handoff) TryTake(turn uint32) bool {
	return atomic.LoadUint32(&h.turn) == turn
}

// Await busy-waits until it is turn's turn.
func (h *Handoff) Await(turn uint32) {
	for !h.TryTake(turn) {
		yieldFn()
	}
}

// Pass hands the turn from one holder to the next. It returns false, leaving
// the flag untouched, if from does not currently hold the turn.
func (h *Handoff) Pass(from, to uint32) bool {
	return atomic.CompareAndSwapUint32(&h.turn, from, to)
}
