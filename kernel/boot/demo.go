package boot

import (
	"bootos/kernel"
	"bootos/kernel/kfmt"
	"bootos/kernel/sync"
)

var errBrokenHandoff = &kernel.Error{Module: "boot", Message: "demo turn taken out of order"}

const (
	bootTurn   uint32 = 0
	workerTurn uint32 = 1
)

// Demo validates the scheduler by having the boot task and a spawned worker
// take turns printing a red "A" and a green "B".
type Demo struct {
	// Rounds is the number of A/B pairs to print; <= 0 loops forever.
	Rounds int

	handoff sync.Handoff
	outLock sync.Spinlock
}

func (d *Demo) done(round int) bool {
	return d.Rounds > 0 && round >= d.Rounds
}

// Worker is the body of the spawned task.
func (d *Demo) Worker() {
	for round := 0; !d.done(round); round++ {
		d.handoff.Await(workerTurn)
		d.mark(kfmt.Green, "B")
		if !d.handoff.Pass(workerTurn, bootTurn) {
			kfmt.Panic(errBrokenHandoff)
			return
		}
	}
}

// RunBootTask runs the boot task's half of the demo. With a bounded round
// count it returns once the worker has printed its final mark.
func (d *Demo) RunBootTask() {
	for round := 0; !d.done(round); round++ {
		d.handoff.Await(bootTurn)
		d.mark(kfmt.Red, "A")
		if !d.handoff.Pass(bootTurn, workerTurn) {
			kfmt.Panic(errBrokenHandoff)
			return
		}
	}

	d.handoff.Await(bootTurn)
}

func (d *Demo) mark(fg kfmt.Color, s string) {
	d.outLock.Acquire()
	kfmt.ColorPrintf(kfmt.Black, fg, "%s", s)
	d.outLock.Release()
}
