package boot

import (
	"bootos/kernel"
	"bootos/kernel/kfmt"
)

// MaxSteps is the number of steps a Sequence may declare; completion is
// tracked in a 32-bit mask.
const MaxSteps = 32

var (
	errTooManySteps        = &kernel.Error{Module: "boot", Message: "init sequence declares too many steps"}
	errInvalidStepID       = &kernel.Error{Module: "boot", Message: "init step ID out of range"}
	errDuplicateStep       = &kernel.Error{Module: "boot", Message: "init step declared more than once"}
	errUnknownRequirement  = &kernel.Error{Module: "boot", Message: "init step requires an undeclared step"}
	errRequirementNotFirst = &kernel.Error{Module: "boot", Message: "init step requires a step that runs after it"}
	errStepAlreadyRun      = &kernel.Error{Module: "boot", Message: "init step already completed"}

	// stepLog is statically allocated; no heap exists when the sequence starts.
	stepLog = kfmt.PrefixWriter{Prefix: []byte("[boot] ")}
)

// StepID identifies a boot step.
type StepID uint8

// Step is a single entry of the init sequence.
type Step struct {
	ID   StepID
	Name string

	// Requires lists the steps that must complete before this one.
	Requires []StepID

	// Run performs the step. Steps do not return errors; an
	// unrecoverable condition halts the machine via kfmt.Panic.
	Run func(*Context)
}

// Sequence is an ordered table of boot steps.
type Sequence []Step

// Validate checks that the step IDs are unique and that every requirement
// refers to a step declared earlier in the table.
func (s Sequence) Validate() *kernel.Error {
	if len(s) > MaxSteps {
		return errTooManySteps
	}

	var declared uint32
	for _, step := range s {
		if step.ID >= MaxSteps {
			return errInvalidStepID
		}
		if declared&(1<<step.ID) != 0 {
			return errDuplicateStep
		}

		for _, req := range step.Requires {
			if req >= MaxSteps || !s.declares(req) {
				return errUnknownRequirement
			}
			if declared&(1<<req) == 0 {
				return errRequirementNotFirst
			}
		}

		declared |= 1 << step.ID
	}

	return nil
}

func (s Sequence) declares(id StepID) bool {
	for _, step := range s {
		if step.ID == id {
			return true
		}
	}
	return false
}

// Run validates the sequence and then runs each step exactly once in
// declared order. When ctx.Debug is set, each step is announced on the
// active kfmt output sink.
func (s Sequence) Run(ctx *Context) *kernel.Error {
	if err := s.Validate(); err != nil {
		return err
	}

	for _, step := range s {
		if ctx.Completed(step.ID) {
			return errStepAlreadyRun
		}
	}

	for _, step := range s {
		if ctx.Debug {
			logStep(step.Name)
		}

		step.Run(ctx)
		ctx.completed |= 1 << step.ID
	}

	return nil
}

// logStep announces a step. Before a console exists the line goes to the
// early ring buffer without the prefix writer.
func logStep(name string) {
	sink := kfmt.GetOutputSink()
	if sink == nil {
		kfmt.Printf("[boot] step %s\n", name)
		return
	}

	stepLog.Sink = sink
	kfmt.Fprintf(&stepLog, "step %s\n", name)
}
