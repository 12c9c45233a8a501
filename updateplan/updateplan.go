// Package updateplan implements the optional UpdatePlan hand-off from
// spec sections 3 and 6: a directive the running firmware can leave
// in a known slot to command the bootloader's behaviour on the next
// boot. The bootloader only ever reads this slot.
package updateplan

// Tag is the UpdatePlan directive.
type Tag byte

const (
	Normal Tag = iota
	SkipUpdate
)

// Plan is the decoded UpdatePlan. Present is false on first boot or on
// ports that don't support the feature at all (spec section 3).
type Plan struct {
	Present bool
	Tag     Tag
}

// Reader abstracts the reserved slot so ports without UpdatePlan
// support can simply not wire one in; the Updater treats a nil Reader
// exactly like Present == false.
type Reader interface {
	ReadPlan() Plan
}

// Skip reports whether the plan commands the Updater to skip (spec
// section 4.4 step 2). A nil reader, or a Plan with Present == false,
// never skips.
func Skip(r Reader) bool {
	if r == nil {
		return false
	}
	plan := r.ReadPlan()
	return plan.Present && plan.Tag == SkipUpdate
}

// StaticReader is a fixed Plan, used by ports whose UpdatePlan slot is
// a plain reserved memory location read once at startup, and by
// tests.
type StaticReader Plan

func (s StaticReader) ReadPlan() Plan { return Plan(s) }
