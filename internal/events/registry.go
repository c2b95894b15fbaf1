package events

import "fmt"

var allowedEvents = map[string]struct{}{
	// scenario
	"scenario.created":   {},
	"scenario.updated":   {},
	"scenario.deleted":   {},
	"scenario.validated": {},
	"scenario.invalid":   {},
	"scenario.approved":  {},
	"scenario.started":   {},
	"scenario.completed": {},
	"scenario.failed":    {},

	// state
	"state.activated":   {},
	"state.deactivated": {},

	// transition
	"transition.taken":        {},
	"transition.action":       {},
	"transition.guard_failed": {},

	// visual script node
	"node.executed": {},
	"node.skipped":  {},
	"node.failed":   {},

	// visual script
	"script.started":   {},
	"script.completed": {},
	"script.cycle":     {},

	// test run
	"testrun.created":   {},
	"testrun.started":   {},
	"testrun.passed":    {},
	"testrun.failed":    {},
	"testrun.error":     {},
	"testrun.cancelled": {},

	// bug report
	"bug.filed":    {},
	"bug.assigned": {},
	"bug.updated":  {},

	// code generation
	"codegen.generated": {},
	"codegen.failed":    {},
	"codegen.exported":  {},

	// test device
	"device.connected":    {},
	"device.disconnected": {},
	"device.registered":   {},
	"device.message":      {},
	"device.error":        {},

	// system
	"system.startup":  {},
	"system.shutdown": {},
	"system.error":    {},
}

func Validate(event string) error {
	if _, ok := allowedEvents[event]; !ok {
		return fmt.Errorf("unknown event: %s", event)
	}
	return nil
}
