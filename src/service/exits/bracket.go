package exits

import (
	"context"
	"fmt"

	"github.com/Taamir-Ransome/grodt/src/service/interfaces"
	"github.com/qmuntal/stateless"
	"go.uber.org/zap"
)

// Bracket statuses. Completed, Cancelled and Error are terminal.
const (
	Pending       = "pending"
	Active        = "active"
	PartialFilled = "partial_filled"
	Completed     = "completed"
	Cancelled     = "cancelled"
	Error         = "error"
)

// State machine triggers.
const (
	TriggerActivate       = "Activate"
	TriggerLegFilled      = "LegFilled"
	TriggerLegPartialFill = "LegPartialFill"
	TriggerCancel         = "Cancel"
	TriggerError          = "Error"
)

// IsTerminal reports whether a bracket in the status given can never change
// again (archival aside).
func IsTerminal(status string) bool {
	return status == Completed || status == Cancelled || status == Error
}

/*
	Bracket life cycle:
		1) the manager constructs the bracket in Pending and runs the
		   two-phase placement; both legs acknowledged moves it to Active,
		   any placement failure to Error after compensation
		2) from Active the coordinator owns it: a full fill on either leg
		   completes the bracket, a partial fill parks it in PartialFilled
		   at unchanged sibling size
		3) a manual cancel or the timeout sweep takes it to Cancelled
		4) exhausted leg-cancel retries demote a recorded completion or
		   cancellation to Error for manual reconciliation
*/
func newBracketMachine(initial string, log interfaces.ILogger) *stateless.StateMachine {
	machine := stateless.NewStateMachineWithMode(initial, 1)
	machine.OnTransitioned(func(ctx context.Context, tr stateless.Transition) {
		log.Info("bracket state transition",
			zap.String("trigger", fmt.Sprintf("%v", tr.Trigger)),
			zap.String("source", fmt.Sprintf("%v", tr.Source)),
			zap.String("dest", fmt.Sprintf("%v", tr.Destination)),
		)
	})

	machine.Configure(Pending).
		Permit(TriggerActivate, Active).
		Permit(TriggerError, Error)

	machine.Configure(Active).
		Permit(TriggerLegFilled, Completed).
		Permit(TriggerLegPartialFill, PartialFilled).
		Permit(TriggerCancel, Cancelled).
		Permit(TriggerError, Error)

	machine.Configure(PartialFilled).
		Permit(TriggerLegFilled, Completed).
		Permit(TriggerCancel, Cancelled).
		Permit(TriggerError, Error)

	// The only escapes from terminal states: a settlement was recorded but
	// a leg could not be taken off the venue, so the bracket needs an
	// operator.
	machine.Configure(Completed).
		Permit(TriggerError, Error)

	machine.Configure(Cancelled).
		Permit(TriggerError, Error)

	return machine
}
