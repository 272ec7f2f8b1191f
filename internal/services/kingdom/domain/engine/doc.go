// Package engine sequences a check definition and a roll through a fixed
// state machine, producing a verdict.
//
// The flow is Created → RequirementsChecked → PreRoll → Rolled → Previewed →
// PostRoll → ModifiersApplied → PostApply → Executed → Completed. The ledger
// is written in exactly one state, ModifiersApplied, after every cancellable
// interactive phase, so a cancelled check never needs a rollback.
package engine
