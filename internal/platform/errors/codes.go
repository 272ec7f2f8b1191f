// Package errors provides coded domain errors for the kingdom check engine.
package errors

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Content errors: malformed definitions, rejected before any mutation.
	CodeContentDefinitionInvalid   Code = "CONTENT_DEFINITION_INVALID"
	CodeContentDefinitionDuplicate Code = "CONTENT_DEFINITION_DUPLICATE"
	CodeContentDiceFormulaInvalid  Code = "CONTENT_DICE_FORMULA_INVALID"
	CodeContentResourceUnknown     Code = "CONTENT_RESOURCE_UNKNOWN"
	CodeContentCommandUnregistered Code = "CONTENT_COMMAND_UNREGISTERED"
	CodeContentCommandParams       Code = "CONTENT_COMMAND_PARAMS_INVALID"
	CodeContentChoiceUnresolved    Code = "CONTENT_CHOICE_UNRESOLVED"
	CodeContentOutcomeMissing      Code = "CONTENT_OUTCOME_MISSING"
	CodeContentExpressionInvalid   Code = "CONTENT_EXPRESSION_INVALID"
	CodeContentScriptInvalid       Code = "CONTENT_SCRIPT_INVALID"

	// Check lifecycle errors
	CodeCheckInFlight           Code = "CHECK_IN_FLIGHT"
	CodeCheckInvalidTransition  Code = "CHECK_INVALID_TRANSITION"
	CodeCheckDefinitionNotFound Code = "CHECK_DEFINITION_NOT_FOUND"

	// Prepared command errors
	CodeCommandAlreadyCommitted Code = "COMMAND_ALREADY_COMMITTED"
	CodeCommandDiscarded        Code = "COMMAND_DISCARDED"

	// Storage errors
	CodeNotFound         Code = "NOT_FOUND"
	CodeKingdomNotFound  Code = "KINGDOM_NOT_FOUND"
	CodeStorageFailure   Code = "STORAGE_FAILURE"
	CodeEntityNotFound   Code = "ENTITY_NOT_FOUND"
	CodeEntityKindNeeded Code = "ENTITY_KIND_REQUIRED"
)

// Class groups codes by how a caller should react.
type Class int

const (
	// ClassInternal is an unexpected failure.
	ClassInternal Class = iota
	// ClassContent marks a malformed definition; fatal for the check, never retried.
	ClassContent
	// ClassConflict marks a lifecycle or ownership conflict; the caller erred.
	ClassConflict
	// ClassNotFound marks a missing record.
	ClassNotFound
)

// Class maps domain codes to their reaction class.
func (c Code) Class() Class {
	switch c {
	case CodeContentDefinitionInvalid,
		CodeContentDefinitionDuplicate,
		CodeContentDiceFormulaInvalid,
		CodeContentResourceUnknown,
		CodeContentCommandUnregistered,
		CodeContentCommandParams,
		CodeContentChoiceUnresolved,
		CodeContentOutcomeMissing,
		CodeContentExpressionInvalid,
		CodeContentScriptInvalid:
		return ClassContent

	case CodeCheckInFlight,
		CodeCheckInvalidTransition,
		CodeCommandAlreadyCommitted,
		CodeCommandDiscarded:
		return ClassConflict

	case CodeNotFound,
		CodeKingdomNotFound,
		CodeCheckDefinitionNotFound,
		CodeEntityNotFound:
		return ClassNotFound

	default:
		return ClassInternal
	}
}
