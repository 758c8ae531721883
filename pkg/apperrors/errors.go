package apperrors

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrValidation         = errors.New("validation failed")
	ErrInvalidRole        = errors.New("invalid role")
	ErrClientAccessDenied = errors.New("client access denied")
	ErrLastAdmin          = errors.New("cannot remove last admin")
	ErrPrimaryAssignment  = errors.New("cannot deactivate primary client assignment")
	ErrInvalidTransition  = errors.New("invalid hold transition")
	ErrNoCycleTimeHistory = errors.New("no cycle time history for product")
)
