package rewards

import "errors"

// Err is a simple string error helper.
type Err string

func (e Err) Error() string { return string(e) }

var (
	ErrPermissionDenied = Err("permission denied")
	ErrNotFound         = Err("not found")
	ErrAlreadyExists    = Err("already exists")
	ErrInvalidAddress   = Err("invalid address")
	ErrInvalidState     = Err("invalid state")
	ErrEmpty            = Err("no qualifying entries")
	ErrInvalidInput     = Err("invalid input")

	// ErrCorrupt marks persisted data that fails an integrity check. It is
	// not recoverable by the caller.
	ErrCorrupt = Err("corrupt persisted data")
)

// Kind names the taxonomy class of err, or "internal" when it has none.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrAlreadyExists):
		return "already_exists"
	case errors.Is(err, ErrInvalidAddress):
		return "invalid_address"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrEmpty):
		return "empty"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrCorrupt):
		return "corrupt"
	}
	return "internal"
}
