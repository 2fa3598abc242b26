package warroom

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrDuplicateID      = errors.New("duplicate id")
	ErrSelectionLevel   = errors.New("selection level not allowed in current view mode")
	ErrCoordinateRange  = errors.New("coordinate out of range")
	ErrLocationNotFound = errors.New("location not found")
	ErrInvalidSnapshot  = errors.New("invalid snapshot")
)
