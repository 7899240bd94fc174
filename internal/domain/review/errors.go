package review

import "errors"

var (
	ErrNotRepositoryOwner = errors.New("requesting user does not own the repository")
	ErrFindingOutOfRange  = errors.New("finding index out of range")
)
