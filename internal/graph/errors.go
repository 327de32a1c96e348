package graph

import "errors"

var (
	// ErrReferenceMissing is returned when an operation names a node or
	// edge that isn't in the model. Callers treat it as a no-op.
	ErrReferenceMissing = errors.New("graph: reference missing")
	// ErrDuplicateID is returned when adding an entity whose id is taken.
	ErrDuplicateID = errors.New("graph: duplicate identifier")
	// ErrInvalidParent is returned when containment would break the rules:
	// only attachments have parents, and parents must be groups.
	ErrInvalidParent = errors.New("graph: invalid parent")
	// ErrGroupNotEmpty is returned when removing a group that still has members.
	ErrGroupNotEmpty = errors.New("graph: group still has members")
	// ErrInvalidEdge is returned for edges that violate the flow invariants.
	ErrInvalidEdge = errors.New("graph: invalid edge")
	// ErrStale is returned by Revert for an op whose entity changed after
	// the op was recorded.
	ErrStale = errors.New("graph: entity changed since recorded")
)
