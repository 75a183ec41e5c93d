package graph

import (
	"errors"
	"strings"
)

// Sentinel errors for graph operations.
var (
	// ErrNodeNotFound is returned when a class name does not resolve to a node.
	ErrNodeNotFound = errors.New("node not found")

	// ErrInstantiationDepth is returned when template bases instantiate
	// further templates beyond the configured depth.
	ErrInstantiationDepth = errors.New("template instantiation too deep")
)

// CycleError reports classes that derive, directly or transitively, from
// themselves. Classes lists the cycle in inheritance order, starting and
// ending with the same class.
type CycleError struct {
	Classes []string
}

func (e *CycleError) Error() string {
	return "inheritance cycle: " + strings.Join(e.Classes, " -> ")
}

// Contains reports whether id takes part in the cycle.
func (e *CycleError) Contains(id string) bool {
	for _, c := range e.Classes {
		if c == id {
			return true
		}
	}
	return false
}
