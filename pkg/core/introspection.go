package core

import (
	"github.com/aretw0/introspection"
)

// StoreState exposes internal state for observability.
type StoreState struct {
	Records        int    `json:"records"`
	NextSerial     int    `json:"next_serial"`
	Fields         int    `json:"fields"`
	RepositoryType string `json:"repository_type"`
	Repository     any    `json:"repository,omitempty"`
}

// State implements introspection.Introspectable.
func (s *Store) State() any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state := StoreState{
		Records:        len(s.records),
		NextSerial:     s.next,
		Fields:         s.schema.Len(),
		RepositoryType: "unknown",
	}

	if s.repo != nil {
		state.RepositoryType = "repository"
		if comp, ok := s.repo.(introspection.Component); ok {
			state.RepositoryType = comp.ComponentType()
		}
		if intro, ok := s.repo.(introspection.Introspectable); ok {
			state.Repository = intro.State()
		}
	}

	return state
}

// ComponentType implements introspection.Component.
func (s *Store) ComponentType() string {
	return "store"
}

var _ introspection.Introspectable = (*Store)(nil)
var _ introspection.Component = (*Store)(nil)
