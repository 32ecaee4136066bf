// Package policy maps task types to ordered provider preference lists and
// acceptance thresholds. Tables are immutable once built; reconfiguration
// swaps a whole table atomically so in-flight requests never see a torn read.
package policy

import (
	"fmt"
	"sync/atomic"

	"github.com/zen-systems/routegate/pkg/provider"
)

// TaskType categorizes a generation request.
type TaskType string

const (
	TaskDiagramERD          TaskType = "diagram.erd"
	TaskDiagramArchitecture TaskType = "diagram.architecture"
	TaskCode                TaskType = "code"
	TaskDocumentation       TaskType = "documentation"
	TaskBacklog             TaskType = "backlog"

	// TaskDefault is resolved for task types with no dedicated policy.
	TaskDefault TaskType = "default"
)

// Policy holds the ordered provider preference for one task type.
type Policy struct {
	Providers       []provider.Descriptor
	MinQualityScore int
	MaxAttempts     int
}

// Validate checks policy invariants.
func (p Policy) Validate() error {
	if len(p.Providers) == 0 {
		return fmt.Errorf("provider list is empty")
	}
	if p.MinQualityScore < 0 || p.MinQualityScore > 100 {
		return fmt.Errorf("min_quality_score %d out of range [0,100]", p.MinQualityScore)
	}
	if p.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts %d must be >= 1", p.MaxAttempts)
	}
	for _, desc := range p.Providers {
		if err := desc.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// UnknownTaskTypeError reports a resolve against a task type with no policy
// and no registered default. This is a configuration bug, not a runtime
// condition to route around.
type UnknownTaskTypeError struct {
	TaskType TaskType
}

func (e *UnknownTaskTypeError) Error() string {
	return fmt.Sprintf("no routing policy registered for task type %q", e.TaskType)
}

// Table is an immutable task type to policy mapping.
type Table struct {
	policies map[TaskType]Policy
}

// NewTable builds a table, validating every policy.
func NewTable(policies map[TaskType]Policy) (*Table, error) {
	table := &Table{policies: make(map[TaskType]Policy, len(policies))}
	for taskType, p := range policies {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("policy %s: %w", taskType, err)
		}
		table.policies[taskType] = p
	}
	return table, nil
}

// Resolve returns the policy for a task type, falling back to the default
// policy when no dedicated one is registered. A provider order is never
// invented implicitly.
func (t *Table) Resolve(taskType TaskType) (Policy, error) {
	if p, ok := t.policies[taskType]; ok {
		return p, nil
	}
	if p, ok := t.policies[TaskDefault]; ok {
		return p, nil
	}
	return Policy{}, &UnknownTaskTypeError{TaskType: taskType}
}

// TaskTypes returns the registered task types.
func (t *Table) TaskTypes() []TaskType {
	types := make([]TaskType, 0, len(t.policies))
	for taskType := range t.policies {
		types = append(types, taskType)
	}
	return types
}

// Store publishes the active table with copy-on-write swap semantics.
type Store struct {
	table atomic.Pointer[Table]
}

// NewStore creates a store publishing the given table.
func NewStore(table *Table) *Store {
	s := &Store{}
	s.table.Store(table)
	return s
}

// Snapshot returns the current table. A request resolves its policy once
// and keeps using that snapshot for its whole lifetime.
func (s *Store) Snapshot() *Table {
	return s.table.Load()
}

// Swap atomically replaces the active table. In-flight requests keep their
// previous snapshot.
func (s *Store) Swap(table *Table) {
	s.table.Store(table)
}
