package workflow

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aretw0/guidance/pkg/domain"
	"github.com/aretw0/guidance/pkg/escalation"
	"github.com/aretw0/guidance/pkg/ports"
)

// Kind classifies a state.
type Kind int

const (
	Collect Kind = iota
	Escalation
	Terminal
)

func (k Kind) String() string {
	switch k {
	case Collect:
		return "collect"
	case Escalation:
		return "escalation"
	case Terminal:
		return "terminal"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Env carries the collaborators available to transition functions.
type Env struct {
	Resolver ports.Resolver
	Policy   escalation.Policy
	Now      time.Time
}

// Handler consumes input for the current state and decides the outcome.
// It may mutate s; the engine discards the mutation if the call fails.
type Handler func(ctx context.Context, env Env, s *domain.Session, in domain.Input) (Outcome, error)

// Prompt renders the instruction handed to the caller on entering a state.
type Prompt func(s *domain.Session) *domain.Instruction

// StateSpec describes a single state of a Table.
type StateSpec struct {
	Kind   Kind
	Handle Handler
	Prompt Prompt
	Edges  []domain.StateID
}

// Allows reports whether next is a declared edge.
func (s StateSpec) Allows(next domain.StateID) bool {
	for _, e := range s.Edges {
		if e == next {
			return true
		}
	}
	return false
}

// Table is the complete definition of a workflow variant.
type Table struct {
	Variant domain.Variant
	Initial domain.StateID
	// Escalation is the entry state of the escalation branch, if the variant has one.
	Escalation domain.StateID
	States     map[domain.StateID]StateSpec
}

// Spec looks up a state, returning an UnknownStateError when it is not declared.
func (t *Table) Spec(id domain.StateID) (StateSpec, error) {
	spec, ok := t.States[id]
	if !ok {
		return StateSpec{}, &domain.UnknownStateError{Variant: t.Variant, State: id}
	}
	return spec, nil
}

// IsTerminal reports whether id is a declared terminal state.
func (t *Table) IsTerminal(id domain.StateID) bool {
	spec, ok := t.States[id]
	return ok && spec.Kind == Terminal
}

// StateIDs returns the declared states in lexical order.
func (t *Table) StateIDs() []domain.StateID {
	ids := make([]domain.StateID, 0, len(t.States))
	for id := range t.States {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ErrInvalidTable is returned by Validate.
var ErrInvalidTable = errors.New("invalid transition table")

// Validate checks that the table is exhaustive and well formed.
func (t *Table) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if t.Variant == "" {
		add("variant is empty")
	}

	initial, ok := t.States[t.Initial]
	switch {
	case t.Initial == "":
		add("initial state is empty")
	case !ok:
		add("initial state %s is not declared", t.Initial)
	case initial.Kind != Collect:
		add("initial state %s must be a collect state, got %s", t.Initial, initial.Kind)
	}

	if t.Escalation != "" {
		esc, ok := t.States[t.Escalation]
		if !ok {
			add("escalation state %s is not declared", t.Escalation)
		} else if esc.Kind != Escalation {
			add("escalation state %s must have kind escalation, got %s", t.Escalation, esc.Kind)
		}
	}

	for _, id := range t.StateIDs() {
		spec := t.States[id]
		if spec.Prompt == nil {
			add("state %s has no prompt", id)
		}

		if spec.Kind == Terminal {
			if spec.Handle != nil {
				add("terminal state %s must not have a handler", id)
			}
			if len(spec.Edges) > 0 {
				add("terminal state %s must not have edges", id)
			}
			continue
		}

		if spec.Handle == nil {
			add("state %s has no handler", id)
		}
		if spec.Kind == Escalation && t.Escalation == "" {
			add("state %s has kind escalation but the table declares no escalation entry", id)
		}

		for _, edge := range spec.Edges {
			target, ok := t.States[edge]
			if !ok {
				add("state %s has edge to undeclared state %s", id, edge)
				continue
			}
			if spec.Kind == Collect && target.Kind == Escalation {
				add("collect state %s must not have an edge into escalation state %s", id, edge)
			}
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w %q:\n- %s", ErrInvalidTable, t.Variant, strings.Join(problems, "\n- "))
	}
	return nil
}

// MustValidate panics when the table is invalid. Meant for package-level constructors.
func (t *Table) MustValidate() *Table {
	if err := t.Validate(); err != nil {
		panic(err)
	}
	return t
}
