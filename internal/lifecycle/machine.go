package lifecycle

import (
	"context"
	"fmt"
)

// Hook runs after subject has legally moved from -> to.
type Hook[T any] func(ctx context.Context, subject T, from, to Status) error

type registeredHook[T any] struct {
	name  string
	stage Status
	hook  Hook[T]
}

// Machine enforces the transition rule and fires post-transition hooks.
// Hooks registered with OnReach run whenever the destination is at or past
// their stage, so they must be idempotent.
type Machine[T any] struct {
	hooks []registeredHook[T]
}

// NewMachine returns a machine with no hooks.
func NewMachine[T any]() *Machine[T] {
	return &Machine[T]{}
}

// OnReach registers hook for every transition landing at or past stage.
func (m *Machine[T]) OnReach(stage Status, name string, hook Hook[T]) {
	m.hooks = append(m.hooks, registeredHook[T]{name: name, stage: stage, hook: hook})
}

// Advance validates from -> to, lets set record the new status on subject,
// then runs the matching hooks in registration order. Nothing is touched when
// the transition is illegal.
func (m *Machine[T]) Advance(ctx context.Context, subject T, from, to Status, set func(T, Status)) error {
	if err := CheckTransition(from, to); err != nil {
		return err
	}
	set(subject, to)
	for _, h := range m.hooks {
		if !to.Reached(h.stage) {
			continue
		}
		if err := h.hook(ctx, subject, from, to); err != nil {
			return fmt.Errorf("%s hook: %w", h.name, err)
		}
	}
	return nil
}
