package projection

import (
	"sync"

	"github.com/dukerupert/larder/internal/model"
)

// Projector holds the current State for one collection and applies events to
// it one at a time.
type Projector[T model.Record] struct {
	mu       sync.Mutex
	lens     Lens[T]
	state    State[T]
	onChange func(State[T])
}

// NewProjector starts from an empty state. onChange, if set, runs after every
// event while the projector is locked, so it must not call Apply.
func NewProjector[T model.Record](lens Lens[T], settings Settings, onChange func(State[T])) *Projector[T] {
	return &Projector[T]{
		lens:     lens,
		state:    NewState(lens, settings),
		onChange: onChange,
	}
}

// Apply reduces ev into the current state and returns the result.
func (p *Projector[T]) Apply(ev Event) State[T] {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.state = Reduce(p.lens, p.state, ev)
	if p.onChange != nil {
		p.onChange(p.state)
	}
	return p.state
}

// State returns the current state.
func (p *Projector[T]) State() State[T] {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Lens returns the lens the projector was built with.
func (p *Projector[T]) Lens() Lens[T] {
	return p.lens
}
