package mapper

import (
	"errors"
	"sync"
	"sync/atomic"
)

// The package configuration mutex serializes mapper construction,
// mutation and configuration passes. It is coarse grained on purpose:
// construction mutates chain-shared structures (the polymorphic map, the
// inheriting mapper lists) that must never be observed half updated.
// Only Configure itself may skip the mutex, and only for a trigger
// fired from inside the running pass: the in-progress flag is set while
// the pass holds the mutex, and a nested trigger performs no mutation.
// Every other entry point blocks until the pass is over.
var (
	configureMu         sync.Mutex
	configureInProgress int32
)

// lockConfigure acquires the configuration mutex. Construction and
// mutation never bypass it; constructing mappers from inside a
// configuration hook is not supported.
func lockConfigure() (unlock func()) {
	configureMu.Lock()
	return configureMu.Unlock
}

type mapperEvents struct {
	mu               sync.Mutex
	beforeConfigure  []func(*Mapper) error
	configured       []func(*Mapper)
	beforeConfigured []func()
	afterConfigured  []func()
}

var events mapperEvents

// OnBeforeConfigure registers a hook run for each mapper right before its
// phase-two initialization. Returning ErrSkipConfigure defers the mapper
// to a later pass without failing it.
func OnBeforeConfigure(fn func(*Mapper) error) {
	events.mu.Lock()
	defer events.mu.Unlock()
	events.beforeConfigure = append(events.beforeConfigure, fn)
}

// OnConfigured registers a hook fired once per mapper after its phase-two
// initialization completes.
func OnConfigured(fn func(*Mapper)) {
	events.mu.Lock()
	defer events.mu.Unlock()
	events.configured = append(events.configured, fn)
}

// OnBeforeConfigured and OnAfterConfigured bracket a whole multi-registry
// pass, fired exactly once per external trigger.
func OnBeforeConfigured(fn func()) {
	events.mu.Lock()
	defer events.mu.Unlock()
	events.beforeConfigured = append(events.beforeConfigured, fn)
}

func OnAfterConfigured(fn func()) {
	events.mu.Lock()
	defer events.mu.Unlock()
	events.afterConfigured = append(events.afterConfigured, fn)
}

// ClearEvents drops every registered hook.
func ClearEvents() {
	events.mu.Lock()
	defer events.mu.Unlock()
	events.beforeConfigure = nil
	events.configured = nil
	events.beforeConfigured = nil
	events.afterConfigured = nil
}

// ConfigureAll finishes the deferred initialization of every pending
// mapper in every registry.
func ConfigureAll() error {
	return Configure(allRegistries...)
}

// Configure runs the two-phase coordinator over the given registries and
// their dependency closure. Registries a mapper's relationships point to
// configure first, with cycles tolerated by repeated passes. Calling it
// again with nothing pending performs no work and fires no notifications.
// A trigger observing a pass already in progress is a no-op; this is the
// re-entrancy guard for configuration hooks calling back in, and it reads
// nothing but the flag so it cannot observe torn state.
func Configure(registries ...*Registry) error {
	if atomic.LoadInt32(&configureInProgress) == 1 {
		return nil
	}
	configureMu.Lock()
	defer configureMu.Unlock()

	closure := dependencyClosure(registries)
	if !anyPending(closure) {
		return nil
	}

	atomic.StoreInt32(&configureInProgress, 1)
	defer atomic.StoreInt32(&configureInProgress, 0)

	for _, fn := range events.beforeConfigured {
		fn()
	}

	if err := configureRegistries(closure); err != nil {
		return err
	}

	for _, fn := range events.afterConfigured {
		fn()
	}
	return nil
}

// dependencyClosure orders registries dependencies-first; cycles are cut
// by the visited set and resolved by the fixpoint loop in
// configureRegistries.
func dependencyClosure(registries []*Registry) []*Registry {
	var ordered []*Registry
	visited := map[*Registry]bool{}
	var visit func(r *Registry)
	visit = func(r *Registry) {
		if r == nil || visited[r] {
			return
		}
		visited[r] = true
		for dep := range r.deps {
			visit(dep)
		}
		ordered = append(ordered, r)
	}
	for _, r := range registries {
		visit(r)
	}
	return ordered
}

func anyPending(registries []*Registry) bool {
	for _, r := range registries {
		if r.HasPending() {
			return true
		}
	}
	return false
}

func configureRegistries(registries []*Registry) error {
	for {
		progress := false
		remaining := false

		for _, r := range registries {
			for _, m := range r.pendingOrdered() {
				done, err := configureMapper(m)
				if err != nil {
					return err
				}
				if done {
					delete(r.pending, m)
					progress = true
				} else {
					remaining = true
				}
			}
		}

		if !remaining {
			return nil
		}
		if !progress {
			// every remaining mapper was skipped by a hook; leave them
			// pending for a later external trigger
			return nil
		}
	}
}

// pendingOrdered returns the pending set in a stable order: parents
// before descendants, then by class name.
func (r *Registry) pendingOrdered() []*Mapper {
	pending := make([]*Mapper, 0, len(r.pending))
	for m := range r.pending {
		pending = append(pending, m)
	}
	for i := 1; i < len(pending); i++ {
		for j := i; j > 0; j-- {
			a, b := pending[j-1], pending[j]
			if chainDepth(a) > chainDepth(b) || (chainDepth(a) == chainDepth(b) && a.ClassName > b.ClassName) {
				pending[j-1], pending[j] = b, a
			} else {
				break
			}
		}
	}
	return pending
}

func chainDepth(m *Mapper) int {
	depth := 0
	for a := m.Inherits; a != nil; a = a.Inherits {
		depth++
	}
	return depth
}

// configureMapper runs one mapper through phase two. done is false when a
// before-configure hook deferred it.
func configureMapper(m *Mapper) (done bool, err error) {
	if m.failed != nil {
		return false, &ConfigureFailedError{Mapper: m, Cause: m.failed}
	}

	for _, fn := range events.beforeConfigure {
		if hookErr := fn(m); hookErr != nil {
			if errors.Is(hookErr, ErrSkipConfigure) {
				return false, nil
			}
			m.failed = hookErr
			return false, &ConfigureFailedError{Mapper: m, Cause: hookErr}
		}
	}

	if err := m.finishInitialization(); err != nil {
		m.failed = err
		return false, &ConfigureFailedError{Mapper: m, Cause: err}
	}

	m.configured = true
	for _, fn := range events.configured {
		fn(m)
	}
	return true, nil
}

// finishInitialization is phase two of one mapper: every owned property
// finishes its deferred setup, then memoized views are invalidated.
func (m *Mapper) finishInitialization() error {
	for _, name := range m.propertyOrder {
		p := m.properties[name]
		if p.Parent() != m {
			// inherited by reference; the owner initializes it
			continue
		}
		if err := p.finishInit(); err != nil {
			return err
		}
	}
	m.expireMemos()
	return nil
}
