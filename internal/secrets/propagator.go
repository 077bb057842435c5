// Package secrets isolates credential material from the rest of the
// pipeline's data flow. Components pass Refs; only provisioners that hold a
// Ref may resolve the value.
package secrets

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Ref is a pointer to a stored secret, never the value itself. Refs are the
// only secret-shaped data allowed in handles, logs and the manifest.
type Ref struct {
	Name          string `json:"name"`
	StoreLocation string `json:"storeLocation"`
}

// Store is the external secret system of record. It outlives a single
// deployment run.
type Store interface {
	// Write persists value under name and returns the store location.
	Write(ctx context.Context, name, value string) (string, error)
	// Read returns the value at a previously returned location.
	Read(ctx context.Context, location string) (string, error)
	// Locate returns the location of an existing secret without writing.
	// Errors when no secret exists under name.
	Locate(ctx context.Context, name string) (string, error)
}

// Propagator mediates secret handoff between stages. Each secret is written
// exactly once per run per logical name; a re-run overwrites only when the
// caller marks the secret rotatable.
type Propagator struct {
	store Store

	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	mu      sync.Mutex
	written bool
	ref     Ref
	value   string
}

func NewPropagator(store Store) *Propagator {
	return &Propagator{
		store:   store,
		entries: make(map[string]*entry),
	}
}

// Put stores value under the logical name and returns its Ref. A second Put
// for the same name within a run returns the existing Ref without touching
// the store unless rotatable is set.
func (p *Propagator) Put(ctx context.Context, name, value string, rotatable bool) (Ref, error) {
	if name == "" {
		return Ref{}, fmt.Errorf("secret name must not be empty")
	}

	p.mu.Lock()
	e, ok := p.entries[name]
	if !ok {
		e = &entry{}
		p.entries[name] = e
	}
	p.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.written && !rotatable {
		return e.ref, nil
	}

	location, err := p.store.Write(ctx, name, value)
	if err != nil {
		return Ref{}, fmt.Errorf("failed to store secret %q: %w", name, err)
	}

	e.written = true
	e.ref = Ref{Name: name, StoreLocation: location}
	e.value = value
	return e.ref, nil
}

// RefFor returns the Ref for a secret that already exists under the
// logical name, written either earlier in this run or by a previous run.
// Used when a provisioner finds its resource pre-existing and must still
// hand the secret ref to dependents.
func (p *Propagator) RefFor(ctx context.Context, name string) (Ref, error) {
	if name == "" {
		return Ref{}, fmt.Errorf("secret name must not be empty")
	}

	p.mu.Lock()
	e, ok := p.entries[name]
	p.mu.Unlock()
	if ok {
		e.mu.Lock()
		written, ref := e.written, e.ref
		e.mu.Unlock()
		if written {
			return ref, nil
		}
	}

	location, err := p.store.Locate(ctx, name)
	if err != nil {
		return Ref{}, fmt.Errorf("failed to locate secret %q: %w", name, err)
	}
	return Ref{Name: name, StoreLocation: location}, nil
}

// Resolve returns the secret value for a Ref. Callers must already hold the
// Ref; there is no enumeration surface.
func (p *Propagator) Resolve(ctx context.Context, ref Ref) (string, error) {
	if ref.StoreLocation == "" {
		return "", fmt.Errorf("secret ref %q has no store location", ref.Name)
	}
	value, err := p.store.Read(ctx, ref.StoreLocation)
	if err != nil {
		return "", fmt.Errorf("failed to resolve secret %q: %w", ref.Name, err)
	}
	return value, nil
}

// Redact replaces every secret value stored during this run that occurs in s
// with a reference marker. Used by the manifest emitter before
// serialization.
func (p *Propagator) Redact(s string) string {
	if s == "" {
		return s
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for name, e := range p.entries {
		e.mu.Lock()
		if e.written && e.value != "" {
			s = strings.ReplaceAll(s, e.value, "[ref:"+name+"]")
		}
		e.mu.Unlock()
	}
	return s
}
