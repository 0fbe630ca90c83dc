package inference

import (
	"context"
	"fmt"
	"sync"

	"github.com/developer27/falconeye/internal/debug"
)

// OpenFunc loads a model.
type OpenFunc func(ctx context.Context) (Module, error)

// Loader holds one lazily loaded model. Get loads it on first use; Close
// releases it and lets the next Get load it again.
type Loader struct {
	mu     sync.Mutex
	open   OpenFunc
	module Module
}

func NewLoader(open OpenFunc) *Loader {
	return &Loader{open: open}
}

// Get returns the loaded model, loading it if needed. A failed load is not
// cached.
func (l *Loader) Get(ctx context.Context) (Module, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.module != nil {
		return l.module, nil
	}
	m, err := l.open(ctx)
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}
	debug.Info("Model loaded")
	l.module = m
	return m, nil
}

// Loaded reports whether a model is currently held.
func (l *Loader) Loaded() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.module != nil
}

// Ping loads the model if needed and reports whether its runtime answers.
// Modules without a health check count as reachable once loaded.
func (l *Loader) Ping(ctx context.Context) bool {
	m, err := l.Get(ctx)
	if err != nil {
		debug.Errorf("model ping: %v", err)
		return false
	}
	if p, ok := m.(interface{ Ping(context.Context) bool }); ok {
		return p.Ping(ctx)
	}
	return true
}

// Close releases the held model, if any.
func (l *Loader) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.module == nil {
		return nil
	}
	err := l.module.Close()
	l.module = nil
	debug.Info("Model released")
	if err != nil {
		return fmt.Errorf("close model: %w", err)
	}
	return nil
}

// Forward implements Module on top of the lazily loaded model.
func (l *Loader) Forward(ctx context.Context, input Tensor) ([]float32, error) {
	m, err := l.Get(ctx)
	if err != nil {
		return nil, err
	}
	return m.Forward(ctx, input)
}
