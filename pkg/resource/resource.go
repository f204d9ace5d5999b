// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package resource

import (
	"fmt"
	"os"
	"sync"

	"github.com/luxfi/ads/pkg/log"
)

// ParseError reports a malformed or unsupported resource document.
type ParseError struct {
	Resource string
	Reason   string
	Err      error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse %s resource: %s: %v", e.Resource, e.Reason, e.Err)
	}
	return fmt.Sprintf("parse %s resource: %s", e.Resource, e.Reason)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Manager holds the last successfully parsed value of a resource. A failed
// load leaves the previous value in place.
type Manager[T any] struct {
	name  string
	parse func([]byte) (T, error)
	log   log.Logger

	mu     sync.RWMutex
	value  T
	loaded bool
}

func NewManager[T any](name string, parse func([]byte) (T, error), logger log.Logger) *Manager[T] {
	if logger == nil {
		logger = log.NoLog
	}
	return &Manager[T]{
		name:  name,
		parse: parse,
		log:   logger.With(log.String("resource", name)),
	}
}

// Load parses data and swaps it in on success.
func (m *Manager[T]) Load(data []byte) error {
	value, err := m.parse(data)
	if err != nil {
		m.log.Warn("keeping previous resource", log.Error(err))
		return err
	}

	m.mu.Lock()
	m.value = value
	m.loaded = true
	m.mu.Unlock()

	m.log.Info("loaded resource")
	return nil
}

// LoadFile reads and loads the file at path.
func (m *Manager[T]) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		m.log.Warn("failed to read resource", log.String("path", path), log.Error(err))
		return fmt.Errorf("read %s resource: %w", m.name, err)
	}
	return m.Load(data)
}

// Get returns the current value and whether one was ever loaded.
func (m *Manager[T]) Get() (T, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.value, m.loaded
}
