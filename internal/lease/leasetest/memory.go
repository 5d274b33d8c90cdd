// Package leasetest provides an in-memory lease.Store for tests.
package leasetest

import (
	"bytes"
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

type entry struct {
	value    []byte
	deadline time.Time
}

// Memory is a lease.Store kept in a map.  Keys expire against Now, which
// defaults to time.Now.  Fail, when set, is consulted before every
// operation and its error returned as is.
type Memory struct {
	mu   sync.Mutex
	data map[string]entry

	Now  func() time.Time
	Fail func(op, key string) error
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{data: map[string]entry{}}
}

func (m *Memory) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

func (m *Memory) fail(op, key string) error {
	if m.Fail == nil {
		return nil
	}
	return m.Fail(op, key)
}

// live returns the entry under key unless it has expired.  Callers hold mu.
func (m *Memory) live(key string) (entry, bool) {
	e, ok := m.data[key]
	if !ok {
		return entry{}, false
	}
	if !m.now().Before(e.deadline) {
		delete(m.data, key)
		return entry{}, false
	}
	return e, true
}

func (m *Memory) SetWithExpiry(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if err := m.fail("set", key); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = entry{value: append([]byte(nil), value...), deadline: m.now().Add(ttl)}
	return nil
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	if err := m.fail("get", key); err != nil {
		return nil, false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.live(key)
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), e.value...), true, nil
}

func (m *Memory) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		if err := m.fail("delete", k); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *Memory) DeleteIfEqual(_ context.Context, key string, value []byte) (bool, error) {
	if err := m.fail("delete", key); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.live(key)
	if !ok || !bytes.Equal(e.value, value) {
		return false, nil
	}
	delete(m.data, key)
	return true, nil
}

func (m *Memory) ScanKeys(_ context.Context, prefix string) ([]string, error) {
	if err := m.fail("scan", prefix); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for k := range m.data {
		if _, ok := m.live(k); ok && strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Put stores a raw value without going through Fail.  Tests use it to
// seed leases.
func (m *Memory) Put(key string, value []byte, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = entry{value: append([]byte(nil), value...), deadline: m.now().Add(ttl)}
}

// Keys returns the live keys, sorted.
func (m *Memory) Keys() []string {
	var out []string
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.data {
		if _, ok := m.live(k); ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
