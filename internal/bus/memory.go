package bus

import (
	"context"
	"sync"

	"github.com/go-faster/errors"
)

var ErrClosed = errors.New("bus closed")

// Memory is an in-process bus. Publish delivers synchronously to the
// handlers subscribed at that moment.
type Memory struct {
	mu     sync.RWMutex
	subs   map[string]map[int]Handler
	nextID int
	closed bool
}

func NewMemory() *Memory {
	return &Memory{subs: map[string]map[int]Handler{}}
}

func (m *Memory) Publish(ctx context.Context, subject string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return ErrClosed
	}
	handlers := make([]Handler, 0, len(m.subs[subject]))
	for _, h := range m.subs[subject] {
		handlers = append(handlers, h)
	}
	m.mu.RUnlock()

	for _, h := range handlers {
		cp := make([]byte, len(data))
		copy(cp, data)
		h(Message{Subject: subject, Data: cp})
	}
	return nil
}

func (m *Memory) Subscribe(subject string, h Handler) (Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	if m.subs[subject] == nil {
		m.subs[subject] = map[int]Handler{}
	}
	id := m.nextID
	m.nextID++
	m.subs[subject][id] = h
	return &memorySubscription{bus: m, subject: subject, id: id}, nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.subs = map[string]map[int]Handler{}
	return nil
}

type memorySubscription struct {
	bus     *Memory
	subject string
	id      int
}

func (s *memorySubscription) Unsubscribe() error {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	delete(s.bus.subs[s.subject], s.id)
	return nil
}
