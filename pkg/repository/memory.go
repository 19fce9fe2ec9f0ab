package repository

import (
	"context"
	"sync"
)

// MemoryStore keeps the whole tree in process. It backs local development
// and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	root   map[string]any
	subs   map[int]*memorySubscription
	nextID int
	closed bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		root: make(map[string]any),
		subs: make(map[int]*memorySubscription),
	}
}

func (m *MemoryStore) Get(ctx context.Context, path string, dest any) (bool, error) {
	segs, err := SplitPath(path)
	if err != nil {
		return false, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return false, ErrStoreClosed
	}

	v, ok := getAt(m.root, segs)
	if !ok {
		return false, nil
	}
	if err := decodeInto(v, dest); err != nil {
		return false, err
	}
	return true, nil
}

func (m *MemoryStore) Set(ctx context.Context, path string, value any) error {
	segs, err := SplitPath(path)
	if err != nil {
		return err
	}
	normalized, err := normalize(value)
	if err != nil {
		return err
	}
	tree := toTree(normalized)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrStoreClosed
	}
	if len(segs) == 0 {
		root, ok := tree.(map[string]any)
		if !ok {
			root = make(map[string]any)
		}
		m.root = root
	} else {
		setAt(m.root, segs, tree)
	}
	var notify []*memorySubscription
	for _, sub := range m.subs {
		if related(segs, sub.segs) {
			notify = append(notify, sub)
		}
	}
	m.mu.Unlock()

	for _, sub := range notify {
		sub.signal()
	}
	return nil
}

func (m *MemoryStore) List(ctx context.Context, q Query) (Children, error) {
	segs, err := SplitPath(q.Path)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrStoreClosed
	}

	node, _ := getAt(m.root, segs)
	return matchChildren(node, q)
}

func (m *MemoryStore) Subscribe(ctx context.Context, q Query, onSnapshot func(Children), onError func(error)) (Subscription, error) {
	segs, err := SplitPath(q.Path)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrStoreClosed
	}
	id := m.nextID
	m.nextID++
	sub := &memorySubscription{
		store:   m,
		id:      id,
		segs:    segs,
		changed: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	m.subs[id] = sub
	m.mu.Unlock()

	// Deliver the initial snapshot through the same path as later changes.
	sub.signal()
	go sub.run(q, onSnapshot, onError)

	return sub, nil
}

func (m *MemoryStore) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	subs := m.subs
	m.subs = make(map[int]*memorySubscription)
	m.mu.Unlock()

	for _, sub := range subs {
		sub.stop()
	}
	return nil
}

type memorySubscription struct {
	store   *MemoryStore
	id      int
	segs    []string
	changed chan struct{}
	done    chan struct{}
	once    sync.Once
}

// signal coalesces pending notifications; the subscriber always reads the latest state.
func (s *memorySubscription) signal() {
	select {
	case s.changed <- struct{}{}:
	default:
	}
}

func (s *memorySubscription) run(q Query, onSnapshot func(Children), onError func(error)) {
	for {
		select {
		case <-s.done:
			return
		case <-s.changed:
		}

		children, err := s.store.List(context.Background(), q)
		select {
		case <-s.done:
			return
		default:
		}
		if err != nil {
			if onError != nil {
				onError(err)
			}
			continue
		}
		onSnapshot(children)
	}
}

func (s *memorySubscription) stop() {
	s.once.Do(func() { close(s.done) })
}

func (s *memorySubscription) Close() {
	s.store.mu.Lock()
	delete(s.store.subs, s.id)
	s.store.mu.Unlock()
	s.stop()
}
