package store

import (
	"log/slog"
	"sync"

	"github.com/jaekwang-park/todo-sync/internal/model"
)

// Listener receives a private copy of the list after every dispatch.
// Listeners run while the store is locked: they must not block and must
// not call back into the store.
type Listener func(items []model.Item)

// Store owns the item list. All changes go through Dispatch.
type Store struct {
	mu        sync.Mutex
	items     []model.Item
	listeners map[int]Listener
	order     []int
	nextID    int
	logger    *slog.Logger
}

func New(logger *slog.Logger) *Store {
	return &Store{
		items:     []model.Item{},
		listeners: make(map[int]Listener),
		logger:    logger,
	}
}

// Dispatch applies action and notifies listeners in subscription order.
func (s *Store) Dispatch(action Action) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = Reduce(s.items, action)
	s.logger.Debug("action dispatched", "type", action.Type(), "items", len(s.items))

	for _, id := range s.order {
		s.listeners[id](cloneItems(s.items))
	}
}

// Items returns a deep copy of the current list.
func (s *Store) Items() []model.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneItems(s.items)
}

// Find returns a copy of the item addressed by ref.
func (s *Store) Find(ref string) (model.Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range s.items {
		if it.Matches(ref) {
			return it.Clone(), true
		}
	}
	return model.Item{}, false
}

// Subscribe registers l and returns a function that removes it.
func (s *Store) Subscribe(l Listener) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	s.order = append(s.order, id)

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.listeners, id)
			for i, v := range s.order {
				if v == id {
					s.order = append(s.order[:i:i], s.order[i+1:]...)
					break
				}
			}
		})
	}
}

func cloneItems(items []model.Item) []model.Item {
	out := make([]model.Item, len(items))
	for i, it := range items {
		out[i] = it.Clone()
	}
	return out
}
