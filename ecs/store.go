package ecs

import (
	"reflect"

	"github.com/pkg/errors"
)

// Entity is a unique identifier for an entity in a Store.
// It's just a number - all the data lives in component maps.
type Entity uint32

// InvalidEntity is never issued by a Store.
const InvalidEntity Entity = 0

var (
	ErrInvalidEntity   = errors.New("ecs: invalid entity")
	ErrDuplicateEntity = errors.New("ecs: entity already registered")
)

// componentMap is the type-erased view of a map[Entity]*T the store needs for
// whole-entity operations.
type componentMap interface {
	remove(e Entity)
	has(e Entity) bool
}

type typedMap[T any] map[Entity]*T

func (m typedMap[T]) remove(e Entity) { delete(m, e) }

func (m typedMap[T]) has(e Entity) bool {
	_, ok := m[e]
	return ok
}

// Store manages entities and their components.
// Each store owns its id counter and its registries; two stores never share state.
type Store struct {
	lastEntity Entity

	// Component storage - one map per component type
	components map[reflect.Type]componentMap

	// Registration order, used for iteration
	order []Entity
	live  map[Entity]struct{}
	dead  map[Entity]struct{}
}

// NewStore creates an empty store. The first entity it issues is 1.
func NewStore() *Store {
	return &Store{
		components: make(map[reflect.Type]componentMap),
		live:       make(map[Entity]struct{}),
		dead:       make(map[Entity]struct{}),
	}
}

// CreateEntity issues a new id. The entity is not live until AddEntity.
func (s *Store) CreateEntity() Entity {
	s.lastEntity++
	return s.lastEntity
}

// AddEntity registers an issued id as live.
func (s *Store) AddEntity(e Entity) error {
	if e == InvalidEntity || e > s.lastEntity {
		return errors.Wrapf(ErrInvalidEntity, "add %d", e)
	}
	if _, ok := s.dead[e]; ok {
		return errors.Wrapf(ErrInvalidEntity, "add deleted entity %d", e)
	}
	if _, ok := s.live[e]; ok {
		return errors.Wrapf(ErrDuplicateEntity, "add %d", e)
	}

	s.live[e] = struct{}{}
	s.order = append(s.order, e)
	return nil
}

// Spawn creates and registers an entity in one step.
func (s *Store) Spawn() Entity {
	e := s.CreateEntity()
	// A freshly issued id is always registrable.
	s.live[e] = struct{}{}
	s.order = append(s.order, e)
	return e
}

// Alive reports whether e is registered and not deleted.
func (s *Store) Alive(e Entity) bool {
	_, ok := s.live[e]
	return ok
}

// DeleteEntity removes *e and all its components and sets *e to InvalidEntity.
// Ids are never reused.
func (s *Store) DeleteEntity(e *Entity) error {
	if e == nil || !s.Alive(*e) {
		var id Entity
		if e != nil {
			id = *e
		}
		return errors.Wrapf(ErrInvalidEntity, "delete %d", id)
	}

	id := *e
	delete(s.live, id)
	s.dead[id] = struct{}{}

	for i, o := range s.order {
		if o == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}

	for _, m := range s.components {
		m.remove(id)
	}

	*e = InvalidEntity
	return nil
}

// Entities returns a copy of the live entities in registration order.
func (s *Store) Entities() []Entity {
	result := make([]Entity, len(s.order))
	copy(result, s.order)
	return result
}

// Len returns the number of live entities.
func (s *Store) Len() int {
	return len(s.order)
}

// --- Generic component access ---

func lookup[T any](s *Store) typedMap[T] {
	m, ok := s.components[reflect.TypeFor[T]()]
	if !ok {
		return nil
	}
	return m.(typedMap[T])
}

func registry[T any](s *Store) typedMap[T] {
	key := reflect.TypeFor[T]()
	if m, ok := s.components[key]; ok {
		return m.(typedMap[T])
	}
	m := make(typedMap[T])
	s.components[key] = m
	return m
}

// Assign stores a copy of value as e's T component, replacing any previous one.
// Pointers obtained from Get[T] for e before the call no longer see updates.
func Assign[T any](s *Store, e Entity, value T) error {
	if !s.Alive(e) {
		return errors.Wrapf(ErrInvalidEntity, "assign %s to %d", reflect.TypeFor[T](), e)
	}
	v := value
	registry[T](s)[e] = &v
	return nil
}

// Get returns e's T component, or nil if e has none or is not live.
func Get[T any](s *Store, e Entity) *T {
	if !s.Alive(e) {
		return nil
	}
	return lookup[T](s)[e]
}

// Has reports whether e carries a T component.
func Has[T any](s *Store, e Entity) bool {
	m := lookup[T](s)
	return m != nil && m.has(e)
}

// Remove drops e's T component. It reports whether there was one.
func Remove[T any](s *Store, e Entity) bool {
	m := lookup[T](s)
	if m == nil || !m.has(e) {
		return false
	}
	m.remove(e)
	return true
}

// Each calls fn for every live entity with a T component, in registration
// order, stopping early when fn returns false.
func Each[T any](s *Store, fn func(Entity, *T) bool) {
	m := lookup[T](s)
	if m == nil {
		return
	}
	for _, e := range s.Entities() {
		c, ok := m[e]
		if !ok {
			continue
		}
		if !fn(e, c) {
			return
		}
	}
}
