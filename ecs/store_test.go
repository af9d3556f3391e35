package ecs

import (
	"errors"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

type health struct{ hp int }
type tag struct{ name string }

func TestStoreEntityLifecycle(t *testing.T) {
	cases := []struct {
		name         string
		create       int
		deleteIndex  int // -1 = none
		wantEntities int
	}{
		{"single", 1, 0, 0},
		{"three_delete_middle", 3, 1, 2},
		{"none_deleted", 2, -1, 2},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			s := NewStore()
			ents := make([]Entity, 0, c.create)
			for i := 0; i < c.create; i++ {
				e := s.CreateEntity()
				if err := s.AddEntity(e); err != nil {
					t.Fatalf("AddEntity(%d): %v", e, err)
				}
				ents = append(ents, e)
			}
			if c.deleteIndex >= 0 {
				e := ents[c.deleteIndex]
				if err := s.DeleteEntity(&e); err != nil {
					t.Fatalf("DeleteEntity: %v", err)
				}
				if e != InvalidEntity {
					t.Fatalf("expected deleted handle to be zeroed, got %d", e)
				}
				if s.Alive(ents[c.deleteIndex]) {
					t.Fatalf("entity %d still alive after delete", ents[c.deleteIndex])
				}
			}
			if got := len(s.Entities()); got != c.wantEntities {
				t.Fatalf("expected %d entities, got %d", c.wantEntities, got)
			}
		})
	}
}

func TestCreateEntityIsMonotonicAndNeverZero(t *testing.T) {
	s := NewStore()
	prev := InvalidEntity
	for i := 0; i < 100; i++ {
		e := s.CreateEntity()
		if e == InvalidEntity {
			t.Fatalf("CreateEntity returned the invalid id")
		}
		if e <= prev {
			t.Fatalf("ids not increasing: %d after %d", e, prev)
		}
		prev = e
	}
	if s.Len() != 0 {
		t.Fatalf("CreateEntity must not register, Len = %d", s.Len())
	}
}

func TestStoresDoNotShareCounters(t *testing.T) {
	a, b := NewStore(), NewStore()
	a.CreateEntity()
	a.CreateEntity()
	if got := b.CreateEntity(); got != 1 {
		t.Fatalf("second store should start at 1, got %d", got)
	}
}

func TestAddEntityErrors(t *testing.T) {
	s := NewStore()
	e := s.Spawn()

	deleted := s.Spawn()
	gone := deleted
	if err := s.DeleteEntity(&deleted); err != nil {
		t.Fatalf("DeleteEntity: %v", err)
	}

	tests := []struct {
		name string
		e    Entity
		want error
	}{
		{"zero", InvalidEntity, ErrInvalidEntity},
		{"never_issued", 99, ErrInvalidEntity},
		{"duplicate", e, ErrDuplicateEntity},
		{"deleted", gone, ErrInvalidEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.AddEntity(tt.e)
			if !errors.Is(err, tt.want) {
				t.Fatalf("AddEntity(%d) = %v, want %v", tt.e, err, tt.want)
			}
		})
	}
}

func TestEntitiesKeepRegistrationOrder(t *testing.T) {
	s := NewStore()
	a := s.CreateEntity()
	b := s.CreateEntity()
	c := s.CreateEntity()

	// Register out of issue order.
	for _, e := range []Entity{c, a, b} {
		if err := s.AddEntity(e); err != nil {
			t.Fatalf("AddEntity(%d): %v", e, err)
		}
	}

	got := s.Entities()
	want := []Entity{c, a, b}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Entities() = %v, want %v", got, want)
		}
	}

	got[0] = 42
	if s.Entities()[0] != c {
		t.Fatalf("Entities must return a copy")
	}
}

func TestComponentAccess(t *testing.T) {
	s := NewStore()
	e := s.Spawn()
	other := s.Spawn()

	if Get[health](s, e) != nil {
		t.Fatalf("expected no component before Assign")
	}
	if err := Assign(s, e, health{hp: 10}); err != nil {
		t.Fatalf("Assign: %v", err)
	}
	h := Get[health](s, e)
	if h == nil || h.hp != 10 {
		t.Fatalf("Get after Assign = %+v", h)
	}
	if !Has[health](s, e) || Has[health](s, other) {
		t.Fatalf("Has reports wrong membership")
	}

	// Overwrite replaces the stored value.
	if err := Assign(s, e, health{hp: 3}); err != nil {
		t.Fatalf("Assign overwrite: %v", err)
	}
	if got := Get[health](s, e).hp; got != 3 {
		t.Fatalf("overwrite not visible, hp = %d", got)
	}

	// Distinct types live in distinct registries.
	if Get[tag](s, e) != nil {
		t.Fatalf("unexpected tag component")
	}

	if !Remove[health](s, e) {
		t.Fatalf("Remove should report an existing component")
	}
	if Remove[health](s, e) {
		t.Fatalf("second Remove should report nothing removed")
	}
	if Get[health](s, e) != nil {
		t.Fatalf("component still present after Remove")
	}
}

func TestAssignToInvalidEntity(t *testing.T) {
	s := NewStore()
	issued := s.CreateEntity()

	for _, e := range []Entity{InvalidEntity, issued, 77} {
		if err := Assign(s, e, tag{"x"}); !errors.Is(err, ErrInvalidEntity) {
			t.Fatalf("Assign to %d = %v, want ErrInvalidEntity", e, err)
		}
	}
}

func TestDeleteEntityPurgesEveryComponent(t *testing.T) {
	s := NewStore()
	e := s.Spawn()
	keep := s.Spawn()

	_ = Assign(s, e, health{hp: 1})
	_ = Assign(s, e, tag{"doomed"})
	_ = Assign(s, e, Transform{Position: mgl32.Vec3{1, 2, 3}})
	_ = Assign(s, keep, tag{"keep"})

	id := e
	if err := s.DeleteEntity(&e); err != nil {
		t.Fatalf("DeleteEntity: %v", err)
	}

	if Get[health](s, id) != nil || Get[tag](s, id) != nil || Get[Transform](s, id) != nil {
		t.Fatalf("components survived delete")
	}
	if Has[health](s, id) || Has[tag](s, id) || Has[Transform](s, id) {
		t.Fatalf("registries still hold deleted entity")
	}
	if got := Get[tag](s, keep); got == nil || got.name != "keep" {
		t.Fatalf("unrelated entity lost its component: %+v", got)
	}

	if err := s.DeleteEntity(&e); !errors.Is(err, ErrInvalidEntity) {
		t.Fatalf("deleting a zeroed handle = %v, want ErrInvalidEntity", err)
	}
	if err := Assign(s, id, tag{"again"}); !errors.Is(err, ErrInvalidEntity) {
		t.Fatalf("Assign after delete = %v, want ErrInvalidEntity", err)
	}
}

func TestEachVisitsInRegistrationOrder(t *testing.T) {
	s := NewStore()
	var want []Entity
	for i := 0; i < 5; i++ {
		e := s.Spawn()
		if i%2 == 0 {
			_ = Assign(s, e, health{hp: i})
			want = append(want, e)
		}
	}

	var got []Entity
	Each(s, func(e Entity, h *health) bool {
		got = append(got, e)
		return true
	})
	if len(got) != len(want) {
		t.Fatalf("Each visited %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Each visited %v, want %v", got, want)
		}
	}

	visits := 0
	Each(s, func(Entity, *health) bool {
		visits++
		return false
	})
	if visits != 1 {
		t.Fatalf("Each should stop when fn returns false, visited %d", visits)
	}
}

func TestMVPLayout(t *testing.T) {
	if MVPSize != 192 {
		t.Fatalf("MVPSize = %d, want 192", MVPSize)
	}
	if VertexSize != 32 {
		t.Fatalf("VertexSize = %d, want 32", VertexSize)
	}

	m := MVP{Model: mgl32.Ident4()}
	b := m.Bytes()
	if len(b) != 192 {
		t.Fatalf("Bytes() len = %d", len(b))
	}
	// 1.0f little-endian in the first column.
	if b[0] != 0x00 || b[1] != 0x00 || b[2] != 0x80 || b[3] != 0x3f {
		t.Fatalf("unexpected first float bytes % x", b[:4])
	}
}

func TestMaterialPipelineFallback(t *testing.T) {
	var nilMaterial *Material
	if nilMaterial.Pipeline(true) != nil {
		t.Fatalf("nil material should yield no pipeline")
	}
	m := &Material{}
	if m.Pipeline(true) != nil {
		t.Fatalf("empty material should yield no pipeline")
	}
}

func TestTransformMatrix(t *testing.T) {
	tr := &Transform{Position: mgl32.Vec3{2, 2, 2}}
	got := tr.Matrix().Col(3)
	if got != (mgl32.Vec4{2, 2, 2, 1}) {
		t.Fatalf("translation column = %v", got)
	}
	var none *Transform
	if none.Matrix() != mgl32.Ident4() {
		t.Fatalf("nil transform should be identity")
	}
}
