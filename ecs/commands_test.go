package ecs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countMatching(w *World, f Filter) int {
	n := 0
	f.projected = nil // count rows only: the callback binds no components
	w.ForAll(f, func(Entity) { n++ })
	return n
}

// Scenario 5: three placeholders created, four interleaved add_component
// calls, then Run. Expect with<T1> -> 1 entity, with<T2> -> 1 entity,
// with<T3> -> 2 entities.
func TestCommandBufferBatching(t *testing.T) {
	w := NewWorld()
	b := NewCommandBuffer()

	p1 := b.CreateEntity()
	p2 := b.CreateEntity()
	p3 := b.CreateEntity()

	AddComponent(b, p1, T1{Data: 1})
	AddComponent(b, p2, T2{Data: 2})
	AddComponent(b, p3, T3{Data: 3})
	AddComponent(b, p1, T3{Data: 4})

	b.Run(w)

	assert.Equal(t, 1, countMatching(w, With[T1](w)))
	assert.Equal(t, 1, countMatching(w, With[T2](w)))
	assert.Equal(t, 2, countMatching(w, With[T3](w)))
}

func TestCommandBufferDestroyUsesDistinctKindFromCreate(t *testing.T) {
	b := NewCommandBuffer()
	b.DestroyEntity(Entity{ID: 1, Version: 0})
	require.Len(t, b.commands, 1)
	assert.Equal(t, cmdDestroy, b.commands[0].kind)
	assert.NotEqual(t, cmdCreate, b.commands[0].kind)
}

func TestCommandBufferRunOnEmptyBufferIsNoop(t *testing.T) {
	w := NewWorld()
	b := NewCommandBuffer()
	assert.NotPanics(t, func() { b.Run(w) })
	assert.Equal(t, 0, w.Stats().EntityCount)
}

func TestCommandBufferSetComponentOverwritesExistingValue(t *testing.T) {
	w := NewWorld()
	e := w.CreateEntity()
	Add(w, e, Position{X: 1, Y: 1})

	b := NewCommandBuffer()
	SetComponent(b, e, Position{X: 9, Y: 9})
	b.Run(w)

	assert.Equal(t, Position{X: 9, Y: 9}, *Get[Position](w, e))
}

func TestCommandBufferRemoveComponent(t *testing.T) {
	w := NewWorld()
	e := w.CreateEntity()
	Add2(w, e, Position{}, Velocity{})

	b := NewCommandBuffer()
	RemoveComponent[Velocity](b, e)
	b.Run(w)

	assert.False(t, Has[Velocity](w, e))
	assert.True(t, Has[Position](w, e))
}

func TestCommandBufferDestroyRealEntity(t *testing.T) {
	w := NewWorld()
	e := w.CreateEntity()

	b := NewCommandBuffer()
	b.DestroyEntity(e)
	b.Run(w)

	assert.False(t, w.IsAlive(e))
}
