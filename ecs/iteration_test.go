package ecs

import (
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForAllVisitsOnlyMatchingArchetypes(t *testing.T) {
	w := NewWorld()
	eBoth := w.CreateEntity()
	Add2(w, eBoth, Position{X: 1}, Velocity{DX: 1})
	eOnlyVel := w.CreateEntity()
	Add(w, eOnlyVel, Velocity{DX: 2})

	var seen []Entity
	w.ForAll(With[Position](w), func(e Entity, p *Position) {
		seen = append(seen, e)
		p.X += 100
	})

	require.Equal(t, []Entity{eBoth}, seen)
	assert.Equal(t, 101.0, Get[Position](w, eBoth).X)
}

func TestForAllWithRequiredAndOptional(t *testing.T) {
	w := NewWorld()
	eBoth := w.CreateEntity()
	Add2(w, eBoth, Position{X: 1}, Velocity{DX: 5})
	eOnlyPos := w.CreateEntity()
	Add(w, eOnlyPos, Position{X: 2})

	type visit struct {
		e        Entity
		hasVel   bool
		velValue float64
	}
	var visits []visit

	w.ForAllWith(func(e Entity, p *Position, v Optional[Velocity]) {
		vis := visit{e: e, hasVel: v.Ptr != nil}
		if v.Ptr != nil {
			vis.velValue = v.Ptr.DX
		}
		visits = append(visits, vis)
	})

	require.Len(t, visits, 2)
	byEntity := map[Entity]visit{}
	for _, v := range visits {
		byEntity[v.e] = v
	}
	assert.True(t, byEntity[eBoth].hasVel)
	assert.Equal(t, 5.0, byEntity[eBoth].velValue)
	assert.False(t, byEntity[eOnlyPos].hasVel)
}

func TestForAllParallelCoversEveryRowExactlyOnce(t *testing.T) {
	w := NewWorld()
	const n = 500
	entities := make([]Entity, n)
	for i := 0; i < n; i++ {
		e := w.CreateEntity()
		Add(w, e, Position{X: float64(i)})
		entities[i] = e
	}

	var mu sync.Mutex
	var touched []float64
	w.ForAllParallel(4, With[Position](w), func(e Entity, p *Position) {
		mu.Lock()
		touched = append(touched, p.X)
		mu.Unlock()
	})

	require.Len(t, touched, n)
	sort.Float64s(touched)
	for i := 0; i < n; i++ {
		assert.Equal(t, float64(i), touched[i])
	}
}
