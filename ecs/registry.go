package ecs

import (
	"reflect"
	"unsafe"

	"github.com/kamstrup/intmap"

	"github.com/plus3/archecs/ecs/stats"
)

// baseArchetypeIndex is the always-present empty archetype that freshly
// created entities join.
const baseArchetypeIndex = 0

type entityInfo struct {
	identifier     Entity
	archetypeIndex int
	row            int
}

// World is the registry: the top-level store owning all archetypes,
// mapping every live entity to its archetype and row, and performing
// structural changes by moving rows between archetypes.
type World struct {
	entities   []entityInfo
	freeList   []Entity
	archetypes []*archetype
	// hashIndex maps an archetype's XOR type-set hash to its index in
	// archetypes. Generalized from the teacher's weak-pointer EntityRef
	// cache (see DESIGN.md) to the registry's core structural-change
	// lookup table.
	hashIndex  *intmap.Map[uint32, int]
	components map[ID]*ComponentInfo
	resources  map[reflect.Type]unsafe.Pointer
}

// NewWorld creates an empty registry, seeded with the always-present empty
// archetype at index 0.
func NewWorld() *World {
	w := &World{
		hashIndex:  intmap.New[uint32, int](64),
		components: map[ID]*ComponentInfo{},
		resources:  map[reflect.Type]unsafe.Pointer{},
	}
	base := newArchetype(baseArchetypeIndex, nil, nil)
	w.archetypes = append(w.archetypes, base)
	w.hashIndex.Put(base.typeSetHash(), baseArchetypeIndex)
	return w
}

func (w *World) registerComponent(id ID, t reflect.Type) *ComponentInfo {
	if info, ok := w.components[id]; ok {
		return info
	}
	info := &ComponentInfo{ID: id, Type: t, Size: t.Size(), destructor: destructorOf(t)}
	w.components[id] = info
	return info
}

// CreateEntity returns a fresh entity, reusing a free-list id (with
// incremented version) when available. The entity joins the empty
// archetype.
func (w *World) CreateEntity() Entity {
	var e Entity
	if n := len(w.freeList); n > 0 {
		e = w.freeList[n-1]
		w.freeList = w.freeList[:n-1]
	} else {
		e = Entity{ID: uint32(len(w.entities)), Version: 0}
	}

	base := w.archetypes[baseArchetypeIndex]
	row := base.addEntity(e)

	info := entityInfo{identifier: e, archetypeIndex: baseArchetypeIndex, row: row}
	if int(e.ID) == len(w.entities) {
		w.entities = append(w.entities, info)
	} else {
		w.entities[e.ID] = info
	}
	return e
}

// DestroyEntity is a no-op if e is not alive. Otherwise it swap-removes e
// from its archetype (running destructors of all its columns), patches the
// displaced entity's row, increments e's version, and returns it to the
// free-list.
func (w *World) DestroyEntity(e Entity) {
	if !w.IsAlive(e) {
		return
	}
	info := &w.entities[e.ID]
	arch := w.archetypes[info.archetypeIndex]
	swapped := arch.removeEntity(info.row)
	if swapped != e {
		w.entities[swapped.ID].row = info.row
	}
	info.identifier.Version++
	w.freeList = append(w.freeList, info.identifier)
}

// IsAlive reports whether e is the current identifier for its id slot.
func (w *World) IsAlive(e Entity) bool {
	return int(e.ID) < len(w.entities) && w.entities[e.ID].identifier == e
}

func (w *World) mustBeAlive(e Entity) *entityInfo {
	if !w.IsAlive(e) {
		panic("archecs: operation on a dead entity")
	}
	return &w.entities[e.ID]
}

// archetypeWith resolves the archetype reached from current by adding
// added and removing removed, creating it if it does not yet exist.
//
// Resolves spec's open question on XOR hash collisions (see DESIGN.md):
// unlike the reference implementation, a hash hit's candidate archetype is
// verified against the freshly computed type set before being trusted; on
// mismatch a linear scan for an exact match is attempted before a new
// archetype is created.
func (w *World) archetypeWith(current *archetype, added, removed []ID) *archetype {
	newIDs := subtractIDs(unionIDs(current.ids, added), removed)
	targetHash := xorCombine(newIDs)

	if idx, ok := w.hashIndex.Get(targetHash); ok {
		candidate := w.archetypes[idx]
		if equalIDs(candidate.ids, newIDs) {
			return candidate
		}
		for _, a := range w.archetypes {
			if equalIDs(a.ids, newIDs) {
				return a
			}
		}
	}

	infos := make([]*ComponentInfo, len(newIDs))
	for i, id := range newIDs {
		info, ok := w.components[id]
		if !ok {
			panic("archecs: unknown component id in structural change")
		}
		infos[i] = info
	}

	arch := newArchetype(len(w.archetypes), newIDs, infos)
	w.archetypes = append(w.archetypes, arch)
	w.hashIndex.Put(targetHash, arch.idx)
	return arch
}

// modifyComponentSet is the type-erased bulk structural-change primitive
// used by AddN/RemoveN and the command buffer. added and addedValues must
// have equal length; removed need not be disjoint from added's
// already-present members (see the note on overwrite semantics below).
//
// Resolves spec's open question on re-adding a present component (see
// DESIGN.md): components already present in the current archetype are not
// moved, and their column cell is overwritten in place with the newly
// supplied value rather than silently discarding it.
func (w *World) modifyComponentSet(e Entity, added []ID, addedValues []unsafe.Pointer, removed []ID) {
	info := w.mustBeAlive(e)
	current := w.archetypes[info.archetypeIndex]

	var addIDs, removeIDs []ID
	for _, id := range added {
		if !current.hasType(id) {
			addIDs = append(addIDs, id)
		}
	}
	for _, id := range removed {
		if current.hasType(id) {
			removeIDs = append(removeIDs, id)
		}
	}

	if len(addIDs) == 0 && len(removeIDs) == 0 {
		for i, id := range added {
			current.writeComponent(info.row, id, addedValues[i])
		}
		return
	}

	target := w.archetypeWith(current, addIDs, removeIDs)
	newRow, swapped := target.moveRowFrom(current, info.row, e)
	if swapped != e {
		w.entities[swapped.ID].row = info.row
	}
	info.archetypeIndex = target.idx
	info.row = newRow

	for i, id := range added {
		target.writeComponent(newRow, id, addedValues[i])
	}
}

func (w *World) setComponentRaw(e Entity, id ID, src unsafe.Pointer) {
	info := w.mustBeAlive(e)
	w.archetypes[info.archetypeIndex].writeComponent(info.row, id, src)
}

func (w *World) getComponentRaw(e Entity, id ID) unsafe.Pointer {
	info := w.mustBeAlive(e)
	return w.archetypes[info.archetypeIndex].componentPtr(info.row, id)
}

func (w *World) hasComponentRaw(e Entity, id ID) bool {
	info := w.mustBeAlive(e)
	return w.archetypes[info.archetypeIndex].hasType(id)
}

// SetResource stores a single instance of T not associated with any entity,
// for global state shared across systems (see DESIGN.md: adapted from the
// teacher's Singleton[T]).
func SetResource[T any](w *World, value T) *T {
	t := reflect.TypeOf((*T)(nil)).Elem()
	boxed := new(T)
	*boxed = value
	w.resources[t] = unsafe.Pointer(boxed)
	return boxed
}

// Resource returns the registered instance of T, or nil if none was set.
func Resource[T any](w *World) *T {
	t := reflect.TypeOf((*T)(nil)).Elem()
	ptr, ok := w.resources[t]
	if !ok {
		return nil
	}
	return (*T)(ptr)
}

// Stats reports current entity and archetype occupancy, for host
// applications and tests to assert against without reaching into
// unexported registry internals.
func (w *World) Stats() stats.WorldStats {
	archetypeStats := make([]stats.ArchetypeStats, len(w.archetypes))
	for i, a := range w.archetypes {
		ids := make([]uint32, len(a.ids))
		for j, id := range a.ids {
			ids[j] = uint32(id)
		}
		size := len(a.entities)
		capacity := size
		if len(a.columns) > 0 {
			capacity = a.columns[0].capacity
		}
		archetypeStats[i] = stats.ArchetypeStats{
			Index:      i,
			Size:       size,
			Capacity:   capacity,
			Components: ids,
		}
	}
	return stats.WorldStats{
		EntityCount:    len(w.entities) - len(w.freeList),
		FreeListLength: len(w.freeList),
		Archetypes:     archetypeStats,
	}
}
