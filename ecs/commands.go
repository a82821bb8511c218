package ecs

import (
	"math"
	"reflect"
	"sort"
	"unsafe"
)

type commandKind int

// Kind ordering matters: Run handles a target's destroy or create first,
// then batches its contiguous add/remove commands into a single
// modify_component_set call, then applies set commands one at a time.
const (
	cmdDestroy commandKind = iota
	cmdCreate
	cmdAdd
	cmdRemove
	cmdSet
)

type command struct {
	kind          commandKind
	target        Entity
	componentID   ID
	componentType reflect.Type
	value         any
}

// CommandBuffer records create/destroy/add/remove/set operations against
// real or placeholder entities, then replays them on a target World via
// Run, batching contiguous modifications to the same entity into a single
// archetype transition.
type CommandBuffer struct {
	commands        []command
	nextPlaceholder uint32
}

// NewCommandBuffer returns an empty command buffer.
func NewCommandBuffer() *CommandBuffer {
	return &CommandBuffer{}
}

// isPlaceholder reports whether e names an entity that only exists after
// this buffer replays: internally a full Entity whose Version is MAX.
func isPlaceholder(e Entity) bool {
	return e.Version == math.MaxUint32
}

// CreateEntity returns a placeholder entity that will be created for real
// when Run executes.
func (b *CommandBuffer) CreateEntity() Entity {
	e := Entity{ID: b.nextPlaceholder, Version: math.MaxUint32}
	b.nextPlaceholder++
	b.commands = append(b.commands, command{kind: cmdCreate, target: e})
	return e
}

// DestroyEntity records destruction of target (real or placeholder). This
// buffer always tags the command as a distinct destroy kind; the archecs
// source conflates it with the create kind, which spec.md §9 names as
// almost certainly a bug and instructs implementations not to replicate.
func (b *CommandBuffer) DestroyEntity(target Entity) {
	b.commands = append(b.commands, command{kind: cmdDestroy, target: target})
}

// AddComponent records adding component type T with the given value to target.
func AddComponent[T any](b *CommandBuffer, target Entity, value T) {
	t := typeOf[T]()
	b.commands = append(b.commands, command{kind: cmdAdd, target: target, componentID: typeID(t), componentType: t, value: value})
}

// RemoveComponent records removing component type T from target.
func RemoveComponent[T any](b *CommandBuffer, target Entity) {
	t := typeOf[T]()
	b.commands = append(b.commands, command{kind: cmdRemove, target: target, componentID: typeID(t), componentType: t})
}

// SetComponent records overwriting target's existing component of type T.
// Unlike AddComponent, this does not batch into a structural change and
// is executed as an individual write during Run.
func SetComponent[T any](b *CommandBuffer, target Entity, value T) {
	t := typeOf[T]()
	b.commands = append(b.commands, command{kind: cmdSet, target: target, componentID: typeID(t), componentType: t, value: value})
}

// Run executes the recorded commands against w in three phases: stable
// sort by (target, kind), batched replay per contiguous target run, then
// clear. See spec.md §4.7 and DESIGN.md for the exact batching contract.
func (b *CommandBuffer) Run(w *World) {
	if len(b.commands) == 0 {
		return
	}

	sort.SliceStable(b.commands, func(i, j int) bool {
		a, c := b.commands[i], b.commands[j]
		if a.target != c.target {
			return a.target.Less(c.target)
		}
		return a.kind < c.kind
	})

	n := len(b.commands)
	for i := 0; i < n; {
		runEnd := i + 1
		for runEnd < n && b.commands[runEnd].target == b.commands[i].target {
			runEnd++
		}

		if b.commands[i].kind == cmdDestroy {
			if !isPlaceholder(b.commands[i].target) {
				w.DestroyEntity(b.commands[i].target)
			}
			i = runEnd
			continue
		}

		current := b.commands[i].target
		if b.commands[i].kind == cmdCreate {
			current = w.CreateEntity()
			for k := i + 1; k < runEnd; k++ {
				b.commands[k].target = current
			}
			i++
		}

		i = b.runBatch(w, current, i, runEnd)
	}

	b.commands = b.commands[:0]
	b.nextPlaceholder = 0
}

// runBatch collects the contiguous add/remove commands starting at i,
// issues a single modify_component_set for them, writes their payloads,
// then executes any remaining non-batchable (set) commands up to runEnd.
// Returns runEnd.
func (b *CommandBuffer) runBatch(w *World, target Entity, i, runEnd int) int {
	var addedIDs, removedIDs []ID
	var addedValues []unsafe.Pointer
	batchEnd := i
	for batchEnd < runEnd && (b.commands[batchEnd].kind == cmdAdd || b.commands[batchEnd].kind == cmdRemove) {
		cmd := &b.commands[batchEnd]
		switch cmd.kind {
		case cmdAdd:
			w.registerComponent(cmd.componentID, cmd.componentType)
			addedIDs = append(addedIDs, cmd.componentID)
		case cmdRemove:
			removedIDs = append(removedIDs, cmd.componentID)
		}
		batchEnd++
	}

	if len(addedIDs) > 0 || len(removedIDs) > 0 {
		addedValues = make([]unsafe.Pointer, 0, len(addedIDs))
		for k := i; k < batchEnd; k++ {
			if b.commands[k].kind == cmdAdd {
				addedValues = append(addedValues, boxValue(b.commands[k].componentType, b.commands[k].value))
			}
		}
		w.modifyComponentSet(target, addedIDs, addedValues, removedIDs)
	}

	for k := batchEnd; k < runEnd; k++ {
		cmd := b.commands[k]
		if cmd.kind == cmdSet {
			w.setComponentRaw(target, cmd.componentID, boxValue(cmd.componentType, cmd.value))
		}
	}

	return runEnd
}

// boxValue copies a boxed any's payload into a freshly allocated, stably
// addressed value of its dynamic type and returns a pointer to it.
func boxValue(t reflect.Type, value any) unsafe.Pointer {
	box := reflect.New(t)
	box.Elem().Set(reflect.ValueOf(value))
	return box.UnsafePointer()
}
