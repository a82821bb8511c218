package ecs

import "unsafe"

// Add sets component A on e, creating the structural change if A is not
// already present, or overwriting A's existing value in place otherwise.
func Add[A any](w *World, e Entity, a A) *A {
	idA := ComponentID[A](w)
	w.modifyComponentSet(e, []ID{idA}, []unsafe.Pointer{unsafe.Pointer(&a)}, nil)
	return Get[A](w, e)
}

// Add2 is Add for two component types in a single structural change.
func Add2[A, B any](w *World, e Entity, a A, b B) (*A, *B) {
	idA, idB := ComponentID[A](w), ComponentID[B](w)
	w.modifyComponentSet(e, []ID{idA, idB}, []unsafe.Pointer{unsafe.Pointer(&a), unsafe.Pointer(&b)}, nil)
	return Get[A](w, e), Get[B](w, e)
}

// Add3 is Add for three component types in a single structural change.
func Add3[A, B, C any](w *World, e Entity, a A, b B, c C) (*A, *B, *C) {
	idA, idB, idC := ComponentID[A](w), ComponentID[B](w), ComponentID[C](w)
	w.modifyComponentSet(e, []ID{idA, idB, idC},
		[]unsafe.Pointer{unsafe.Pointer(&a), unsafe.Pointer(&b), unsafe.Pointer(&c)}, nil)
	return Get[A](w, e), Get[B](w, e), Get[C](w, e)
}

// Add4 is Add for four component types in a single structural change.
func Add4[A, B, C, D any](w *World, e Entity, a A, b B, c C, d D) (*A, *B, *C, *D) {
	idA, idB, idC, idD := ComponentID[A](w), ComponentID[B](w), ComponentID[C](w), ComponentID[D](w)
	w.modifyComponentSet(e, []ID{idA, idB, idC, idD},
		[]unsafe.Pointer{unsafe.Pointer(&a), unsafe.Pointer(&b), unsafe.Pointer(&c), unsafe.Pointer(&d)}, nil)
	return Get[A](w, e), Get[B](w, e), Get[C](w, e), Get[D](w, e)
}

// Remove removes component type A from e, if present; a no-op otherwise.
func Remove[A any](w *World, e Entity) {
	idA := ComponentID[A](w)
	w.modifyComponentSet(e, nil, nil, []ID{idA})
}

// Remove2 removes component types A and B from e in a single structural change.
func Remove2[A, B any](w *World, e Entity) {
	idA, idB := ComponentID[A](w), ComponentID[B](w)
	w.modifyComponentSet(e, nil, nil, []ID{idA, idB})
}

// Remove3 removes component types A, B and C from e in a single structural change.
func Remove3[A, B, C any](w *World, e Entity) {
	idA, idB, idC := ComponentID[A](w), ComponentID[B](w), ComponentID[C](w)
	w.modifyComponentSet(e, nil, nil, []ID{idA, idB, idC})
}

// Remove4 removes component types A, B, C and D from e in a single structural change.
func Remove4[A, B, C, D any](w *World, e Entity) {
	idA, idB, idC, idD := ComponentID[A](w), ComponentID[B](w), ComponentID[C](w), ComponentID[D](w)
	w.modifyComponentSet(e, nil, nil, []ID{idA, idB, idC, idD})
}

// Get returns a mutable pointer into the column row holding e's A
// component. Undefined (panics) if e lacks A.
func Get[A any](w *World, e Entity) *A {
	id := ComponentID[A](w)
	return (*A)(w.getComponentRaw(e, id))
}

// Has reports whether e carries a component of type A.
func Has[A any](w *World, e Entity) bool {
	id := ComponentID[A](w)
	return w.hasComponentRaw(e, id)
}
