package ecs

import (
	"context"
	"reflect"
	"strings"

	"golang.org/x/sync/errgroup"
)

var entityType = reflect.TypeOf(Entity{})

// ForAll iterates every archetype whose sorted type-id list satisfies
// filter, binding filter's projected components to fn's trailing
// parameters in projection order and invoking fn once per row with the
// owning entity as the first argument.
func (w *World) ForAll(filter Filter, fn any) {
	fnVal := reflect.ValueOf(fn)
	fnType := fnVal.Type()
	checkCallbackSignature(fnType, len(filter.projected))

	for _, arch := range w.archetypes {
		if !filter.predicate(arch.ids) {
			continue
		}
		forEachRow(arch, filter.projected, fnVal, fnType)
	}
}

// ForAllWith infers both the filter and the projection from fn's
// parameter list: the leading parameter must be Entity; any *T parameter
// is a required component (contributes to the filter); any Optional[T]
// parameter is optional (does not contribute to the filter, bound nil
// when T is absent).
func (w *World) ForAllWith(fn any) {
	fnVal := reflect.ValueOf(fn)
	fnType := fnVal.Type()
	if fnType.NumIn() == 0 || fnType.In(0) != entityType {
		panic("archecs: ForAllWith callback must take ecs.Entity as its first parameter")
	}

	projected := make([]projectedComponent, 0, fnType.NumIn()-1)
	var required []ID
	for i := 1; i < fnType.NumIn(); i++ {
		param := fnType.In(i)
		switch {
		case param.Kind() == reflect.Ptr:
			t := param.Elem()
			id := typeID(t)
			w.registerComponent(id, t)
			projected = append(projected, projectedComponent{id: id, typ: t})
			required = append(required, id)
		case isOptionalParam(param):
			t := param.Field(0).Type.Elem()
			id := typeID(t)
			w.registerComponent(id, t)
			projected = append(projected, projectedComponent{id: id, typ: t, optional: true})
		default:
			panic("archecs: ForAllWith callback parameters must be component pointers or ecs.Optional[T]")
		}
	}

	required = sortedIDs(required)
	filter := Filter{
		predicate: func(sorted []ID) bool { return containsIDs(sorted, required) },
		projected: projected,
	}

	for _, arch := range w.archetypes {
		if !filter.predicate(arch.ids) {
			continue
		}
		forEachRow(arch, filter.projected, fnVal, fnType)
	}
}

func isOptionalParam(t reflect.Type) bool {
	return t.Kind() == reflect.Struct && strings.HasPrefix(t.Name(), "Optional[")
}

func checkCallbackSignature(fnType reflect.Type, projectedCount int) {
	if fnType.Kind() != reflect.Func || fnType.NumIn() != 1+projectedCount || fnType.In(0) != entityType {
		panic("archecs: callback signature does not match the filter's projection")
	}
}

func bindColumns(arch *archetype, projected []projectedComponent) []*column {
	cols := make([]*column, len(projected))
	for i, p := range projected {
		if idx := arch.indexOf(p.id); idx >= 0 {
			cols[i] = arch.columns[idx]
		}
	}
	return cols
}

// bindArg constructs the reflect.Value for projected column c (nil if the
// type was absent from the archetype) to satisfy paramType, which is
// either a pointer type or an Optional[T] struct type.
func bindArg(paramType reflect.Type, c *column, row int) reflect.Value {
	if paramType.Kind() == reflect.Ptr {
		if c == nil {
			return reflect.Zero(paramType)
		}
		return reflect.NewAt(paramType.Elem(), c.ptrAt(row))
	}

	// Optional[T] struct.
	out := reflect.New(paramType).Elem()
	if c != nil {
		ptrType := paramType.Field(0).Type
		out.Field(0).Set(reflect.NewAt(ptrType.Elem(), c.ptrAt(row)))
	}
	return out
}

func forEachRow(arch *archetype, projected []projectedComponent, fnVal reflect.Value, fnType reflect.Type) {
	cols := bindColumns(arch, projected)
	args := make([]reflect.Value, fnType.NumIn())
	for row := range arch.entities {
		args[0] = reflect.ValueOf(arch.entities[row])
		for i, c := range cols {
			args[1+i] = bindArg(fnType.In(1+i), c, row)
		}
		fnVal.Call(args)
	}
}

// parallelRowStride is the fixed row-partition chunk size used by
// ForAllParallel, matching the reference implementation's worker stride.
const parallelRowStride = 64

// ForAllParallel iterates archetypes matching filter exactly as ForAll
// does, but distributes each archetype's rows across nThreads workers
// using a fixed 64-row stride per worker. fn must not mutate the world's
// structure and must tolerate concurrent invocation on disjoint rows of
// the same archetype; a panic in any worker aborts the whole call.
func (w *World) ForAllParallel(nThreads int, filter Filter, fn any) {
	if nThreads < 1 {
		nThreads = 1
	}
	fnVal := reflect.ValueOf(fn)
	fnType := fnVal.Type()
	checkCallbackSignature(fnType, len(filter.projected))

	for _, arch := range w.archetypes {
		if !filter.predicate(arch.ids) {
			continue
		}
		w.runArchetypeParallel(arch, filter.projected, fnVal, fnType, nThreads)
	}
}

func (w *World) runArchetypeParallel(arch *archetype, projected []projectedComponent, fnVal reflect.Value, fnType reflect.Type, nThreads int) {
	cols := bindColumns(arch, projected)
	n := len(arch.entities)

	g, _ := errgroup.WithContext(context.Background())
	for t := 0; t < nThreads; t++ {
		threadID := t
		g.Go(func() error {
			args := make([]reflect.Value, fnType.NumIn())
			stride := threadID * parallelRowStride
			for base := stride; base < n; base += nThreads * parallelRowStride {
				end := base + parallelRowStride
				if end > n {
					end = n
				}
				for row := base; row < end; row++ {
					args[0] = reflect.ValueOf(arch.entities[row])
					for i, c := range cols {
						args[1+i] = bindArg(fnType.In(1+i), c, row)
					}
					fnVal.Call(args)
				}
			}
			return nil
		})
	}
	_ = g.Wait()
}
