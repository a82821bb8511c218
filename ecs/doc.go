// Package ecs implements an archetype-based entity-component-system
// runtime: entities are grouped by the exact set of component types they
// carry, each type stored in a contiguous column per group, so that
// iteration over a query's matching rows touches only live data.
package ecs
