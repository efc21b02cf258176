// Package registry holds the bounded, name-indexed joint table owned by a
// single process.
//
// Names are resolved to stable integer indices once, in [New]. Every write
// clamps into the entry's [Min, Max] range. Unknown names are ignored rather
// than reported, since producers and consumers may run against different
// joint sets.
//
// The registry is safe for concurrent use. Accessors hold the lock only while
// copying values in or out; callers never see the backing slice.
package registry
