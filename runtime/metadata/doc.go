// Package metadata holds the dispatch tables that resolve per-field metadata by
// (annotation kind, record type, field key).
//
// # Overview
//
// Every annotation kind owns three tables, consulted in order:
//
//   - exact entries keyed by (record type, field key)
//   - type-level defaults keyed by record type
//   - the global default given when the kind was declared
//
// The first table that has a value wins. Record field order is kept next to the
// tables so the all-fields accessor can return one value per field, in
// declaration order.
//
// # Example Usage
//
//	registry := metadata.NewRegistry()
//	_ = registry.DeclareKind("range", metadata.Tuple{int64(0), int64(0)})
//	_ = registry.Set("range", "Model", "a", metadata.Tuple{int64(1), int64(4)})
//	registry.SetFields("Model", []string{"a", "b"})
//
//	v, _ := registry.Lookup("range", "Model", "a")   // (1, 4)
//	v, _ = registry.Lookup("range", "Model", "b")    // (0, 0)
//	all, _ := registry.All("range", "Model")         // [(1, 4), (0, 0)]
//
// # Values
//
// Metadata values are plain Go values: int64, float64, string, bool, Symbol for
// bare identifiers, Tuple, List and Call for composite expressions, and nil for
// the sentinel `nothing`.
//
// # Thread Safety
//
// A Registry is safe for concurrent use. Lookups take a read lock, so an
// introspection server can answer queries while nothing writes to the registry.
package metadata
