package metadata

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrUnknownKind is returned for a kind that was never declared
	ErrUnknownKind = errors.New("unknown metadata kind")
	// ErrUnknownRecord is returned when a record's field order is not known
	ErrUnknownRecord = errors.New("unknown record type")
	// ErrKindExists is returned when a kind is declared twice
	ErrKindExists = errors.New("metadata kind already declared")
)

// FieldKey is the tag form of a field name
type FieldKey string

// Key converts a plain field name into its tag form
func Key(name string) FieldKey {
	return FieldKey(name)
}

// Record is a live record value that knows its type name
type Record interface {
	RecordType() string
}

type entryKey struct {
	typ   string
	field FieldKey
}

// kindTable is the dispatch table of one annotation kind
type kindTable struct {
	name         string
	def          Value
	typeDefaults map[string]Value
	typeOrder    []string
	entries      map[entryKey]Value
	entryOrder   []entryKey
}

func newKindTable(name string, def Value) *kindTable {
	return &kindTable{
		name:         name,
		def:          def,
		typeDefaults: make(map[string]Value),
		entries:      make(map[entryKey]Value),
	}
}

// lookup resolves exact entry > type default > global default
func (t *kindTable) lookup(typ string, field FieldKey) Value {
	if v, ok := t.entries[entryKey{typ, field}]; ok {
		return v
	}
	if v, ok := t.typeDefaults[typ]; ok {
		return v
	}
	return t.def
}

// all resolves the head key and recurses on the rest
func (t *kindTable) all(typ string, keys []string) []Value {
	if len(keys) == 0 {
		return []Value{}
	}
	return append([]Value{t.lookup(typ, Key(keys[0]))}, t.all(typ, keys[1:])...)
}

// Registry holds the dispatch tables of every declared kind plus the field order
// of every declared record type
type Registry struct {
	mu          sync.RWMutex
	kinds       map[string]*kindTable
	kindOrder   []string
	fields      map[string][]string
	recordOrder []string
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		kinds:  make(map[string]*kindTable),
		fields: make(map[string][]string),
	}
}

// DeclareKind adds a kind with its global default
func (r *Registry) DeclareKind(name string, def Value) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.kinds[name]; exists {
		return fmt.Errorf("%w: %s", ErrKindExists, name)
	}
	r.kinds[name] = newKindTable(name, def)
	r.kindOrder = append(r.kindOrder, name)
	return nil
}

// HasKind reports whether the kind was declared
func (r *Registry) HasKind(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.kinds[name]
	return ok
}

// Kinds returns the declared kinds in declaration order
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.kindOrder...)
}

// Set installs an exact entry. A later entry for the same key replaces the earlier one.
func (r *Registry) Set(kind, typ, field string, v Value) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	table, err := r.table(kind)
	if err != nil {
		return err
	}
	key := entryKey{typ, Key(field)}
	if _, exists := table.entries[key]; !exists {
		table.entryOrder = append(table.entryOrder, key)
	}
	table.entries[key] = v
	return nil
}

// SetTypeDefault installs the fallback used for every field of typ without an exact entry
func (r *Registry) SetTypeDefault(kind, typ string, v Value) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	table, err := r.table(kind)
	if err != nil {
		return err
	}
	if _, exists := table.typeDefaults[typ]; !exists {
		table.typeOrder = append(table.typeOrder, typ)
	}
	table.typeDefaults[typ] = v
	return nil
}

// SetFields records the declaration order of a record type's fields
func (r *Registry) SetFields(typ string, fields []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.fields[typ]; !exists {
		r.recordOrder = append(r.recordOrder, typ)
	}
	r.fields[typ] = append([]string(nil), fields...)
}

// Fields returns the field order of a record type
func (r *Registry) Fields(typ string) ([]string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fields, ok := r.fields[typ]
	if !ok {
		return nil, false
	}
	return append([]string(nil), fields...), true
}

// Records returns the record types with a known field order, in declaration order
func (r *Registry) Records() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.recordOrder...)
}

// Default returns the global default of a kind
func (r *Registry) Default(kind string) (Value, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	table, err := r.table(kind)
	if err != nil {
		return nil, err
	}
	return table.def, nil
}

// Lookup resolves kind(typ, field)
func (r *Registry) Lookup(kind, typ, field string) (Value, error) {
	return r.LookupKey(kind, typ, Key(field))
}

// LookupKey resolves kind(typ, key) for a field given in tag form
func (r *Registry) LookupKey(kind, typ string, key FieldKey) (Value, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	table, err := r.table(kind)
	if err != nil {
		return nil, err
	}
	return table.lookup(typ, key), nil
}

// LookupRecord resolves kind(rec, field) through the record's type
func (r *Registry) LookupRecord(kind string, rec Record, field string) (Value, error) {
	return r.Lookup(kind, rec.RecordType(), field)
}

// All returns kind(typ, f) for every field f of typ, in declaration order
func (r *Registry) All(kind, typ string) ([]Value, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	table, err := r.table(kind)
	if err != nil {
		return nil, err
	}
	fields, ok := r.fields[typ]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRecord, typ)
	}
	return table.all(typ, fields), nil
}

// AllRecord returns All for the type of a live record
func (r *Registry) AllRecord(kind string, rec Record) ([]Value, error) {
	return r.All(kind, rec.RecordType())
}

// table must be called with the lock held
func (r *Registry) table(kind string) (*kindTable, error) {
	table, ok := r.kinds[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	return table, nil
}

// Snapshot copies the registry's tables in declaration order
func (r *Registry) Snapshot() *Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := &Snapshot{
		Kinds:   make([]KindSnapshot, 0, len(r.kindOrder)),
		Records: make([]RecordSnapshot, 0, len(r.recordOrder)),
	}

	for _, name := range r.kindOrder {
		table := r.kinds[name]
		ks := KindSnapshot{
			Name:         name,
			Default:      table.def,
			TypeDefaults: make([]TypeDefaultSnapshot, 0, len(table.typeOrder)),
			Entries:      make([]EntrySnapshot, 0, len(table.entryOrder)),
		}
		for _, typ := range table.typeOrder {
			ks.TypeDefaults = append(ks.TypeDefaults, TypeDefaultSnapshot{Type: typ, Value: table.typeDefaults[typ]})
		}
		for _, key := range table.entryOrder {
			ks.Entries = append(ks.Entries, EntrySnapshot{Type: key.typ, Field: string(key.field), Value: table.entries[key]})
		}
		snap.Kinds = append(snap.Kinds, ks)
	}

	for _, typ := range r.recordOrder {
		snap.Records = append(snap.Records, RecordSnapshot{
			Name:   typ,
			Fields: append([]string(nil), r.fields[typ]...),
		})
	}

	return snap
}

// FromSnapshot builds a registry holding the snapshot's tables
func FromSnapshot(snap *Snapshot) (*Registry, error) {
	r := NewRegistry()
	for _, ks := range snap.Kinds {
		if err := r.DeclareKind(ks.Name, ks.Default); err != nil {
			return nil, err
		}
		for _, td := range ks.TypeDefaults {
			if err := r.SetTypeDefault(ks.Name, td.Type, td.Value); err != nil {
				return nil, err
			}
		}
		for _, e := range ks.Entries {
			if err := r.Set(ks.Name, e.Type, e.Field, e.Value); err != nil {
				return nil, err
			}
		}
	}
	for _, rec := range snap.Records {
		r.SetFields(rec.Name, rec.Fields)
	}
	return r, nil
}

// Restore replaces the registry's tables with the snapshot's. The registry is
// unchanged when the snapshot is inconsistent.
func (r *Registry) Restore(snap *Snapshot) error {
	fresh, err := FromSnapshot(snap)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.kinds, r.kindOrder = fresh.kinds, fresh.kindOrder
	r.fields, r.recordOrder = fresh.fields, fresh.recordOrder
	return nil
}
