package metadata

// Snapshot is a point-in-time copy of a registry, in declaration order.
// It is what the catalog exporter, the introspection server and the code
// generator consume.
type Snapshot struct {
	Version    string           `json:"version,omitempty"`
	SourceHash string           `json:"source_hash,omitempty"`
	Kinds      []KindSnapshot   `json:"kinds"`
	Records    []RecordSnapshot `json:"records"`
}

// KindSnapshot holds the tables of one annotation kind
type KindSnapshot struct {
	Name         string                `json:"name"`
	Default      Value                 `json:"default"`
	TypeDefaults []TypeDefaultSnapshot `json:"type_defaults"`
	Entries      []EntrySnapshot       `json:"entries"`
}

// TypeDefaultSnapshot is the fallback of one record type
type TypeDefaultSnapshot struct {
	Type  string `json:"type"`
	Value Value  `json:"value"`
}

// EntrySnapshot is one exact (type, field) entry
type EntrySnapshot struct {
	Type  string `json:"type"`
	Field string `json:"field"`
	Value Value  `json:"value"`
}

// RecordSnapshot is the field order of one record type
type RecordSnapshot struct {
	Name   string   `json:"name"`
	Fields []string `json:"fields"`
}

// Kind returns the snapshot of the named kind
func (s *Snapshot) Kind(name string) (*KindSnapshot, bool) {
	for i := range s.Kinds {
		if s.Kinds[i].Name == name {
			return &s.Kinds[i], true
		}
	}
	return nil, false
}

// Record returns the snapshot of the named record type
func (s *Snapshot) Record(name string) (*RecordSnapshot, bool) {
	for i := range s.Records {
		if s.Records[i].Name == name {
			return &s.Records[i], true
		}
	}
	return nil, false
}
