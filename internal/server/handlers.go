package server

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/conduit-lang/fieldmeta/runtime/metadata"
)

// KindInfo describes one metadata kind
type KindInfo struct {
	Name          string         `json:"name"`
	Default       metadata.Value `json:"default"`
	DefaultSource string         `json:"default_source"`
}

// FieldValue is the metadata of one field
type FieldValue struct {
	Kind   string         `json:"kind"`
	Type   string         `json:"type"`
	Field  string         `json:"field"`
	Value  metadata.Value `json:"value"`
	Source string         `json:"source"`
}

// RecordValues is the metadata of every field of a record, in field order
type RecordValues struct {
	Kind   string       `json:"kind"`
	Type   string       `json:"type"`
	Fields []FieldValue `json:"fields"`
}

// RecordInfo is the field order of a record
type RecordInfo struct {
	Name   string   `json:"name"`
	Fields []string `json:"fields"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	renderJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"kinds":   len(s.registry.Kinds()),
		"records": len(s.registry.Records()),
	})
}

func (s *Server) handleKinds(w http.ResponseWriter, r *http.Request) {
	kinds := make([]KindInfo, 0)
	for _, name := range s.registry.Kinds() {
		def, err := s.registry.Default(name)
		if err != nil {
			s.renderLookupError(w, r, err)
			return
		}
		kinds = append(kinds, KindInfo{Name: name, Default: def, DefaultSource: metadata.FormatValue(def)})
	}
	renderJSON(w, http.StatusOK, kinds)
}

func (s *Server) handleRecord(w http.ResponseWriter, r *http.Request) {
	kind, typ := chi.URLParam(r, "kind"), chi.URLParam(r, "type")

	values, err := s.registry.All(kind, typ)
	if err != nil {
		s.renderLookupError(w, r, err)
		return
	}
	fields, _ := s.registry.Fields(typ)

	out := RecordValues{Kind: kind, Type: typ, Fields: make([]FieldValue, len(values))}
	for i, v := range values {
		out.Fields[i] = FieldValue{Kind: kind, Type: typ, Field: fields[i], Value: v, Source: metadata.FormatValue(v)}
	}
	renderJSON(w, http.StatusOK, out)
}

func (s *Server) handleField(w http.ResponseWriter, r *http.Request) {
	kind, typ, field := chi.URLParam(r, "kind"), chi.URLParam(r, "type"), chi.URLParam(r, "field")

	v, err := s.registry.Lookup(kind, typ, field)
	if err != nil {
		s.renderLookupError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, FieldValue{Kind: kind, Type: typ, Field: field, Value: v, Source: metadata.FormatValue(v)})
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	records := make([]RecordInfo, 0)
	for _, name := range s.registry.Records() {
		fields, _ := s.registry.Fields(name)
		records = append(records, RecordInfo{Name: name, Fields: fields})
	}
	renderJSON(w, http.StatusOK, records)
}

func (s *Server) renderLookupError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, metadata.ErrUnknownKind):
		renderError(w, r, http.StatusNotFound, "unknown_kind", err)
	case errors.Is(err, metadata.ErrUnknownRecord):
		renderError(w, r, http.StatusNotFound, "unknown_record", err)
	default:
		renderError(w, r, http.StatusInternalServerError, "lookup_failed", err)
	}
}
