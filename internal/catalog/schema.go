package catalog

// statements creating the catalog tables; valid in both dialects
var schema = []string{
	`CREATE TABLE IF NOT EXISTS fieldmeta_exports (
	export_id   TEXT PRIMARY KEY,
	version     TEXT NOT NULL,
	source_hash TEXT NOT NULL,
	exported_at TIMESTAMP NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS fieldmeta_kinds (
	export_id     TEXT NOT NULL,
	ordinal       INTEGER NOT NULL,
	name          TEXT NOT NULL,
	default_value TEXT NOT NULL,
	default_json  TEXT NOT NULL,
	PRIMARY KEY (export_id, name)
)`,
	`CREATE TABLE IF NOT EXISTS fieldmeta_type_defaults (
	export_id  TEXT NOT NULL,
	ordinal    INTEGER NOT NULL,
	kind       TEXT NOT NULL,
	type_name  TEXT NOT NULL,
	value      TEXT NOT NULL,
	value_json TEXT NOT NULL,
	PRIMARY KEY (export_id, kind, type_name)
)`,
	`CREATE TABLE IF NOT EXISTS fieldmeta_entries (
	export_id  TEXT NOT NULL,
	ordinal    INTEGER NOT NULL,
	kind       TEXT NOT NULL,
	type_name  TEXT NOT NULL,
	field      TEXT NOT NULL,
	value      TEXT NOT NULL,
	value_json TEXT NOT NULL,
	PRIMARY KEY (export_id, kind, type_name, field)
)`,
	`CREATE TABLE IF NOT EXISTS fieldmeta_fields (
	export_id TEXT NOT NULL,
	record    TEXT NOT NULL,
	ordinal   INTEGER NOT NULL,
	field     TEXT NOT NULL,
	PRIMARY KEY (export_id, record, ordinal)
)`,
}

// Tables lists the catalog tables in creation order
var Tables = []string{
	"fieldmeta_exports",
	"fieldmeta_kinds",
	"fieldmeta_type_defaults",
	"fieldmeta_entries",
	"fieldmeta_fields",
}
