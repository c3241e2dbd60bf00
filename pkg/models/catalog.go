package models

// Schema is the catalog entry for one loaded schema. Schemas are supplied
// by the catalog loader and are read-only for the duration of a pipeline run.
type Schema struct {
	Name   string   `json:"name"`
	Tables []*Table `json:"tables"`
}

// Table describes one table within a schema.
type Table struct {
	SchemaName string    `json:"schema_name"`
	Name       string    `json:"name"`
	Columns    []*Column `json:"columns"`
}

// Column describes a single table column with its declared type.
// Immutable once loaded from the catalog.
type Column struct {
	TableName string `json:"table_name"`
	Name      string `json:"name"`
	DataType  string `json:"data_type"`
	Nullable  bool   `json:"nullable"`
}

// Catalog holds all schemas loaded for one pipeline run.
type Catalog struct {
	Schemas []*Schema
}

// SchemaByName returns the schema with the given name, or nil.
func (c *Catalog) SchemaByName(name string) *Schema {
	for _, s := range c.Schemas {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// AllTables returns every table across every loaded schema.
func (c *Catalog) AllTables() []*Table {
	var tables []*Table
	for _, s := range c.Schemas {
		tables = append(tables, s.Tables...)
	}
	return tables
}

// TableCount returns the total number of tables across all schemas.
func (c *Catalog) TableCount() int {
	n := 0
	for _, s := range c.Schemas {
		n += len(s.Tables)
	}
	return n
}
