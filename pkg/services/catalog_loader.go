package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/crosschema/reconcile-engine/pkg/apperrors"
	"github.com/crosschema/reconcile-engine/pkg/models"
)

// CatalogProvider materializes the read-only Schema Catalog for a run.
type CatalogProvider interface {
	// LoadSchemas loads the named schemas. Malformed input fails the run
	// with an error identifying the offending table; nothing is skipped
	// silently.
	LoadSchemas(ctx context.Context, names []string) (*models.Catalog, error)
}

// schemaDocument is the on-disk metadata format, one document per schema:
// {"tables": {"orders": {"columns": [{"name": "id", "type": "uuid"}]}}}.
// Column type strings may embed a length qualifier ("VARCHAR(40)"), which is
// preserved verbatim for downstream truncation checks.
type schemaDocument struct {
	Tables map[string]tableDocument `json:"tables" yaml:"tables"`
}

type tableDocument struct {
	Columns []columnDocument `json:"columns" yaml:"columns"`
}

type columnDocument struct {
	Name     string `json:"name" yaml:"name"`
	Type     string `json:"type" yaml:"type"`
	Nullable bool   `json:"nullable" yaml:"nullable"`
}

type fileCatalogLoader struct {
	dir    string
	logger *zap.Logger
}

// NewFileCatalogLoader creates a CatalogProvider that reads one JSON or YAML
// schema document per schema from dir (<name>.json, <name>.yaml, <name>.yml).
func NewFileCatalogLoader(dir string, logger *zap.Logger) CatalogProvider {
	return &fileCatalogLoader{
		dir:    dir,
		logger: logger.Named("catalog-loader"),
	}
}

var _ CatalogProvider = (*fileCatalogLoader)(nil)

// LoadSchemas loads and validates the named schema documents.
func (l *fileCatalogLoader) LoadSchemas(ctx context.Context, names []string) (*models.Catalog, error) {
	if len(names) == 0 {
		return nil, apperrors.ErrNoSchemas
	}

	catalog := &models.Catalog{}
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		schema, err := l.loadOne(name)
		if err != nil {
			return nil, fmt.Errorf("load schema %q: %w", name, err)
		}
		catalog.Schemas = append(catalog.Schemas, schema)
	}

	l.logger.Info("catalog loaded",
		zap.Int("schemas", len(catalog.Schemas)),
		zap.Int("tables", catalog.TableCount()))

	return catalog, nil
}

func (l *fileCatalogLoader) loadOne(name string) (*models.Schema, error) {
	path, isYAML, err := l.resolvePath(name)
	if err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var doc schemaDocument
	if isYAML {
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("%w: parse %s: %v", apperrors.ErrMalformedSchema, path, err)
		}
	} else {
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("%w: parse %s: %v", apperrors.ErrMalformedSchema, path, err)
		}
	}

	return buildSchema(name, &doc)
}

// resolvePath finds the schema document for name, trying JSON then YAML.
func (l *fileCatalogLoader) resolvePath(name string) (string, bool, error) {
	for _, ext := range []string{".json", ".yaml", ".yml"} {
		path := filepath.Join(l.dir, name+ext)
		if _, err := os.Stat(path); err == nil {
			return path, ext != ".json", nil
		}
	}
	return "", false, fmt.Errorf("schema document for %q: %w", name, apperrors.ErrNotFound)
}

// buildSchema validates a parsed document and converts it to the catalog
// model. Every defect names the offending table.
func buildSchema(name string, doc *schemaDocument) (*models.Schema, error) {
	if len(doc.Tables) == 0 {
		return nil, fmt.Errorf("%w: schema %q declares no tables", apperrors.ErrMalformedSchema, name)
	}

	schema := &models.Schema{Name: name}
	for tableName, tableDoc := range doc.Tables {
		if tableName == "" {
			return nil, fmt.Errorf("%w: schema %q contains a table with an empty name", apperrors.ErrMalformedSchema, name)
		}
		if len(tableDoc.Columns) == 0 {
			return nil, fmt.Errorf("%w: table %q has no columns", apperrors.ErrMalformedSchema, tableName)
		}

		table := &models.Table{SchemaName: name, Name: tableName}
		for i, col := range tableDoc.Columns {
			if col.Name == "" {
				return nil, fmt.Errorf("%w: table %q column %d is missing a name", apperrors.ErrMalformedSchema, tableName, i)
			}
			if col.Type == "" {
				return nil, fmt.Errorf("%w: table %q column %q is missing a type", apperrors.ErrMalformedSchema, tableName, col.Name)
			}
			table.Columns = append(table.Columns, &models.Column{
				TableName: tableName,
				Name:      col.Name,
				DataType:  col.Type,
				Nullable:  col.Nullable,
			})
		}
		schema.Tables = append(schema.Tables, table)
	}

	// Map iteration order is random; keep table order deterministic.
	sort.Slice(schema.Tables, func(i, j int) bool {
		return schema.Tables[i].Name < schema.Tables[j].Name
	})

	return schema, nil
}
