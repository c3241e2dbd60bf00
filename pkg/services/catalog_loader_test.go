package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/crosschema/reconcile-engine/pkg/apperrors"
)

func writeSchemaFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoadSchemas_JSON(t *testing.T) {
	dir := t.TempDir()
	writeSchemaFile(t, dir, "erp.json", `{
		"tables": {
			"materials": {
				"columns": [
					{"name": "id", "type": "uuid"},
					{"name": "material_no", "type": "VARCHAR(18)", "nullable": false}
				]
			}
		}
	}`)

	loader := NewFileCatalogLoader(dir, zap.NewNop())
	catalog, err := loader.LoadSchemas(context.Background(), []string{"erp"})
	require.NoError(t, err)

	require.Len(t, catalog.Schemas, 1)
	schema := catalog.Schemas[0]
	assert.Equal(t, "erp", schema.Name)
	require.Len(t, schema.Tables, 1)
	assert.Equal(t, "materials", schema.Tables[0].Name)
	require.Len(t, schema.Tables[0].Columns, 2)
	assert.Equal(t, "VARCHAR(18)", schema.Tables[0].Columns[1].DataType,
		"type strings keep their length qualifiers")
}

func TestLoadSchemas_YAML(t *testing.T) {
	dir := t.TempDir()
	writeSchemaFile(t, dir, "shop.yaml", `
tables:
  products:
    columns:
      - name: id
        type: bigint
      - name: product_sku
        type: varchar
        nullable: true
`)

	loader := NewFileCatalogLoader(dir, zap.NewNop())
	catalog, err := loader.LoadSchemas(context.Background(), []string{"shop"})
	require.NoError(t, err)

	require.Len(t, catalog.Schemas, 1)
	require.Len(t, catalog.Schemas[0].Tables, 1)
	cols := catalog.Schemas[0].Tables[0].Columns
	require.Len(t, cols, 2)
	assert.True(t, cols[1].Nullable)
}

func TestLoadSchemas_DeterministicTableOrder(t *testing.T) {
	dir := t.TempDir()
	writeSchemaFile(t, dir, "erp.json", `{
		"tables": {
			"zeta": {"columns": [{"name": "id", "type": "int"}]},
			"alpha": {"columns": [{"name": "id", "type": "int"}]},
			"mid": {"columns": [{"name": "id", "type": "int"}]}
		}
	}`)

	loader := NewFileCatalogLoader(dir, zap.NewNop())
	catalog, err := loader.LoadSchemas(context.Background(), []string{"erp"})
	require.NoError(t, err)

	tables := catalog.Schemas[0].Tables
	require.Len(t, tables, 3)
	assert.Equal(t, "alpha", tables[0].Name)
	assert.Equal(t, "mid", tables[1].Name)
	assert.Equal(t, "zeta", tables[2].Name)
}

func TestLoadSchemas_NotFound(t *testing.T) {
	loader := NewFileCatalogLoader(t.TempDir(), zap.NewNop())
	_, err := loader.LoadSchemas(context.Background(), []string{"missing"})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.Contains(t, err.Error(), "missing")
}

func TestLoadSchemas_MalformedJSON(t *testing.T) {
	dir := t.TempDir()
	writeSchemaFile(t, dir, "broken.json", `{"tables": {`)

	loader := NewFileCatalogLoader(dir, zap.NewNop())
	_, err := loader.LoadSchemas(context.Background(), []string{"broken"})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrMalformedSchema)
}

func TestLoadSchemas_ErrorNamesOffendingTable(t *testing.T) {
	dir := t.TempDir()
	writeSchemaFile(t, dir, "erp.json", `{
		"tables": {
			"materials": {"columns": [{"name": "id", "type": "uuid"}]},
			"orders": {"columns": [{"name": "", "type": "int"}]}
		}
	}`)

	loader := NewFileCatalogLoader(dir, zap.NewNop())
	_, err := loader.LoadSchemas(context.Background(), []string{"erp"})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrMalformedSchema)
	assert.Contains(t, err.Error(), "orders", "error must name the offending table")
}

func TestLoadSchemas_TableWithoutColumns(t *testing.T) {
	dir := t.TempDir()
	writeSchemaFile(t, dir, "erp.json", `{"tables": {"empty_table": {"columns": []}}}`)

	loader := NewFileCatalogLoader(dir, zap.NewNop())
	_, err := loader.LoadSchemas(context.Background(), []string{"erp"})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrMalformedSchema)
	assert.Contains(t, err.Error(), "empty_table")
}

func TestLoadSchemas_ColumnWithoutType(t *testing.T) {
	dir := t.TempDir()
	writeSchemaFile(t, dir, "erp.json", `{"tables": {"materials": {"columns": [{"name": "id"}]}}}`)

	loader := NewFileCatalogLoader(dir, zap.NewNop())
	_, err := loader.LoadSchemas(context.Background(), []string{"erp"})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrMalformedSchema)
}

func TestLoadSchemas_NoNamesRequested(t *testing.T) {
	loader := NewFileCatalogLoader(t.TempDir(), zap.NewNop())
	_, err := loader.LoadSchemas(context.Background(), nil)
	assert.ErrorIs(t, err, apperrors.ErrNoSchemas)
}

func TestLoadSchemas_CancelledContext(t *testing.T) {
	dir := t.TempDir()
	writeSchemaFile(t, dir, "erp.json", `{"tables": {"t": {"columns": [{"name": "id", "type": "int"}]}}}`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	loader := NewFileCatalogLoader(dir, zap.NewNop())
	_, err := loader.LoadSchemas(ctx, []string{"erp"})
	assert.ErrorIs(t, err, context.Canceled)
}
