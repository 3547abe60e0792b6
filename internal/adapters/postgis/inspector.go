package postgis

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/sourcepole/qgis-interlis-plugin/internal/domain"
)

// Inspector implements the SourceInspector port for PG: connection strings.
type Inspector struct {
	logger *slog.Logger
}

// NewInspector creates a new PostGIS inspector.
func NewInspector(logger *slog.Logger) *Inspector {
	return &Inspector{logger: logger}
}

// Inspect returns one layer per table of the configured schemas. Tables of
// the public schema are named without schema prefix.
func (i *Inspector) Inspect(ctx context.Context, ds domain.SourceDescriptor) (*domain.SourceDataset, error) {
	dsn, err := ParseDSN(ds.Path)
	if err != nil {
		return nil, &domain.ConfigGenerationError{Source: redact(ds.Path), Reason: "invalid connection string", Err: err}
	}

	conn, err := pgx.ConnectConfig(ctx, dsn.Conn)
	if err != nil {
		return nil, &domain.ConfigGenerationError{Source: redact(ds.Path), Reason: "cannot connect", Err: err}
	}
	defer func() { _ = conn.Close(ctx) }()

	layers, err := readLayers(ctx, conn, dsn)
	if err != nil {
		return nil, &domain.ConfigGenerationError{Source: redact(ds.Path), Reason: "cannot read schema", Err: err}
	}
	i.logger.Debug("inspected database", "schemas", dsn.Schemas, "layers", len(layers))

	return &domain.SourceDataset{
		Format: domain.FormatPostgreSQL,
		Layers: layers,
	}, nil
}

type geometryColumn struct {
	column string
	typ    domain.GeometryType
	srs    int
}

func readLayers(ctx context.Context, conn *pgx.Conn, dsn *DSN) ([]domain.SourceLayer, error) {
	geoms, err := readGeometryColumns(ctx, conn, dsn.Schemas)
	if err != nil {
		return nil, err
	}
	keys, err := readPrimaryKeys(ctx, conn, dsn.Schemas)
	if err != nil {
		return nil, err
	}

	rows, err := conn.Query(ctx, `
		SELECT c.table_schema, c.table_name, c.column_name, c.data_type,
			COALESCE(c.character_maximum_length, 0)
		FROM information_schema.columns c
		JOIN information_schema.tables t
			ON t.table_schema = c.table_schema AND t.table_name = c.table_name
		WHERE c.table_schema = ANY($1) AND t.table_type IN ('BASE TABLE', 'VIEW')
		ORDER BY c.table_schema, c.table_name, c.ordinal_position`, dsn.Schemas)
	if err != nil {
		return nil, fmt.Errorf("reading columns: %w", err)
	}
	defer rows.Close()

	wanted := make(map[string]bool, len(dsn.Tables))
	for _, t := range dsn.Tables {
		wanted[t] = true
	}

	var layers []domain.SourceLayer
	index := make(map[string]int)
	for rows.Next() {
		var schema, table, column, dataType string
		var width int
		if err := rows.Scan(&schema, &table, &column, &dataType, &width); err != nil {
			return nil, fmt.Errorf("scanning column: %w", err)
		}

		name := layerName(schema, table)
		if len(wanted) > 0 && !wanted[name] && !wanted[table] {
			continue
		}
		idx, ok := index[name]
		if !ok {
			idx = len(layers)
			index[name] = idx
			layers = append(layers, domain.SourceLayer{Name: name, GeometryType: domain.GeometryNone})
		}
		layer := &layers[idx]

		qualified := schema + "." + table
		if g, ok := geoms[qualified+"."+column]; ok {
			layer.GeomFields = append(layer.GeomFields, domain.SourceGeomField{Name: g.column, Type: g.typ, SRS: g.srs})
			if layer.GeometryColumn == "" {
				layer.GeometryColumn = g.column
			}
			continue
		}
		if keys[qualified] == column {
			continue
		}
		layer.Fields = append(layer.Fields, sourceField(column, dataType, width))
	}
	return layers, rows.Err()
}

func readGeometryColumns(ctx context.Context, conn *pgx.Conn, schemas []string) (map[string]geometryColumn, error) {
	var exists bool
	if err := conn.QueryRow(ctx, `SELECT to_regclass('public.geometry_columns') IS NOT NULL`).Scan(&exists); err != nil {
		return nil, fmt.Errorf("checking PostGIS: %w", err)
	}
	geoms := make(map[string]geometryColumn)
	if !exists {
		return geoms, nil
	}

	rows, err := conn.Query(ctx, `
		SELECT f_table_schema, f_table_name, f_geometry_column, type, coord_dimension, srid
		FROM geometry_columns
		WHERE f_table_schema = ANY($1)`, schemas)
	if err != nil {
		return nil, fmt.Errorf("reading geometry_columns: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var schema, table, column, typ string
		var dim, srid int32
		if err := rows.Scan(&schema, &table, &column, &typ, &dim, &srid); err != nil {
			return nil, fmt.Errorf("scanning geometry column: %w", err)
		}
		gt := domain.ParseGeometryType(typ)
		if dim > 2 && !strings.HasSuffix(strings.ToUpper(typ), "M") {
			gt = gt.To3D()
		}
		if srid < 0 {
			srid = 0
		}
		geoms[schema+"."+table+"."+column] = geometryColumn{column: column, typ: gt, srs: int(srid)}
	}
	return geoms, rows.Err()
}

// readPrimaryKeys returns the single-column primary key per table. These
// columns become the OGR FID and are not attributes.
func readPrimaryKeys(ctx context.Context, conn *pgx.Conn, schemas []string) (map[string]string, error) {
	rows, err := conn.Query(ctx, `
		SELECT k.table_schema, k.table_name, min(k.column_name)
		FROM information_schema.table_constraints t
		JOIN information_schema.key_column_usage k
			ON k.constraint_name = t.constraint_name AND k.table_schema = t.table_schema
		WHERE t.constraint_type = 'PRIMARY KEY' AND t.table_schema = ANY($1)
		GROUP BY k.table_schema, k.table_name
		HAVING count(*) = 1`, schemas)
	if err != nil {
		return nil, fmt.Errorf("reading primary keys: %w", err)
	}
	defer rows.Close()

	keys := make(map[string]string)
	for rows.Next() {
		var schema, table, column string
		if err := rows.Scan(&schema, &table, &column); err != nil {
			return nil, fmt.Errorf("scanning primary key: %w", err)
		}
		keys[schema+"."+table] = column
	}
	return keys, rows.Err()
}

func layerName(schema, table string) string {
	if schema == DefaultSchema {
		return table
	}
	return schema + "." + table
}

// sourceField maps an information_schema data type to an OGR field type.
func sourceField(name, dataType string, width int) domain.SourceField {
	field := domain.SourceField{Name: name, Width: width}
	switch dataType {
	case "smallint", "integer", "boolean":
		field.Type = domain.FieldInteger
	case "bigint":
		field.Type = domain.FieldInteger64
	case "numeric", "real", "double precision":
		field.Type = domain.FieldReal
	case "date":
		field.Type = domain.FieldDate
	case "time without time zone", "time with time zone":
		field.Type = domain.FieldTime
	case "timestamp without time zone", "timestamp with time zone":
		field.Type = domain.FieldDateTime
	case "bytea":
		field.Type = domain.FieldBinary
	default:
		field.Type = domain.FieldString
	}
	return field
}

// redact removes the password from a connection string for error messages.
func redact(ds string) string {
	pairs, err := splitKeywords(strings.TrimPrefix(strings.TrimSpace(ds), domain.PGPrefix))
	if err != nil {
		return domain.PGPrefix + "..."
	}
	parts := make([]string, 0, len(pairs))
	for _, kv := range pairs {
		if kv.key == "password" {
			kv.value = "***"
		}
		parts = append(parts, kv.key+"="+kv.value)
	}
	return domain.PGPrefix + strings.Join(parts, " ")
}
