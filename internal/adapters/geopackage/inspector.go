// Package geopackage reads the schema of GeoPackage files.
package geopackage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	_ "github.com/mattn/go-sqlite3" // registers the sqlite3 driver

	"github.com/sourcepole/qgis-interlis-plugin/internal/domain"
)

// FIDColumn is the default primary key column of GeoPackage tables.
const FIDColumn = "fid"

// Inspector implements the SourceInspector port for .gpkg files.
type Inspector struct{}

// NewInspector creates a new GeoPackage inspector.
func NewInspector() *Inspector {
	return &Inspector{}
}

// Inspect returns one layer per feature or attribute table registered in
// gpkg_contents.
func (i *Inspector) Inspect(ctx context.Context, ds domain.SourceDescriptor) (*domain.SourceDataset, error) {
	if _, err := os.Stat(ds.Path); err != nil {
		return nil, &domain.ConfigGenerationError{Source: ds.Path, Reason: "cannot open GeoPackage", Err: err}
	}

	db, err := openDB(ctx, ds.Path)
	if err != nil {
		return nil, &domain.ConfigGenerationError{Source: ds.Path, Reason: "cannot open GeoPackage", Err: err}
	}
	defer func() { _ = db.Close() }()

	layers, err := readLayers(ctx, db)
	if err != nil {
		return nil, &domain.ConfigGenerationError{Source: ds.Path, Reason: "cannot read gpkg_contents", Err: err}
	}

	for idx := range layers {
		if err := readFields(ctx, db, &layers[idx]); err != nil {
			return nil, &domain.ConfigGenerationError{Source: ds.Path, Reason: "cannot read table " + layers[idx].Name, Err: err}
		}
	}

	return &domain.SourceDataset{
		Format: domain.FormatGeoPackage,
		Layers: layers,
	}, nil
}

// openDB opens the GeoPackage read-only.
func openDB(ctx context.Context, path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?mode=ro", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// readLayers reads the tables of gpkg_contents with their geometry column.
func readLayers(ctx context.Context, db *sql.DB) ([]domain.SourceLayer, error) {
	query := `
		SELECT
			c.table_name,
			COALESCE(g.column_name, ''),
			COALESCE(g.geometry_type_name, ''),
			COALESCE(g.srs_id, 0),
			COALESCE(g.z, 0)
		FROM gpkg_contents c
		LEFT JOIN gpkg_geometry_columns g ON c.table_name = g.table_name
		WHERE c.data_type IN ('features', 'attributes')
		ORDER BY c.rowid
	`

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("reading layers: %w", err)
	}
	defer func() { _ = rows.Close() }()

	layers := []domain.SourceLayer{}
	for rows.Next() {
		var (
			l                domain.SourceLayer
			column, geometry string
			srs, z           int
		)
		if err := rows.Scan(&l.Name, &column, &geometry, &srs, &z); err != nil {
			return nil, fmt.Errorf("scanning layer: %w", err)
		}

		l.GeometryType = domain.GeometryNone
		if column != "" {
			gt := domain.ParseGeometryType(geometry)
			if z > 0 {
				gt = gt.To3D()
			}
			if srs <= 0 {
				srs = 0
			}
			l.GeometryColumn = column
			l.GeomFields = []domain.SourceGeomField{{Name: column, Type: gt, SRS: srs}}
		}
		layers = append(layers, l)
	}
	return layers, rows.Err()
}

// readFields reads the attribute columns of a table. The primary key and
// the geometry column are not attributes.
func readFields(ctx context.Context, db *sql.DB, layer *domain.SourceLayer) error {
	query := fmt.Sprintf(`PRAGMA table_info("%s")`, strings.ReplaceAll(layer.Name, `"`, `""`)) //#nosec G201 -- table name from gpkg_contents
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			cid, notNull, pk int
			name, declType   string
			dflt             sql.NullString
		)
		if err := rows.Scan(&cid, &name, &declType, &notNull, &dflt, &pk); err != nil {
			return err
		}
		if pk > 0 || name == layer.GeometryColumn {
			continue
		}
		layer.Fields = append(layer.Fields, sourceField(name, declType))
	}
	return rows.Err()
}

var declTypePattern = regexp.MustCompile(`^([A-Z ]+?)\s*(?:\((\d+)\))?$`)

// sourceField maps a declared SQLite column type to an OGR field type.
func sourceField(name, declType string) domain.SourceField {
	field := domain.SourceField{Name: name, Type: domain.FieldString}

	m := declTypePattern.FindStringSubmatch(strings.ToUpper(strings.TrimSpace(declType)))
	if m == nil {
		return field
	}
	if m[2] != "" {
		field.Width, _ = strconv.Atoi(m[2])
	}

	switch m[1] {
	case "TEXT":
	case "INTEGER":
		field.Type = domain.FieldInteger64
	case "INT", "MEDIUMINT", "SMALLINT", "TINYINT", "BOOLEAN":
		field.Type = domain.FieldInteger
	case "REAL", "DOUBLE", "FLOAT":
		field.Type = domain.FieldReal
	case "DATE":
		field.Type = domain.FieldDate
	case "DATETIME":
		field.Type = domain.FieldDateTime
	case "BLOB":
		field.Type = domain.FieldBinary
	}
	return field
}
