// Package ili2db runs the INTERLIS Java tools ili2c, ili2pg and ili2gpkg
// and builds their command lines.
package ili2db

import (
	"strconv"

	"github.com/sourcepole/qgis-interlis-plugin/internal/adapters/postgis"
)

// Tool names.
const (
	ToolIli2c    = "ili2c"
	ToolIli2pg   = "ili2pg"
	ToolIli2gpkg = "ili2gpkg"
)

// Model search paths used when none is given.
const (
	DefaultModelDir       = "http://models.geo.admin.ch/"
	DefaultImportModelDir = "%ILI_FROM_DB;%XTF_DIR;http://models.geo.admin.ch/"
	DefaultSchema         = "public"
	DefaultSrsCode        = 2056
)

// Naming selects the table naming convention.
type Naming string

// Table naming conventions.
const (
	NamingUnqualified             Naming = "unqualified"
	NamingNameByTopic             Naming = "nameByTopic"
	NamingDisableNameOptimization Naming = "disableNameOptimization"
)

// Inheritance selects the inheritance mapping strategy.
type Inheritance string

// Inheritance mapping strategies.
const (
	InheritanceSmart1    Inheritance = "smart1Inheritance"
	InheritanceSmart2    Inheritance = "smart2Inheritance"
	InheritanceNoMapping Inheritance = "noSmartMapping"
)

// ImportMode selects how transfer data is written.
type ImportMode string

// Import modes.
const (
	ModeImport  ImportMode = "import"
	ModeUpdate  ImportMode = "update"
	ModeReplace ImportMode = "replace"
)

// Target is the database an ili2db tool works on.
type Target struct {
	Tool     string
	connArgs []string
	schema   bool
}

// PostgresTarget returns an ili2pg target for an OGR "PG:" connection
// string. Empty connection values are omitted.
func PostgresTarget(ds string) (Target, error) {
	dsn, err := postgis.ParseDSN(ds)
	if err != nil {
		return Target{}, err
	}
	return Target{Tool: ToolIli2pg, connArgs: dsn.ConnectionArgs(), schema: true}, nil
}

// GeoPackageTarget returns an ili2gpkg target for a .gpkg file.
func GeoPackageTarget(path string) Target {
	return Target{Tool: ToolIli2gpkg, connArgs: []string{"--dbfile", path}}
}

// SchemaImportOptions control --schemaimport.
type SchemaImportOptions struct {
	Models           string
	ModelDir         string
	LocalModelDir    string // Prepended to ModelDir
	Naming           Naming
	Inheritance      Inheritance
	SQLNotNull       bool
	CreateNumChecks  bool // ili2pg only
	CreateBasketCol  bool // ili2pg only
	CreateDatasetCol bool // ili2pg only, implies CreateBasketCol
	CreateFk         bool
	CreateFkIdx      bool
	CreateGeomIdx    bool
	StrokeArcs       bool
	CreateEnumTabs   bool
	DefaultSrsCode   int
	DBSchema         string // ili2pg only
}

// DefaultSchemaImportOptions returns the defaults of the plugin dialog.
func DefaultSchemaImportOptions() SchemaImportOptions {
	return SchemaImportOptions{
		ModelDir:        DefaultModelDir,
		Naming:          NamingNameByTopic,
		Inheritance:     InheritanceSmart1,
		SQLNotNull:      true,
		CreateNumChecks: true,
		CreateFk:        true,
		CreateFkIdx:     true,
		CreateGeomIdx:   true,
		CreateEnumTabs:  true,
		DefaultSrsCode:  DefaultSrsCode,
		DBSchema:        DefaultSchema,
	}
}

// SchemaImportArgs returns the arguments that create the schema of a model.
func SchemaImportArgs(t Target, opts SchemaImportOptions) []string {
	args := []string{"--schemaimport"}
	if opts.Models != "" {
		args = append(args, "--models", opts.Models)
	}

	modelDir := orDefault(opts.ModelDir, DefaultModelDir)
	if opts.LocalModelDir != "" {
		modelDir = opts.LocalModelDir + ";" + modelDir
	}
	args = append(args, "--modeldir", modelDir)

	if opts.Naming != "" && opts.Naming != NamingUnqualified {
		args = append(args, "--"+string(opts.Naming))
	}
	inheritance := opts.Inheritance
	if inheritance == "" {
		inheritance = InheritanceSmart1
	}
	args = append(args, "--"+string(inheritance))

	if !opts.SQLNotNull {
		args = append(args, "--sqlEnableNull")
	}
	if t.schema {
		if opts.CreateNumChecks {
			args = append(args, "--createNumChecks")
		}
		if opts.CreateBasketCol || opts.CreateDatasetCol {
			args = append(args, "--createBasketCol")
		}
		if opts.CreateDatasetCol {
			args = append(args, "--createDatasetCol")
		}
	}
	flags := []struct {
		set  bool
		flag string
	}{
		{opts.CreateFk, "--createFk"},
		{opts.CreateFkIdx, "--createFkIdx"},
		{opts.CreateGeomIdx, "--createGeomIdx"},
		{opts.StrokeArcs, "--strokeArcs"},
		{opts.CreateEnumTabs, "--createEnumTabs"},
	}
	for _, f := range flags {
		if f.set {
			args = append(args, f.flag)
		}
	}

	srs := opts.DefaultSrsCode
	if srs <= 0 {
		srs = DefaultSrsCode
	}
	args = append(args, "--defaultSrsCode", strconv.Itoa(srs))
	args = append(args, t.connArgs...)
	return t.appendSchema(args, opts.DBSchema)
}

// ImportOptions control --import, --update and --replace.
type ImportOptions struct {
	Mode       ImportMode
	Dataset    string
	DeleteData bool
	ModelDir   string
	Models     string
	DBSchema   string // ili2pg only
	XTF        string
}

// ImportArgs returns the arguments that import a transfer file.
func ImportArgs(t Target, opts ImportOptions) []string {
	mode := opts.Mode
	if mode == "" {
		mode = ModeImport
	}
	args := []string{"--" + string(mode)}
	if opts.Dataset != "" {
		args = append(args, "--dataset", opts.Dataset)
	}
	if opts.DeleteData {
		args = append(args, "--deleteData")
	}
	args = append(args, t.connArgs...)
	args = append(args, "--modeldir", orDefault(opts.ModelDir, DefaultImportModelDir))
	if opts.Models != "" {
		args = append(args, "--models", opts.Models)
	}
	args = t.appendSchema(args, opts.DBSchema)
	return append(args, opts.XTF)
}

// ExportOptions control --export.
type ExportOptions struct {
	DBSchema string // ili2pg only
	Dataset  string
	ModelDir string
	Models   string
	XTF      string
}

// ExportArgs returns the arguments that export a transfer file.
func ExportArgs(t Target, opts ExportOptions) []string {
	args := []string{"--export"}
	args = append(args, t.connArgs...)
	args = t.appendSchema(args, opts.DBSchema)
	if opts.Dataset != "" {
		args = append(args, "--dataset", opts.Dataset)
	}
	args = append(args, "--modeldir", orDefault(opts.ModelDir, DefaultImportModelDir))
	if opts.Models != "" {
		args = append(args, "--models", opts.Models)
	}
	return append(args, opts.XTF)
}

// Ili2cArgs returns the ili2c arguments that compile ili into an IlisMeta
// document at imd.
func Ili2cArgs(ili, imd string) []string {
	return []string{"-oIMD", "--out", imd, ili}
}

func (t Target) appendSchema(args []string, schema string) []string {
	if !t.schema {
		return args
	}
	return append(args, "--dbschema", orDefault(schema, DefaultSchema))
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
