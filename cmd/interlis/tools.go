package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sourcepole/qgis-interlis-plugin/internal/adapters/ili2db"
	"github.com/sourcepole/qgis-interlis-plugin/internal/app"
	"github.com/sourcepole/qgis-interlis-plugin/internal/application"
	"github.com/sourcepole/qgis-interlis-plugin/internal/domain"
	"github.com/sourcepole/qgis-interlis-plugin/internal/ports/output"
)

var dryRun bool

var ili2cFlags struct {
	ili string
	imd string
}

var ili2cCmd = &cobra.Command{
	Use:     "ili2c",
	Short:   "Compile an INTERLIS model to an IlisMeta document",
	Example: `  interlis ili2c --ili RoadsSimple.ili --imd RoadsSimple.imd`,
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		args := ili2db.Ili2cArgs(ili2cFlags.ili, ili2cFlags.imd)
		if dryRun {
			return printCommandLine(cmd, ili2db.ToolIli2c, args)
		}
		if err := toolService().Compile(cmd.Context(), ili2db.ToolIli2c, args, ili2cFlags.imd); err != nil {
			return err
		}
		logger.Info("model compiled", "imd", ili2cFlags.imd)
		return nil
	},
}

// ili2dbTool describes ili2pg or ili2gpkg.
type ili2dbTool struct {
	name   string
	short  string
	dsHelp string
	target func(ds string) (ili2db.Target, error)
}

var (
	ili2pgTool = ili2dbTool{
		name:   ili2db.ToolIli2pg,
		short:  "Create, fill or export a PostGIS schema with ili2pg",
		dsHelp: `database as OGR connection string, e.g. "PG:dbname=gis host=localhost"`,
		target: ili2db.PostgresTarget,
	}
	ili2gpkgTool = ili2dbTool{
		name:   ili2db.ToolIli2gpkg,
		short:  "Create, fill or export a GeoPackage with ili2gpkg",
		dsHelp: "GeoPackage file",
		target: func(ds string) (ili2db.Target, error) {
			if ds == "" {
				return ili2db.Target{}, fmt.Errorf("%w: --ds is required", domain.ErrInvalidInput)
			}
			return ili2db.GeoPackageTarget(ds), nil
		},
	}
)

// newIli2dbCmd builds the schemaimport, import and export subcommands of
// an ili2db tool.
func newIli2dbCmd(tool ili2dbTool) *cobra.Command {
	var ds string
	root := &cobra.Command{
		Use:   tool.name,
		Short: tool.short,
	}
	root.PersistentFlags().StringVar(&ds, "ds", "", tool.dsHelp)

	schemaOpts := ili2db.DefaultSchemaImportOptions()
	var naming, inheritance string
	schemaimport := &cobra.Command{
		Use:   "schemaimport",
		Short: "Create the tables of a model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			t, err := tool.target(ds)
			if err != nil {
				return err
			}
			opts := schemaOpts
			if !cmd.Flags().Changed("modeldir") && cfg.Tools.ModelDir != "" {
				opts.ModelDir = cfg.Tools.ModelDir
			}
			opts.Naming = ili2db.Naming(naming)
			opts.Inheritance = ili2db.Inheritance(inheritance)
			return runTool(cmd, t.Tool, ili2db.SchemaImportArgs(t, opts))
		},
	}
	sf := schemaimport.Flags()
	sf.StringVar(&schemaOpts.Models, "models", "", "models to import, separated by ;")
	sf.StringVar(&schemaOpts.ModelDir, "modeldir", schemaOpts.ModelDir, "model repositories, separated by ;")
	sf.StringVar(&schemaOpts.LocalModelDir, "local-modeldir", "", "local model directory searched first")
	sf.StringVar(&naming, "naming", string(schemaOpts.Naming), "table naming (unqualified, nameByTopic, disableNameOptimization)")
	sf.StringVar(&inheritance, "inheritance", string(schemaOpts.Inheritance), "inheritance mapping (smart1Inheritance, smart2Inheritance, noSmartMapping)")
	sf.BoolVar(&schemaOpts.SQLNotNull, "sql-not-null", schemaOpts.SQLNotNull, "create NOT NULL constraints")
	sf.BoolVar(&schemaOpts.CreateNumChecks, "create-num-checks", schemaOpts.CreateNumChecks, "create range checks (ili2pg)")
	sf.BoolVar(&schemaOpts.CreateBasketCol, "create-basket-col", schemaOpts.CreateBasketCol, "create basket columns (ili2pg)")
	sf.BoolVar(&schemaOpts.CreateDatasetCol, "create-dataset-col", schemaOpts.CreateDatasetCol, "create dataset columns (ili2pg)")
	sf.BoolVar(&schemaOpts.CreateFk, "create-fk", schemaOpts.CreateFk, "create foreign keys")
	sf.BoolVar(&schemaOpts.CreateFkIdx, "create-fk-idx", schemaOpts.CreateFkIdx, "index foreign keys")
	sf.BoolVar(&schemaOpts.CreateGeomIdx, "create-geom-idx", schemaOpts.CreateGeomIdx, "create spatial indexes")
	sf.BoolVar(&schemaOpts.StrokeArcs, "stroke-arcs", schemaOpts.StrokeArcs, "linearize arcs")
	sf.BoolVar(&schemaOpts.CreateEnumTabs, "create-enum-tabs", schemaOpts.CreateEnumTabs, "create enumeration tables")
	sf.IntVar(&schemaOpts.DefaultSrsCode, "default-srs", schemaOpts.DefaultSrsCode, "EPSG code of geometries")
	sf.StringVar(&schemaOpts.DBSchema, "dbschema", schemaOpts.DBSchema, "database schema (ili2pg)")

	importOpts := ili2db.ImportOptions{Mode: ili2db.ModeImport, DBSchema: ili2db.DefaultSchema}
	var mode string
	importCmd := &cobra.Command{
		Use:   "import <xtf>",
		Short: "Import a transfer file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := tool.target(ds)
			if err != nil {
				return err
			}
			opts := importOpts
			opts.Mode = ili2db.ImportMode(mode)
			opts.XTF = args[0]
			return runTool(cmd, t.Tool, ili2db.ImportArgs(t, opts))
		},
	}
	imf := importCmd.Flags()
	imf.StringVar(&mode, "mode", string(importOpts.Mode), "import, update or replace")
	imf.StringVar(&importOpts.Dataset, "dataset", "", "dataset name")
	imf.BoolVar(&importOpts.DeleteData, "delete-data", false, "delete existing data first")
	imf.StringVar(&importOpts.ModelDir, "modeldir", ili2db.DefaultImportModelDir, "model repositories, separated by ;")
	imf.StringVar(&importOpts.Models, "models", "", "models of the transfer, separated by ;")
	imf.StringVar(&importOpts.DBSchema, "dbschema", importOpts.DBSchema, "database schema (ili2pg)")

	exportOpts := ili2db.ExportOptions{DBSchema: ili2db.DefaultSchema}
	exportCmd := &cobra.Command{
		Use:   "export <xtf>",
		Short: "Export to a transfer file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := tool.target(ds)
			if err != nil {
				return err
			}
			opts := exportOpts
			opts.XTF = args[0]
			return runTool(cmd, t.Tool, ili2db.ExportArgs(t, opts))
		},
	}
	exf := exportCmd.Flags()
	exf.StringVar(&exportOpts.Dataset, "dataset", "", "dataset name")
	exf.StringVar(&exportOpts.ModelDir, "modeldir", ili2db.DefaultImportModelDir, "model repositories, separated by ;")
	exf.StringVar(&exportOpts.Models, "models", "", "models to export, separated by ;")
	exf.StringVar(&exportOpts.DBSchema, "dbschema", exportOpts.DBSchema, "database schema (ili2pg)")

	root.AddCommand(schemaimport, importCmd, exportCmd)
	return root
}

func init() {
	ili2cCmd.Flags().StringVar(&ili2cFlags.ili, "ili", "", "INTERLIS model file (.ili)")
	ili2cCmd.Flags().StringVar(&ili2cFlags.imd, "imd", "", "IlisMeta output file (.imd)")
	_ = ili2cCmd.MarkFlagRequired("ili")
	_ = ili2cCmd.MarkFlagRequired("imd")

	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "print the java command line of tool commands instead of running it")
}

func toolService() *application.ToolService {
	return application.NewToolService(app.NewToolRunner(cfg.Tools, logger), nil, &output.NoOpMetrics{}, logger)
}

func runTool(cmd *cobra.Command, tool string, args []string) error {
	if dryRun {
		return printCommandLine(cmd, tool, args)
	}
	if err := toolService().Run(cmd.Context(), tool, args); err != nil {
		return err
	}
	logger.Info("tool finished", "tool", tool)
	return nil
}

func printCommandLine(cmd *cobra.Command, tool string, args []string) error {
	line, err := app.NewToolRunner(cfg.Tools, logger).CommandLine(tool, args)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), cfg.Tools.Java+" "+strings.Join(ili2db.RedactArgs(line), " "))
	return err
}
