package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sourcepole/qgis-interlis-plugin/internal/adapters/interlis"
	"github.com/sourcepole/qgis-interlis-plugin/internal/adapters/source"
	"github.com/sourcepole/qgis-interlis-plugin/internal/adapters/storage"
	"github.com/sourcepole/qgis-interlis-plugin/internal/application"
	"github.com/sourcepole/qgis-interlis-plugin/internal/domain"
	"github.com/sourcepole/qgis-interlis-plugin/internal/ogrconfig"
	"github.com/sourcepole/qgis-interlis-plugin/internal/ports/input"
	"github.com/sourcepole/qgis-interlis-plugin/internal/ports/output"
)

// generateFlags are shared by the config and vrt commands.
type generateFlags struct {
	ds      string
	model   string
	format  string
	layers  []string
	srs     int
	out     string
	config  string
	reverse bool
	gml     bool
}

var genFlags generateFlags

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Generate an OGR mapping document",
	Long: `Generate inspects a source dataset and prints its OGR mapping document.

The source is a file path, "PG:<connection>" or "<transfer>,<model.imd>".
With --model and without --ds the model itself is mapped through an empty
transfer.`,
	Example: `  interlis config --ds roads.xtf --model RoadsSimple.imd --format GPKG
  interlis config --ds "PG:dbname=gis host=localhost" --layers roads,rivers`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		out, err := generateConfig(cmd.Context(), genFlags)
		if err != nil {
			return err
		}
		return writeOutput(cmd.OutOrStdout(), genFlags.out, out)
	},
}

var vrtCmd = &cobra.Command{
	Use:   "vrt",
	Short: "Generate an OGR VRT document",
	Long: `VRT renders the mapping of a source dataset as an OGR virtual dataset.

The VRT references the source, so --ds is required. Use --config to render
a saved mapping document instead of generating one, and --reverse to map
destination names back to the source names.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		out, err := generateVRT(cmd.Context(), genFlags)
		if err != nil {
			return err
		}
		return writeOutput(cmd.OutOrStdout(), genFlags.out, out)
	},
}

var enumsCmd = &cobra.Command{
	Use:   "enums",
	Short: "Print the enumeration tables of a model",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		out, err := modelEnums(cmd.Context(), genFlags)
		if err != nil {
			return err
		}
		return writeOutput(cmd.OutOrStdout(), genFlags.out, out)
	},
}

var transferCmd = &cobra.Command{
	Use:   "transfer",
	Short: "Write an empty INTERLIS 2.3 transfer for a model",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		service, id, err := localModelService(cmd.Context(), genFlags.model)
		if err != nil {
			return err
		}
		out, err := service.EmptyTransfer(cmd.Context(), id)
		if err != nil {
			return err
		}
		return writeOutput(cmd.OutOrStdout(), genFlags.out, out)
	},
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <ds>",
	Short: "Print the layers and fields of a dataset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ds := domain.ParseSourceDescriptor(args[0]).WithModel(genFlags.model)
		dataset, err := source.NewDispatcher(logger).Inspect(cmd.Context(), ds)
		if err != nil {
			return err
		}
		return writeOutput(cmd.OutOrStdout(), genFlags.out, inspectReport(dataset))
	},
}

func init() {
	for _, cmd := range []*cobra.Command{configCmd, vrtCmd} {
		flags := cmd.Flags()
		flags.StringVar(&genFlags.ds, "ds", "", "source dataset")
		flags.StringSliceVar(&genFlags.layers, "layers", nil, "source layers to map (default all)")
		flags.StringVar(&genFlags.format, "format", "", "destination OGR format (default from generation.default_dst_format)")
		flags.IntVar(&genFlags.srs, "srs", 0, "EPSG code of geometries without SRS (default from generation.default_srs)")
	}
	vrtCmd.Flags().StringVar(&genFlags.config, "config-file", "", "render this mapping document")
	vrtCmd.Flags().BoolVar(&genFlags.reverse, "reverse", false, "map destination names to source names")
	enumsCmd.Flags().BoolVar(&genFlags.gml, "gml", false, "print the tables as a GML feature collection")

	for _, cmd := range []*cobra.Command{configCmd, vrtCmd, enumsCmd, transferCmd, inspectCmd} {
		cmd.Flags().StringVar(&genFlags.model, "model", "", "IlisMeta model file (.imd)")
		cmd.Flags().StringVarP(&genFlags.out, "out", "o", "", "write to file instead of stdout")
	}
	for _, cmd := range []*cobra.Command{enumsCmd, transferCmd} {
		_ = cmd.MarkFlagRequired("model")
	}
}

// localModelService returns a transform service with the single model at
// path loaded, and the model ID.
func localModelService(ctx context.Context, path string) (*application.TransformService, string, error) {
	if !domain.IsModelFile(path) {
		return nil, "", fmt.Errorf("%w: %q is not an IlisMeta (.imd) file", domain.ErrInvalidInput, path)
	}

	dir := filepath.Dir(path)
	metrics := &output.NoOpMetrics{}
	registry := application.NewModelRegistry(interlis.NewModelReader(), storage.NewLocalStorage(dir), metrics, logger, dir)
	if err := registry.LoadModel(ctx, path); err != nil {
		return nil, "", err
	}

	service := application.NewTransformService(registry, source.NewDispatcher(logger), metrics, logger, application.TransformConfig{
		DefaultDstFormat: cfg.Generation.DefaultDstFormat,
		DefaultSRS:       cfg.Generation.DefaultSRS,
		TempDir:          cfg.Generation.TempDir,
		StrictNames:      cfg.Generation.StrictNames,
	})
	return service, domain.DeriveModelID(path), nil
}

func generateConfig(ctx context.Context, f generateFlags) (string, error) {
	if f.model != "" {
		service, id, err := localModelService(ctx, f.model)
		if err != nil {
			return "", err
		}
		return service.GenerateConfig(ctx, id, f.request())
	}

	c, err := sourceConfig(ctx, f)
	if err != nil {
		return "", err
	}
	return c.JSON()
}

func generateVRT(ctx context.Context, f generateFlags) (string, error) {
	if f.config != "" {
		data, err := os.ReadFile(f.config)
		if err != nil {
			return "", &domain.ConfigLoadError{Path: f.config, Err: err}
		}
		service := application.NewTransformService(nil, nil, &output.NoOpMetrics{}, logger, application.TransformConfig{})
		return service.VRTFromConfig(ctx, f.ds, data, f.reverse)
	}

	if f.model != "" {
		service, id, err := localModelService(ctx, f.model)
		if err != nil {
			return "", err
		}
		return service.GenerateVRT(ctx, id, f.request(), f.reverse)
	}

	c, err := sourceConfig(ctx, f)
	if err != nil {
		return "", err
	}
	if f.reverse {
		return c.GenerateReverseVRT()
	}
	return c.GenerateVRT()
}

// sourceConfig generates the mapping of a dataset without a model file.
func sourceConfig(ctx context.Context, f generateFlags) (*ogrconfig.Config, error) {
	if f.ds == "" {
		return nil, fmt.Errorf("%w: --ds or --model is required", domain.ErrInvalidInput)
	}
	c := ogrconfig.New(f.ds, ogrconfig.WithInspector(source.NewDispatcher(logger)), ogrconfig.WithLogger(logger))
	_, err := c.GenerateConfig(ctx, f.dstFormat(), ogrconfig.GenerateOptions{
		Layers:      f.layers,
		SRS:         f.srsCode(),
		StrictNames: cfg.Generation.StrictNames,
	})
	return c, err
}

func (f generateFlags) request() input.GenerateRequest {
	return input.GenerateRequest{
		DS:        f.ds,
		DstFormat: f.dstFormat(),
		Layers:    f.layers,
		SRS:       f.srsCode(),
	}
}

func (f generateFlags) dstFormat() string {
	if f.format != "" {
		return f.format
	}
	return cfg.Generation.DefaultDstFormat
}

func (f generateFlags) srsCode() int {
	if f.srs != 0 {
		return f.srs
	}
	return cfg.Generation.DefaultSRS
}

func modelEnums(ctx context.Context, f generateFlags) (string, error) {
	service, id, err := localModelService(ctx, f.model)
	if err != nil {
		return "", err
	}
	if f.gml {
		return service.EnumsGML(ctx, id)
	}

	enums, err := service.Enums(ctx, id)
	if err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(enums, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// inspectReport formats a dataset the way ogrinfo lists layer schemas.
func inspectReport(dataset *domain.SourceDataset) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Format: %s\n", dataset.Format)
	for i := range dataset.Layers {
		layer := &dataset.Layers[i]
		fmt.Fprintf(&b, "\nLayer name: %s\n", layer.Name)
		fmt.Fprintf(&b, "Geometry: %s\n", layer.EffectiveGeometryType())
		if layer.GeometryColumn != "" {
			fmt.Fprintf(&b, "Geometry Column = %s\n", layer.GeometryColumn)
		}
		for _, g := range layer.GeomFields {
			if g.SRS != 0 {
				fmt.Fprintf(&b, "%s: %s (EPSG:%d)\n", g.Name, g.Type, g.SRS)
			} else {
				fmt.Fprintf(&b, "%s: %s\n", g.Name, g.Type)
			}
		}
		for _, field := range layer.Fields {
			fmt.Fprintf(&b, "%s: %s (%d)\n", field.Name, field.Type, field.Width)
		}
	}
	return b.String()
}

// writeOutput writes doc to path, or to w when path is empty.
func writeOutput(w io.Writer, path, doc string) error {
	if !strings.HasSuffix(doc, "\n") {
		doc += "\n"
	}
	if path == "" {
		_, err := io.WriteString(w, doc)
		return err
	}
	return os.WriteFile(path, []byte(doc), 0o644) //#nosec G306 -- generated documents are not secret
}
