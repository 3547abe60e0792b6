package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sourcepole/qgis-interlis-plugin/internal/config"
	"github.com/sourcepole/qgis-interlis-plugin/internal/domain"
)

const testModel = "../../internal/ilismeta/testdata/RoadsExdm2ien.imd"

func setupTest(t *testing.T) {
	t.Helper()
	cfg = &config.Config{
		Generation: config.GenerationConfig{
			DefaultDstFormat: domain.FormatPostgreSQL,
			DefaultSRS:       2056,
			TempDir:          t.TempDir(),
		},
		Tools: config.ToolsConfig{Java: "java", Ili2pgJar: "/opt/ili2pg/ili2pg.jar"},
	}
	logger = slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSetupLogger(t *testing.T) {
	var buf bytes.Buffer
	log := setupLogger(config.LoggingConfig{Level: "warn", Format: "json"}, &buf)

	log.Info("hidden")
	log.Warn("shown", "model", "RoadsExdm2ien")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected one JSON log line, got %q: %v", buf.String(), err)
	}
	if entry["msg"] != "shown" || entry["model"] != "RoadsExdm2ien" {
		t.Errorf("entry = %v", entry)
	}
	if ts, _ := entry["time"].(string); !strings.HasSuffix(ts, "Z") {
		t.Errorf("time = %q, want RFC3339 UTC", ts)
	}
}

func TestGenerateConfigFromModel(t *testing.T) {
	setupTest(t)

	out, err := generateConfig(context.Background(), generateFlags{model: testModel, format: "GPKG", srs: 21781})
	if err != nil {
		t.Fatalf("generateConfig() error = %v", err)
	}
	var doc map[string]interface{}
	if err := json.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("invalid mapping document: %v", err)
	}
	if doc["dst_format"] != "GPKG" {
		t.Errorf("dst_format = %v, want GPKG", doc["dst_format"])
	}
	if !strings.Contains(out, `"srs": 21781`) {
		t.Error("geometry fields should use the requested SRS")
	}

	entries, _ := os.ReadDir(cfg.Generation.TempDir)
	if len(entries) != 0 {
		t.Errorf("temporary transfer not removed: %v", entries)
	}
}

func TestGenerateConfigRequiresSource(t *testing.T) {
	setupTest(t)

	if _, err := generateConfig(context.Background(), generateFlags{}); err == nil {
		t.Error("generateConfig() without --ds and --model should fail")
	}
	if _, err := generateConfig(context.Background(), generateFlags{model: "RoadsExdm2ien.ili"}); err == nil {
		t.Error("generateConfig() with an .ili model should fail")
	}
}

func TestGenerateVRTFromConfigFile(t *testing.T) {
	setupTest(t)
	ctx := context.Background()

	doc, err := generateConfig(ctx, generateFlags{model: testModel})
	if err != nil {
		t.Fatalf("generateConfig() error = %v", err)
	}
	path := filepath.Join(t.TempDir(), "roads.json")
	if err := writeOutput(nil, path, doc); err != nil {
		t.Fatalf("writeOutput() error = %v", err)
	}

	vrt, err := generateVRT(ctx, generateFlags{ds: "roads.xtf," + testModel, config: path})
	if err != nil {
		t.Fatalf("generateVRT() error = %v", err)
	}
	if !strings.Contains(vrt, "<OGRVRTDataSource>") || !strings.Contains(vrt, "roads.xtf") {
		t.Errorf("unexpected VRT:\n%s", vrt)
	}

	reverse, err := generateVRT(ctx, generateFlags{ds: "roads.xtf," + testModel, config: path, reverse: true})
	if err != nil {
		t.Fatalf("generateVRT(reverse) error = %v", err)
	}
	if reverse == vrt {
		t.Error("reverse VRT should differ")
	}

	if _, err := generateVRT(ctx, generateFlags{ds: "roads.xtf", config: "missing.json"}); err == nil {
		t.Error("generateVRT() with a missing config file should fail")
	}

	if _, err := generateVRT(ctx, generateFlags{model: testModel}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("generateVRT() without --ds error = %v, want %v", err, domain.ErrInvalidInput)
	}
}

func TestModelEnums(t *testing.T) {
	setupTest(t)

	out, err := modelEnums(context.Background(), generateFlags{model: testModel})
	if err != nil {
		t.Fatalf("modelEnums() error = %v", err)
	}
	if !strings.Contains(out, `"src_name"`) {
		t.Errorf("enum tables missing src_name:\n%s", out)
	}

	gml, err := modelEnums(context.Background(), generateFlags{model: testModel, gml: true})
	if err != nil {
		t.Fatalf("modelEnums(gml) error = %v", err)
	}
	if !strings.Contains(gml, "<ogr:FeatureCollection") {
		t.Error("GML output should be a feature collection")
	}
}

func TestInspectReport(t *testing.T) {
	dataset := &domain.SourceDataset{
		Format: "ESRI Shapefile",
		Layers: []domain.SourceLayer{{
			Name:         "roads",
			GeometryType: domain.GeometryLineString,
			Fields: []domain.SourceField{
				{Name: "name", Type: "String", Width: 80},
				{Name: "lanes", Type: "Integer", Width: 4},
			},
		}},
	}

	got := inspectReport(dataset)
	for _, want := range []string{
		"Format: ESRI Shapefile\n",
		"Layer name: roads\n",
		"name: String (80)\n",
		"lanes: Integer (4)\n",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("report missing %q:\n%s", want, got)
		}
	}
}

func TestWriteOutput(t *testing.T) {
	var buf bytes.Buffer
	if err := writeOutput(&buf, "", "<doc/>"); err != nil {
		t.Fatalf("writeOutput() error = %v", err)
	}
	if buf.String() != "<doc/>\n" {
		t.Errorf("output = %q", buf.String())
	}
}

func TestIli2pgDryRun(t *testing.T) {
	setupTest(t)
	var buf bytes.Buffer
	cmd := newIli2dbCmd(ili2pgTool)
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{"--ds", "PG:dbname=roads user=ili password=secret", "export", "--dataset", "bern", "out.xtf"})
	dryRun = true
	defer func() { dryRun = false }()

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	want := "java -Djava.net.useSystemProxies=true -jar /opt/ili2pg/ili2pg.jar --export" +
		" --dbdatabase roads --dbusr ili --dbpwd *** --dbschema public --dataset bern" +
		" --modeldir %ILI_FROM_DB;%XTF_DIR;http://models.geo.admin.ch/ out.xtf\n"
	if buf.String() != want {
		t.Errorf("command line =\n%q\nwant\n%q", buf.String(), want)
	}
}

func TestIli2gpkgRequiresDatabase(t *testing.T) {
	setupTest(t)
	cmd := newIli2dbCmd(ili2gpkgTool)
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"schemaimport", "--models", "RoadsExdm2ien"})

	if err := cmd.Execute(); err == nil {
		t.Error("schemaimport without --ds should fail")
	}
}
