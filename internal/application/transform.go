package application

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/sourcepole/qgis-interlis-plugin/internal/domain"
	"github.com/sourcepole/qgis-interlis-plugin/internal/ilismeta"
	"github.com/sourcepole/qgis-interlis-plugin/internal/ogrconfig"
	"github.com/sourcepole/qgis-interlis-plugin/internal/ports/input"
	"github.com/sourcepole/qgis-interlis-plugin/internal/ports/output"
)

// Generation kinds used for metrics.
const (
	KindConfig     = "config"
	KindVRT        = "vrt"
	KindReverseVRT = "reverse_vrt"
	KindEnums      = "enums"
	KindTransfer   = "transfer"
)

// TransformConfig holds the generation defaults.
type TransformConfig struct {
	DefaultDstFormat string
	DefaultSRS       int
	TempDir          string // os.TempDir() when empty
	StrictNames      bool
}

// TransformService generates mapping documents, VRTs, enum tables and
// empty transfers for registered model files.
type TransformService struct {
	registry  *ModelRegistry
	inspector output.SourceInspector
	metrics   output.MetricsCollector
	logger    *slog.Logger
	config    TransformConfig
}

// NewTransformService creates a new transform service.
func NewTransformService(
	registry *ModelRegistry,
	inspector output.SourceInspector,
	metrics output.MetricsCollector,
	logger *slog.Logger,
	config TransformConfig,
) *TransformService {
	return &TransformService{
		registry:  registry,
		inspector: inspector,
		metrics:   metrics,
		logger:    logger,
		config:    config,
	}
}

// GenerateConfig returns the mapping document for req.DS read with the
// model file modelID. An empty DS maps the model itself through an empty
// transfer.
func (s *TransformService) GenerateConfig(ctx context.Context, modelID string, req input.GenerateRequest) (out string, err error) {
	defer s.observe(KindConfig, time.Now(), &err)

	cfg, cleanup, err := s.generate(ctx, modelID, req)
	if err != nil {
		return "", err
	}
	defer cleanup()
	return cfg.JSON()
}

// GenerateVRT generates a mapping document and renders it as VRT. The VRT
// references req.DS, so a data source is required.
func (s *TransformService) GenerateVRT(ctx context.Context, modelID string, req input.GenerateRequest, reverse bool) (out string, err error) {
	kind := KindVRT
	if reverse {
		kind = KindReverseVRT
	}
	defer s.observe(kind, time.Now(), &err)

	if req.DS == "" {
		if _, _, err := s.registry.Graph(modelID); err != nil {
			return "", err
		}
		return "", fmt.Errorf("%w: a VRT needs a data source", domain.ErrInvalidInput)
	}

	cfg, cleanup, err := s.generate(ctx, modelID, req)
	if err != nil {
		return "", err
	}
	defer cleanup()
	return renderVRT(cfg, reverse)
}

// VRTFromConfig renders a supplied mapping document for ds.
func (s *TransformService) VRTFromConfig(_ context.Context, ds string, config []byte, reverse bool) (out string, err error) {
	kind := KindVRT
	if reverse {
		kind = KindReverseVRT
	}
	defer s.observe(kind, time.Now(), &err)

	if ds == "" {
		return "", fmt.Errorf("%w: missing data source", domain.ErrInvalidInput)
	}
	cfg := ogrconfig.New(ds, ogrconfig.WithLogger(s.logger))
	if err := cfg.LoadBytes(config); err != nil {
		return "", err
	}
	return renderVRT(cfg, reverse)
}

// Enums returns the enum tables of a model keyed by destination name. The
// model is mapped through an empty transfer for the default format.
func (s *TransformService) Enums(ctx context.Context, modelID string) (out *orderedmap.OrderedMap[string, *domain.EnumMapping], err error) {
	defer s.observe(KindEnums, time.Now(), &err)

	cfg, cleanup, err := s.generate(ctx, modelID, input.GenerateRequest{})
	if err != nil {
		return nil, err
	}
	defer cleanup()

	if enums := cfg.Document().Enums; enums != nil {
		return enums, nil
	}
	return orderedmap.New[string, *domain.EnumMapping](), nil
}

// EnumsGML returns the enumerations of a model as a GML feature collection.
func (s *TransformService) EnumsGML(_ context.Context, modelID string) (out string, err error) {
	defer s.observe(KindEnums, time.Now(), &err)

	_, graph, err := s.registry.Graph(modelID)
	if err != nil {
		return "", err
	}
	return ilismeta.ExtractEnumsAsGML(graph)
}

// EmptyTransfer returns an INTERLIS 2.3 transfer without data.
func (s *TransformService) EmptyTransfer(_ context.Context, modelID string) (out string, err error) {
	defer s.observe(KindTransfer, time.Now(), &err)

	_, graph, err := s.registry.Graph(modelID)
	if err != nil {
		return "", err
	}
	return ilismeta.GenEmptyTransfer(graph)
}

// generate builds a mapping document. The returned cleanup removes any
// temporary transfer and must always be called.
func (s *TransformService) generate(ctx context.Context, modelID string, req input.GenerateRequest) (*ogrconfig.Config, func(), error) {
	file, graph, err := s.registry.Graph(modelID)
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {}
	ds := req.DS
	if ds == "" {
		tmp, err := ilismeta.GenEmptyTransferFile(graph, s.config.TempDir)
		if err != nil {
			return nil, nil, err
		}
		cleanup = func() {
			if err := os.Remove(tmp); err != nil && !os.IsNotExist(err) {
				s.logger.Warn("failed to remove temporary transfer", "path", tmp, "error", err)
			}
		}
		ds = tmp
	}

	cfg := ogrconfig.New(ds,
		ogrconfig.WithModel(file.Path),
		ogrconfig.WithInspector(s.inspector),
		ogrconfig.WithLogger(s.logger),
	)

	dstFormat := req.DstFormat
	if dstFormat == "" {
		dstFormat = s.config.DefaultDstFormat
	}
	srs := req.SRS
	if srs == 0 {
		srs = s.config.DefaultSRS
	}

	if _, err := cfg.GenerateConfig(ctx, dstFormat, ogrconfig.GenerateOptions{
		Layers:      req.Layers,
		SRS:         srs,
		StrictNames: s.config.StrictNames,
	}); err != nil {
		cleanup()
		return nil, nil, err
	}
	return cfg, cleanup, nil
}

func renderVRT(cfg *ogrconfig.Config, reverse bool) (string, error) {
	if reverse {
		return cfg.GenerateReverseVRT()
	}
	return cfg.GenerateVRT()
}

func (s *TransformService) observe(kind string, start time.Time, err *error) {
	s.metrics.IncGenerationCount(kind, *err == nil)
	s.metrics.ObserveGenerationDuration(kind, time.Since(start))
	if *err != nil {
		s.logger.Debug("generation failed", "kind", kind, "error", *err)
	}
}
