// Package formats provides per-format naming and creation option rules for
// generated mapping documents.
package formats

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/sourcepole/qgis-interlis-plugin/internal/domain"
	"github.com/sourcepole/qgis-interlis-plugin/internal/ilismeta"
)

const (
	// PostgresMaxIdentifier is the PostgreSQL identifier length limit.
	PostgresMaxIdentifier = 63

	// GeoJSONLayerName is the single layer name of the GeoJSON driver.
	GeoJSONLayerName = "OGRGeoJSON"
)

// Options are ordered OGR creation options.
type Options = orderedmap.OrderedMap[string, string]

// Handler is the capability set of a destination or source format.
type Handler interface {
	// Format returns the OGR driver name the handler was registered for.
	Format() string

	// LaunderName converts a source name into a valid identifier.
	LaunderName(name string) string

	// ShortenName returns prefix<seq>_<last segment of name> and advances
	// the handler's sequence.
	ShortenName(name, prefix, splitchar string) string

	DefaultDSCO() *Options
	DefaultLCO() *Options

	// DetectModel returns the model file of a source, or "" when the format
	// carries no model.
	DetectModel(ds domain.SourceDescriptor) (string, error)

	// ExtractEnums returns the enum tables of a model, or nil when the
	// format has no enumerations.
	ExtractEnums(g *domain.ModelGraph) (*domain.EnumTables, error)

	// LayerName maps a laundered layer name to the name the driver uses.
	LayerName(name string) string

	// ResetSequence restarts the shortening sequence at zero.
	ResetSequence()
}

var nonWord = regexp.MustCompile(`[^a-z0-9_]+`)

// asciiLower lower-cases name and replaces every non-ASCII character
// with '?'.
func asciiLower(name string) string {
	return strings.Map(func(r rune) rune {
		if r > 127 {
			return '?'
		}
		return r
	}, strings.ToLower(name))
}

// Launder applies the default identifier rule: lower-case and every run of
// non-word characters replaced by '_'.
func Launder(name string) string {
	return nonWord.ReplaceAllString(asciiLower(name), "_")
}

// defaultHandler implements the rules shared by all formats.
type defaultHandler struct {
	format string
	seq    int
}

func (h *defaultHandler) Format() string { return h.format }

func (h *defaultHandler) LaunderName(name string) string { return Launder(name) }

func (h *defaultHandler) ShortenName(name, prefix, splitchar string) string {
	seg := name
	if i := strings.LastIndex(name, splitchar); i >= 0 && splitchar != "" {
		seg = name[i+len(splitchar):]
	}
	short := prefix + strconv.Itoa(h.seq) + "_" + seg
	h.seq++
	return short
}

func (h *defaultHandler) DefaultDSCO() *Options { return orderedmap.New[string, string]() }

func (h *defaultHandler) DefaultLCO() *Options { return orderedmap.New[string, string]() }

func (h *defaultHandler) DetectModel(domain.SourceDescriptor) (string, error) { return "", nil }

func (h *defaultHandler) ExtractEnums(*domain.ModelGraph) (*domain.EnumTables, error) {
	return nil, nil
}

func (h *defaultHandler) LayerName(name string) string { return name }

func (h *defaultHandler) ResetSequence() { h.seq = 0 }

// postgresHandler enforces the PostgreSQL identifier limit.
type postgresHandler struct {
	defaultHandler
}

// shortenThreshold leaves room for the "n<seq>_" prefix.
const shortenThreshold = PostgresMaxIdentifier - 7

func (h *postgresHandler) LaunderName(name string) string {
	lower := asciiLower(name)
	if len(lower) > shortenThreshold {
		lower = h.ShortenName(lower, "n", ".")
	}
	laundered := nonWord.ReplaceAllString(lower, "_")
	if len(laundered) > PostgresMaxIdentifier {
		laundered = laundered[:PostgresMaxIdentifier]
	}
	return laundered
}

func (h *postgresHandler) DefaultLCO() *Options {
	lco := orderedmap.New[string, string]()
	lco.Set("SCHEMA", "public")
	return lco
}

type spatialiteHandler struct {
	defaultHandler
}

func (h *spatialiteHandler) DefaultDSCO() *Options {
	dsco := orderedmap.New[string, string]()
	dsco.Set("SPATIALITE", "YES")
	return dsco
}

// interlisHandler keeps model names unchanged and reads enumerations and
// models from IlisMeta documents.
type interlisHandler struct {
	defaultHandler
}

func (h *interlisHandler) LaunderName(name string) string { return name }

func (h *interlisHandler) ExtractEnums(g *domain.ModelGraph) (*domain.EnumTables, error) {
	if g == nil {
		return nil, nil
	}
	return ilismeta.ExtractEnums(g), nil
}

// DetectModel returns the model of ds, or looks up <model>.imd next to the
// transfer file when ds names none.
func (h *interlisHandler) DetectModel(ds domain.SourceDescriptor) (string, error) {
	if ds.Model != "" {
		return ds.Model, nil
	}
	name, err := ilismeta.DetectModel(ds.Path)
	if err != nil {
		return "", err
	}
	path := filepath.Join(filepath.Dir(ds.Path), name+".imd")
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("%w: %s for %s", domain.ErrModelNotFound, name, ds.Path)
	}
	return path, nil
}

type geojsonHandler struct {
	defaultHandler
}

func (h *geojsonHandler) LayerName(string) string { return GeoJSONLayerName }
