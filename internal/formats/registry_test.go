package formats

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sourcepole/qgis-interlis-plugin/internal/domain"
)

func TestRegistryGet(t *testing.T) {
	r := NewRegistry()

	pg := r.Get(domain.FormatPostgreSQL)
	assert.Same(t, pg, r.Get(domain.FormatPostgreSQL), "handlers are created once per registry")
	assert.IsType(t, &postgresHandler{}, pg)
	assert.IsType(t, &spatialiteHandler{}, r.Get(domain.FormatSQLite))
	assert.IsType(t, &interlisHandler{}, r.Get(domain.FormatInterlis1))
	assert.IsType(t, &interlisHandler{}, r.Get(domain.FormatInterlis2))
	assert.IsType(t, &geojsonHandler{}, r.Get(domain.FormatGeoJSON))

	fallback := r.Get("MapInfo File")
	assert.IsType(t, &defaultHandler{}, fallback)
	assert.Equal(t, "MapInfo File", fallback.Format())
}

func TestRegistryIsolation(t *testing.T) {
	a, b := NewRegistry(), NewRegistry()

	a.Get("").ShortenName("x.y", "enum", ".")
	a.Get("").ShortenName("x.y", "enum", ".")

	assert.Equal(t, "enum0_y", b.Get("").ShortenName("x.y", "enum", "."))
	assert.Equal(t, "enum2_y", a.Get("").ShortenName("x.y", "enum", "."))
}

func TestRegistryResetSequence(t *testing.T) {
	r := NewRegistry()
	pg := r.Get(domain.FormatPostgreSQL)
	pg.ShortenName("a.b", "n", ".")
	ili := r.Get(domain.FormatInterlis2)
	ili.ShortenName("a.b", "enum", ".")

	r.ResetSequence()

	assert.Equal(t, "n0_b", pg.ShortenName("a.b", "n", "."))
	assert.Equal(t, "enum0_b", ili.ShortenName("a.b", "enum", "."))
}

type upperHandler struct {
	defaultHandler
}

func (h *upperHandler) LaunderName(name string) string { return "X_" + Launder(name) }

func TestRegistryRegister(t *testing.T) {
	r := NewRegistry()
	r.Register("Custom", func(f string) Handler { return &upperHandler{defaultHandler{format: f}} })

	assert.Equal(t, "X_a_b", r.Get("Custom").LaunderName("A.B"))
	assert.Contains(t, r.Formats(), "Custom")
	assert.NotContains(t, r.Formats(), "")
}
