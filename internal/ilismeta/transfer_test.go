package ilismeta

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sourcepole/qgis-interlis-plugin/internal/domain"
)

func TestGenEmptyTransfer(t *testing.T) {
	g, err := ParseFile("testdata/Beispiel.imd")
	require.NoError(t, err)

	transfer, err := GenEmptyTransfer(g)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(transfer, `<?xml version="1.0" encoding="UTF-8"?>`))
	assert.Contains(t, transfer, `<TRANSFER xmlns="http://www.interlis.ch/INTERLIS2.3">`)
	assert.Contains(t, transfer, `<MODEL NAME="Beispiel">`)
	assert.Contains(t, transfer, `VERSION="2.3"`)
	assert.Contains(t, transfer, `<DATASECTION></DATASECTION>`)
	assert.NotContains(t, transfer, `NAME="INTERLIS"`)
}

func TestGenEmptyTransfer_VersionAndURI(t *testing.T) {
	g, err := ParseFile("testdata/RoadsExdm2ien.imd")
	require.NoError(t, err)

	transfer, err := GenEmptyTransfer(g)
	require.NoError(t, err)

	assert.Contains(t, transfer, `<MODEL NAME="RoadsExdm2ben" VERSION="2005-05-05" URI="http://www.interlis.ch/models">`)
	assert.Contains(t, transfer, `<MODEL NAME="RoadsExdm2ien"`)
	assert.Less(t, strings.Index(transfer, "RoadsExdm2ben"), strings.Index(transfer, "RoadsExdm2ien"))
}

func TestGenEmptyTransfer_EmptyModel(t *testing.T) {
	g := domain.NewModelGraph("Empty.imd")
	g.AddModel(&domain.Model{Name: "Empty"})

	_, err := GenEmptyTransfer(g)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrEmptyModel)

	_, err = GenEmptyTransferFile(g, t.TempDir())
	assert.ErrorIs(t, err, domain.ErrEmptyModel)
}

func TestGenEmptyTransferFile(t *testing.T) {
	g, err := ParseFile("testdata/Beispiel.imd")
	require.NoError(t, err)

	dir := t.TempDir()
	path, err := GenEmptyTransferFile(g, dir)
	require.NoError(t, err)

	assert.Equal(t, dir, filepath.Dir(path))
	assert.Equal(t, ".xtf", filepath.Ext(path))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), `<MODEL NAME="Beispiel">`)

	model, err := DetectModel(path)
	require.NoError(t, err)
	assert.Equal(t, "Beispiel", model)
}

func TestDetectModel(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
		return p
	}

	tests := []struct {
		name    string
		path    string
		want    string
		wantErr bool
	}{
		{
			name: "xtf header",
			path: write("roads.xtf", `<?xml version="1.0"?><TRANSFER xmlns="http://www.interlis.ch/INTERLIS2.3">
<HEADERSECTION VERSION="2.3"><MODELS><MODEL NAME="RoadsExdm2ien" VERSION="2005-05-05"/></MODELS></HEADERSECTION>
<DATASECTION><RoadsExdm2ien.RoadsExtended BID="b1"/></DATASECTION></TRANSFER>`),
			want: "RoadsExdm2ien",
		},
		{
			name: "itf header",
			path: write("av.itf", "SCNT\nAmtliche Vermessung\n////\nMTID INTERLIS1\nMODL DM01AVCH24D\nTOPI FixpunkteKategorie1\n"),
			want: "DM01AVCH24D",
		},
		{
			name:    "no model",
			path:    write("empty.xtf", `<TRANSFER><HEADERSECTION/><DATASECTION/></TRANSFER>`),
			wantErr: true,
		},
		{
			name:    "missing file",
			path:    filepath.Join(dir, "missing.xtf"),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DetectModel(tt.path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
