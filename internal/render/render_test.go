package render

import (
	"bytes"
	"encoding/json"
	"image/color"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/choropleth/internal/choropleth"
	"github.com/sells-group/choropleth/internal/config"
)

func square(x, y float64) geom.T {
	return geom.NewPolygonFlat(geom.XY, []float64{x, y, x + 1, y, x + 1, y + 1, x, y + 1, x, y}, []int{10})
}

func testMap(t *testing.T) *choropleth.Map {
	t.Helper()
	stats := []choropleth.StatRecord{
		{RegionKey: "01001", Value: 10, DisplayName: "Autauga County", GroupName: "AL"},
		{RegionKey: "01003", Value: 50, DisplayName: "Baldwin County", GroupName: "AL"},
		{RegionKey: "01005", Value: 90, DisplayName: "Barbour County", GroupName: "AL"},
	}
	geoms := []choropleth.GeometryRecord{
		{RegionKey: "01001", Geometry: square(-87, 32)},
		{RegionKey: "01003", Geometry: square(-88, 30)},
		{RegionKey: "01005", Geometry: square(-86, 31)},
		{RegionKey: "02013", Geometry: square(-163, 55)},
		{RegionKey: "99999"},
	}
	m, err := choropleth.Build(stats, geoms, choropleth.DefaultOptions())
	require.NoError(t, err)
	return m
}

func TestParseHexColor(t *testing.T) {
	tests := []struct {
		in      string
		want    color.RGBA
		wantErr bool
	}{
		{"#f7fcfd", color.RGBA{R: 0xf7, G: 0xfc, B: 0xfd, A: 0xff}, false},
		{"00441b", color.RGBA{R: 0x00, G: 0x44, B: 0x1b, A: 0xff}, false},
		{"#fff", color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}, false},
		{"#12345", color.RGBA{}, true},
		{"#gggggg", color.RGBA{}, true},
		{"", color.RGBA{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseHexColor(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGeoJSON(t *testing.T) {
	data, err := GeoJSON(testMap(t))
	require.NoError(t, err)

	var fc struct {
		Type     string `json:"type"`
		Features []struct {
			ID         string         `json:"id"`
			Properties map[string]any `json:"properties"`
			Geometry   struct {
				Type string `json:"type"`
			} `json:"geometry"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(data, &fc))
	assert.Equal(t, "FeatureCollection", fc.Type)
	require.Len(t, fc.Features, 4, "region without geometry is not emitted")

	first := fc.Features[0]
	assert.Equal(t, "01001", first.ID)
	assert.Equal(t, "Polygon", first.Geometry.Type)
	assert.Equal(t, choropleth.BuGn9[0], first.Properties["fill"])
	assert.Equal(t, 0.0, first.Properties["bucket"])
	assert.Equal(t, 10.0, first.Properties["value"])
	assert.Equal(t, "Autauga County", first.Properties["name"])
	assert.Equal(t, "AL", first.Properties["group"])
	assert.Equal(t, "Autauga County, AL: 10%", first.Properties["tooltip"])

	nodata := fc.Features[3]
	assert.Equal(t, "02013", nodata.ID)
	assert.Nil(t, nodata.Properties["value"])
	assert.Equal(t, -1.0, nodata.Properties["bucket"])
	assert.Equal(t, choropleth.DefaultNoDataColor, nodata.Properties["fill"])
	assert.Equal(t, "02013: no data", nodata.Properties["tooltip"])
}

func TestSVG(t *testing.T) {
	var buf bytes.Buffer
	opts := SVGOptionsFrom(config.RenderConfig{Width: 480, Height: 300, StrokeColor: "#ffffff", StrokeWidth: 0.5, Legend: true})
	require.NoError(t, SVG(&buf, testMap(t), opts))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "<?xml"))
	assert.Contains(t, out, "<svg")
	assert.Contains(t, out, "</svg>")
	assert.Contains(t, out, strings.ToUpper(choropleth.BuGn9[0]))
	assert.Contains(t, out, strings.ToUpper(choropleth.BuGn9[8]))
	assert.Contains(t, out, strings.ToUpper(choropleth.DefaultNoDataColor))
	assert.Contains(t, out, ">19%</text>", "tick label at the first boundary")
}

func TestSVG_NoLegend(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, SVG(&buf, testMap(t), SVGOptions{Width: 200, Height: 100}))
	assert.NotContains(t, buf.String(), "<text")
}

func TestSVG_BordersAndHeading(t *testing.T) {
	opts := SVGOptions{
		Width:       480,
		Height:      320,
		StrokeColor: "#ffffff",
		StrokeWidth: 0.5,
		Title:       "United States Educational Attainment",
		Description: "Adults 25+ with a bachelor's degree",
		Borders: []choropleth.GeometryRecord{
			{RegionKey: "01", Geometry: geom.NewPolygonFlat(geom.XY, []float64{-89, 29, -85, 29, -85, 34, -89, 34, -89, 29}, []int{10})},
			{RegionKey: "02", Geometry: square(-164, 54)},
			{RegionKey: "72"},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, SVG(&buf, testMap(t), opts))
	out := buf.String()

	assert.Equal(t, 2, strings.Count(out, `style="fill:none;stroke:#000000"`), "one unfilled black outline per border geometry")
	assert.Contains(t, out, ">United States Educational Attainment</text>")
	assert.Contains(t, out, ">Adults 25+ with a bachelor&#39;s degree</text>")

	firstBorder := strings.Index(out, `style="fill:none;stroke:#000000"`)
	firstFill := strings.Index(out, "fill:"+strings.ToUpper(choropleth.BuGn9[0]))
	require.Positive(t, firstFill)
	assert.Less(t, firstBorder, firstFill, "borders are drawn beneath the region fills")
}

func TestSVG_LegendCaption(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, SVG(&buf, testMap(t), SVGOptions{Width: 480, Height: 300, Legend: true}))
	out := buf.String()
	assert.Contains(t, out, ">Legend</text>")
	assert.Contains(t, out, "fill:#EEEEEE", "legend background box")
}

func TestSVGOptionsFrom_Heading(t *testing.T) {
	opts := SVGOptionsFrom(config.RenderConfig{Width: 1, Height: 1, Title: "T", Description: "D"})
	assert.Equal(t, "T", opts.Title)
	assert.Equal(t, "D", opts.Description)
	assert.Empty(t, opts.Borders)
	assert.Equal(t, titleSize+descSize+12, headingHeight(opts))
}

func TestSVG_InvalidOptions(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, SVG(&buf, testMap(t), SVGOptions{}))
	assert.Error(t, SVG(&buf, testMap(t), SVGOptions{Width: 10, Height: 10, StrokeWidth: 1, StrokeColor: "white"}))
}

func TestSVG_EmptyMap(t *testing.T) {
	m, err := choropleth.Build(nil, nil, choropleth.DefaultOptions())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, SVG(&buf, m, SVGOptions{Width: 100, Height: 100, Legend: true}))
	assert.Contains(t, buf.String(), "</svg>")
}

func TestProjection_FitsCanvas(t *testing.T) {
	b := geom.NewBounds(geom.XY).Set(-10, 0, 10, 10)
	p := newProjection(b, 0, 0, 100, 100)

	lo := p.point(-10, 0)
	hi := p.point(10, 10)
	assert.GreaterOrEqual(t, float64(lo.X), 0.0)
	assert.LessOrEqual(t, float64(hi.X), 100.0+1e-9)
	assert.LessOrEqual(t, float64(hi.Y), 100.0+1e-9)
	assert.Less(t, float64(lo.Y), float64(hi.Y), "north is up")
}

func TestLegend(t *testing.T) {
	doc := Legend(testMap(t))
	require.Len(t, doc.Buckets, 9)
	require.Len(t, doc.Ticks, 8)
	require.Len(t, doc.TickLabels, 8)
	assert.Equal(t, "19%", doc.TickLabels[0])
	assert.Equal(t, "10% - 19%", doc.Buckets[0].Label)
	assert.Equal(t, 90.0, doc.Buckets[8].High)
	assert.Equal(t, choropleth.DefaultNoDataColor, doc.NoDataColor)
	assert.Equal(t, 3, doc.Summary.Count)
}

func TestLegend_NoStatistics(t *testing.T) {
	m, err := choropleth.Build(nil, []choropleth.GeometryRecord{{RegionKey: "A", Geometry: square(0, 0)}}, choropleth.DefaultOptions())
	require.NoError(t, err)

	doc := Legend(m)
	assert.Empty(t, doc.Buckets)
	assert.NotNil(t, doc.Ticks)
	assert.Empty(t, doc.TickLabels)
}

func TestWriteLegend(t *testing.T) {
	doc := Legend(testMap(t))

	var table bytes.Buffer
	require.NoError(t, WriteLegend(&table, doc, "table"))
	assert.Contains(t, table.String(), "BUCKET")
	assert.Contains(t, table.String(), choropleth.BuGn9[4])
	assert.Contains(t, table.String(), "no data")
	assert.Contains(t, table.String(), "Median:")

	var js bytes.Buffer
	require.NoError(t, WriteLegend(&js, doc, "json"))
	var decoded LegendDoc
	require.NoError(t, json.Unmarshal(js.Bytes(), &decoded))
	assert.Equal(t, doc.TickLabels, decoded.TickLabels)

	var ym bytes.Buffer
	require.NoError(t, WriteLegend(&ym, doc, "yaml"))
	var fromYAML LegendDoc
	require.NoError(t, yaml.Unmarshal(ym.Bytes(), &fromYAML))
	assert.Equal(t, doc.Buckets[3].Color, fromYAML.Buckets[3].Color)

	assert.Error(t, WriteLegend(&js, doc, "xml"))
}
