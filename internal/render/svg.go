package render

import (
	"image/color"
	"io"
	"math"
	"sync"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"gonum.org/v1/plot/font"
	"gonum.org/v1/plot/font/liberation"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/vgsvg"
	"go.uber.org/zap"

	"github.com/sells-group/choropleth/internal/choropleth"
	"github.com/sells-group/choropleth/internal/config"
)

const (
	margin       = 10.0
	legendHeight = 44.0
	legendBar    = 8.0
	legendWidth  = 260.0
	tickLength   = 13.0
	labelSize    = 10.0
	titleSize    = 18.0
	descSize     = 10.0
	borderWidth  = 1.0

	legendCaption = "Legend"
)

var legendBackground = color.RGBA{R: 0xee, G: 0xee, B: 0xee, A: 0xff}

// SVGOptions sizes and styles an SVG rendering. Lengths are in points.
type SVGOptions struct {
	Width       float64
	Height      float64
	StrokeColor string
	StrokeWidth float64
	Legend      bool
	Title       string
	Description string
	// Borders is an outline layer, such as state boundaries, stroked
	// unfilled beneath the region fills.
	Borders []choropleth.GeometryRecord
}

// SVGOptionsFrom converts the render config section.
func SVGOptionsFrom(cfg config.RenderConfig) SVGOptions {
	return SVGOptions{
		Width:       cfg.Width,
		Height:      cfg.Height,
		StrokeColor: cfg.StrokeColor,
		StrokeWidth: cfg.StrokeWidth,
		Legend:      cfg.Legend,
		Title:       cfg.Title,
		Description: cfg.Description,
	}
}

// projection maps geometry coordinates onto the canvas. Geographic
// coordinates get their longitude scaled by cos(mid latitude).
type projection struct {
	minX, minY float64
	kx         float64
	scale      float64
	offX, offY float64
}

func newProjection(b *geom.Bounds, x0, y0, w, h float64) projection {
	p := projection{minX: b.Min(0), minY: b.Min(1), kx: 1}
	if b.Min(0) >= -180 && b.Max(0) <= 180 && b.Min(1) >= -90 && b.Max(1) <= 90 {
		p.kx = math.Cos((b.Min(1) + b.Max(1)) / 2 * math.Pi / 180)
	}
	dx := (b.Max(0) - b.Min(0)) * p.kx
	dy := b.Max(1) - b.Min(1)
	switch {
	case dx > 0 && dy > 0:
		p.scale = math.Min(w/dx, h/dy)
	case dx > 0:
		p.scale = w / dx
	case dy > 0:
		p.scale = h / dy
	default:
		p.scale = 1
	}
	p.offX = x0 + (w-dx*p.scale)/2
	p.offY = y0 + (h-dy*p.scale)/2
	return p
}

func (p projection) point(x, y float64) vg.Point {
	return vg.Point{
		X: vg.Length(p.offX + (x-p.minX)*p.kx*p.scale),
		Y: vg.Length(p.offY + (y-p.minY)*p.scale),
	}
}

// SVG draws the border layer, then every region filled with its bucket
// colour, then the heading and, when enabled, a legend colour bar laid out
// linearly over the statistic extent.
func SVG(w io.Writer, m *choropleth.Map, opts SVGOptions) error {
	if opts.Width <= 0 || opts.Height <= 0 {
		return eris.Errorf("render: invalid svg size %vx%v", opts.Width, opts.Height)
	}
	stroke, err := ParseHexColor(opts.StrokeColor)
	if err != nil && opts.StrokeWidth > 0 {
		return err
	}

	c := vgsvg.New(vg.Length(opts.Width), vg.Length(opts.Height))

	mapY := margin
	if opts.Legend {
		mapY += legendHeight
	}
	mapH := opts.Height - mapY - margin - headingHeight(opts)

	bounds := geom.NewBounds(geom.XY)
	var drawn, borders int
	for _, r := range m.Regions {
		if r.Geometry != nil {
			bounds.Extend(r.Geometry)
		}
	}
	for _, b := range opts.Borders {
		if b.Geometry != nil {
			bounds.Extend(b.Geometry)
		}
	}
	if !bounds.IsEmpty() && mapH > 0 {
		proj := newProjection(bounds, margin, mapY, opts.Width-2*margin, mapH)

		c.SetLineWidth(vg.Length(borderWidth))
		c.SetColor(color.Black)
		for _, b := range opts.Borders {
			path := regionPath(b.Geometry, proj)
			if len(path) == 0 {
				continue
			}
			c.Stroke(path)
			borders++
		}

		for _, r := range m.Regions {
			path := regionPath(r.Geometry, proj)
			if len(path) == 0 {
				continue
			}
			fill, err := ParseHexColor(r.Color)
			if err != nil {
				return eris.Wrapf(err, "render: region %s", r.RegionKey)
			}
			c.SetColor(fill)
			c.Fill(path)
			if opts.StrokeWidth > 0 {
				c.SetLineWidth(vg.Length(opts.StrokeWidth))
				c.SetColor(stroke)
				c.Stroke(path)
			}
			drawn++
		}
	}
	zap.L().Debug("render: svg regions drawn",
		zap.Int("drawn", drawn),
		zap.Int("regions", len(m.Regions)),
		zap.Int("borders", borders),
	)

	drawHeading(c, opts)

	if opts.Legend && len(m.Legend) > 0 {
		if err := drawLegend(c, m, opts); err != nil {
			return err
		}
	}

	if _, err := c.WriteTo(w); err != nil {
		return eris.Wrap(err, "render: write svg")
	}
	return nil
}

// regionPath traces every ring of a polygonal geometry. Other geometry types
// have no area to fill and produce an empty path.
func regionPath(g geom.T, proj projection) vg.Path {
	var path vg.Path
	var addPolygon func(p *geom.Polygon)
	addPolygon = func(p *geom.Polygon) {
		for i := 0; i < p.NumLinearRings(); i++ {
			ring := p.LinearRing(i)
			flat, stride := ring.FlatCoords(), ring.Stride()
			if len(flat) < 3*stride {
				continue
			}
			for j := 0; j+1 < len(flat); j += stride {
				pt := proj.point(flat[j], flat[j+1])
				if j == 0 {
					path.Move(pt)
				} else {
					path.Line(pt)
				}
			}
			path.Close()
		}
	}

	switch v := g.(type) {
	case *geom.Polygon:
		addPolygon(v)
	case *geom.MultiPolygon:
		for i := 0; i < v.NumPolygons(); i++ {
			addPolygon(v.Polygon(i))
		}
	case *geom.GeometryCollection:
		for _, child := range v.Geoms() {
			path = append(path, regionPath(child, proj)...)
		}
	}
	return path
}

var fontCache = sync.OnceValue(func() *font.Cache {
	return font.NewCache(liberation.Collection())
})

func faceOf(size float64) font.Face {
	return fontCache().Lookup(font.Font{Typeface: "Liberation", Variant: "Sans"}, vg.Points(size))
}

func labelFace() font.Face {
	return faceOf(labelSize)
}

// headingHeight is the space reserved at the top for title and description.
func headingHeight(opts SVGOptions) float64 {
	var h float64
	if opts.Title != "" {
		h += titleSize + 6
	}
	if opts.Description != "" {
		h += descSize + 6
	}
	return h
}

// drawHeading writes the title and description centred at the top.
func drawHeading(c *vgsvg.Canvas, opts SVGOptions) {
	c.SetColor(color.Black)
	y := opts.Height - margin
	for _, line := range []struct {
		text string
		size float64
	}{{opts.Title, titleSize}, {opts.Description, descSize}} {
		if line.text == "" {
			continue
		}
		face := faceOf(line.size)
		y -= line.size
		x := (vg.Length(opts.Width) - face.Width(line.text)) / 2
		c.FillString(face, vg.Point{X: x, Y: vg.Length(y)}, line.text)
		y -= 6
	}
}

// drawLegend lays the buckets out along a bar spanning [Min, Max], with a
// tick and percentage label at each boundary.
func drawLegend(c *vgsvg.Canvas, m *choropleth.Map, opts SVGOptions) error {
	if m.Scale == nil {
		return nil
	}
	width := math.Min(legendWidth, opts.Width-2*margin)
	x0 := opts.Width - margin - width
	barTop := margin + legendHeight - labelSize - 4
	barBottom := barTop - legendBar

	box := vg.Rectangle{
		Min: vg.Point{X: vg.Length(math.Max(margin/2, x0-2*margin)), Y: vg.Length(margin / 2)},
		Max: vg.Point{X: vg.Length(opts.Width - margin/2), Y: vg.Length(margin + legendHeight)},
	}
	c.SetColor(legendBackground)
	c.Fill(box.Path())
	c.SetColor(color.Black)
	c.SetLineWidth(vg.Points(borderWidth))
	c.Stroke(box.Path())

	caption := labelFace()
	c.FillString(caption, vg.Point{
		X: vg.Length(x0+width/2) - caption.Width(legendCaption)/2,
		Y: vg.Length(barTop) + 2,
	}, legendCaption)

	lo, hi := m.Scale.Min, m.Scale.Max
	x := func(v float64) float64 {
		if hi == lo {
			return x0
		}
		return x0 + (v-lo)/(hi-lo)*width
	}

	for _, b := range m.Legend {
		fill, err := ParseHexColor(b.Color)
		if err != nil {
			return eris.Wrapf(err, "render: legend bucket %d", b.Index)
		}
		rect := vg.Rectangle{
			Min: vg.Point{X: vg.Length(x(b.Low)), Y: vg.Length(barBottom)},
			Max: vg.Point{X: vg.Length(x(b.High)), Y: vg.Length(barTop)},
		}
		c.SetColor(fill)
		c.Fill(rect.Path())
	}

	face := labelFace()
	c.SetColor(color.Black)
	c.SetLineWidth(vg.Points(0.5))
	for _, t := range m.Ticks() {
		tx := vg.Length(x(t))
		var tick vg.Path
		tick.Move(vg.Point{X: tx, Y: vg.Length(barTop)})
		tick.Line(vg.Point{X: tx, Y: vg.Length(barTop - tickLength)})
		c.Stroke(tick)

		label := choropleth.FormatTick(t)
		lw := face.Width(label)
		c.FillString(face, vg.Point{X: tx - lw/2, Y: vg.Length(barTop-tickLength) - vg.Points(labelSize)}, label)
	}
	return nil
}
