package chart

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"runtime"

	"github.com/fogleman/gg"
)

// Layout constants, rendered at 2x scale so the PNGs stay sharp.
const (
	titleFontSz  = 30
	labelFontSz  = 22
	titlePadding = 80
	axisPadding  = 90
	barGapRatio  = 0.35
	legendSwatch = 22
)

// Light theme colors
var (
	bgColor     = color.RGBA{R: 245, G: 247, B: 250, A: 255}
	titleColor  = color.RGBA{R: 30, G: 41, B: 59, A: 255}
	textColor   = color.RGBA{R: 75, G: 85, B: 99, A: 255}
	gridColor   = color.RGBA{R: 203, G: 213, B: 225, A: 255}
	barFill     = color.RGBA{R: 75, G: 192, B: 192, A: 51}
	barStroke   = color.RGBA{R: 75, G: 192, B: 192, A: 255}
	sliceFill   = []color.RGBA{{R: 255, G: 99, B: 132, A: 51}, {R: 54, G: 162, B: 235, A: 51}, {R: 255, G: 206, B: 86, A: 51}}
	sliceStroke = []color.RGBA{{R: 255, G: 99, B: 132, A: 255}, {R: 54, G: 162, B: 235, A: 255}, {R: 255, G: 206, B: 86, A: 255}}
)

// fontPaths lists TrueType files to try per platform, regular then bold.
var fontPaths = map[string][2][]string{
	"windows": {
		{`C:\Windows\Fonts\arial.ttf`, `C:\Windows\Fonts\segoeui.ttf`},
		{`C:\Windows\Fonts\arialbd.ttf`, `C:\Windows\Fonts\segoeuib.ttf`},
	},
	"linux": {
		{"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf", "/usr/share/fonts/TTF/DejaVuSans.ttf"},
		{"/usr/share/fonts/truetype/dejavu/DejaVuSans-Bold.ttf", "/usr/share/fonts/TTF/DejaVuSans-Bold.ttf"},
	},
}

// findFont returns the first installed font for this platform, or "" when
// there is none.
func findFont(bold bool) string {
	weight := 0
	if bold {
		weight = 1
	}
	for _, path := range fontPaths[runtime.GOOS][weight] {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// useFont switches dc to a TrueType face. Without one installed gg keeps
// its built-in bitmap face, which is good enough for a chart.
func useFont(dc *gg.Context, bold bool, size float64) {
	if path := findFont(bold); path != "" {
		_ = dc.LoadFontFace(path, size)
	}
}

func drawTitle(dc *gg.Context, title string, width float64) {
	useFont(dc, true, titleFontSz)
	dc.SetColor(titleColor)
	dc.DrawStringAnchored(title, width/2, titlePadding/2, 0.5, 0.5)
}

func renderBar(c *Chart) ([]byte, error) {
	w, h := float64(c.width), float64(c.height)
	dc := gg.NewContext(c.width, c.height)
	dc.SetColor(bgColor)
	dc.Clear()

	drawTitle(dc, c.title, w)

	plotX, plotY := float64(axisPadding), float64(titlePadding)
	plotW, plotH := w-plotX-40, h-plotY-axisPadding

	maxV := 0.0
	for _, v := range c.values {
		maxV = math.Max(maxV, v)
	}
	ticks := niceCeil(maxV)

	// Grid and y labels, beginning at zero
	useFont(dc, false, labelFontSz)
	dc.SetLineWidth(1)
	for i := 0; i <= 4; i++ {
		y := plotY + plotH - plotH*float64(i)/4
		dc.SetColor(gridColor)
		dc.DrawLine(plotX, y, plotX+plotW, y)
		dc.Stroke()
		dc.SetColor(textColor)
		dc.DrawStringAnchored(fmt.Sprintf("%g", ticks*float64(i)/4), plotX-12, y, 1, 0.5)
	}

	if len(c.values) > 0 {
		slot := plotW / float64(len(c.values))
		barW := slot * (1 - barGapRatio)
		for i, v := range c.values {
			bh := 0.0
			if ticks > 0 {
				bh = plotH * v / ticks
			}
			x := plotX + slot*float64(i) + (slot-barW)/2
			y := plotY + plotH - bh

			dc.SetColor(barFill)
			dc.DrawRectangle(x, y, barW, bh)
			dc.Fill()
			dc.SetColor(barStroke)
			dc.SetLineWidth(2)
			dc.DrawRectangle(x, y, barW, bh)
			dc.Stroke()

			dc.SetColor(textColor)
			dc.DrawStringAnchored(c.labels[i], x+barW/2, plotY+plotH+axisPadding/3, 0.5, 0.5)
		}
	}

	return encodeImage(dc.Image())
}

func renderPie(c *Chart) ([]byte, error) {
	w, h := float64(c.width), float64(c.height)
	dc := gg.NewContext(c.width, c.height)
	dc.SetColor(bgColor)
	dc.Clear()

	drawTitle(dc, c.title, w)

	// Legend across the top, as the dashboard shows it
	useFont(dc, false, labelFontSz)
	x := 40.0
	legendY := float64(titlePadding) + 10
	for i, label := range c.labels {
		dc.SetColor(sliceFill[i%len(sliceFill)])
		dc.DrawRectangle(x, legendY, legendSwatch, legendSwatch)
		dc.Fill()
		dc.SetColor(sliceStroke[i%len(sliceStroke)])
		dc.DrawRectangle(x, legendY, legendSwatch, legendSwatch)
		dc.Stroke()
		dc.SetColor(textColor)
		dc.DrawStringAnchored(label, x+legendSwatch+8, legendY+legendSwatch/2, 0, 0.5)
		tw, _ := dc.MeasureString(label)
		x += legendSwatch + 8 + tw + 30
	}

	total := 0.0
	for _, v := range c.values {
		total += v
	}

	cx := w / 2
	cy := legendY + legendSwatch + (h-legendY-legendSwatch)/2
	r := math.Min(w, h-legendY-legendSwatch)/2 - 30

	if total > 0 {
		angle := -math.Pi / 2
		for i, v := range c.values {
			sweep := 2 * math.Pi * v / total
			dc.MoveTo(cx, cy)
			dc.DrawArc(cx, cy, r, angle, angle+sweep)
			dc.ClosePath()
			dc.SetColor(sliceFill[i%len(sliceFill)])
			dc.FillPreserve()
			dc.SetColor(sliceStroke[i%len(sliceStroke)])
			dc.SetLineWidth(2)
			dc.Stroke()
			angle += sweep
		}
	} else {
		dc.SetColor(gridColor)
		dc.DrawCircle(cx, cy, r)
		dc.Stroke()
	}

	return encodeImage(dc.Image())
}

// niceCeil rounds v up to a value that splits evenly into four ticks.
func niceCeil(v float64) float64 {
	if v <= 0 {
		return 4
	}
	return math.Ceil(v/4) * 4
}

func encodeImage(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode PNG: %w", err)
	}
	return buf.Bytes(), nil
}
