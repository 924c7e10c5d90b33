// Package render draws a published arena snapshot as a PNG preview.
package render

import (
	"errors"
	"image"
	"image/color"
	"io"

	"bomb-arena/internal/game"

	"github.com/fogleman/gg"
)

// Cell size bounds in pixels
const (
	MinCellSize     = 4
	MaxCellSize     = 48
	DefaultCellSize = 16
)

// ErrNoSnapshot is returned when there is nothing to draw
var ErrNoSnapshot = errors.New("no snapshot")

// Palette colors per cell value
var palette = map[game.Cell]color.RGBA{
	game.CellEmpty:       {34, 139, 34, 255}, // grass
	game.CellWall:        {90, 90, 100, 255},
	game.CellCrate:       {160, 110, 60, 255},
	game.CellBomb:        {34, 139, 34, 255}, // bomb body is drawn on top
	game.CellExplosion:   {255, 140, 0, 255},
	game.CellPowerupFire: {34, 139, 34, 255},
	game.CellPowerupBomb: {34, 139, 34, 255},
}

// ClampCellSize keeps a requested cell size inside the supported range
func ClampCellSize(px int) int {
	switch {
	case px <= 0:
		return DefaultCellSize
	case px < MinCellSize:
		return MinCellSize
	case px > MaxCellSize:
		return MaxCellSize
	}
	return px
}

// Image draws snap at cellSize pixels per cell
func Image(snap *game.GameSnapshot, cellSize int) (image.Image, error) {
	if snap == nil || snap.Width == 0 || snap.Height == 0 {
		return nil, ErrNoSnapshot
	}
	cs := float64(ClampCellSize(cellSize))
	dc := gg.NewContext(int(cs)*snap.Width, int(cs)*snap.Height)

	for y := 0; y < snap.Height; y++ {
		for x := 0; x < snap.Width; x++ {
			drawCell(dc, snap.At(x, y), float64(x)*cs, float64(y)*cs, cs)
		}
	}

	// Living actors on top, corpses are not drawn
	for _, act := range snap.Actors {
		if !act.Alive {
			continue
		}
		cx := (float64(act.X) + 0.5) * cs
		cy := (float64(act.Y) + 0.5) * cs
		dc.SetColor(color.RGBA{0, 0, 0, 128})
		dc.DrawCircle(cx, cy+cs*0.08, cs*0.38)
		dc.Fill()
		dc.SetColor(parseHexColor(act.Color))
		dc.DrawCircle(cx, cy, cs*0.35)
		dc.Fill()
	}
	return dc.Image(), nil
}

// EncodePNG draws snap and writes it to w as PNG
func EncodePNG(w io.Writer, snap *game.GameSnapshot, cellSize int) error {
	img, err := Image(snap, cellSize)
	if err != nil {
		return err
	}
	return gg.NewContextForImage(img).EncodePNG(w)
}

func drawCell(dc *gg.Context, c game.Cell, x, y, cs float64) {
	base, ok := palette[c]
	if !ok {
		base = color.RGBA{255, 0, 255, 255}
	}
	dc.SetColor(base)
	dc.DrawRectangle(x, y, cs, cs)
	dc.Fill()

	switch c {
	case game.CellCrate:
		dc.SetColor(color.RGBA{110, 70, 30, 255})
		dc.SetLineWidth(1)
		dc.DrawRectangle(x+1, y+1, cs-2, cs-2)
		dc.Stroke()
	case game.CellBomb:
		dc.SetColor(color.RGBA{20, 20, 20, 255})
		dc.DrawCircle(x+cs/2, y+cs/2, cs*0.3)
		dc.Fill()
	case game.CellExplosion:
		dc.SetColor(color.RGBA{255, 230, 90, 255})
		dc.DrawCircle(x+cs/2, y+cs/2, cs*0.25)
		dc.Fill()
	case game.CellPowerupFire:
		dc.SetColor(color.RGBA{220, 40, 40, 255})
		dc.DrawRoundedRectangle(x+cs*0.2, y+cs*0.2, cs*0.6, cs*0.6, cs*0.1)
		dc.Fill()
	case game.CellPowerupBomb:
		dc.SetColor(color.RGBA{40, 80, 220, 255})
		dc.DrawRoundedRectangle(x+cs*0.2, y+cs*0.2, cs*0.6, cs*0.6, cs*0.1)
		dc.Fill()
	}
}

// parseHexColor accepts #rrggbb and #rgb; anything else renders white
func parseHexColor(hex string) color.RGBA {
	switch {
	case len(hex) == 7 && hex[0] == '#':
		return color.RGBA{
			R: hexToByte(hex[1], hex[2]),
			G: hexToByte(hex[3], hex[4]),
			B: hexToByte(hex[5], hex[6]),
			A: 255,
		}
	case len(hex) == 4 && hex[0] == '#':
		return color.RGBA{
			R: hexToByte(hex[1], hex[1]),
			G: hexToByte(hex[2], hex[2]),
			B: hexToByte(hex[3], hex[3]),
			A: 255,
		}
	}
	return color.RGBA{255, 255, 255, 255}
}

func hexToByte(h1, h2 byte) uint8 {
	return hexCharToNibble(h1)<<4 | hexCharToNibble(h2)
}

func hexCharToNibble(c byte) uint8 {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	default:
		return 0
	}
}
