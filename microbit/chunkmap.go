package microbit

import (
	"image"
	"image/color"
	"image/draw"
	"io"

	"github.com/disintegration/imaging"
	"github.com/mazznoer/csscolorparser"
	"github.com/nfnt/resize"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	ChunkMapColumns      = 16
	ChunkMapCaptionSpace = 16
)

// Colors for each chunk state in a chunk map, as css color strings
type ChunkMapColors struct {
	Unused       string
	Freed        string
	FileStart    string
	Continuation string
	Orphan       string
	Broken       string
	Unknown      string
	Background   string
	Text         string
}

func DefaultChunkMapColors() ChunkMapColors {
	return ChunkMapColors{
		Unused:       "#202020",
		Freed:        "#606060",
		FileStart:    "#3080ff",
		Continuation: "#70c0ff",
		Orphan:       "#ff8000",
		Broken:       "#ff2020",
		Unknown:      "magenta",
		Background:   "black",
		Text:         "white",
	}
}

func parseColor(css string) (color.NRGBA, error) {
	c, err := csscolorparser.Parse(css)
	if err != nil {
		return color.NRGBA{}, err
	}
	r, g, b, a := c.RGBA255()
	return color.NRGBA{R: r, G: g, B: b, A: a}, nil
}

func (c *ChunkMapColors) palette() (map[ChunkState]color.NRGBA, error) {
	sources := map[ChunkState]string{
		ChunkStateUnused:       c.Unused,
		ChunkStateFreed:        c.Freed,
		ChunkStateFileStart:    c.FileStart,
		ChunkStateContinuation: c.Continuation,
		ChunkStateOrphan:       c.Orphan,
		ChunkStateBroken:       c.Broken,
		ChunkStateUnknown:      c.Unknown,
	}
	result := make(map[ChunkState]color.NRGBA)
	for state, css := range sources {
		col, err := parseColor(css)
		if err != nil {
			return nil, err
		}
		result[state] = col
	}
	return result, nil
}

// Draw the chunk region as a grid, one cell per chunk (ChunkMapColumns per
// row), each cell scale pixels square. A non-empty caption is written above.
func RenderChunkMap(scan *ChunkScan, colors ChunkMapColors, scale int, caption string) (image.Image, error) {
	palette, err := colors.palette()
	if err != nil {
		return nil, err
	}
	background, err := parseColor(colors.Background)
	if err != nil {
		return nil, err
	}
	textColor, err := parseColor(colors.Text)
	if err != nil {
		return nil, err
	}
	if scale < 1 {
		scale = 1
	}
	count := len(scan.States) - 1
	rows := max(1, (count+ChunkMapColumns-1)/ChunkMapColumns)
	cells := image.NewNRGBA(image.Rect(0, 0, ChunkMapColumns, rows))
	draw.Draw(cells, cells.Bounds(), image.NewUniform(background), image.Point{}, draw.Src)
	for i := 1; i <= count; i++ {
		cells.SetNRGBA((i-1)%ChunkMapColumns, (i-1)/ChunkMapColumns, palette[scan.States[i]])
	}
	scaled := resize.Resize(uint(ChunkMapColumns*scale), uint(rows*scale), cells, resize.NearestNeighbor)
	if caption == "" {
		return scaled, nil
	}

	face := basicfont.Face7x13
	width := max(ChunkMapColumns*scale, font.MeasureString(face, caption).Ceil()+4)
	canvas := image.NewNRGBA(image.Rect(0, 0, width, rows*scale+ChunkMapCaptionSpace))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(background), image.Point{}, draw.Src)
	draw.Draw(canvas, scaled.Bounds().Add(image.Pt(0, ChunkMapCaptionSpace)), scaled, scaled.Bounds().Min, draw.Src)
	drawer := font.Drawer{
		Dst:  canvas,
		Src:  image.NewUniform(textColor),
		Face: face,
		Dot:  fixed.P(2, face.Ascent+1),
	}
	drawer.DrawString(caption)
	return canvas, nil
}

// Encode a chunk map in the given format (png, gif, jpg, bmp, tif)
func WriteChunkMap(img image.Image, format string, writer io.Writer) error {
	f, err := imaging.FormatFromExtension(format)
	if err != nil {
		return err
	}
	return imaging.Encode(writer, img, f)
}
