package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
)

// cardRenderer rasterizes the synthetic title and credits frames. Both
// are white bold text on black, sized relative to the frame height so
// cards look the same at any export resolution.
type cardRenderer struct {
	font *sfnt.Font
}

func newCardRenderer() (*cardRenderer, error) {
	f, err := opentype.Parse(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("failed to parse embedded font: %w", err)
	}
	return &cardRenderer{font: f}, nil
}

func (c *cardRenderer) newFace(size float64) (font.Face, error) {
	return opentype.NewFace(c.font, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
}

// TitleCard renders the title text centered in the frame, word-wrapped
// inside an 8% padding box.
func (c *cardRenderer) TitleCard(text string, width, height int) (*image.RGBA, error) {
	size := float64(height) / 10
	if size < 16 {
		size = 16
	}
	face, err := c.newFace(size)
	if err != nil {
		return nil, fmt.Errorf("failed to create font face: %w", err)
	}
	defer face.Close()

	img := blackFrame(width, height)

	padX := width * 8 / 100
	lines := wrapText(face, text, width-2*padX)

	metrics := face.Metrics()
	lineHeight := metrics.Height.Ceil()
	ascent := metrics.Ascent.Ceil()
	blockHeight := len(lines) * lineHeight

	y := (height-blockHeight)/2 + ascent
	drawLines(img, face, lines, width, y, lineHeight)
	return img, nil
}

// creditsScroll holds the wrapped credits text and renders one frame
// of the roll at a time.
type creditsScroll struct {
	face       font.Face
	lines      []string
	width      int
	height     int
	lineHeight int
	ascent     int
	padY       int
}

// NewCreditsScroll measures and wraps the credits text once; FrameAt
// then renders each scroll position.
func (c *cardRenderer) NewCreditsScroll(text string, width, height int) (*creditsScroll, error) {
	size := float64(height) / 20
	if size < 12 {
		size = 12
	}
	face, err := c.newFace(size)
	if err != nil {
		return nil, fmt.Errorf("failed to create font face: %w", err)
	}

	padX := width * 8 / 100
	metrics := face.Metrics()

	return &creditsScroll{
		face:       face,
		lines:      wrapText(face, text, width-2*padX),
		width:      width,
		height:     height,
		lineHeight: metrics.Height.Ceil(),
		ascent:     metrics.Ascent.Ceil(),
		padY:       height * 8 / 100,
	}, nil
}

// BlockHeight is the total height of the wrapped text block in pixels.
func (s *creditsScroll) BlockHeight() int {
	return len(s.lines) * s.lineHeight
}

// FrameAt renders the roll at the given fraction of its travel: 0 puts
// the block just below the bottom edge, 1 just above the top edge.
func (s *creditsScroll) FrameAt(fraction float64) *image.RGBA {
	img := blackFrame(s.width, s.height)

	entry := float64(s.height)
	exit := -float64(s.BlockHeight() + s.padY)
	top := entry + (exit-entry)*fraction

	y := int(top) + s.ascent
	for _, line := range s.lines {
		// Cull lines outside the frame.
		if y > -s.lineHeight && y < s.height+s.lineHeight {
			drawCenteredLine(img, s.face, line, s.width, y)
		}
		y += s.lineHeight
	}
	return img
}

func (s *creditsScroll) Close() {
	s.face.Close()
}

func blackFrame(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)
	return img
}

func drawLines(img *image.RGBA, face font.Face, lines []string, width, startY, lineHeight int) {
	y := startY
	for _, line := range lines {
		drawCenteredLine(img, face, line, width, y)
		y += lineHeight
	}
}

func drawCenteredLine(img *image.RGBA, face font.Face, line string, width, y int) {
	if line == "" {
		return
	}
	lineWidth := font.MeasureString(face, line).Ceil()
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.White),
		Face: face,
		Dot:  fixed.P((width-lineWidth)/2, y),
	}
	d.DrawString(line)
}

// wrapText greedily wraps each input line to maxWidth. Blank lines are
// preserved; a single word wider than maxWidth gets a line of its own.
func wrapText(face font.Face, text string, maxWidth int) []string {
	var wrapped []string
	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		words := strings.Fields(line)
		if len(words) == 0 {
			wrapped = append(wrapped, "")
			continue
		}

		current := words[0]
		for _, word := range words[1:] {
			candidate := current + " " + word
			if font.MeasureString(face, candidate).Ceil() <= maxWidth {
				current = candidate
				continue
			}
			wrapped = append(wrapped, current)
			current = word
		}
		wrapped = append(wrapped, current)
	}
	return wrapped
}
