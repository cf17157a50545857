package glyph

import (
	"codeberg.org/miketth/xkbtray/pkg/xkbtray"
	"fmt"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
	"image"
	"image/color"
	"image/draw"
	"strings"
	"sync"
)

// MaxLabelRunes is the longest label drawn; longer labels keep their
// leading runes.
const MaxLabelRunes = 4

type Options struct {
	Size       int
	FontSize   float64
	DPI        float64
	Background color.RGBA
	Foreground color.RGBA
}

func DefaultOptions() Options {
	return Options{
		Size:       24,
		FontSize:   16,
		DPI:        72,
		Background: color.RGBA{R: 35, G: 35, B: 35, A: 255},
		Foreground: color.RGBA{R: 255, G: 255, B: 255, A: 255},
	}
}

// Render draws label with a fresh face. Identical inputs give identical
// pixels.
func Render(label string, f *Font, opts Options) (*xkbtray.Bitmap, error) {
	face, err := f.Face(opts)
	if err != nil {
		return nil, err
	}
	defer face.Close()

	return rasterize(label, face, opts), nil
}

// Renderer renders labels with one face and keeps recent results.
type Renderer struct {
	opts  Options
	mu    sync.Mutex
	face  font.Face
	cache *lru.Cache[string, *xkbtray.Bitmap]
}

func NewRenderer(f *Font, opts Options, cacheSize int) (*Renderer, error) {
	if opts.Size <= 0 {
		return nil, fmt.Errorf("invalid canvas size %d", opts.Size)
	}
	if cacheSize <= 0 {
		cacheSize = 16
	}

	face, err := f.Face(opts)
	if err != nil {
		return nil, err
	}

	cache, err := lru.New[string, *xkbtray.Bitmap](cacheSize)
	if err != nil {
		face.Close()
		return nil, fmt.Errorf("create glyph cache: %w", err)
	}

	return &Renderer{opts: opts, face: face, cache: cache}, nil
}

func (r *Renderer) Render(label string) *xkbtray.Bitmap {
	r.mu.Lock()
	defer r.mu.Unlock()

	if bitmap, ok := r.cache.Get(label); ok {
		return bitmap
	}

	bitmap := rasterize(label, r.face, r.opts)
	r.cache.Add(label, bitmap)
	return bitmap
}

// Fit returns the part of label that Render actually draws.
func (r *Renderer) Fit(label string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fit(label, r.face, r.opts.Size)
}

func (r *Renderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache.Purge()
	return r.face.Close()
}

func rasterize(label string, face font.Face, opts Options) *xkbtray.Bitmap {
	img := image.NewRGBA(image.Rect(0, 0, opts.Size, opts.Size))
	draw.Draw(img, img.Bounds(), image.NewUniform(opts.Background), image.Point{}, draw.Src)

	text := fit(label, face, opts.Size)
	if text == "" {
		return &xkbtray.Bitmap{Label: text, Image: img}
	}

	canvas := fixed.I(opts.Size)

	// horizontally the ink box is centered, vertically the line box, so
	// labels with and without descenders share a baseline
	ink, _ := font.BoundString(face, text)
	x := (canvas-(ink.Max.X-ink.Min.X))/2 - ink.Min.X

	metrics := face.Metrics()
	y := (canvas-(metrics.Ascent+metrics.Descent))/2 + metrics.Ascent

	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(opts.Foreground),
		Face: face,
		Dot:  fixed.P(x.Round(), y.Round()),
	}
	d.DrawString(text)

	return &xkbtray.Bitmap{Label: text, Image: img}
}

func fit(label string, face font.Face, size int) string {
	runes := []rune(strings.TrimSpace(label))
	if len(runes) > MaxLabelRunes {
		runes = runes[:MaxLabelRunes]
	}

	canvas := fixed.I(size)
	for len(runes) > 0 {
		ink, _ := font.BoundString(face, string(runes))
		if ink.Max.X-ink.Min.X <= canvas {
			break
		}
		runes = runes[:len(runes)-1]
	}

	return string(runes)
}
