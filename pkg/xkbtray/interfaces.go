package xkbtray

import (
	"bytes"
	"context"
	"image"
	"time"
)

// StateListener is the XKB side of the indicator.
type StateListener interface {
	CurrentIndex() (int, error)
	NextStateChange(ctx context.Context) (int, error)
}

type Renderer interface {
	Render(label string) *Bitmap
}

// Tray is a tray host the icon can be shown in.
type Tray interface {
	Register(ctx context.Context) error
	SetImage(bitmap *Bitmap) error
	Close() error
}

type SwitchRecorder interface {
	RecordSwitch(ctx context.Context, sw Switch) error
	RecentSwitches(ctx context.Context, limit int) ([]Switch, error)
}

type Layout struct {
	Index  int
	Label  string
	Locale string
	Name   string
}

type LayoutSet []Layout

// Labels returns the labels in index order.
func (s LayoutSet) Labels() []string {
	out := make([]string, 0, len(s))
	for _, l := range s {
		out = append(out, l.Label)
	}
	return out
}

type Switch struct {
	At    time.Time
	Index int
	Label string
}

// Bitmap is one rendered label. It is never modified after rendering.
type Bitmap struct {
	Label string
	Image *image.RGBA
}

func (b *Bitmap) Equal(other *Bitmap) bool {
	if b == nil || other == nil {
		return b == other
	}
	if b.Image == nil || other.Image == nil {
		return b.Image == other.Image
	}
	return b.Image.Rect == other.Image.Rect && bytes.Equal(b.Image.Pix, other.Image.Pix)
}
