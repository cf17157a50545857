package xkbtray

import (
	"context"
	"errors"
	"image"
)

type step struct {
	idx int
	err error
}

type fakeListener struct {
	current    int
	currentErr error
	steps      []step
}

func (f *fakeListener) CurrentIndex() (int, error) {
	return f.current, f.currentErr
}

// NextStateChange replays steps, then waits for ctx like a real listener.
func (f *fakeListener) NextStateChange(ctx context.Context) (int, error) {
	if len(f.steps) == 0 {
		<-ctx.Done()
		return 0, ctx.Err()
	}
	s := f.steps[0]
	f.steps = f.steps[1:]
	return s.idx, s.err
}

type fakeRenderer struct {
	calls []string
}

func (f *fakeRenderer) Render(label string) *Bitmap {
	f.calls = append(f.calls, label)
	return labelBitmap(label)
}

func labelBitmap(label string) *Bitmap {
	img := image.NewRGBA(image.Rect(0, 0, 4, 1))
	copy(img.Pix, label)
	return &Bitmap{Label: label, Image: img}
}

type fakeTray struct {
	registerErr error
	setErr      error
	registered  bool
	closed      bool
	shown       []string
}

func (f *fakeTray) Register(context.Context) error {
	if f.registerErr != nil {
		return f.registerErr
	}
	f.registered = true
	return nil
}

func (f *fakeTray) SetImage(b *Bitmap) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.shown = append(f.shown, b.Label)
	return nil
}

func (f *fakeTray) Close() error {
	f.closed = true
	return nil
}

func (f *fakeTray) current() string {
	if len(f.shown) == 0 {
		return ""
	}
	return f.shown[len(f.shown)-1]
}

type fakeRecorder struct {
	err      error
	switches []Switch
}

func (f *fakeRecorder) RecordSwitch(_ context.Context, sw Switch) error {
	if f.err != nil {
		return f.err
	}
	f.switches = append(f.switches, sw)
	return nil
}

func (f *fakeRecorder) RecentSwitches(context.Context, int) ([]Switch, error) {
	return f.switches, nil
}

var errConnLost = errors.New("connection reset by peer")

func testLayouts() LayoutSet {
	return LayoutSet{
		{Index: 0, Label: "EN", Locale: "us", Name: "English (US)"},
		{Index: 1, Label: "RU", Locale: "ru", Name: "Russian"},
		{Index: 2, Label: "UA", Locale: "ua", Name: "Ukrainian"},
	}
}
