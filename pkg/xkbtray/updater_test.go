package xkbtray

import (
	"context"
	"errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"image"
	"testing"
)

func TestUpdaterSkipsIdenticalBitmap(t *testing.T) {
	tray := &fakeTray{}
	u := NewUpdater(zaptest.NewLogger(t).Sugar())
	require.NoError(t, u.Install(context.Background(), tray))

	require.NoError(t, u.Update(labelBitmap("RU")))
	require.NoError(t, u.Update(labelBitmap("RU")))

	assert.Equal(t, []string{"RU"}, tray.shown)
	assert.Equal(t, "RU", u.Live().Label)
}

func TestUpdaterReplacesLiveBitmap(t *testing.T) {
	tray := &fakeTray{}
	u := NewUpdater(zaptest.NewLogger(t).Sugar())
	require.NoError(t, u.Install(context.Background(), tray))

	require.NoError(t, u.Update(labelBitmap("EN")))
	require.NoError(t, u.Update(labelBitmap("RU")))
	require.NoError(t, u.Update(labelBitmap("EN")))

	assert.Equal(t, []string{"EN", "RU", "EN"}, tray.shown)
}

func TestUpdaterKeepsPreviousOnFailure(t *testing.T) {
	tray := &fakeTray{}
	u := NewUpdater(zaptest.NewLogger(t).Sugar())
	require.NoError(t, u.Install(context.Background(), tray))
	require.NoError(t, u.Update(labelBitmap("EN")))

	tray.setErr = errors.New("bad drawable")
	require.Error(t, u.Update(labelBitmap("RU")))
	assert.Equal(t, "EN", u.Live().Label)
}

func TestUpdaterRequiresTray(t *testing.T) {
	u := NewUpdater(zaptest.NewLogger(t).Sugar())
	assert.ErrorIs(t, u.Update(labelBitmap("EN")), ErrNoTray)
}

func TestUpdaterInstallUnavailable(t *testing.T) {
	tray := &fakeTray{registerErr: &TrayUnavailableError{Backend: "xembed", Err: errors.New("no manager")}}
	u := NewUpdater(zaptest.NewLogger(t).Sugar())

	err := u.Install(context.Background(), tray)
	var unavailable *TrayUnavailableError
	require.True(t, errors.As(err, &unavailable))
	assert.Equal(t, "xembed", unavailable.Backend)
	assert.ErrorIs(t, u.Update(labelBitmap("EN")), ErrNoTray)
}

func TestUpdaterInstallTwice(t *testing.T) {
	u := NewUpdater(zaptest.NewLogger(t).Sugar())
	require.NoError(t, u.Install(context.Background(), &fakeTray{}))
	assert.Error(t, u.Install(context.Background(), &fakeTray{}))
}

func TestUpdaterCloseReleasesEverything(t *testing.T) {
	tray := &fakeTray{}
	u := NewUpdater(zaptest.NewLogger(t).Sugar())
	require.NoError(t, u.Install(context.Background(), tray))
	require.NoError(t, u.Update(labelBitmap("UA")))

	require.NoError(t, u.Close())
	assert.True(t, tray.closed)
	assert.Nil(t, u.Live())
	require.NoError(t, u.Close())
}

func TestBitmapEqual(t *testing.T) {
	a := labelBitmap("EN")
	b := labelBitmap("EN")
	c := labelBitmap("RU")
	wide := &Bitmap{Label: "EN", Image: image.NewRGBA(image.Rect(0, 0, 2, 2))}
	copy(wide.Image.Pix, a.Image.Pix)

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(wide))
	assert.False(t, a.Equal(nil))
	assert.True(t, (*Bitmap)(nil).Equal(nil))
}
