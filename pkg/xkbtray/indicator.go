package xkbtray

import (
	"context"
	"errors"
	"fmt"
	"go.uber.org/zap"
	"time"
)

// Indicator keeps the tray icon in sync with the active XKB layout.
type Indicator struct {
	listener StateListener
	registry *Registry
	renderer Renderer
	updater  *Updater
	recorder SwitchRecorder

	log *zap.SugaredLogger
	now func() time.Time
}

// NewIndicator wires the pipeline. recorder may be nil.
func NewIndicator(
	listener StateListener,
	registry *Registry,
	renderer Renderer,
	updater *Updater,
	recorder SwitchRecorder,
	log *zap.SugaredLogger,
) *Indicator {
	return &Indicator{
		listener: listener,
		registry: registry,
		renderer: renderer,
		updater:  updater,
		recorder: recorder,
		log:      log,
		now:      time.Now,
	}
}

// Run shows the current layout and then follows every layout change until
// ctx is cancelled or the listener fails.
func (i *Indicator) Run(ctx context.Context) error {
	idx, err := i.listener.CurrentIndex()
	if err != nil {
		return fmt.Errorf("get current layout: %w", err)
	}

	current, err := i.show(ctx, noLayout, idx)
	if err != nil {
		return err
	}

	for {
		idx, err := i.listener.NextStateChange(ctx)
		if err != nil {
			return fmt.Errorf("wait for layout change: %w", err)
		}

		if idx == current {
			continue
		}

		current, err = i.show(ctx, current, idx)
		if err != nil {
			return err
		}
	}
}

// noLayout is the current index before anything was shown.
const noLayout = -1

// show displays layout idx and returns the index now on screen.
func (i *Indicator) show(ctx context.Context, current, idx int) (int, error) {
	label, err := i.registry.Resolve(idx)
	if err != nil {
		var unknown *UnknownIndexError
		if errors.As(err, &unknown) {
			i.log.Warnw("ignoring unknown layout index, keeping previous icon",
				"index", unknown.Index, "layouts", unknown.Count)
			return current, nil
		}
		return current, fmt.Errorf("resolve layout: %w", err)
	}

	if err := i.updater.Update(i.renderer.Render(label)); err != nil {
		return current, fmt.Errorf("update icon: %w", err)
	}
	i.log.Infow("layout changed", "index", idx, "label", label)

	// the first frame is not a switch
	if i.recorder != nil && current != noLayout {
		sw := Switch{At: i.now(), Index: idx, Label: label}
		if err := i.recorder.RecordSwitch(ctx, sw); err != nil {
			i.log.Warnw("could not record layout switch", "error", err)
		}
	}

	return idx, nil
}
