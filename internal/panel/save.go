package panel

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/matthewbaird/bridgepanel/internal/event"
	"github.com/matthewbaird/bridgepanel/internal/host"
	"github.com/matthewbaird/bridgepanel/internal/schema"
	"github.com/matthewbaird/bridgepanel/internal/store"
)

// DefaultSettleDelay is how long a save waits after requesting the snapshot
// before it asks the gateway to reload.
const DefaultSettleDelay = 3 * time.Second

// FormReader reads submitted control values by element id.
type FormReader interface {
	// Value returns the first value submitted under name, or "".
	Value(name string) string
	// Values returns every value submitted under name.
	Values(name string) []string
}

// FormValues adapts a parsed HTTP form.
type FormValues map[string][]string

func (f FormValues) Value(name string) string {
	if vs := f[name]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

func (f FormValues) Values(name string) []string { return f[name] }

// SaverConfig tunes the save round trip. Zero values select the defaults.
type SaverConfig struct {
	Namespace      string
	SettleDelay    time.Duration
	GatewayID      string
	GatewayService string
}

// Saver writes a submitted panel back to the device and drives the
// snapshot, reload and notification sequence.
type Saver struct {
	state      store.StateStore
	entities   store.EntityStore
	shell      host.Shell
	dispatcher host.Dispatcher
	rec        event.Recorder
	ids        IDScheme
	cfg        SaverConfig
	log        *zap.Logger

	// afterFunc schedules the post-save reload; tests replace it.
	afterFunc func(d time.Duration, f func())
}

func NewSaver(
	state store.StateStore,
	entities store.EntityStore,
	shell host.Shell,
	dispatcher host.Dispatcher,
	rec event.Recorder,
	ids IDScheme,
	cfg SaverConfig,
	log *zap.Logger,
) *Saver {
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = DefaultSettleDelay
	}
	if cfg.GatewayID == "" {
		cfg.GatewayID = host.GatewayDeviceID
	}
	if cfg.GatewayService == "" {
		cfg.GatewayService = host.GatewayServiceID
	}
	return &Saver{
		state:      state,
		entities:   entities,
		shell:      shell,
		dispatcher: dispatcher,
		rec:        rec,
		ids:        ids,
		cfg:        cfg,
		log:        log,
		afterFunc:  func(d time.Duration, f func()) { time.AfterFunc(d, f) },
	}
}

// Save persists every field of p from form. Busy is shown first and stays
// on when a write fails. On success the gateway reload, the busy reset and
// the success message follow after the settle delay, in that order.
func (s *Saver) Save(ctx context.Context, p schema.Panel, entityID string, form FormReader) error {
	s.shell.ShowBusy(ctx, entityID)

	saved := event.SettingsSavedPayload{Panel: p.Name}
	for _, f := range p.Fields {
		v := s.read(f, entityID, form)
		if v == "" && f.KeepWhenEmpty {
			saved.Skipped = append(saved.Skipped, f.Key)
			continue
		}
		if err := s.write(ctx, f, entityID, v); err != nil {
			return fmt.Errorf("saving %s of device %s: %w", f.Key, entityID, err)
		}
		saved.Written = append(saved.Written, f.Key)
	}
	if err := s.rec.Record(ctx, event.NewSettingsSaved(entityID, saved)); err != nil {
		s.log.Warn("recording settings save failed", zap.String("entity_id", entityID), zap.Error(err))
	}

	if err := s.dispatcher.RequestSnapshotSave(ctx, true); err != nil {
		return fmt.Errorf("saving configuration snapshot: %w", err)
	}

	bg := context.WithoutCancel(ctx)
	s.afterFunc(s.cfg.SettleDelay, func() { s.finish(bg, p, entityID) })
	return nil
}

func (s *Saver) finish(ctx context.Context, p schema.Panel, entityID string) {
	if err := s.dispatcher.InvokeAction(ctx, s.cfg.GatewayID, s.cfg.GatewayService, host.ActionReload, nil); err != nil {
		s.log.Error("gateway reload failed", zap.String("entity_id", entityID), zap.Error(err))
	}
	s.shell.HideBusy(ctx, entityID)
	if err := s.shell.ShowMessage(ctx, entityID, p.SuccessMessage); err != nil {
		s.log.Error("showing save confirmation failed",
			zap.String("entity_id", entityID),
			zap.String("panel", p.Name),
			zap.Error(err))
	}
}

// read serializes a control's submitted value. Multi-value controls join
// their selected values with ",".
func (s *Saver) read(f schema.Field, entityID string, form FormReader) string {
	name := s.ids.ElementID(f.Key, entityID)
	switch f.Kind {
	case schema.KindMultiSelect, schema.KindCheckboxList:
		return strings.Join(form.Values(name), ",")
	default:
		return form.Value(name)
	}
}

func (s *Saver) write(ctx context.Context, f schema.Field, entityID, value string) error {
	if f.Source == schema.SourceAttribute {
		return s.entities.SetAttribute(ctx, entityID, f.Attribute, value)
	}
	return s.state.SetValue(ctx, entityID, s.cfg.Namespace, f.Key, value)
}
