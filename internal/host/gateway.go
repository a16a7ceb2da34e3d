package host

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/matthewbaird/bridgepanel/internal/event"
	"github.com/matthewbaird/bridgepanel/internal/store"
)

// Gateway implements Dispatcher for the gateway device: configuration
// snapshots go to the snapshot store and Reload requests are counted and
// recorded.
type Gateway struct {
	snapshots store.SnapshotStore
	rec       event.Recorder
	log       *zap.Logger

	deviceID  string
	serviceID string

	mu         sync.Mutex
	reloads    int
	lastReload time.Time
}

// NewGateway creates a dispatcher for the given gateway device and service.
// Empty ids fall back to GatewayDeviceID and GatewayServiceID.
func NewGateway(snapshots store.SnapshotStore, rec event.Recorder, log *zap.Logger, deviceID, serviceID string) *Gateway {
	if deviceID == "" {
		deviceID = GatewayDeviceID
	}
	if serviceID == "" {
		serviceID = GatewayServiceID
	}
	return &Gateway{
		snapshots: snapshots,
		rec:       rec,
		log:       log,
		deviceID:  deviceID,
		serviceID: serviceID,
	}
}

// DeviceID is the id Reload requests must target.
func (g *Gateway) DeviceID() string { return g.deviceID }

// ServiceID is the service Reload requests must name.
func (g *Gateway) ServiceID() string { return g.serviceID }

func (g *Gateway) RequestSnapshotSave(ctx context.Context, force bool) error {
	id, err := g.snapshots.SaveSnapshot(ctx, force)
	if err != nil {
		return fmt.Errorf("snapshot save: %w", err)
	}
	g.record(ctx, event.NewSnapshotSaved(g.deviceID, event.SnapshotSavedPayload{
		SnapshotID: id,
		Force:      force,
	}))
	return nil
}

func (g *Gateway) InvokeAction(ctx context.Context, targetID, serviceID, action string, params map[string]string) error {
	if targetID != g.deviceID || serviceID != g.serviceID || action != ActionReload {
		return fmt.Errorf("%w: %s %s on device %s", ErrUnknownAction, serviceID, action, targetID)
	}

	g.mu.Lock()
	g.reloads++
	g.lastReload = time.Now()
	g.mu.Unlock()

	g.log.Info("gateway reload requested", zap.String("target_id", targetID))
	g.record(ctx, event.NewActionInvoked(targetID, event.ActionPayload{
		ServiceID: serviceID,
		Action:    action,
		Params:    params,
	}))
	return nil
}

// Reloads returns the number of accepted Reload requests and when the last
// one arrived.
func (g *Gateway) Reloads() (int, time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.reloads, g.lastReload
}

// record logs recorder failures. The snapshot or reload has already
// happened at this point.
func (g *Gateway) record(ctx context.Context, evt event.Event) {
	if err := g.rec.Record(ctx, evt); err != nil {
		g.log.Warn("recording gateway event failed",
			zap.String("event_type", evt.EventType),
			zap.String("entity_id", evt.EntityID),
			zap.Error(err))
	}
}
