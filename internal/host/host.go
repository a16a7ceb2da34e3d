// Package host holds the collaborator contracts the settings panel consumes
// from its host (UI shell, action dispatcher) and the service's own
// implementations of them.
package host

import (
	"context"
	"errors"
	"html/template"
)

// Well-known reload target: the gateway device and its service.
const (
	GatewayDeviceID  = "0"
	GatewayServiceID = "urn:micasaverde-com:serviceId:HomeAutomationGateway1"
	ActionReload     = "Reload"
)

// ErrUnknownAction is returned for actions the dispatcher does not handle.
var ErrUnknownAction = errors.New("host: unknown action")

// Shell is the UI surface a panel draws into.
type Shell interface {
	SetPanelContent(ctx context.Context, entityID, panel string, markup template.HTML)
	ShowBusy(ctx context.Context, entityID string)
	HideBusy(ctx context.Context, entityID string)
	ShowMessage(ctx context.Context, entityID, text string) error

	// OnPanelClose registers a hook that runs once when the entity's panel
	// is closed. A hook registered again under the same name replaces the
	// earlier one.
	OnPanelClose(entityID, name string, fn func(ctx context.Context))
}

// Dispatcher performs host actions.
type Dispatcher interface {
	InvokeAction(ctx context.Context, targetID, serviceID, action string, params map[string]string) error
	RequestSnapshotSave(ctx context.Context, force bool) error
}
