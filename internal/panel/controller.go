package panel

import (
	"context"
	"fmt"
	"html/template"

	"go.uber.org/zap"

	"github.com/matthewbaird/bridgepanel/internal/host"
	"github.com/matthewbaird/bridgepanel/internal/schema"
	"github.com/matthewbaird/bridgepanel/internal/store"
)

const hideBusyHook = "hide-busy"

// Controller exposes the four panel entry points the host invokes.
type Controller struct {
	defs      *schema.Definitions
	entities  store.EntityStore
	shell     host.Shell
	assembler *Assembler
	saver     *Saver
	log       *zap.Logger
}

func NewController(defs *schema.Definitions, entities store.EntityStore, shell host.Shell, assembler *Assembler, saver *Saver, log *zap.Logger) *Controller {
	return &Controller{
		defs:      defs,
		entities:  entities,
		shell:     shell,
		assembler: assembler,
		saver:     saver,
		log:       log,
	}
}

// RenderSettings draws the connection settings panel of a device.
func (c *Controller) RenderSettings(ctx context.Context, entityID string) {
	c.Render(ctx, schema.PanelSettings, entityID)
}

// RenderBridgeSettings draws the device selection panel of a device.
func (c *Controller) RenderBridgeSettings(ctx context.Context, entityID string) {
	c.Render(ctx, schema.PanelBridge, entityID)
}

func (c *Controller) OnSaveSettings(ctx context.Context, entityID string, form FormReader) error {
	return c.save(ctx, schema.PanelSettings, entityID, form)
}

func (c *Controller) OnSaveBridgeSettings(ctx context.Context, entityID string, form FormReader) error {
	return c.save(ctx, schema.PanelBridge, entityID, form)
}

// Render draws the named panel and also returns the markup it set, so
// callers need not read it back from the shell. It never fails towards the
// host: errors are logged, the panel is left without content and "" is
// returned.
func (c *Controller) Render(ctx context.Context, name, entityID string) template.HTML {
	c.shell.OnPanelClose(entityID, hideBusyHook, func(ctx context.Context) {
		c.shell.HideBusy(ctx, entityID)
	})

	markup, err := c.build(ctx, name, entityID)
	if err != nil {
		c.log.Error("rendering panel failed",
			zap.String("panel", name),
			zap.String("entity_id", entityID),
			zap.Error(err))
		return ""
	}
	c.shell.SetPanelContent(ctx, entityID, name, markup)
	return markup
}

func (c *Controller) build(ctx context.Context, name, entityID string) (template.HTML, error) {
	p, err := c.defs.Panel(name)
	if err != nil {
		return "", err
	}
	e, err := c.entities.Entity(ctx, entityID)
	if err != nil {
		return "", fmt.Errorf("loading device %s: %w", entityID, err)
	}
	return c.assembler.Assemble(ctx, p, e)
}

func (c *Controller) save(ctx context.Context, name, entityID string, form FormReader) error {
	p, err := c.defs.Panel(name)
	if err != nil {
		return err
	}
	return c.saver.Save(ctx, p, entityID, form)
}
