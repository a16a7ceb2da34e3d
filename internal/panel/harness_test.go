package panel

import (
	"context"
	"errors"
	"html/template"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/matthewbaird/bridgepanel/internal/event"
	"github.com/matthewbaird/bridgepanel/internal/host"
	"github.com/matthewbaird/bridgepanel/internal/schema"
	"github.com/matthewbaird/bridgepanel/internal/store"
	"github.com/matthewbaird/bridgepanel/internal/types"
)

const (
	testNS     = "urn:rboer-com:serviceId:EzloBridge1"
	testDevice = "12"
)

// trace records host interactions in the order they happen.
type trace struct {
	mu  sync.Mutex
	ops []string
}

func (t *trace) add(op string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ops = append(t.ops, op)
}

func (t *trace) list() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.ops...)
}

type fakeShell struct {
	*trace
	content    map[string]template.HTML
	busy       map[string]bool
	hooks      map[string]func(context.Context)
	messages   []string
	messageErr error
}

func (s *fakeShell) SetPanelContent(_ context.Context, entityID, _ string, markup template.HTML) {
	s.add("content")
	s.content[entityID] = markup
}

func (s *fakeShell) ShowBusy(_ context.Context, entityID string) {
	s.add("busy")
	s.busy[entityID] = true
}

func (s *fakeShell) HideBusy(_ context.Context, entityID string) {
	s.add("idle")
	s.busy[entityID] = false
}

func (s *fakeShell) ShowMessage(_ context.Context, _ string, text string) error {
	s.add("message")
	s.messages = append(s.messages, text)
	return s.messageErr
}

func (s *fakeShell) OnPanelClose(entityID, name string, fn func(context.Context)) {
	s.hooks[entityID+"/"+name] = fn
}

type reload struct {
	target, service, action string
}

type fakeDispatcher struct {
	*trace
	snapshots   int
	reloads     []reload
	snapshotErr error
}

func (d *fakeDispatcher) InvokeAction(_ context.Context, targetID, serviceID, action string, _ map[string]string) error {
	d.add("reload")
	d.reloads = append(d.reloads, reload{targetID, serviceID, action})
	return nil
}

func (d *fakeDispatcher) RequestSnapshotSave(_ context.Context, force bool) error {
	d.add("snapshot")
	if !force {
		return errors.New("snapshot save must be forced")
	}
	d.snapshots++
	return d.snapshotErr
}

// failingState fails every write.
type failingState struct {
	store.StateStore
}

func (failingState) SetValue(context.Context, string, string, string, string) error {
	return errors.New("disk full")
}

type harness struct {
	store   *store.MemoryStore
	shell   *fakeShell
	disp    *fakeDispatcher
	trace   *trace
	saver   *Saver
	ctrl    *Controller
	logs    *observer.ObservedLogs
	delays  []time.Duration
	pending []func()
}

type harnessOption func(*harnessConfig)

type harnessConfig struct {
	state      store.StateStore
	dispatcher host.Dispatcher
}

func withState(s store.StateStore) harnessOption {
	return func(c *harnessConfig) { c.state = s }
}

// withDispatcher replaces the tracing fake dispatcher.
func withDispatcher(d host.Dispatcher) harnessOption {
	return func(c *harnessConfig) { c.dispatcher = d }
}

// failingRecorder rejects every event.
type failingRecorder struct{}

func (failingRecorder) Record(context.Context, event.Event) error {
	return errors.New("event log down")
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()

	defs, err := schema.Load()
	require.NoError(t, err)

	core, logs := observer.New(zap.DebugLevel)
	log := zap.New(core)

	h := &harness{store: store.NewMemoryStore(), trace: &trace{}, logs: logs}
	h.shell = &fakeShell{
		trace:   h.trace,
		content: map[string]template.HTML{},
		busy:    map[string]bool{},
		hooks:   map[string]func(context.Context){},
	}
	h.disp = &fakeDispatcher{trace: h.trace}

	cfg := harnessConfig{state: h.store, dispatcher: h.disp}
	for _, o := range opts {
		o(&cfg)
	}

	ids := IDScheme{Prefix: DefaultPrefix}
	renderer, err := NewRenderer(ids, NewSorter("en"))
	require.NoError(t, err)
	assembler := NewAssembler(h.store, defs.Namespace, ids, renderer, log)
	h.saver = NewSaver(cfg.state, h.store, h.shell, cfg.dispatcher, event.NewStoreRecorder(h.store), ids,
		SaverConfig{Namespace: defs.Namespace}, log)
	h.saver.afterFunc = func(d time.Duration, f func()) {
		h.delays = append(h.delays, d)
		h.pending = append(h.pending, f)
	}
	h.ctrl = NewController(defs, h.store, h.shell, assembler, h.saver, log)

	require.NoError(t, h.store.PutEntity(context.Background(), types.Entity{
		ID:             testDevice,
		Name:           "Ezlo Bridge",
		NetworkAddress: "10.0.0.4",
	}))
	return h
}

// elapse runs the work scheduled by saves, as if the settle delay passed.
func (h *harness) elapse() {
	pending := h.pending
	h.pending = nil
	for _, f := range pending {
		f()
	}
}

func (h *harness) set(t *testing.T, key, value string) {
	t.Helper()
	require.NoError(t, h.store.SetValue(context.Background(), testDevice, testNS, key, value))
}

func (h *harness) get(t *testing.T, key string) string {
	t.Helper()
	v, _, err := h.store.GetValue(context.Background(), testDevice, testNS, key)
	require.NoError(t, err)
	return v
}

func (h *harness) content() string {
	return string(h.shell.content[testDevice])
}
