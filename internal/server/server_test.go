package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/matthewbaird/bridgepanel/internal/config"
	"github.com/matthewbaird/bridgepanel/internal/schema"
	"github.com/matthewbaird/bridgepanel/internal/store"
	"github.com/matthewbaird/bridgepanel/internal/types"
)

const testNS = "urn:rboer-com:serviceId:EzloBridge1"

type testServer struct {
	*httptest.Server
	store *store.MemoryStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	defs, err := schema.Load()
	require.NoError(t, err)

	panelCfg := config.Default().Panel
	panelCfg.SettleDelay = config.Duration{Duration: 20 * time.Millisecond}

	st := store.NewMemoryStore()
	s, err := New(Config{Addr: ":0", Store: st, Defs: defs, Panel: panelCfg, Log: zap.NewNop()})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	s.bus.Start(ctx)
	t.Cleanup(func() {
		cancel()
		s.bus.Stop()
	})

	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	require.NoError(t, st.PutEntity(context.Background(), types.Entity{ID: "12", Name: "Ezlo Bridge", NetworkAddress: "10.0.0.4"}))
	return &testServer{Server: srv, store: st}
}

func (ts *testServer) get(t *testing.T, path string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(ts.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	var b strings.Builder
	_, err = io.Copy(&b, resp.Body)
	require.NoError(t, err)
	return resp, b.String()
}

// reloads polls the health endpoint. It runs inside Eventually, so it
// reports failures as -1 instead of stopping the test.
func (ts *testServer) reloads() int {
	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		return -1
	}
	defer resp.Body.Close()
	var health struct {
		Status  string `json:"status"`
		Reloads int    `json:"reloads"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil || health.Status != "ok" {
		return -1
	}
	return health.Reloads
}

func TestServer_SettingsRoundTrip(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.get(t, "/devices/12/settings")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	assert.Contains(t, body, "Device #12")
	assert.Contains(t, body, `value="Save Changes"`)
	assert.Contains(t, body, `src="/static/panel.js"`)

	form := url.Values{
		"vbEzloBridge_IPAddress-12":       {"10.0.0.5"},
		"vbEzloBridge_UserID-12":          {"bob"},
		"vbEzloBridge_HouseModeMirror-12": {"2"},
	}
	resp, err := http.PostForm(ts.URL+"/devices/12/settings", form)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	require.Eventually(t, func() bool { return ts.reloads() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Len(t, ts.store.Snapshots(), 1)

	e, err := ts.store.Entity(context.Background(), "12")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.5", e.NetworkAddress)

	_, body = ts.get(t, "/devices/12/settings")
	assert.Contains(t, body, `<option value="2" selected>Remote mirrors Local</option>`)
	assert.Contains(t, body, `name="vbEzloBridge_UserID-12" type="text" value="bob"`)
}

func TestServer_BridgeSave(t *testing.T) {
	ts := newTestServer(t)
	require.NoError(t, ts.store.SetValue(context.Background(), "12", testNS, "Ezlo_deviceList", `[{"id":"2","name":"Zeta"},{"id":"1","name":"Alpha"}]`))

	resp, body := ts.get(t, "/devices/12/bridge")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Less(t, strings.Index(body, "Alpha (1)"), strings.Index(body, "Zeta (2)"))

	form := url.Values{
		"vbEzloBridge_BridgeType-12":   {"W"},
		"vbEzloBridge_BridgeBWList-12": {"1", "2"},
	}
	resp, err := http.PostForm(ts.URL+"/devices/12/bridge", form)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	v, _, err := ts.store.GetValue(context.Background(), "12", testNS, "BridgeBWList")
	require.NoError(t, err)
	assert.Equal(t, "1,2", v)
}

func TestServer_RenderFailure(t *testing.T) {
	ts := newTestServer(t)
	require.NoError(t, ts.store.SetValue(context.Background(), "12", testNS, "Ezlo_deviceList", `not json`))

	resp, body := ts.get(t, "/devices/12/bridge")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Contains(t, body, "could not be rendered")
	assert.NotContains(t, body, "Save Changes")
}

func TestServer_ConcurrentPanelPages(t *testing.T) {
	ts := newTestServer(t)
	require.NoError(t, ts.store.SetValue(context.Background(), "12", testNS, "Ezlo_deviceList", `[{"id":"1","name":"Alpha"}]`))

	type page struct {
		panel  string
		status int
		body   string
		err    error
	}
	const rounds = 20
	results := make(chan page, 2*rounds)
	var wg sync.WaitGroup
	for i := 0; i < rounds; i++ {
		for _, name := range []string{"settings", "bridge"} {
			wg.Add(1)
			go func() {
				defer wg.Done()
				resp, err := http.Get(ts.URL + "/devices/12/" + name)
				if err != nil {
					results <- page{panel: name, err: err}
					return
				}
				defer resp.Body.Close()
				b, err := io.ReadAll(resp.Body)
				results <- page{panel: name, status: resp.StatusCode, body: string(b), err: err}
			}()
		}
	}
	wg.Wait()
	close(results)

	for p := range results {
		require.NoError(t, p.err)
		assert.Equal(t, http.StatusOK, p.status, p.panel)
		assert.Contains(t, p.body, `id="vbEzloBridge_panel_`+p.panel+`-12"`, p.panel)
	}
}

func TestServer_DeviceAPI(t *testing.T) {
	ts := newTestServer(t)

	req, err := http.NewRequest(http.MethodPut, ts.URL+"/v1/devices/12/variables/Ezlo_deviceList",
		strings.NewReader(`{"value":"[]"}`))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body := ts.get(t, "/v1/devices/12")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got struct {
		Device    types.Entity     `json:"device"`
		Variables []types.Variable `json:"variables"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &got))
	assert.Equal(t, "Ezlo Bridge", got.Device.Name)
	require.Len(t, got.Variables, 1)
	assert.Equal(t, testNS, got.Variables[0].Namespace)

	resp, _ = ts.get(t, "/v1/devices/404")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	req, err = http.NewRequest(http.MethodPut, ts.URL+"/v1/devices/13", strings.NewReader(`{"name":"Second bridge","disabled":true}`))
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = ts.get(t, "/devices/13/settings")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Plugin is disabled in Attributes.")
}

func TestServer_EventsAndClose(t *testing.T) {
	ts := newTestServer(t)
	ts.get(t, "/devices/12/settings")

	resp, err := http.Post(ts.URL+"/devices/12/panel/close", "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body := ts.get(t, "/v1/devices/12/events?limit=10")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got struct {
		Events []types.EventEntry `json:"events"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &got))

	var kinds []string
	for _, e := range got.Events {
		kinds = append(kinds, e.EventType)
	}
	assert.Contains(t, kinds, "panel_rendered")
	assert.Contains(t, kinds, "panel_closed")
	assert.Contains(t, kinds, "busy_changed", "closing runs the hide-busy hook")
}

func TestServer_Static(t *testing.T) {
	ts := newTestServer(t)
	resp, body := ts.get(t, "/static/panel.js")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "window.bridgePanel")
}
