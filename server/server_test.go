package server

import (
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lamassu-labs/mentowatch/alert"
	"github.com/lamassu-labs/mentowatch/am"
	"github.com/lamassu-labs/mentowatch/db"
	"github.com/lamassu-labs/mentowatch/internal/util"
	mwtest "github.com/lamassu-labs/mentowatch/internal/testing"
	"github.com/lamassu-labs/mentowatch/pulse"
	"github.com/lamassu-labs/mentowatch/snapshot"
)

func testServer(t *testing.T, cfg am.ServerConfig) (*Server, *httptest.Server, *db.DB) {
	t.Helper()
	d := mwtest.CreateTestDB(t)
	s := New(cfg, am.DefaultServerPort, snapshot.NewStore(d), alert.NewStore(d), pulse.NewRunStore(d))

	go s.hub.Run()
	t.Cleanup(s.hub.Stop)

	ts := httptest.NewServer(s.routes())
	t.Cleanup(ts.Close)
	return s, ts, d
}

func saveSnapshot(t *testing.T, d *db.DB, id string, takenAt time.Time, ratio float64) {
	t.Helper()
	store := snapshot.NewStore(d)
	require.NoError(t, store.Save(&snapshot.Snapshot{
		ID:          id,
		TakenAt:     takenAt,
		BlockNumber: 100,
		Tokens: []snapshot.TokenSupply{
			{Symbol: "cUSD", Address: "0x1", TotalSupply: big.NewInt(1), Decimals: 18, Supply: 1000, PegUSD: 1, SupplyUSD: 1000},
		},
		Reserve: []snapshot.ReserveHolding{
			{Symbol: "CELO", Address: "0x2", Balance: big.NewInt(1), Decimals: 18, Amount: 3000,
				PriceUSD: util.Ptr(0.5), ValueUSD: util.Ptr(1500.0)},
		},
		TotalSupplyUSD:  util.Ptr(1000.0),
		ReserveValueUSD: util.Ptr(1000.0 * ratio),
		ReserveRatio:    util.Ptr(ratio),
	}))
}

func getJSON(t *testing.T, url string, dest any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if dest != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(dest))
	}
	return resp
}

func TestHealthz(t *testing.T) {
	_, ts, _ := testServer(t, am.ServerConfig{})
	var body map[string]string
	resp := getJSON(t, ts.URL+"/healthz", &body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
}

func TestLatestSnapshot(t *testing.T) {
	_, ts, d := testServer(t, am.ServerConfig{})
	saveSnapshot(t, d, "snap-1", time.Now(), 1.5)

	var snap snapshot.Snapshot
	resp := getJSON(t, ts.URL+"/api/snapshots/latest", &snap)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "snap-1", snap.ID)
	require.NotNil(t, snap.ReserveRatio)
	assert.InDelta(t, 1.5, *snap.ReserveRatio, 1e-9)
	assert.Len(t, snap.Tokens, 1)
}

func TestLatestSnapshotEmpty(t *testing.T) {
	_, ts, _ := testServer(t, am.ServerConfig{})
	resp := getJSON(t, ts.URL+"/api/snapshots/latest", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSnapshotByID(t *testing.T) {
	_, ts, d := testServer(t, am.ServerConfig{})
	saveSnapshot(t, d, "snap-1", time.Now(), 1.5)

	var snap snapshot.Snapshot
	resp := getJSON(t, ts.URL+"/api/snapshots/snap-1", &snap)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "snap-1", snap.ID)

	resp = getJSON(t, ts.URL+"/api/snapshots/missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHistoryWindowAndLimit(t *testing.T) {
	_, ts, d := testServer(t, am.ServerConfig{})
	now := time.Now()
	saveSnapshot(t, d, "snap-1", now.Add(-48*time.Hour), 1.5)
	saveSnapshot(t, d, "snap-2", now.Add(-2*time.Hour), 1.6)
	saveSnapshot(t, d, "snap-3", now, 1.7)

	var body struct {
		Hours     int                  `json:"hours"`
		Snapshots []*snapshot.Snapshot `json:"snapshots"`
	}
	getJSON(t, ts.URL+"/api/snapshots?hours=24", &body)
	assert.Equal(t, 24, body.Hours)
	assert.Len(t, body.Snapshots, 2)

	getJSON(t, ts.URL+"/api/snapshots?hours=24&limit=1", &body)
	require.Len(t, body.Snapshots, 1)
	assert.Equal(t, "snap-3", body.Snapshots[0].ID)

	// Nonsense parameters fall back to defaults.
	getJSON(t, ts.URL+"/api/snapshots?hours=bogus&limit=-5", &body)
	assert.Equal(t, 24, body.Hours)
}

func TestAlertsEndpoint(t *testing.T) {
	_, ts, d := testServer(t, am.ServerConfig{})
	store := alert.NewStore(d)
	require.NoError(t, store.Insert(&alert.Alert{
		ID: "a1", Rule: alert.RuleReserveRatio, Subject: alert.SubjectReserve,
		Severity: alert.SeverityCritical, Message: "low", FiredAt: time.Now(),
	}))
	_, err := store.Resolve(alert.RuleReserveRatio, alert.SubjectReserve, time.Now())
	require.NoError(t, err)
	require.NoError(t, store.Insert(&alert.Alert{
		ID: "a2", Rule: alert.RuleSupplySwing, Subject: "cUSD",
		Severity: alert.SeverityWarning, Message: "swing", FiredAt: time.Now(),
	}))

	var body struct {
		Alerts []*alert.Alert `json:"alerts"`
	}
	getJSON(t, ts.URL+"/api/alerts?open=true", &body)
	require.Len(t, body.Alerts, 1)
	assert.Equal(t, "a2", body.Alerts[0].ID)

	getJSON(t, ts.URL+"/api/alerts", &body)
	assert.Len(t, body.Alerts, 2)
}

func TestStatusEndpoint(t *testing.T) {
	_, ts, d := testServer(t, am.ServerConfig{})
	runs := pulse.NewRunStore(d)
	require.NoError(t, runs.Begin("r1", time.Now()))
	require.NoError(t, runs.Finish("r1", time.Now(), false, "", "rpc down"))

	var body StatusResponse
	resp := getJSON(t, ts.URL+"/api/status", &body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, body.FailureStreak)
	require.Len(t, body.LastRuns, 1)
	assert.Equal(t, "rpc down", body.LastRuns[0].Error)
}

func TestIndexServed(t *testing.T) {
	_, ts, _ := testServer(t, am.ServerConfig{})
	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
}

func TestCORSAllowlist(t *testing.T) {
	_, ts, _ := testServer(t, am.ServerConfig{AllowedOrigins: []string{"https://ops.example.com"}})

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/healthz", nil)
	req.Header.Set("Origin", "https://ops.example.com")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "https://ops.example.com", resp.Header.Get("Access-Control-Allow-Origin"))

	req.Header.Set("Origin", "https://evil.example.com")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestWebsocketBroadcast(t *testing.T) {
	s, ts, _ := testServer(t, am.ServerConfig{})

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// Wait for registration before broadcasting.
	require.Eventually(t, func() bool { return s.hub.ClientCount() == 1 },
		2*time.Second, 10*time.Millisecond)

	s.NotifySnapshot(&snapshot.Snapshot{ID: "snap-live", ReserveRatio: util.Ptr(2.0)})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, MessageSnapshot, msg.Type)
	payload, ok := msg.Payload.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "snap-live", payload["id"])
}

func TestHubStopDisconnectsClients(t *testing.T) {
	s, ts, _ := testServer(t, am.ServerConfig{})

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return s.hub.ClientCount() == 1 },
		2*time.Second, 10*time.Millisecond)

	s.hub.Stop()

	// The hub closes the connection and the server-side pumps exit
	// without blocking on the drained register/unregister channels.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	require.Error(t, err)

	require.Eventually(t, func() bool { return s.hub.ClientCount() == 0 },
		2*time.Second, 10*time.Millisecond)

	// A dial after shutdown is refused rather than left hanging.
	late, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		late.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, _, rerr := late.ReadMessage()
		assert.Error(t, rerr)
		late.Close()
	}
	assert.Zero(t, s.hub.ClientCount())
}

func TestWebsocketAlertBroadcast(t *testing.T) {
	s, ts, _ := testServer(t, am.ServerConfig{})

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return s.hub.ClientCount() == 1 },
		2*time.Second, 10*time.Millisecond)

	s.NotifyAlert(alert.Event{Kind: alert.EventFired, Alert: &alert.Alert{ID: "a1", Rule: alert.RuleReserveRatio}})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, MessageAlert, msg.Type)
}
