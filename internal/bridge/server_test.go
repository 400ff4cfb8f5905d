package bridge_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"ribosim/internal/bridge"
	"ribosim/internal/carrier"
	"ribosim/internal/catalog"
	"ribosim/internal/logging"
	"ribosim/internal/reconcile"
	"ribosim/internal/sequence"
	"ribosim/internal/testsupport"
	"ribosim/internal/workflow"
)

type harness struct {
	hub    *bridge.Hub
	driver *workflow.Driver
	server *bridge.Server
	http   *httptest.Server
	client *bridge.Client
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	logger := logging.NewNop()

	cat, err := catalog.Load("")
	if err != nil {
		t.Fatalf("catalog.Load: %v", err)
	}
	selection, err := catalog.NewSelection(cat, "")
	if err != nil {
		t.Fatalf("NewSelection: %v", err)
	}

	hub := bridge.NewHub(cfg.Bridge.ClientBuffer, logger)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	wf, err := workflow.New(workflow.Collaborators{
		Renderer:  hub,
		Animator:  hub,
		Narrator:  hub,
		Checklist: hub,
		Output:    hub,
		Templates: selection,
	}, workflow.Options{
		Carrier: carrier.Options{Capacity: 2, Logger: logger},
		Logger:  logger,
	})
	if err != nil {
		t.Fatalf("workflow.New: %v", err)
	}
	driver := workflow.NewDriver(wf, workflow.DriverOptions{Logger: logger})

	server := bridge.NewServer(cfg, hub, driver, cat, logger)
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)

	client, err := bridge.NewClient(ts.URL, 0)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return &harness{hub: hub, driver: driver, server: server, http: ts, client: client}
}

// pumpUntil pumps the driver until cond holds or the deadline passes.
func (h *harness) pumpUntil(t *testing.T, cond func(workflow.Snapshot) bool) workflow.Snapshot {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		h.driver.Pump()
		snap := h.driver.Snapshot()
		if cond(snap) {
			return snap
		}
		if time.Now().After(deadline) {
			t.Fatalf("condition not reached; last snapshot %+v", snap)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func readEnvelope(t *testing.T, ws *websocket.Conn) bridge.Envelope {
	t.Helper()
	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var env bridge.Envelope
	if err := ws.ReadJSON(&env); err != nil {
		t.Fatalf("read envelope: %v", err)
	}
	return env
}

func readUntil(t *testing.T, ws *websocket.Conn, typ string) bridge.Envelope {
	t.Helper()
	for i := 0; i < 32; i++ {
		if env := readEnvelope(t, ws); env.Type == typ {
			return env
		}
	}
	t.Fatalf("no %s message received", typ)
	return bridge.Envelope{}
}

func TestHealthAndStatus(t *testing.T) {
	h := newHarness(t)

	resp, err := http.Get(h.http.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatal("expected request id header")
	}

	status, err := h.client.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.Snapshot.Phase != workflow.PhaseAwaitingSequence {
		t.Fatalf("expected awaiting phase, got %s", status.Snapshot.Phase)
	}
	if status.Snapshot.Protein != "Lactase" {
		t.Fatalf("expected Lactase, got %q", status.Snapshot.Protein)
	}
	if status.Snapshot.Expected != "AUGGGCCACUGGCUG" {
		t.Fatalf("unexpected expected strand %q", status.Snapshot.Expected)
	}
}

func TestProteinsEndpoint(t *testing.T) {
	h := newHarness(t)
	proteins, err := h.client.Proteins(context.Background())
	if err != nil {
		t.Fatalf("Proteins: %v", err)
	}
	if len(proteins) < 2 {
		t.Fatalf("expected built-in catalog, got %d entries", len(proteins))
	}
	defaults := 0
	for _, p := range proteins {
		if p.Default {
			defaults++
			if p.Name != "Lactase" {
				t.Fatalf("unexpected default %q", p.Name)
			}
			if p.MRNA != "AUGGGCCACUGGCUG" || len(p.Chain) != 5 {
				t.Fatalf("unexpected lactase entry %+v", p)
			}
		}
	}
	if defaults != 1 {
		t.Fatalf("expected exactly one default, got %d", defaults)
	}
}

func TestPostEventsAppliesTracking(t *testing.T) {
	h := newHarness(t)
	if err := h.client.Send(context.Background(), bridge.Inbound{Type: "tracking", Sequence: "AUG GGC"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	snap := h.pumpUntil(t, func(s workflow.Snapshot) bool { return s.Tracked == "AUGGGC" })
	if snap.Generation != 1 {
		t.Fatalf("expected generation 1, got %d", snap.Generation)
	}
}

func TestPostEventsRejections(t *testing.T) {
	h := newHarness(t)
	tests := []struct {
		name   string
		body   string
		status int
	}{
		{name: "malformed", body: `{"type":`, status: http.StatusBadRequest},
		{name: "unknown field", body: `{"type":"commit","extra":1}`, status: http.StatusBadRequest},
		{name: "unknown type", body: `{"type":"dance"}`, status: http.StatusBadRequest},
		{name: "foreign symbol is judged by the workflow", body: `{"type":"tracking","sequence":"AUZ"}`, status: http.StatusAccepted},
		{name: "unknown protein", body: `{"type":"reset","protein":"Kryptonite"}`, status: http.StatusNotFound},
		{name: "known protein", body: `{"type":"reset","protein":"insulin"}`, status: http.StatusAccepted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(h.http.URL+"/api/events", "application/json", bytes.NewBufferString(tt.body))
			if err != nil {
				t.Fatalf("post: %v", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, resp.StatusCode)
			}
		})
	}

	err := h.client.Send(context.Background(), bridge.Inbound{Type: "reset", Protein: "Kryptonite"})
	if !errors.Is(err, bridge.ErrBridgeRejected) {
		t.Fatalf("expected rejection, got %v", err)
	}
}

func TestUnknownRouteAndMethod(t *testing.T) {
	h := newHarness(t)
	resp, err := http.Get(h.http.URL + "/api/nope")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	resp, err = http.Get(h.http.URL + "/api/events")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.StatusCode)
	}
}

func TestWebSocketRoundTrip(t *testing.T) {
	h := newHarness(t)
	ws, err := h.client.Dial(context.Background())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer ws.Close()

	first := readEnvelope(t, ws)
	if first.Type != bridge.TypeSnapshot {
		t.Fatalf("expected snapshot first, got %s", first.Type)
	}
	var snap workflow.Snapshot
	if err := json.Unmarshal(first.Data, &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.Phase != workflow.PhaseAwaitingSequence {
		t.Fatalf("unexpected initial phase %s", snap.Phase)
	}

	waitForClients(t, h.hub, 1)
	if err := ws.WriteJSON(bridge.Inbound{Type: "tracking", Sequence: "AUGGGC"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	h.pumpUntil(t, func(s workflow.Snapshot) bool { return s.Tracked == "AUGGGC" })

	env := readUntil(t, ws, bridge.TypeRenderPlan)
	var plan bridge.PlanPayload
	if err := json.Unmarshal(env.Data, &plan); err != nil {
		t.Fatalf("decode plan: %v", err)
	}
	if plan.Generation != 1 || plan.Suffix != "AUGGGC" || plan.KeepPrefix != 0 {
		t.Fatalf("unexpected plan %+v", plan)
	}

	if err := ws.WriteJSON(bridge.Inbound{Type: "rendered", Symbols: "AUGGGC", Generation: 1}); err != nil {
		t.Fatalf("write rendered: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for {
		if got, ok := h.hub.RenderedSymbols(); ok && got.String() == "AUGGGC" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("rendered report never recorded")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWebSocketReportsInvalidSymbol(t *testing.T) {
	h := newHarness(t)
	ws, err := h.client.Dial(context.Background())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer ws.Close()
	readEnvelope(t, ws)
	waitForClients(t, h.hub, 1)

	if err := ws.WriteJSON(bridge.Inbound{Type: "tracking", Sequence: "AUG"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	h.pumpUntil(t, func(s workflow.Snapshot) bool { return s.Tracked == "AUG" })
	if err := ws.WriteJSON(bridge.Inbound{Type: "tracking", Sequence: "AUXG"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for h.driver.Pump() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("invalid tracking input never reached the driver")
		}
		time.Sleep(5 * time.Millisecond)
	}

	env := readUntil(t, ws, bridge.TypeValidationResult)
	var result workflow.Validation
	if err := json.Unmarshal(env.Data, &result); err != nil {
		t.Fatalf("decode validation: %v", err)
	}
	if result.Outcome != workflow.OutcomeInvalidSymbol || result.Attempt != 0 {
		t.Fatalf("unexpected validation %+v", result)
	}
	snap := h.driver.Snapshot()
	if snap.Tracked != "AUG" || snap.Attempts != 0 || snap.LastValidation != nil {
		t.Fatalf("invalid input must not change state, got %+v", snap)
	}
}

func TestWebSocketFullSession(t *testing.T) {
	h := newHarness(t)
	ws, err := h.client.Dial(context.Background())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer ws.Close()
	readEnvelope(t, ws)
	waitForClients(t, h.hub, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := h.driver.Start(ctx); err != nil {
		t.Fatalf("driver start: %v", err)
	}
	defer h.driver.Stop()

	send := func(msg bridge.Inbound) {
		t.Helper()
		if err := ws.WriteJSON(msg); err != nil {
			t.Fatalf("write %s: %v", msg.Type, err)
		}
	}
	send(bridge.Inbound{Type: "tracking", Sequence: "AUGGGCCACUGGCUG"})
	send(bridge.Inbound{Type: "commit"})
	h.pumpUntil(t, func(s workflow.Snapshot) bool { return s.Phase == workflow.PhaseTransit })
	readUntil(t, ws, bridge.TypePlayTransit)
	send(bridge.Inbound{Type: "transit_finished"})

	var output []string
	for len(output) < 5 {
		env := readEnvelope(t, ws)
		switch env.Type {
		case bridge.TypePlayEnter:
			var c bridge.CarrierPayload
			_ = json.Unmarshal(env.Data, &c)
			send(bridge.Inbound{Type: "animation_finished", Unit: c.Unit, Animation: "enter"})
		case bridge.TypePlayExit:
			var c bridge.CarrierPayload
			_ = json.Unmarshal(env.Data, &c)
			send(bridge.Inbound{Type: "animation_finished", Unit: c.Unit, Animation: "exit"})
		case bridge.TypeAppendOutput:
			var o bridge.OutputPayload
			_ = json.Unmarshal(env.Data, &o)
			output = append(output, o.AminoAcid)
		}
	}
	want := []string{"Met", "Gly", "His", "Trp", "Leu"}
	for i := range want {
		if output[i] != want[i] {
			t.Fatalf("unexpected chain %v", output)
		}
	}

	send(bridge.Inbound{Type: "select_amino_acids", AminoAcids: []string{"MET", "gly", "His", "Trp", "Leu"}})
	env := readUntil(t, ws, bridge.TypeAminoCheck)
	var check workflow.AminoCheck
	if err := json.Unmarshal(env.Data, &check); err != nil {
		t.Fatalf("decode amino check: %v", err)
	}
	if check.Outcome != workflow.OutcomeMatch || check.Attempt != 1 {
		t.Fatalf("unexpected amino check %+v", check)
	}
	for i := 0; ; i++ {
		var task bridge.TaskPayload
		_ = json.Unmarshal(readUntil(t, ws, bridge.TypeCheckOff).Data, &task)
		if task.Task == string(workflow.TaskSelectAmino) {
			break
		}
		if i > 2 {
			t.Fatalf("select_amino never ticked; last task %q", task.Task)
		}
	}
}

func TestRenderedSymbolsRequireCurrentGeneration(t *testing.T) {
	hub := bridge.NewHub(4, logging.NewNop())
	if _, ok := hub.RenderedSymbols(); ok {
		t.Fatal("expected no rendered state before any report")
	}
	hub.RenderPlan(reconcile.Plan{Generation: 2, Suffix: sequence.MustParse("AUG")})
	hub.ReportRendered(sequence.MustParse("AU"), 1)
	if _, ok := hub.RenderedSymbols(); ok {
		t.Fatal("stale generation must not be reported")
	}
	hub.ReportRendered(sequence.MustParse("AUG"), 2)
	got, ok := hub.RenderedSymbols()
	if !ok || got.String() != "AUG" {
		t.Fatalf("expected current report, got %q ok=%v", got.String(), ok)
	}
}

func TestCheckOriginHonorsAllowList(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Bridge.Origins = []string{"https://lab.example"}
	hub := bridge.NewHub(4, logging.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)
	server := bridge.NewServer(cfg, hub, staticDriver{}, nil, logging.NewNop())
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	url := "ws" + ts.URL[len("http"):] + "/ws"
	header := http.Header{"Origin": []string{"https://evil.example"}}
	if _, resp, err := websocket.DefaultDialer.Dial(url, header); err == nil {
		t.Fatal("expected foreign origin to be refused")
	} else if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %v", resp)
	}

	header.Set("Origin", "https://lab.example")
	ws, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("allowed origin refused: %v", err)
	}
	ws.Close()
}

type staticDriver struct{}

func (staticDriver) Submit(workflow.Event) error { return nil }
func (staticDriver) Snapshot() workflow.Snapshot { return workflow.Snapshot{} }

func waitForClients(t *testing.T, hub *bridge.Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.Clients() != n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d clients, have %d", n, hub.Clients())
		}
		time.Sleep(5 * time.Millisecond)
	}
}
