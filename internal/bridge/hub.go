package bridge

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"

	"ribosim/internal/carrier"
	"ribosim/internal/logging"
	"ribosim/internal/reconcile"
	"ribosim/internal/sequence"
	"ribosim/internal/workflow"
)

const (
	defaultClientBuffer    = 64
	defaultBroadcastBuffer = 256
)

// Hub fans outbound collaborator calls out to every connected client. All
// collaborator methods are non-blocking so the driver never waits on the
// network.
type Hub struct {
	logger       *slog.Logger
	clientBuffer int

	register   chan *conn
	unregister chan *conn
	broadcast  chan []byte
	clients    map[*conn]struct{}
	done       chan struct{}
	connected  atomic.Int64
	seq        atomic.Uint64
	dropped    atomic.Uint64

	renderMu           sync.Mutex
	planGeneration     uint64
	rendered           sequence.Sequence
	renderedGeneration uint64
	haveRendered       bool
}

// NewHub constructs a hub. Call Run before serving connections.
func NewHub(clientBuffer int, logger *slog.Logger) *Hub {
	if clientBuffer <= 0 {
		clientBuffer = defaultClientBuffer
	}
	return &Hub{
		logger:       logging.NewComponentLogger(logger, "bridge-hub"),
		clientBuffer: clientBuffer,
		register:     make(chan *conn),
		unregister:   make(chan *conn),
		broadcast:    make(chan []byte, defaultBroadcastBuffer),
		clients:      make(map[*conn]struct{}),
		done:         make(chan struct{}),
	}
}

// Run owns the client set until ctx is cancelled. It must be called once.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			h.connected.Store(0)
			return
		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.connected.Store(int64(len(h.clients)))
			h.logger.Info("headset connected",
				logging.String("remote", c.remote),
				logging.Int("clients", len(h.clients)),
				logging.String(logging.FieldEventType, "client_connected"),
			)
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				h.connected.Store(int64(len(h.clients)))
				h.logger.Info("headset disconnected",
					logging.String("remote", c.remote),
					logging.Int("clients", len(h.clients)),
					logging.String(logging.FieldEventType, "client_disconnected"),
				)
			}
		case message := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- message:
				default:
					delete(h.clients, c)
					close(c.send)
					h.connected.Store(int64(len(h.clients)))
					logging.WarnWithContext(h.logger, "slow headset disconnected", "client_overflow",
						logging.String("remote", c.remote),
						logging.Int("buffer", cap(c.send)),
						logging.String(logging.FieldImpact, "headset must reconnect and resync from snapshot"),
					)
				}
			}
		}
	}
}

func (h *Hub) add(c *conn) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) remove(c *conn) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Clients is the number of connected clients.
func (h *Hub) Clients() int { return int(h.connected.Load()) }

// Dropped is the number of broadcasts discarded because the hub was behind.
func (h *Hub) Dropped() uint64 { return h.dropped.Load() }

// Publish encodes data under typ and queues it for every client.
func (h *Hub) Publish(typ string, data any) {
	raw, err := encode(typ, h.seq.Add(1), data)
	if err != nil {
		h.logger.Error("encode outbound message failed", logging.String("type", typ), logging.Error(err))
		return
	}
	select {
	case h.broadcast <- raw:
	default:
		h.dropped.Add(1)
		logging.WarnWithContext(h.logger, "outbound message dropped; hub backlog full", "broadcast_dropped",
			logging.String("type", typ),
			logging.String(logging.FieldImpact, "headset view may lag until the next snapshot"),
		)
	}
}

func encode(typ string, seq uint64, data any) ([]byte, error) {
	env := Envelope{Type: typ, Seq: seq}
	if data != nil {
		payload, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		env.Data = payload
	}
	return json.Marshal(env)
}

// ReportRendered records the slot tags a client reports after applying the
// plan with the given generation.
func (h *Hub) ReportRendered(symbols sequence.Sequence, generation uint64) {
	h.renderMu.Lock()
	defer h.renderMu.Unlock()
	h.rendered = symbols.Clone()
	h.renderedGeneration = generation
	h.haveRendered = true
}

// RenderedSymbols returns the last report, but only when it reflects the most
// recent plan. An older report would flag drift that is only latency.
func (h *Hub) RenderedSymbols() (sequence.Sequence, bool) {
	h.renderMu.Lock()
	defer h.renderMu.Unlock()
	if !h.haveRendered || h.renderedGeneration != h.planGeneration {
		return nil, false
	}
	return h.rendered.Clone(), true
}

func (h *Hub) RenderPlan(plan reconcile.Plan) {
	h.renderMu.Lock()
	h.planGeneration = plan.Generation
	h.renderMu.Unlock()
	h.Publish(TypeRenderPlan, PlanPayload{
		Generation:     plan.Generation,
		PreviousLength: plan.PreviousLength,
		KeepPrefix:     plan.KeepPrefix,
		RebuildFrom:    plan.RebuildFrom,
		Suffix:         plan.Suffix.String(),
	})
}

func (h *Hub) SpawnCarrier(id carrier.UnitID, codon sequence.Codon, slot int) {
	aa := sequence.Translate(codon)
	h.Publish(TypeSpawnCarrier, CarrierPayload{
		Unit:      uint64(id),
		Codon:     codon.String(),
		Anticodon: sequence.Anticodon(codon).String(),
		AminoAcid: string(aa),
		Color:     aa.Color(),
		Slot:      &slot,
	})
}

func (h *Hub) PlayEnter(id carrier.UnitID) {
	h.Publish(TypePlayEnter, CarrierPayload{Unit: uint64(id)})
}

func (h *Hub) PlayExit(id carrier.UnitID) {
	h.Publish(TypePlayExit, CarrierPayload{Unit: uint64(id)})
}

func (h *Hub) Despawn(id carrier.UnitID) {
	h.Publish(TypeDespawn, CarrierPayload{Unit: uint64(id)})
}

func (h *Hub) PlayTransit() {
	h.Publish(TypePlayTransit, nil)
}

func (h *Hub) PhaseChanged(change workflow.PhaseChange) {
	h.Publish(TypePhaseChanged, PhasePayload{
		SessionID: change.SessionID,
		Protein:   change.Protein,
		From:      string(change.From),
		To:        string(change.To),
		Label:     change.To.Label(),
		Reason:    change.Reason,
		At:        change.At,
	})
}

func (h *Hub) ValidationResult(result workflow.Validation) {
	h.Publish(TypeValidationResult, result)
}

func (h *Hub) AminoAcidsChecked(check workflow.AminoCheck) {
	h.Publish(TypeAminoCheck, check)
}

func (h *Hub) CheckOff(task workflow.Task) {
	h.Publish(TypeCheckOff, TaskPayload{Task: string(task)})
}

func (h *Hub) AppendOutput(aa sequence.AminoAcid) {
	h.Publish(TypeAppendOutput, OutputPayload{AminoAcid: string(aa), Color: aa.Color()})
}
