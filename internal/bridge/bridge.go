// Package bridge is the engine-facing websocket endpoint. The game engine
// connects, streams world snapshots and mission events in, and drains
// validated command batches out.
package bridge

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"tacticom/internal/audit"
	"tacticom/internal/commander"
	"tacticom/internal/config"
	"tacticom/internal/model"
	"tacticom/internal/state"
)

// Message is the wire envelope in both directions.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Inbound message types.
const (
	MsgWorldState  = "world_state"
	MsgGetCommands = "get_commands"
	MsgObjectives  = "objectives"
	MsgDeploy      = "deploy"
	MsgStartAO     = "start_ao"
	MsgEndAO       = "end_ao"
	MsgAODefense   = "ao_defense"
	MsgReset       = "reset"
)

// Outbound message types.
const (
	MsgCommands = "commands"
	MsgAck      = "ack"
	MsgError    = "error"
)

// Server serves the bridge endpoint.
type Server struct {
	cmd      *commander.Commander
	state    *state.Manager
	audit    *audit.Store
	log      *slog.Logger
	upgrader websocket.Upgrader
}

func NewServer(cmd *commander.Commander, st *state.Manager, aud *audit.Store, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	if aud == nil {
		aud = audit.New()
	}
	return &Server{
		cmd:   cmd,
		state: st,
		audit: aud,
		log:   log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Handler upgrades a connection and runs the reader loop. A writer
// goroutine owns all outbound traffic so command batches and acks never
// interleave mid-frame.
func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		s.log.Info("engine connected", "remote", conn.RemoteAddr().String())

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		out := make(chan []byte, 32)

		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b, ok := <-out:
					if !ok {
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		for {
			_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
			_, raw, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			var msg Message
			if err := json.Unmarshal(raw, &msg); err != nil {
				s.send(out, MsgError, map[string]string{"error": "malformed envelope"})
				continue
			}
			s.handle(ctx, out, msg)
		}
		s.log.Info("engine disconnected", "remote", conn.RemoteAddr().String())
	}
}

func (s *Server) handle(ctx context.Context, out chan []byte, msg Message) {
	switch msg.Type {
	case MsgWorldState:
		var world model.WorldState
		if err := json.Unmarshal(msg.Payload, &world); err != nil {
			s.send(out, MsgError, map[string]string{"error": "bad world_state: " + err.Error()})
			return
		}
		s.cmd.ProcessWorldState(ctx, &world)
		s.send(out, MsgAck, map[string]string{"ack": MsgWorldState})

	case MsgGetCommands:
		batch := s.cmd.Queue().GetBatch(0)
		s.send(out, MsgCommands, batch)

	case MsgObjectives:
		var objs []model.Objective
		if err := json.Unmarshal(msg.Payload, &objs); err != nil {
			s.send(out, MsgError, map[string]string{"error": "bad objectives: " + err.Error()})
			return
		}
		for _, o := range objs {
			if o.State == "" {
				o.State = model.ObjectivePending
			}
			s.state.SetObjective(o)
		}
		s.send(out, MsgAck, map[string]string{"ack": MsgObjectives})

	case MsgDeploy:
		var p struct {
			MissionIntent       string        `json:"mission_intent"`
			DeploymentDirective string        `json:"deployment_directive"`
			FriendlySides       []string      `json:"friendly_sides"`
			ControlledSides     []string      `json:"controlled_sides"`
			Bounds              config.Bounds `json:"bounds"`
		}
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			s.send(out, MsgError, map[string]string{"error": "bad deploy: " + err.Error()})
			return
		}
		if p.MissionIntent != "" {
			s.state.SetMissionIntent(p.MissionIntent)
		}
		s.state.SetDeploymentDirective(p.DeploymentDirective)
		if len(p.FriendlySides) > 0 || len(p.ControlledSides) > 0 {
			s.state.SetSides(p.FriendlySides, p.ControlledSides)
		}
		if !p.Bounds.Zero() {
			s.state.SetAOBounds(p.Bounds)
		}
		s.state.SetDeployed(true)
		s.log.Info("commander deployed", "intent", p.MissionIntent)
		s.send(out, MsgAck, map[string]string{"ack": MsgDeploy})

	case MsgStartAO:
		var p struct {
			Name   string `json:"name"`
			Intent string `json:"intent"`
		}
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			s.send(out, MsgError, map[string]string{"error": "bad start_ao: " + err.Error()})
			return
		}
		s.state.StartAO(p.Name, p.Intent)
		s.audit.Record(audit.Entry{
			Kind: "ao", Verdict: "START",
			Detail: "name=" + p.Name + " intent=" + p.Intent,
		})
		s.send(out, MsgAck, map[string]string{"ack": MsgStartAO})

	case MsgEndAO:
		var p struct {
			Outcome string `json:"outcome"`
		}
		_ = json.Unmarshal(msg.Payload, &p)
		s.state.EndAO(p.Outcome)
		s.audit.Record(audit.Entry{
			Kind: "ao", Verdict: "END", Detail: "outcome=" + p.Outcome,
		})
		s.send(out, MsgAck, map[string]string{"ack": MsgEndAO})

	case MsgAODefense:
		var p struct {
			Active bool `json:"active"`
		}
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			s.send(out, MsgError, map[string]string{"error": "bad ao_defense: " + err.Error()})
			return
		}
		s.state.SetAODefenseActive(p.Active)
		s.send(out, MsgAck, map[string]string{"ack": MsgAODefense})

	case MsgReset:
		s.cmd.Reset()
		s.cmd.Queue().Clear()
		s.state.SetDeployed(false)
		s.send(out, MsgAck, map[string]string{"ack": MsgReset})

	default:
		s.send(out, MsgError, map[string]string{"error": "unknown message type " + msg.Type})
	}
}

func (s *Server) send(out chan []byte, msgType string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return
	}
	b, err := json.Marshal(Message{Type: msgType, Payload: raw})
	if err != nil {
		return
	}
	select {
	case out <- b:
	default:
		s.log.Warn("outbound buffer full, dropping message", "type", msgType)
	}
}
