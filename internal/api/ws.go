package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"chainsim/internal/metrics"
	"chainsim/internal/model"
)

// WebSocket stream and control channel, using graphql-transport-ws style
// framing: connection_init/connection_ack, subscribe/next/complete, ping/pong.
// "control" messages drive the simulation and get a "result" reply.

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

type wsMessage struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type subscribePayload struct {
	Topic   string `json:"topic,omitempty"`
	RouteID string `json:"routeId,omitempty"`
}

type controlResult struct {
	OK    bool         `json:"ok"`
	Error string       `json:"error,omitempty"`
	State *controlView `json:"state,omitempty"`
}

// WSHandler handles /v1/ws
func (s *Server) WSHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()
	clients := metrics.StreamClients.WithLabelValues("ws")
	clients.Inc()
	defer clients.Dec()
	log := s.Log.WithFields(logrus.Fields{"remote": r.RemoteAddr, "transport": "ws"})

	type sub struct {
		topic string
		ch    chan SSEEvent
	}
	subs := map[string]sub{}
	var wg sync.WaitGroup
	done := make(chan struct{})

	conn.SetReadLimit(1 << 16)
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error { _ = conn.SetReadDeadline(time.Now().Add(60 * time.Second)); return nil })

	// gorilla connections allow one concurrent writer
	var wmu sync.Mutex
	write := func(v any) error {
		wmu.Lock()
		defer wmu.Unlock()
		_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		return conn.WriteJSON(v)
	}
	writeErr := func(id, msg string) {
		payload, _ := json.Marshal(map[string]string{"message": msg})
		_ = write(wsMessage{Type: "error", ID: id, Payload: payload})
	}

	acked := false
	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		if !acked && msg.Type != "connection_init" {
			writeErr(msg.ID, "connection_init required")
			continue
		}
		switch msg.Type {
		case "connection_init":
			if acked {
				continue
			}
			acked = true
			_ = write(wsMessage{Type: "connection_ack"})
			wg.Add(1)
			go func() {
				defer wg.Done()
				ticker := time.NewTicker(20 * time.Second)
				defer ticker.Stop()
				for {
					select {
					case <-done:
						return
					case <-ticker.C:
						if err := write(wsMessage{Type: "ping"}); err != nil {
							return
						}
					}
				}
			}()
		case "ping":
			_ = write(wsMessage{Type: "pong"})
		case "pong":
		case "subscribe":
			if msg.ID == "" {
				writeErr("", "subscription id required")
				continue
			}
			if _, dup := subs[msg.ID]; dup {
				writeErr(msg.ID, "subscription id already in use")
				continue
			}
			topic, err := s.wsTopic(msg.Payload)
			if err != nil {
				writeErr(msg.ID, err.Error())
				_ = write(wsMessage{Type: "complete", ID: msg.ID})
				continue
			}
			ch := s.Broker.Subscribe(topic)
			subs[msg.ID] = sub{topic: topic, ch: ch}
			wg.Add(1)
			go func(id string, c chan SSEEvent) {
				defer wg.Done()
				for evt := range c {
					payload, err := json.Marshal(evt)
					if err != nil {
						continue
					}
					if err := write(wsMessage{Type: "next", ID: id, Payload: payload}); err != nil {
						return
					}
				}
				_ = write(wsMessage{Type: "complete", ID: id})
			}(msg.ID, ch)
		case "complete":
			if s0, ok := subs[msg.ID]; ok {
				s.Broker.Unsubscribe(s0.topic, s0.ch)
				delete(subs, msg.ID)
			}
		case "control":
			res := s.wsControl(msg.Payload)
			if res.Error != "" {
				log.WithField("error", res.Error).Debug("ws control rejected")
			}
			payload, _ := json.Marshal(res)
			_ = write(wsMessage{Type: "result", ID: msg.ID, Payload: payload})
		default:
			// ignore
		}
	}
	close(done)
	for id, s0 := range subs {
		s.Broker.Unsubscribe(s0.topic, s0.ch)
		delete(subs, id)
	}
	wg.Wait()
}

func (s *Server) wsTopic(raw json.RawMessage) (string, error) {
	var pl subscribePayload
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &pl); err != nil {
			return "", err
		}
	}
	switch {
	case pl.RouteID != "":
		if !s.knownRoute(pl.RouteID) {
			return "", errors.New("unknown route " + pl.RouteID)
		}
		return RouteTopic(pl.RouteID), nil
	case pl.Topic == "" || pl.Topic == TopicSim:
		return TopicSim, nil
	case strings.HasPrefix(pl.Topic, "route:") && s.knownRoute(strings.TrimPrefix(pl.Topic, "route:")):
		return pl.Topic, nil
	}
	return "", errors.New("unknown topic " + pl.Topic)
}

func (s *Server) wsControl(raw json.RawMessage) controlResult {
	if !s.limiter.Allow() {
		metrics.HTTPRateLimited.Inc()
		return controlResult{Error: "rate limited"}
	}
	var m controlMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return controlResult{Error: err.Error()}
	}
	if err := validateControl(&m); err != nil {
		return controlResult{Error: err.Error()}
	}
	var err error
	switch m.Action {
	case "toggle":
		s.Sim.Toggle()
	case "play":
		s.Sim.Play()
	case "pause":
		s.Sim.Pause()
	case "reset":
		s.Sim.Reset()
	case "speed":
		err = s.Sim.SetSpeed(*m.Speed)
	case "scenario":
		err = s.Sim.SetScenario(model.Scenario(m.Scenario))
	case "dispatch":
		err = s.Sim.Dispatch(m.RouteID)
	}
	if err != nil {
		return controlResult{Error: err.Error()}
	}
	v := s.control()
	return controlResult{OK: true, State: &v}
}
