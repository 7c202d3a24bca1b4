// Package main runs a demo WebSocket client: it subscribes to one route's
// events, starts the simulation and prints what arrives.
package main

import (
	"encoding/json"
	"flag"
	"log"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

type wsMessage struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func main() {
	route := flag.String("route", "", "route id to follow (all simulation events when empty)")
	speed := flag.Float64("speed", 10, "speed to set before playing")
	wait := flag.Duration("wait", 5*time.Second, "how long to listen")
	flag.Parse()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/v1/ws"}
	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer func() { _ = c.Close() }()

	send := func(m wsMessage) {
		if err := c.WriteJSON(m); err != nil {
			log.Fatal(err)
		}
	}
	send(wsMessage{Type: "connection_init"})

	sub := map[string]any{"topic": "sim"}
	if *route != "" {
		sub = map[string]any{"routeId": *route}
	}
	pl, _ := json.Marshal(sub)
	send(wsMessage{Type: "subscribe", ID: "1", Payload: pl})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var m wsMessage
			if err := c.ReadJSON(&m); err != nil {
				log.Printf("read: %v", err)
				return
			}
			if m.Type == "ping" {
				_ = c.WriteJSON(wsMessage{Type: "pong"})
				continue
			}
			log.Printf("WS <- %s: %s", m.Type, string(m.Payload))
		}
	}()

	time.Sleep(300 * time.Millisecond)
	ctl, _ := json.Marshal(map[string]any{"action": "speed", "speed": *speed})
	send(wsMessage{Type: "control", ID: "speed", Payload: ctl})
	ctl, _ = json.Marshal(map[string]any{"action": "play"})
	send(wsMessage{Type: "control", ID: "play", Payload: ctl})

	select {
	case <-time.After(*wait):
	case <-done:
	}
}
