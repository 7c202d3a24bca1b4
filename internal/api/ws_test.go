package api

import (
    "encoding/json"
    "net/http/httptest"
    "strings"
    "testing"
    "time"

    "github.com/gorilla/websocket"

    "chainsim/internal/config"
)

func dialWS(t *testing.T, e *testEnv) *websocket.Conn {
    t.Helper()
    ts := httptest.NewServer(e.handler)
    t.Cleanup(ts.Close)
    url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/ws"
    conn, _, err := websocket.DefaultDialer.Dial(url, nil)
    if err != nil { t.Fatalf("dial: %v", err) }
    t.Cleanup(func() { _ = conn.Close() })
    _ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
    return conn
}

// readUntil returns the first message of the given type, skipping others.
func readUntil(t *testing.T, conn *websocket.Conn, typ string) wsMessage {
    t.Helper()
    for i := 0; i < 200; i++ {
        var m wsMessage
        if err := conn.ReadJSON(&m); err != nil { t.Fatalf("read waiting for %s: %v", typ, err) }
        if m.Type == typ { return m }
    }
    t.Fatalf("no %s message", typ)
    return wsMessage{}
}

func TestWSHandshakeControlAndStream(t *testing.T) {
    e := newTestEnv(t, config.Config{})
    conn := dialWS(t, e)

    _ = conn.WriteJSON(wsMessage{Type: "connection_init"})
    readUntil(t, conn, "connection_ack")

    _ = conn.WriteJSON(wsMessage{Type: "subscribe", ID: "1", Payload: json.RawMessage(`{"topic":"sim"}`)})
    deadline := time.Now().Add(time.Second)
    for e.srv.Broker.(*Broker).Subscribers(TopicSim) == 0 && time.Now().Before(deadline) { time.Sleep(5 * time.Millisecond) }

    _ = conn.WriteJSON(wsMessage{Type: "control", ID: "c1", Payload: json.RawMessage(`{"action":"speed","speed":4}`)})
    // the state event and the control reply race on the wire
    var res, next wsMessage
    for res.Type == "" || next.Type == "" {
        var m wsMessage
        if err := conn.ReadJSON(&m); err != nil { t.Fatalf("read: %v", err) }
        switch m.Type {
        case "result": res = m
        case "next": if next.Type == "" { next = m }
        }
    }
    var cr controlResult
    _ = json.Unmarshal(res.Payload, &cr)
    if !cr.OK || cr.State == nil || cr.State.Speed != 4 { t.Fatalf("control result: %s", res.Payload) }
    var evt SSEEvent
    _ = json.Unmarshal(next.Payload, &evt)
    if next.ID != "1" || evt.Type == "" { t.Fatalf("next: %+v", next) }

    _ = conn.WriteJSON(wsMessage{Type: "control", ID: "c2", Payload: json.RawMessage(`{"action":"speed","speed":50}`)})
    res = readUntil(t, conn, "result")
    cr = controlResult{}
    _ = json.Unmarshal(res.Payload, &cr)
    if cr.OK || cr.Error == "" { t.Fatalf("out of range speed accepted: %s", res.Payload) }
}

func TestWSRequiresInit(t *testing.T) {
    e := newTestEnv(t, config.Config{})
    conn := dialWS(t, e)
    _ = conn.WriteJSON(wsMessage{Type: "subscribe", ID: "1"})
    m := readUntil(t, conn, "error")
    if !strings.Contains(string(m.Payload), "connection_init") { t.Fatalf("error payload: %s", m.Payload) }
}

func TestWSUnknownRouteSubscription(t *testing.T) {
    e := newTestEnv(t, config.Config{})
    conn := dialWS(t, e)
    _ = conn.WriteJSON(wsMessage{Type: "connection_init"})
    readUntil(t, conn, "connection_ack")
    _ = conn.WriteJSON(wsMessage{Type: "subscribe", ID: "9", Payload: json.RawMessage(`{"routeId":"nope"}`)})
    readUntil(t, conn, "error")
    readUntil(t, conn, "complete")
}
