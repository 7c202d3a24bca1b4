package api

import (
    "context"
    "encoding/json"
    "sync"
    "time"

    redis "github.com/redis/go-redis/v9"
    "github.com/sirupsen/logrus"

    "chainsim/internal/logging"
)

// RedisBroker implements EventBroker over Redis Pub/Sub so several API
// replicas can serve streams of one simulation. Publishes are queued and sent
// by a single goroutine; the simulation calls Publish with its lock held.
type RedisBroker struct {
    rdb    *redis.Client
    prefix string
    log    logrus.FieldLogger

    mu   sync.Mutex
    subs map[chan SSEEvent]*redis.PubSub

    out  chan redisMsg
    done chan struct{}
}

type redisMsg struct {
    channel string
    payload []byte
}

func NewRedisBroker(url string, log logrus.FieldLogger) (*RedisBroker, error) {
    opt, err := redis.ParseURL(url)
    if err != nil { return nil, err }
    rdb := redis.NewClient(opt)
    ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
    defer cancel()
    if err := rdb.Ping(ctx).Err(); err != nil {
        _ = rdb.Close()
        return nil, err
    }
    b := &RedisBroker{
        rdb:    rdb,
        prefix: "chainsim:",
        log:    logging.Component(log, "broker"),
        subs:   map[chan SSEEvent]*redis.PubSub{},
        out:    make(chan redisMsg, 1024),
        done:   make(chan struct{}),
    }
    go b.publishLoop()
    return b, nil
}

func (b *RedisBroker) Subscribe(topic string) chan SSEEvent {
    ch := make(chan SSEEvent, 64)
    ctx := context.Background()
    ps := b.rdb.Subscribe(ctx, b.chanName(topic))
    // initial consume to ensure subscription
    if _, err := ps.Receive(ctx); err != nil {
        b.log.WithError(err).WithField("topic", topic).Warn("redis subscribe failed")
    }
    b.mu.Lock()
    b.subs[ch] = ps
    b.mu.Unlock()
    go func() {
        for msg := range ps.Channel() {
            var evt SSEEvent
            if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil { continue }
            b.mu.Lock()
            if _, live := b.subs[ch]; live {
                select { case ch <- evt: default: }
            }
            b.mu.Unlock()
        }
    }()
    return ch
}

func (b *RedisBroker) Unsubscribe(topic string, ch chan SSEEvent) {
    b.mu.Lock()
    ps, ok := b.subs[ch]
    delete(b.subs, ch)
    if ok { close(ch) }
    b.mu.Unlock()
    if ok { _ = ps.Close() }
}

func (b *RedisBroker) Publish(topic string, evt SSEEvent) {
    data, err := json.Marshal(evt)
    if err != nil { return }
    select {
    case b.out <- redisMsg{channel: b.chanName(topic), payload: data}:
    default:
        b.log.WithField("topic", topic).Debug("redis publish queue full, event dropped")
    }
}

func (b *RedisBroker) publishLoop() {
    for {
        select {
        case <-b.done:
            return
        case m := <-b.out:
            ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
            if err := b.rdb.Publish(ctx, m.channel, m.payload).Err(); err != nil {
                b.log.WithError(err).Warn("redis publish failed")
            }
            cancel()
        }
    }
}

// Ping checks the Redis connection (used by readyz).
func (b *RedisBroker) Ping(ctx context.Context) error { return b.rdb.Ping(ctx).Err() }

func (b *RedisBroker) Close() error {
    close(b.done)
    return b.rdb.Close()
}

func (b *RedisBroker) chanName(topic string) string { return b.prefix + topic }
