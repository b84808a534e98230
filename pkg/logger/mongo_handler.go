package logger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	sinkQueueSize = 2048
	sinkBatchSize = 50
	sinkFlushTick = 2 * time.Second

	// LogCollection holds operator-facing records: skipped categories,
	// failed image resolutions, retry exhaustion.
	LogCollection = "storefront_logs"
)

// Record is the document shape written by MongoSink.
type Record struct {
	Time      time.Time `bson:"time"`
	Level     string    `bson:"level"`
	Msg       string    `bson:"msg"`
	RequestID string    `bson:"request_id,omitempty"`
	Attrs     bson.M    `bson:"attrs,omitempty"`
}

// MongoSink is a slog.Handler that batches records into a Mongo collection
// from a single background goroutine. Handle never blocks: when the queue is
// full the record is dropped.
type MongoSink struct {
	col    *mongo.Collection
	client *mongo.Client
	level  slog.Level
	queue  chan Record
	done   chan struct{}
	closed sync.Once
	wg     *sync.WaitGroup
	attrs  []slog.Attr
	group  string
}

// NewMongoSink connects to uri and writes records at or above level into
// db.storefront_logs.
func NewMongoSink(ctx context.Context, uri, db string, level slog.Level) (*MongoSink, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri).
		SetConnectTimeout(5*time.Second).
		SetServerSelectionTimeout(5*time.Second).
		SetMaxPoolSize(4))
	if err != nil {
		return nil, fmt.Errorf("logger: mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("logger: mongo ping: %w", err)
	}

	col := client.Database(db).Collection(LogCollection)
	_, _ = col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "time", Value: -1}},
	})

	s := &MongoSink{
		col:    col,
		client: client,
		level:  level,
		queue:  make(chan Record, sinkQueueSize),
		done:   make(chan struct{}),
		wg:     &sync.WaitGroup{},
	}
	s.wg.Add(1)
	go s.drain()
	return s, nil
}

func (s *MongoSink) Enabled(_ context.Context, l slog.Level) bool { return l >= s.level }

func (s *MongoSink) Handle(_ context.Context, r slog.Record) error {
	rec := Record{Time: r.Time, Level: r.Level.String(), Msg: r.Message, Attrs: bson.M{}}

	put := func(a slog.Attr) bool {
		if a.Key == "request_id" {
			rec.RequestID = a.Value.String()
			return true
		}
		key := a.Key
		if s.group != "" {
			key = s.group + "." + key
		}
		rec.Attrs[key] = a.Value.Resolve().Any()
		return true
	}
	for _, a := range s.attrs {
		put(a)
	}
	r.Attrs(put)

	select {
	case s.queue <- rec:
	default:
	}
	return nil
}

func (s *MongoSink) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := s.clone()
	c.attrs = append(append([]slog.Attr{}, s.attrs...), attrs...)
	return c
}

func (s *MongoSink) WithGroup(name string) slog.Handler {
	c := s.clone()
	if c.group != "" {
		name = c.group + "." + name
	}
	c.group = name
	return c
}

func (s *MongoSink) clone() *MongoSink {
	return &MongoSink{
		col: s.col, client: s.client, level: s.level,
		queue: s.queue, done: s.done, wg: s.wg,
		attrs: s.attrs, group: s.group,
	}
}

func (s *MongoSink) drain() {
	defer s.wg.Done()

	ticker := time.NewTicker(sinkFlushTick)
	defer ticker.Stop()

	batch := make([]interface{}, 0, sinkBatchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, _ = s.col.InsertMany(ctx, batch)
		batch = batch[:0]
	}

	for {
		select {
		case rec := <-s.queue:
			batch = append(batch, rec)
			if len(batch) >= sinkBatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-s.done:
			for len(s.queue) > 0 {
				batch = append(batch, <-s.queue)
			}
			flush()
			return
		}
	}
}

// Close flushes queued records and disconnects. Safe to call more than once.
func (s *MongoSink) Close(ctx context.Context) error {
	s.closed.Do(func() { close(s.done) })
	s.wg.Wait()
	return s.client.Disconnect(ctx)
}

// MultiHandler fans each record out to several handlers.
type MultiHandler struct {
	handlers []slog.Handler
}

func NewMultiHandler(hs ...slog.Handler) *MultiHandler {
	return &MultiHandler{handlers: hs}
}

func (m *MultiHandler) Enabled(ctx context.Context, l slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, l) {
			return true
		}
	}
	return false
}

func (m *MultiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, h := range m.handlers {
		if h.Enabled(ctx, r.Level) {
			_ = h.Handle(ctx, r.Clone())
		}
	}
	return nil
}

func (m *MultiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	hs := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		hs[i] = h.WithAttrs(attrs)
	}
	return &MultiHandler{handlers: hs}
}

func (m *MultiHandler) WithGroup(name string) slog.Handler {
	hs := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		hs[i] = h.WithGroup(name)
	}
	return &MultiHandler{handlers: hs}
}
