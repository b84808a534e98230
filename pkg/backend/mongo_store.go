package backend

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/shashiranjanraj/storefront/pkg/metrics"
)

const (
	fieldID     = "_id"
	fieldKey    = "_key"
	fieldParent = "_parent"
)

// MongoStore maps path-addressed documents onto Mongo collections. The
// document at "a/A/b/B" lives in collection "b" with _id "a/A/b/B",
// _key "B" and _parent "a/A", so the same id may exist under many parents.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

// DialMongo connects to uri and pings the primary.
func DialMongo(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri).
		SetConnectTimeout(5*time.Second).
		SetServerSelectionTimeout(5*time.Second))
	if err != nil {
		return nil, E("mongo.connect", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, E("mongo.ping", err)
	}
	return &MongoStore{client: client, db: client.Database(database)}, nil
}

// Client exposes the driver client (the order gateway and log sink share it).
func (s *MongoStore) Client() *mongo.Client { return s.client }

// Database returns the storefront database.
func (s *MongoStore) Database() *mongo.Database { return s.db }

func observe(op string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = Classify(err).String()
	}
	metrics.ObserveBackendCall(op, outcome, start)
}

func (s *MongoStore) Get(ctx context.Context, docPath string) (doc Document, err error) {
	defer func(t time.Time) { observe("get", t, err) }(time.Now())

	col, key, err := mongoDoc(docPath, nil)
	if err != nil {
		return Document{}, E("mongo.get", err)
	}

	var raw bson.M
	err = s.db.Collection(col).FindOne(ctx, bson.M{fieldID: key[fieldID]}).Decode(&raw)
	if err != nil {
		return Document{}, E("mongo.get "+docPath, err)
	}
	return toDocument(docPath, raw), nil
}

func (s *MongoStore) List(ctx context.Context, collectionPath, orderBy string) (docs []Document, err error) {
	defer func(t time.Time) { observe("list", t, err) }(time.Now())

	col, parent, err := parseCollection(collectionPath)
	if err != nil {
		return nil, E("mongo.list", err)
	}

	opts := options.Find()
	if orderBy != "" {
		opts.SetSort(bson.D{{Key: orderBy, Value: 1}})
	}

	cur, err := s.db.Collection(col).Find(ctx, bson.M{fieldParent: parent}, opts)
	if err != nil {
		return nil, E("mongo.list "+collectionPath, err)
	}
	defer cur.Close(ctx)

	for cur.Next(ctx) {
		var raw bson.M
		if err := cur.Decode(&raw); err != nil {
			return nil, E("mongo.list "+collectionPath, err)
		}
		docs = append(docs, toDocument(strings.Trim(collectionPath, "/")+"/"+docKey(raw), raw))
	}
	if err := cur.Err(); err != nil {
		return nil, E("mongo.list "+collectionPath, err)
	}
	return docs, nil
}

func (s *MongoStore) Set(ctx context.Context, docPath string, fields map[string]any) (err error) {
	defer func(t time.Time) { observe("set", t, err) }(time.Now())

	col, doc, err := mongoDoc(docPath, fields)
	if err != nil {
		return E("mongo.set", err)
	}

	_, err = s.db.Collection(col).ReplaceOne(ctx,
		bson.M{fieldID: doc[fieldID]},
		doc,
		options.Replace().SetUpsert(true),
	)
	return E("mongo.set "+docPath, err)
}

// EnsureIndexes indexes _parent on each collection so List stays a range
// scan.
func (s *MongoStore) EnsureIndexes(ctx context.Context, collections ...string) error {
	var errs []error
	for _, col := range collections {
		_, err := s.db.Collection(col).Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys: bson.D{{Key: fieldParent, Value: 1}, {Key: fieldKey, Value: 1}},
		})
		errs = append(errs, E("mongo.index "+col, err))
	}
	return errors.Join(errs...)
}

// mongoDoc builds the stored form of fields at docPath.
func mongoDoc(docPath string, fields map[string]any) (collection string, doc bson.M, err error) {
	col, id, parent, err := parseDoc(docPath)
	if err != nil {
		return "", nil, err
	}
	doc = bson.M{}
	for k, v := range fields {
		doc[k] = v
	}
	doc[fieldID] = strings.Trim(docPath, "/")
	doc[fieldKey] = id
	doc[fieldParent] = parent
	return col, doc, nil
}

// docKey returns the last path segment of a stored document.
func docKey(raw bson.M) string {
	if k, ok := raw[fieldKey].(string); ok && k != "" {
		return k
	}
	full, _ := raw[fieldID].(string)
	return full[strings.LastIndex(full, "/")+1:]
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return E("mongo.ping", s.client.Ping(ctx, readpref.Primary()))
}

func (s *MongoStore) Close(ctx context.Context) error {
	err := s.client.Disconnect(ctx)
	if errors.Is(err, mongo.ErrClientDisconnected) {
		return nil
	}
	return E("mongo.close", err)
}

// Watch follows a change stream and reports the path of every document
// changed under parentPrefix. It needs a replica set; on a standalone server
// it fails immediately.
func (s *MongoStore) Watch(ctx context.Context, collection, parentPrefix string, fn func(docPath string)) error {
	prefix := strings.Trim(parentPrefix, "/") + "/"
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"documentKey." + fieldID: bson.M{"$regex": "^" + regexp.QuoteMeta(prefix)},
		}}},
	}
	stream, err := s.db.Collection(collection).Watch(ctx, pipeline)
	if err != nil {
		return E("mongo.watch "+collection, err)
	}
	defer stream.Close(context.Background())

	for stream.Next(ctx) {
		var ev struct {
			DocumentKey bson.M `bson:"documentKey"`
		}
		if err := stream.Decode(&ev); err != nil {
			continue
		}
		if p, ok := ev.DocumentKey[fieldID].(string); ok {
			fn(p)
		}
	}
	if ctx.Err() != nil {
		return nil
	}
	return E("mongo.watch "+collection, stream.Err())
}

func toDocument(path string, raw bson.M) Document {
	fields := make(map[string]any, len(raw))
	for k, v := range raw {
		if k == fieldID || k == fieldKey || k == fieldParent {
			continue
		}
		fields[k] = plain(v)
	}
	return Document{ID: docKey(raw), Path: path, Fields: fields}
}

// plain converts driver types into the JSON-like values the menu decoder
// expects.
func plain(v any) any {
	switch t := v.(type) {
	case bson.M:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = plain(vv)
		}
		return out
	case bson.D:
		out := make(map[string]any, len(t))
		for _, e := range t {
			out[e.Key] = plain(e.Value)
		}
		return out
	case bson.A:
		out := make([]any, len(t))
		for i, vv := range t {
			out[i] = plain(vv)
		}
		return out
	case primitive.Decimal128:
		return t.String()
	case primitive.DateTime:
		return t.Time()
	case primitive.ObjectID:
		return t.Hex()
	default:
		return v
	}
}

var (
	_ DocumentStore = (*MongoStore)(nil)
	_ Watcher       = (*MongoStore)(nil)
)
