package repositories

import (
	"context"
	"reflect"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// fakeCollection is an in-memory collection that mimics the subset of
// MongoDB behavior used by AnimalRepository: equality and $in / $exists
// filters, $set / $inc / $unset updates. Aggregations return canned rows and
// record the pipeline they were given.
type fakeCollection struct {
	mu        sync.Mutex
	docs      []bson.M
	err       error
	insertErr error

	aggregateRows []bson.M
	pipelines     []mongo.Pipeline
	calls         int
}

func newFakeCollection(docs ...bson.M) *fakeCollection {
	fc := &fakeCollection{}
	for _, d := range docs {
		fc.docs = append(fc.docs, cloneDoc(d))
	}
	return fc
}

func (c *fakeCollection) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) singleResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.err != nil {
		return fakeSingleResult{err: c.err}
	}
	for _, d := range c.docs {
		if matches(d, filter.(bson.M)) {
			return fakeSingleResult{}
		}
	}
	return fakeSingleResult{err: mongo.ErrNoDocuments}
}

func (c *fakeCollection) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (cursor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	var out []bson.M
	for _, d := range c.docs {
		if matches(d, filter.(bson.M)) {
			out = append(out, cloneDoc(d))
		}
	}
	return &fakeCursor{docs: out}, nil
}

func (c *fakeCollection) InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	if c.insertErr != nil {
		return nil, c.insertErr
	}
	doc := cloneDoc(document.(bson.M))
	if _, ok := doc["_id"]; !ok {
		doc["_id"] = primitive.NewObjectID()
	}
	c.docs = append(c.docs, doc)
	return &mongo.InsertOneResult{InsertedID: doc["_id"]}, nil
}

func (c *fakeCollection) UpdateMany(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	res := &mongo.UpdateResult{}
	for i, d := range c.docs {
		if !matches(d, filter.(bson.M)) {
			continue
		}
		res.MatchedCount++
		updated := applyUpdate(d, update.(bson.M))
		if !reflect.DeepEqual(updated, d) {
			res.ModifiedCount++
			c.docs[i] = updated
		}
	}
	return res, nil
}

func (c *fakeCollection) DeleteMany(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (*mongo.DeleteResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	kept := c.docs[:0]
	var deleted int64
	for _, d := range c.docs {
		if matches(d, filter.(bson.M)) {
			deleted++
			continue
		}
		kept = append(kept, d)
	}
	c.docs = kept
	return &mongo.DeleteResult{DeletedCount: deleted}, nil
}

func (c *fakeCollection) Aggregate(ctx context.Context, pipeline interface{}, opts ...*options.AggregateOptions) (cursor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	c.pipelines = append(c.pipelines, pipeline.(mongo.Pipeline))
	if c.err != nil {
		return nil, c.err
	}
	return &fakeCursor{docs: c.aggregateRows}, nil
}

func (c *fakeCollection) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.docs)
}

type fakeSingleResult struct {
	err error
}

func (r fakeSingleResult) Err() error {
	return r.err
}

// fakeCursor decodes its documents through a real BSON round trip so the
// destination types see the same conversions as with the driver.
type fakeCursor struct {
	docs []bson.M
	err  error
}

func (c *fakeCursor) All(ctx context.Context, results interface{}) error {
	if c.err != nil {
		return c.err
	}
	items := c.docs
	if items == nil {
		items = []bson.M{}
	}
	raw, err := bson.Marshal(bson.M{"items": items})
	if err != nil {
		return err
	}
	dst := reflect.ValueOf(results).Elem()
	wrapper := reflect.New(reflect.StructOf([]reflect.StructField{{
		Name: "Items",
		Type: dst.Type(),
		Tag:  `bson:"items"`,
	}}))
	if err := bson.Unmarshal(raw, wrapper.Interface()); err != nil {
		return err
	}
	dst.Set(wrapper.Elem().Field(0))
	return nil
}

func matches(doc bson.M, filter bson.M) bool {
	for field, want := range filter {
		got, present := doc[field]
		if op, ok := want.(bson.M); ok {
			if !matchOperators(got, present, op) {
				return false
			}
			continue
		}
		if !present || !equalValues(got, want) {
			return false
		}
	}
	return true
}

func matchOperators(got interface{}, present bool, ops bson.M) bool {
	for op, arg := range ops {
		switch op {
		case "$in":
			found := false
			for _, v := range arg.(bson.A) {
				if present && equalValues(got, v) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		case "$exists":
			if present != arg.(bool) {
				return false
			}
		default:
			panic("fakeCollection: unsupported operator " + op)
		}
	}
	return true
}

func applyUpdate(doc bson.M, update bson.M) bson.M {
	out := cloneDoc(doc)
	for op, arg := range update {
		fields := arg.(bson.M)
		switch op {
		case "$set":
			for k, v := range fields {
				out[k] = v
			}
		case "$unset":
			for k := range fields {
				delete(out, k)
			}
		case "$inc":
			for k, v := range fields {
				cur, _ := toFloat(out[k])
				delta, _ := toFloat(v)
				out[k] = cur + delta
			}
		default:
			panic("fakeCollection: unsupported update operator " + op)
		}
	}
	return out
}

func equalValues(a, b interface{}) bool {
	fa, okA := toFloat(a)
	fb, okB := toFloat(b)
	if okA && okB {
		return fa == fb
	}
	return reflect.DeepEqual(a, b)
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func cloneDoc(src bson.M) bson.M {
	dst := make(bson.M, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
