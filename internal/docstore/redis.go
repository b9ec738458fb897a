package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"catnip/internal/observability"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store on Redis. A document is a hash whose fields hold
// JSON-encoded values; integer counters are stored bare so HINCRBY applies
// directly. Set-semantics array fields live in dedicated Redis sets. Every
// sortable field keeps a per-collection sorted-set index whose scores are
// maintained in lockstep with the document inside the same MULTI/EXEC
// transaction, which is also what makes Batch all-or-nothing.
type RedisStore struct {
	client *redis.Client
	schema Schema
}

// NewRedis returns a Store backed by the given Redis client.
func NewRedis(client *redis.Client, schema Schema) *RedisStore {
	return &RedisStore{client: client, schema: schema}
}

type metricsHook struct{}

func (h metricsHook) DialHook(next redis.DialHook) redis.DialHook {
	return next
}

func (h metricsHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		err := next(ctx, cmd)
		if err != nil && !errors.Is(err, redis.Nil) {
			observability.RedisErrors.WithLabelValues(cmd.Name()).Inc()
		}
		return err
	}
}

func (h metricsHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		err := next(ctx, cmds)
		if err != nil && !errors.Is(err, redis.Nil) {
			observability.RedisErrors.WithLabelValues("pipeline").Inc()
		}
		return err
	}
}

// OpenRedis connects a Redis client for document storage. addr may be a plain
// host:port or a redis:// URL.
func OpenRedis(addr string) (*redis.Client, error) {
	var opts *redis.Options
	if parsed, err := redis.ParseURL(addr); err == nil {
		opts = parsed
	} else {
		opts = &redis.Options{Addr: addr}
	}

	client := redis.NewClient(opts)
	client.AddHook(metricsHook{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

func (s *RedisStore) docKey(collection, id string) string {
	return fmt.Sprintf("doc:%s:%s", collection, id)
}

func (s *RedisStore) setKey(collection, id, field string) string {
	return fmt.Sprintf("doc:%s:%s:%s", collection, id, field)
}

func (s *RedisStore) idxKey(collection, field string) string {
	return fmt.Sprintf("idx:%s:%s", collection, field)
}

func (s *RedisStore) channel(collection, id string) string {
	return fmt.Sprintf("docs:%s:%s", collection, id)
}

func (s *RedisStore) indexFields(collection string) []string {
	fields := []string{FieldCreatedAt, FieldUpdatedAt}
	return append(fields, s.schema[collection].SortFields...)
}

func encodeField(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

func decodeField(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	return v
}

func (s *RedisStore) Get(ctx context.Context, collection, id string) (Document, error) {
	raw, err := s.client.HGetAll(ctx, s.docKey(collection, id)).Result()
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, nil
	}

	doc := Document{}
	for field, val := range raw {
		doc[field] = decodeField(val)
	}
	for _, field := range s.schema[collection].SetFields {
		members, err := s.client.SMembers(ctx, s.setKey(collection, id, field)).Result()
		if err != nil {
			return nil, err
		}
		if members == nil {
			members = []string{}
		}
		doc[field] = members
	}
	return doc, nil
}

func (s *RedisStore) Insert(ctx context.Context, collection string, fields Document) (string, error) {
	id := NewID()
	if err := s.Batch(ctx, []BatchOp{InsertOp(collection, id, fields)}); err != nil {
		return "", err
	}
	return id, nil
}

func (s *RedisStore) Update(ctx context.Context, collection, id string, fields Document) error {
	return s.Batch(ctx, []BatchOp{UpdateOp(collection, id, fields)})
}

func (s *RedisStore) Delete(ctx context.Context, collection, id string) error {
	return s.Batch(ctx, []BatchOp{DeleteOp(collection, id)})
}

func (s *RedisStore) AtomicIncrement(ctx context.Context, collection, id, field string, delta int64) error {
	return s.Batch(ctx, []BatchOp{IncrementOp(collection, id, field, delta)})
}

func (s *RedisStore) ArrayAdd(ctx context.Context, collection, id, field, value string) error {
	return s.Batch(ctx, []BatchOp{ArrayAddOp(collection, id, field, value)})
}

func (s *RedisStore) ArrayRemove(ctx context.Context, collection, id, field, value string) error {
	return s.Batch(ctx, []BatchOp{ArrayRemoveOp(collection, id, field, value)})
}

// Batch applies every op inside one MULTI/EXEC transaction. Mutations of
// missing documents are rejected up front; the existence check runs before the
// transaction is queued.
func (s *RedisStore) Batch(ctx context.Context, ops []BatchOp) error {
	now := time.Now().UnixMilli()

	for i := range ops {
		op := &ops[i]
		switch op.Kind {
		case OpInsert:
			if op.ID == "" {
				op.ID = NewID()
			}
		case OpUpdate, OpDelete, OpIncrement, OpArrayAdd, OpArrayRemove:
			exists, err := s.client.Exists(ctx, s.docKey(op.Collection, op.ID)).Result()
			if err != nil {
				return err
			}
			if exists == 0 {
				return fmt.Errorf("%s %s/%s: document does not exist", op.Kind, op.Collection, op.ID)
			}
		default:
			return fmt.Errorf("unknown batch op %q", op.Kind)
		}
		if op.Kind == OpArrayAdd || op.Kind == OpArrayRemove {
			if !s.schema.SetField(op.Collection, op.Field) {
				return fmt.Errorf("%s/%s: field %q has no set semantics", op.Collection, op.ID, op.Field)
			}
		}
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, op := range ops {
			if err := s.queueOp(ctx, pipe, op, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, op := range ops {
		payload := "updated"
		if op.Kind == OpDelete {
			payload = "deleted"
		}
		s.client.Publish(ctx, s.channel(op.Collection, op.ID), payload)
	}
	return nil
}

func (s *RedisStore) queueOp(ctx context.Context, pipe redis.Pipeliner, op BatchOp, now int64) error {
	key := s.docKey(op.Collection, op.ID)

	switch op.Kind {
	case OpInsert:
		fields := Document{}
		for k, v := range op.Fields {
			fields[k] = v
		}
		fields[FieldID] = op.ID
		fields[FieldCreatedAt] = now
		fields[FieldUpdatedAt] = now
		s.queueFields(ctx, pipe, op.Collection, op.ID, fields)

	case OpUpdate:
		fields := Document{}
		for k, v := range op.Fields {
			fields[k] = v
		}
		fields[FieldUpdatedAt] = now
		s.queueFields(ctx, pipe, op.Collection, op.ID, fields)

	case OpDelete:
		keys := []string{key}
		for _, field := range s.schema[op.Collection].SetFields {
			keys = append(keys, s.setKey(op.Collection, op.ID, field))
		}
		pipe.Del(ctx, keys...)
		for _, field := range s.indexFields(op.Collection) {
			pipe.ZRem(ctx, s.idxKey(op.Collection, field), op.ID)
		}

	case OpIncrement:
		pipe.HIncrBy(ctx, key, op.Field, op.Delta)
		if s.schema.Sortable(op.Collection, op.Field) {
			pipe.ZIncrBy(ctx, s.idxKey(op.Collection, op.Field), float64(op.Delta), op.ID)
		}

	case OpArrayAdd:
		pipe.SAdd(ctx, s.setKey(op.Collection, op.ID, op.Field), op.Value)

	case OpArrayRemove:
		pipe.SRem(ctx, s.setKey(op.Collection, op.ID, op.Field), op.Value)
	}
	return nil
}

func (s *RedisStore) queueFields(ctx context.Context, pipe redis.Pipeliner, collection, id string, fields Document) {
	key := s.docKey(collection, id)
	pairs := make([]any, 0, len(fields)*2)
	for field, value := range fields {
		if s.schema.SetField(collection, field) {
			setKey := s.setKey(collection, id, field)
			pipe.Del(ctx, setKey)
			for _, member := range stringMembers(value) {
				pipe.SAdd(ctx, setKey, member)
			}
			continue
		}
		pairs = append(pairs, field, encodeField(value))
		if s.schema.Sortable(collection, field) {
			if score, ok := NumericValue(value); ok {
				pipe.ZAdd(ctx, s.idxKey(collection, field), redis.Z{Score: score, Member: id})
			}
		}
	}
	if len(pairs) > 0 {
		pipe.HSet(ctx, key, pairs...)
	}
}

func stringMembers(v any) []string {
	switch arr := v.(type) {
	case []string:
		return arr
	case []any:
		members := make([]string, 0, len(arr))
		for _, m := range arr {
			if s, ok := m.(string); ok {
				members = append(members, s)
			}
		}
		return members
	}
	return nil
}

const queryChunkSize = 256

// Query walks the sorted-set index for the requested order, loads candidate
// documents and filters them with Match. The cursor is (score, id) of the last
// returned document; equal-score members at the boundary are skipped by
// comparing member ids against the cursor id, the same keyset predicate the
// SQL adapter uses, so pagination survives the cursor document being deleted
// between pages.
func (s *RedisStore) Query(ctx context.Context, collection string, q Query) (Page, error) {
	order := q.orderOrDefault()
	if !s.schema.Sortable(collection, order.Field) {
		return Page{}, fmt.Errorf("%s: field %q is not sortable", collection, order.Field)
	}
	if q.Limit <= 0 {
		return Page{}, fmt.Errorf("query limit must be positive")
	}

	min, max := "-inf", "+inf"
	var cur cursor
	var hasCursor bool
	if q.Cursor != "" {
		var err error
		cur, err = decodeCursor(q.Cursor)
		if err != nil {
			return Page{}, err
		}
		hasCursor = true
		bound := strconv.FormatFloat(cur.Score, 'f', -1, 64)
		if order.Desc {
			max = bound
		} else {
			min = bound
		}
	}

	idx := s.idxKey(collection, order.Field)
	page := Page{Docs: []Document{}}
	var lastScore float64

	for offset := int64(0); ; {
		rangeBy := &redis.ZRangeBy{Min: min, Max: max, Offset: offset, Count: queryChunkSize}
		var chunk []redis.Z
		var err error
		if order.Desc {
			chunk, err = s.client.ZRevRangeByScoreWithScores(ctx, idx, rangeBy).Result()
		} else {
			chunk, err = s.client.ZRangeByScoreWithScores(ctx, idx, rangeBy).Result()
		}
		if err != nil {
			return Page{}, err
		}

		for _, z := range chunk {
			member := fmt.Sprint(z.Member)
			if hasCursor && z.Score == cur.Score {
				// Equal-score members order lexically within the set, so
				// everything at or before the cursor id was already returned.
				if order.Desc && member >= cur.ID {
					continue
				}
				if !order.Desc && member <= cur.ID {
					continue
				}
			}

			doc, err := s.Get(ctx, collection, member)
			if err != nil {
				return Page{}, err
			}
			if doc == nil || !Match(doc, q.Predicates) {
				continue
			}
			page.Docs = append(page.Docs, doc)
			lastScore = z.Score
			if len(page.Docs) == q.Limit {
				page.NextCursor = encodeCursor(cursor{Score: lastScore, ID: member})
				return page, nil
			}
		}

		if len(chunk) < queryChunkSize {
			return page, nil
		}
		offset += int64(len(chunk))
	}
}

// Subscribe delivers the fresh document on every change notification; a nil
// document signals deletion. The returned function stops the subscription.
func (s *RedisStore) Subscribe(ctx context.Context, collection, id string, fn func(Document)) (func(), error) {
	sub := s.client.Subscribe(ctx, s.channel(collection, id))
	if _, err := sub.Receive(ctx); err != nil {
		return nil, err
	}

	go func() {
		for msg := range sub.Channel() {
			if msg.Payload == "deleted" {
				fn(nil)
				continue
			}
			doc, err := s.Get(context.Background(), collection, id)
			if err != nil {
				continue
			}
			fn(doc)
		}
	}()

	return func() { _ = sub.Close() }, nil
}

var _ Store = (*RedisStore)(nil)
