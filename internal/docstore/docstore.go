// Package docstore defines the document store contract the application is
// built against: schemaless documents grouped in collections, with filtered
// ordered queries, cursor pagination, atomic numeric increments, set-semantics
// array mutations, all-or-nothing batches and per-document change
// subscriptions. Two adapters implement the contract (Redis and SQL); callers
// only ever see the Store interface.
package docstore

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Document is a single stored record. Values are JSON-shaped: string, bool,
// float64, []any / []string, map[string]any.
type Document map[string]any

// Reserved fields every adapter assigns on write.
const (
	FieldID        = "id"
	FieldCreatedAt = "createdAt"
	FieldUpdatedAt = "updatedAt"
)

// Predicate ops.
const (
	OpEqual       = "=="
	OpContainsAny = "array-contains-any"
)

// Predicate is a single query constraint.
type Predicate struct {
	Field  string
	Op     string
	Value  any      // OpEqual
	Values []string // OpContainsAny
}

// Eq constrains Field to equal value.
func Eq(field string, value any) Predicate {
	return Predicate{Field: field, Op: OpEqual, Value: value}
}

// ContainsAny matches documents whose array Field carries at least one of values.
func ContainsAny(field string, values ...string) Predicate {
	return Predicate{Field: field, Op: OpContainsAny, Values: values}
}

// OrderBy names the sort field and direction for a query. The zero value
// means createdAt descending.
type OrderBy struct {
	Field string
	Desc  bool
}

// Query describes a filtered, ordered, paginated fetch. Cursor is an opaque
// token from a previous Page; empty means start from the beginning of the
// requested order.
type Query struct {
	Predicates []Predicate
	OrderBy    OrderBy
	Limit      int
	Cursor     string
}

// Page is one query result page. NextCursor is set only when the page was
// filled to its limit; a shorter page signals exhaustion.
type Page struct {
	Docs       []Document
	NextCursor string
}

// Batch op kinds.
const (
	OpInsert      = "insert"
	OpUpdate      = "update"
	OpDelete      = "delete"
	OpIncrement   = "increment"
	OpArrayAdd    = "array-add"
	OpArrayRemove = "array-remove"
)

// BatchOp is one operation inside an atomic batch. Inserted documents need
// their ID pre-allocated with NewID so the caller can reference it before the
// batch commits.
type BatchOp struct {
	Kind       string
	Collection string
	ID         string
	Fields     Document // insert / update
	Field      string   // increment / array ops
	Delta      int64    // increment
	Value      string   // array member
}

// InsertOp inserts a document with a pre-allocated id.
func InsertOp(collection, id string, fields Document) BatchOp {
	return BatchOp{Kind: OpInsert, Collection: collection, ID: id, Fields: fields}
}

// UpdateOp merges fields into an existing document.
func UpdateOp(collection, id string, fields Document) BatchOp {
	return BatchOp{Kind: OpUpdate, Collection: collection, ID: id, Fields: fields}
}

// DeleteOp removes a document.
func DeleteOp(collection, id string) BatchOp {
	return BatchOp{Kind: OpDelete, Collection: collection, ID: id}
}

// IncrementOp atomically adds delta to a numeric field.
func IncrementOp(collection, id, field string, delta int64) BatchOp {
	return BatchOp{Kind: OpIncrement, Collection: collection, ID: id, Field: field, Delta: delta}
}

// ArrayAddOp adds value to a set-semantics array field (idempotent).
func ArrayAddOp(collection, id, field, value string) BatchOp {
	return BatchOp{Kind: OpArrayAdd, Collection: collection, ID: id, Field: field, Value: value}
}

// ArrayRemoveOp removes value from a set-semantics array field (idempotent).
func ArrayRemoveOp(collection, id, field, value string) BatchOp {
	return BatchOp{Kind: OpArrayRemove, Collection: collection, ID: id, Field: field, Value: value}
}

// Store is the document store contract. Reads of missing documents return
// (nil, nil), not an error; mutations of missing documents return an error.
type Store interface {
	Get(ctx context.Context, collection, id string) (Document, error)
	Query(ctx context.Context, collection string, q Query) (Page, error)
	Insert(ctx context.Context, collection string, fields Document) (string, error)
	Update(ctx context.Context, collection, id string, fields Document) error
	Delete(ctx context.Context, collection, id string) error
	AtomicIncrement(ctx context.Context, collection, id, field string, delta int64) error
	ArrayAdd(ctx context.Context, collection, id, field, value string) error
	ArrayRemove(ctx context.Context, collection, id, field, value string) error
	Batch(ctx context.Context, ops []BatchOp) error
	Subscribe(ctx context.Context, collection, id string, fn func(Document)) (func(), error)
}

// CollectionConfig carries the schema hints adapters need: which numeric
// fields get a sorted index (createdAt and updatedAt are always indexed) and
// which array fields have set semantics.
type CollectionConfig struct {
	SortFields []string
	SetFields  []string
}

// Schema maps collection names to their configuration.
type Schema map[string]CollectionConfig

// Sortable reports whether field may be used as a query sort key for the
// collection.
func (s Schema) Sortable(collection, field string) bool {
	if field == FieldCreatedAt || field == FieldUpdatedAt {
		return true
	}
	for _, f := range s[collection].SortFields {
		if f == field {
			return true
		}
	}
	return false
}

// SetField reports whether field has set semantics in the collection.
func (s Schema) SetField(collection, field string) bool {
	for _, f := range s[collection].SetFields {
		if f == field {
			return true
		}
	}
	return false
}

// NewID allocates a document id. IDs are assigned client-side so batch inserts
// can be referenced before the batch commits.
func NewID() string {
	return uuid.NewString()
}

// Encode converts a typed model into a Document via a JSON round trip.
func Encode(v any) (Document, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var doc Document
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Decode converts a Document into a typed model via a JSON round trip.
func Decode(doc Document, dest any) error {
	b, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, dest)
}

// Match reports whether doc satisfies every predicate. Both adapters filter
// with this helper so their query semantics stay identical.
func Match(doc Document, predicates []Predicate) bool {
	for _, p := range predicates {
		switch p.Op {
		case OpEqual:
			if !valueEqual(doc[p.Field], p.Value) {
				return false
			}
		case OpContainsAny:
			if !containsAny(doc[p.Field], p.Values) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func valueEqual(got, want any) bool {
	if got == nil {
		return want == nil
	}
	gf, gok := NumericValue(got)
	wf, wok := NumericValue(want)
	if gok && wok {
		return gf == wf
	}
	return fmt.Sprint(got) == fmt.Sprint(want)
}

func containsAny(got any, values []string) bool {
	members := map[string]struct{}{}
	switch arr := got.(type) {
	case []any:
		for _, v := range arr {
			if s, ok := v.(string); ok {
				members[s] = struct{}{}
			}
		}
	case []string:
		for _, s := range arr {
			members[s] = struct{}{}
		}
	default:
		return false
	}
	for _, v := range values {
		if _, ok := members[v]; ok {
			return true
		}
	}
	return false
}

// NumericValue extracts a numeric document value as float64.
func NumericValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// cursor is the decoded form of a pagination token: the sort score and id of
// the last returned document, both exclusive.
type cursor struct {
	Score float64 `json:"s"`
	ID    string  `json:"id"`
}

func encodeCursor(c cursor) string {
	b, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(b)
}

func decodeCursor(token string) (cursor, error) {
	var c cursor
	b, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return c, fmt.Errorf("malformed cursor: %w", err)
	}
	if err := json.Unmarshal(b, &c); err != nil {
		return c, fmt.Errorf("malformed cursor: %w", err)
	}
	return c, nil
}

func (q Query) orderOrDefault() OrderBy {
	if q.OrderBy.Field == "" {
		return OrderBy{Field: FieldCreatedAt, Desc: true}
	}
	return q.OrderBy
}
