package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// documentRow is the storage row for the SQL adapter: one JSON payload per
// document plus the creation/update millis as real columns for keyset
// pagination on the default order.
type documentRow struct {
	Collection string `gorm:"primaryKey;size:64"`
	ID         string `gorm:"primaryKey;size:64"`
	Data       string `gorm:"type:text;not null"`
	CreatedAt  int64  `gorm:"index"`
	UpdatedAt  int64
}

func (documentRow) TableName() string { return "documents" }

// SQLStore implements Store on a relational database through GORM. Sorting on
// document fields uses dialect-specific JSON extraction (sqlite json_extract,
// postgres jsonb operators); predicates are still applied with Match so both
// adapters filter identically. Batches run inside one transaction.
type SQLStore struct {
	db     *gorm.DB
	schema Schema

	mu   sync.Mutex
	subs map[string][]chan Document
}

// NewSQL migrates the documents table and returns a Store backed by db.
func NewSQL(db *gorm.DB, schema Schema) (*SQLStore, error) {
	if err := db.AutoMigrate(&documentRow{}); err != nil {
		return nil, fmt.Errorf("documents migration failed: %w", err)
	}
	return &SQLStore{db: db, schema: schema, subs: map[string][]chan Document{}}, nil
}

func (s *SQLStore) isPostgres() bool {
	return s.db.Dialector.Name() == "postgres"
}

// orderExpr builds the dialect-specific ORDER BY expression for a document
// field. The field name is schema-validated by the caller, never raw input.
func (s *SQLStore) orderExpr(field string) string {
	switch field {
	case FieldCreatedAt:
		return "created_at"
	case FieldUpdatedAt:
		return "updated_at"
	}
	if s.isPostgres() {
		return fmt.Sprintf("((data::jsonb ->> '%s')::numeric)", field)
	}
	return fmt.Sprintf("CAST(json_extract(data, '$.%s') AS REAL)", field)
}

func (s *SQLStore) Get(ctx context.Context, collection, id string) (Document, error) {
	return s.get(s.db.WithContext(ctx), collection, id)
}

func (s *SQLStore) get(tx *gorm.DB, collection, id string) (Document, error) {
	var row documentRow
	err := tx.Where("collection = ? AND id = ?", collection, id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var doc Document
	if err := json.Unmarshal([]byte(row.Data), &doc); err != nil {
		return nil, fmt.Errorf("corrupt document %s/%s: %w", collection, id, err)
	}
	return doc, nil
}

func (s *SQLStore) Insert(ctx context.Context, collection string, fields Document) (string, error) {
	id := NewID()
	if err := s.Batch(ctx, []BatchOp{InsertOp(collection, id, fields)}); err != nil {
		return "", err
	}
	return id, nil
}

func (s *SQLStore) Update(ctx context.Context, collection, id string, fields Document) error {
	return s.Batch(ctx, []BatchOp{UpdateOp(collection, id, fields)})
}

func (s *SQLStore) Delete(ctx context.Context, collection, id string) error {
	return s.Batch(ctx, []BatchOp{DeleteOp(collection, id)})
}

func (s *SQLStore) AtomicIncrement(ctx context.Context, collection, id, field string, delta int64) error {
	return s.Batch(ctx, []BatchOp{IncrementOp(collection, id, field, delta)})
}

func (s *SQLStore) ArrayAdd(ctx context.Context, collection, id, field, value string) error {
	return s.Batch(ctx, []BatchOp{ArrayAddOp(collection, id, field, value)})
}

func (s *SQLStore) ArrayRemove(ctx context.Context, collection, id, field, value string) error {
	return s.Batch(ctx, []BatchOp{ArrayRemoveOp(collection, id, field, value)})
}

// Batch applies every op in one database transaction; a failing op rolls the
// whole batch back. Change notifications fire only after commit.
func (s *SQLStore) Batch(ctx context.Context, ops []BatchOp) error {
	now := time.Now().UnixMilli()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range ops {
			if err := s.applyOp(tx, &ops[i], now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, op := range ops {
		s.notify(ctx, op.Collection, op.ID, op.Kind == OpDelete)
	}
	return nil
}

// lockRow fetches a document row for update. Postgres takes a row lock;
// sqlite serializes writers on its own.
func (s *SQLStore) lockRow(tx *gorm.DB, collection, id string) (*documentRow, error) {
	if s.isPostgres() {
		tx = tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var row documentRow
	err := tx.Where("collection = ? AND id = ?", collection, id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%s/%s: document does not exist", collection, id)
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (s *SQLStore) saveRow(tx *gorm.DB, row *documentRow, doc Document) error {
	b, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	row.Data = string(b)
	if v, ok := NumericValue(doc[FieldUpdatedAt]); ok {
		row.UpdatedAt = int64(v)
	}
	return tx.Save(row).Error
}

func (s *SQLStore) applyOp(tx *gorm.DB, op *BatchOp, now int64) error {
	switch op.Kind {
	case OpInsert:
		if op.ID == "" {
			op.ID = NewID()
		}
		doc := Document{}
		for k, v := range op.Fields {
			doc[k] = v
		}
		doc[FieldID] = op.ID
		doc[FieldCreatedAt] = now
		doc[FieldUpdatedAt] = now
		b, err := json.Marshal(doc)
		if err != nil {
			return err
		}
		return tx.Create(&documentRow{
			Collection: op.Collection,
			ID:         op.ID,
			Data:       string(b),
			CreatedAt:  now,
			UpdatedAt:  now,
		}).Error

	case OpUpdate:
		row, err := s.lockRow(tx, op.Collection, op.ID)
		if err != nil {
			return err
		}
		var doc Document
		if err := json.Unmarshal([]byte(row.Data), &doc); err != nil {
			return err
		}
		for k, v := range op.Fields {
			doc[k] = v
		}
		doc[FieldUpdatedAt] = now
		return s.saveRow(tx, row, doc)

	case OpDelete:
		res := tx.Where("collection = ? AND id = ?", op.Collection, op.ID).Delete(&documentRow{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("delete %s/%s: document does not exist", op.Collection, op.ID)
		}
		return nil

	case OpIncrement:
		row, err := s.lockRow(tx, op.Collection, op.ID)
		if err != nil {
			return err
		}
		var doc Document
		if err := json.Unmarshal([]byte(row.Data), &doc); err != nil {
			return err
		}
		current, _ := NumericValue(doc[op.Field])
		doc[op.Field] = int64(current) + op.Delta
		return s.saveRow(tx, row, doc)

	case OpArrayAdd, OpArrayRemove:
		if !s.schema.SetField(op.Collection, op.Field) {
			return fmt.Errorf("%s/%s: field %q has no set semantics", op.Collection, op.ID, op.Field)
		}
		row, err := s.lockRow(tx, op.Collection, op.ID)
		if err != nil {
			return err
		}
		var doc Document
		if err := json.Unmarshal([]byte(row.Data), &doc); err != nil {
			return err
		}
		members := stringMembers(doc[op.Field])
		if op.Kind == OpArrayAdd {
			members = addMember(members, op.Value)
		} else {
			members = removeMember(members, op.Value)
		}
		doc[op.Field] = members
		return s.saveRow(tx, row, doc)
	}
	return fmt.Errorf("unknown batch op %q", op.Kind)
}

func addMember(members []string, value string) []string {
	for _, m := range members {
		if m == value {
			return members
		}
	}
	return append(members, value)
}

func removeMember(members []string, value string) []string {
	out := members[:0]
	for _, m := range members {
		if m != value {
			out = append(out, m)
		}
	}
	return out
}

// Query pages through the collection with keyset pagination on the requested
// sort expression, filtering rows with Match.
func (s *SQLStore) Query(ctx context.Context, collection string, q Query) (Page, error) {
	order := q.orderOrDefault()
	if !s.schema.Sortable(collection, order.Field) {
		return Page{}, fmt.Errorf("%s: field %q is not sortable", collection, order.Field)
	}
	if q.Limit <= 0 {
		return Page{}, fmt.Errorf("query limit must be positive")
	}

	expr := s.orderExpr(order.Field)
	dir := "ASC"
	cmp := ">"
	if order.Desc {
		dir = "DESC"
		cmp = "<"
	}

	base := s.db.WithContext(ctx).Model(&documentRow{}).
		Where("collection = ?", collection).
		Order(fmt.Sprintf("%s %s, id %s", expr, dir, dir))

	if q.Cursor != "" {
		cur, err := decodeCursor(q.Cursor)
		if err != nil {
			return Page{}, err
		}
		base = base.Where(
			fmt.Sprintf("(%s %s ? OR (%s = ? AND id %s ?))", expr, cmp, expr, cmp),
			cur.Score, cur.Score, cur.ID,
		)
	}

	page := Page{Docs: []Document{}}
	var lastID string
	var lastScore float64

	for offset := 0; ; {
		var rows []documentRow
		if err := base.Offset(offset).Limit(queryChunkSize).Find(&rows).Error; err != nil {
			return Page{}, err
		}

		for _, row := range rows {
			var doc Document
			if err := json.Unmarshal([]byte(row.Data), &doc); err != nil {
				return Page{}, fmt.Errorf("corrupt document %s/%s: %w", collection, row.ID, err)
			}
			if !Match(doc, q.Predicates) {
				continue
			}
			page.Docs = append(page.Docs, doc)
			lastID = row.ID
			lastScore, _ = NumericValue(doc[order.Field])
			if len(page.Docs) == q.Limit {
				page.NextCursor = encodeCursor(cursor{Score: lastScore, ID: lastID})
				return page, nil
			}
		}

		if len(rows) < queryChunkSize {
			return page, nil
		}
		offset += len(rows)
	}
}

func (s *SQLStore) subKey(collection, id string) string {
	return collection + "/" + id
}

// Subscribe registers an in-process listener; the SQL adapter has no
// cross-process change feed, so only changes made through this store instance
// are observed. A nil document signals deletion.
func (s *SQLStore) Subscribe(ctx context.Context, collection, id string, fn func(Document)) (func(), error) {
	ch := make(chan Document, 16)
	key := s.subKey(collection, id)

	s.mu.Lock()
	s.subs[key] = append(s.subs[key], ch)
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		for {
			select {
			case doc := <-ch:
				fn(doc)
			case <-done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	unsubscribe := func() {
		s.mu.Lock()
		listeners := s.subs[key]
		for i, c := range listeners {
			if c == ch {
				s.subs[key] = append(listeners[:i], listeners[i+1:]...)
				break
			}
		}
		s.mu.Unlock()
		close(done)
	}
	return unsubscribe, nil
}

func (s *SQLStore) notify(ctx context.Context, collection, id string, deleted bool) {
	s.mu.Lock()
	listeners := append([]chan Document(nil), s.subs[s.subKey(collection, id)]...)
	s.mu.Unlock()
	if len(listeners) == 0 {
		return
	}

	var doc Document
	if !deleted {
		doc, _ = s.Get(ctx, collection, id)
	}
	for _, ch := range listeners {
		select {
		case ch <- doc:
		default: // slow consumer, drop
		}
	}
}

var _ Store = (*SQLStore)(nil)
