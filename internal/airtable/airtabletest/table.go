// Package airtabletest provides an in-memory airtable.Table for repository tests.
package airtabletest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/farm2markets/xprestrack/internal/airtable"
	"github.com/farm2markets/xprestrack/internal/apperr"
)

// Matcher decides whether a record satisfies a formula. Tests usually rebuild
// the expected formula from the record's own cells and compare strings.
type Matcher func(formula string, f airtable.Fields) bool

type Table struct {
	Name  string
	Match Matcher
	// Err, when set, fails every call with a store error.
	Err error

	mu      sync.Mutex
	records []*airtable.Record
	seq     int
	Queries []airtable.Query
	Updates []Update
}

type Update struct {
	ID     string
	Fields airtable.Fields
}

func NewTable(name string, match Matcher) *Table {
	return &Table{Name: name, Match: match}
}

// Seed inserts a record as-is and returns its id.
func (t *Table) Seed(fields airtable.Fields) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.insert(fields).ID
}

func (t *Table) insert(fields airtable.Fields) *airtable.Record {
	t.seq++
	rec := &airtable.Record{
		ID:          fmt.Sprintf("rec%04d", t.seq),
		CreatedTime: time.Now().UTC(),
		Fields:      airtable.Fields{},
	}
	for k, v := range fields {
		rec.Fields[k] = v
	}
	t.records = append(t.records, rec)
	return rec
}

func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.records)
}

func (t *Table) FindOne(ctx context.Context, q airtable.Query) (*airtable.Record, error) {
	if q.MaxRecords <= 0 {
		q.MaxRecords = 1
	}
	recs, err := t.List(ctx, q)
	if err != nil || len(recs) == 0 {
		return nil, err
	}
	return recs[0], nil
}

func (t *Table) List(_ context.Context, q airtable.Query) ([]*airtable.Record, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Queries = append(t.Queries, q)
	if t.Err != nil {
		return nil, apperr.Store("list", t.Name, t.Err)
	}

	var out []*airtable.Record
	for _, r := range t.records {
		if q.Formula == "" || t.Match == nil || t.Match(q.Formula, r.Fields) {
			out = append(out, clone(r))
		}
	}
	if q.SortField != "" {
		sort.SliceStable(out, func(i, j int) bool {
			less := lessBy(out[i].Fields, out[j].Fields, q.SortField)
			if q.Descending {
				return lessBy(out[j].Fields, out[i].Fields, q.SortField)
			}
			return less
		})
	}
	if q.MaxRecords > 0 && len(out) > q.MaxRecords {
		out = out[:q.MaxRecords]
	}
	return out, nil
}

func (t *Table) Get(_ context.Context, id string) (*airtable.Record, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.Err != nil {
		return nil, apperr.Store("get", t.Name, t.Err)
	}
	for _, r := range t.records {
		if r.ID == id {
			return clone(r), nil
		}
	}
	return nil, nil
}

func (t *Table) Create(_ context.Context, fields airtable.Fields) (*airtable.Record, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.Err != nil {
		return nil, apperr.Store("create", t.Name, t.Err)
	}
	return clone(t.insert(fields)), nil
}

func (t *Table) Update(_ context.Context, id string, fields airtable.Fields) (*airtable.Record, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Updates = append(t.Updates, Update{ID: id, Fields: fields})
	if t.Err != nil {
		return nil, apperr.Store("update", t.Name, t.Err)
	}
	for _, r := range t.records {
		if r.ID != id {
			continue
		}
		for k, v := range fields {
			if v == nil {
				delete(r.Fields, k)
				continue
			}
			r.Fields[k] = v
		}
		return clone(r), nil
	}
	return nil, apperr.NotFound("record", id)
}

func clone(r *airtable.Record) *airtable.Record {
	c := &airtable.Record{ID: r.ID, CreatedTime: r.CreatedTime, Fields: airtable.Fields{}}
	for k, v := range r.Fields {
		c.Fields[k] = v
	}
	return c
}

func lessBy(a, b airtable.Fields, field string) bool {
	ta, tb := a.Time(field), b.Time(field)
	if !ta.IsZero() || !tb.IsZero() {
		return ta.Before(tb)
	}
	return a.String(field) < b.String(field)
}

// EqMatcher matches formulas of the form airtable.Eq(field, value) for any of fields.
func EqMatcher(fields ...string) Matcher {
	return func(formula string, f airtable.Fields) bool {
		for _, name := range fields {
			if formula == airtable.Eq(name, f.String(name)) || formula == airtable.EqFold(name, f.String(name)) {
				return true
			}
		}
		return false
	}
}
