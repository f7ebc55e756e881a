// Package airtable is the record store adapter over the Airtable REST API.
// Every failure leaving this package is an *apperr.StoreError.
package airtable

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/farm2markets/xprestrack/internal/apperr"
	at "github.com/mehanizm/airtable"
)

type Record struct {
	ID          string
	CreatedTime time.Time
	Fields      Fields
}

// Query selects records. SortField orders the result; an empty Formula matches all.
type Query struct {
	Formula    string
	SortField  string
	Descending bool
	MaxRecords int
}

// Table is the narrow surface repositories depend on.
type Table interface {
	// FindOne returns the first match of q, or (nil, nil) when nothing matches.
	FindOne(ctx context.Context, q Query) (*Record, error)
	List(ctx context.Context, q Query) ([]*Record, error)
	// Get returns (nil, nil) for an unknown record id.
	Get(ctx context.Context, id string) (*Record, error)
	Create(ctx context.Context, fields Fields) (*Record, error)
	Update(ctx context.Context, id string, fields Fields) (*Record, error)
}

type Config struct {
	APIKey  string
	BaseID  string
	BaseURL string
}

// Store is one Airtable base.
type Store struct {
	client *at.Client
	baseID string
}

func NewStore(cfg Config) (*Store, error) {
	if cfg.APIKey == "" || cfg.BaseID == "" {
		return nil, apperr.NotConfigured("airtable")
	}
	client := at.NewClient(cfg.APIKey)
	if cfg.BaseURL != "" {
		if err := client.SetBaseURL(cfg.BaseURL); err != nil {
			return nil, err
		}
	}
	return &Store{client: client, baseID: cfg.BaseID}, nil
}

func (s *Store) Table(name string) Table {
	return &table{name: name, t: s.client.GetTable(s.baseID, name)}
}

// Ping reads a single record of name to prove the base answers.
func (s *Store) Ping(ctx context.Context, name string) error {
	_, err := s.Table(name).List(ctx, Query{MaxRecords: 1})
	return err
}

type table struct {
	name string
	t    *at.Table
}

func (t *table) FindOne(ctx context.Context, q Query) (*Record, error) {
	if q.MaxRecords <= 0 {
		q.MaxRecords = 1
	}
	records, err := t.List(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records[0], nil
}

func (t *table) List(ctx context.Context, q Query) ([]*Record, error) {
	var out []*Record
	offset := ""
	for {
		if err := ctx.Err(); err != nil {
			return nil, apperr.Store("list", t.name, err)
		}

		req := t.t.GetRecords()
		if q.Formula != "" {
			req = req.WithFilterFormula(q.Formula)
		}
		if q.SortField != "" {
			direction := "asc"
			if q.Descending {
				direction = "desc"
			}
			req = req.WithSort(struct {
				FieldName string
				Direction string
			}{FieldName: q.SortField, Direction: direction})
		}
		if q.MaxRecords > 0 {
			req = req.MaxRecords(q.MaxRecords)
		}
		if offset != "" {
			req = req.WithOffset(offset)
		}

		page, err := req.Do()
		if err != nil {
			return nil, apperr.Store("list", t.name, err)
		}
		for _, r := range page.Records {
			out = append(out, fromRecord(r))
		}
		if page.Offset == "" || (q.MaxRecords > 0 && len(out) >= q.MaxRecords) {
			break
		}
		offset = page.Offset
	}
	return out, nil
}

func (t *table) Get(ctx context.Context, id string) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperr.Store("get", t.name, err)
	}
	r, err := t.t.GetRecord(id)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, apperr.Store("get", t.name, err)
	}
	return fromRecord(r), nil
}

func (t *table) Create(ctx context.Context, fields Fields) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperr.Store("create", t.name, err)
	}
	res, err := t.t.AddRecords(&at.Records{
		Records: []*at.Record{{Fields: fields}},
	})
	if err != nil {
		return nil, apperr.Store("create", t.name, err)
	}
	if res == nil || len(res.Records) == 0 {
		return nil, apperr.Store("create", t.name, errors.New("empty response"))
	}
	return fromRecord(res.Records[0]), nil
}

func (t *table) Update(ctx context.Context, id string, fields Fields) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperr.Store("update", t.name, err)
	}
	res, err := t.t.UpdateRecordsPartial(&at.Records{
		Records: []*at.Record{{ID: id, Fields: fields}},
	})
	if err != nil {
		if isNotFound(err) {
			return nil, apperr.NotFound("record", id)
		}
		return nil, apperr.Store("update", t.name, err)
	}
	if res == nil || len(res.Records) == 0 {
		return nil, apperr.Store("update", t.name, errors.New("empty response"))
	}
	return fromRecord(res.Records[0]), nil
}

func fromRecord(r *at.Record) *Record {
	rec := &Record{ID: r.ID, Fields: Fields(r.Fields)}
	if rec.Fields == nil {
		rec.Fields = Fields{}
	}
	if ts, err := time.Parse(time.RFC3339, r.CreatedTime); err == nil {
		rec.CreatedTime = ts
	}
	return rec
}

func isNotFound(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "404") || strings.Contains(msg, "NOT_FOUND")
}
