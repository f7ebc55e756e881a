package airtable

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// Fields is one record's cell map. Setters skip empty optional values so a
// write never sends blank cells the base would treat differently from absent.
type Fields map[string]any

func NewFields() Fields { return Fields{} }

func (f Fields) SetString(name, value string) Fields {
	if strings.TrimSpace(value) != "" {
		f[name] = value
	}
	return f
}

// SetFloat writes value when non-zero. Use SetNumber for required numbers.
func (f Fields) SetFloat(name string, value float64) Fields {
	if value != 0 && !math.IsNaN(value) {
		f[name] = value
	}
	return f
}

func (f Fields) SetNumber(name string, value float64) Fields {
	f[name] = value
	return f
}

func (f Fields) SetInt(name string, value int) Fields {
	f[name] = value
	return f
}

func (f Fields) SetBool(name string, value bool) Fields {
	if value {
		f[name] = true
	}
	return f
}

// SetFlag writes the checkbox regardless of value, for updates that must clear it.
func (f Fields) SetFlag(name string, value bool) Fields {
	f[name] = value
	return f
}

func (f Fields) SetTime(name string, value time.Time) Fields {
	if !value.IsZero() {
		f[name] = value.UTC().Format(time.RFC3339)
	}
	return f
}

func (f Fields) SetDate(name string, value *time.Time) Fields {
	if value != nil && !value.IsZero() {
		f[name] = value.UTC().Format(dateLayout)
	}
	return f
}

func (f Fields) SetLinks(name string, ids ...string) Fields {
	var out []string
	for _, id := range ids {
		if id != "" {
			out = append(out, id)
		}
	}
	if len(out) > 0 {
		f[name] = out
	}
	return f
}

// SetJSON stores a map as JSON text; empty maps are skipped.
func (f Fields) SetJSON(name string, value map[string]any) Fields {
	if len(value) == 0 {
		return f
	}
	if raw, err := json.Marshal(value); err == nil {
		f[name] = string(raw)
	}
	return f
}

// Clear sends an explicit null, which empties the cell.
func (f Fields) Clear(name string) Fields {
	f[name] = nil
	return f
}

func (f Fields) String(name string) string {
	switch v := f[name].(type) {
	case string:
		return v
	case []any:
		// lookup fields come back as single-element arrays
		if len(v) > 0 {
			if s, ok := v[0].(string); ok {
				return s
			}
		}
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}

func (f Fields) Float(name string) float64 {
	switch v := f[name].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case json.Number:
		n, _ := v.Float64()
		return n
	case string:
		n, _ := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return n
	case []any:
		if len(v) > 0 {
			return Fields{"v": v[0]}.Float("v")
		}
	}
	return 0
}

func (f Fields) Int(name string) int {
	return int(math.Round(f.Float(name)))
}

func (f Fields) Bool(name string) bool {
	b, _ := f[name].(bool)
	return b
}

func (f Fields) Time(name string) time.Time {
	s := f.String(name)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, dateLayout} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func (f Fields) Date(name string) *time.Time {
	t := f.Time(name)
	if t.IsZero() {
		return nil
	}
	return &t
}

func (f Fields) Links(name string) []string {
	switch v := f[name].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func (f Fields) JSON(name string) map[string]any {
	raw := f.String(name)
	if raw == "" {
		return nil
	}
	out := map[string]any{}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil
	}
	return out
}
