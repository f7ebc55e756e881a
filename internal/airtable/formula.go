package airtable

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Eq builds {field}=value with the value quoted for Airtable's formula language.
func Eq(field string, value any) string {
	return fmt.Sprintf("{%s}=%s", field, literal(value))
}

func Ne(field string, value any) string {
	return fmt.Sprintf("{%s}!=%s", field, literal(value))
}

// EqFold compares case-insensitively after trimming.
func EqFold(field, value string) string {
	return fmt.Sprintf("LOWER(TRIM({%s}))=%s", field, quote(strings.ToLower(strings.TrimSpace(value))))
}

// Contains is a case-insensitive substring match.
func Contains(field, value string) string {
	return fmt.Sprintf("SEARCH(%s,LOWER({%s}))", quote(strings.ToLower(value)), field)
}

func Gt(field string, value float64) string {
	return fmt.Sprintf("{%s}>%s", field, strconv.FormatFloat(value, 'f', -1, 64))
}

// OnOrAfter matches dates at or after t.
func OnOrAfter(field string, t time.Time) string {
	return fmt.Sprintf("NOT(IS_BEFORE({%s},%s))", field, quote(t.UTC().Format(time.RFC3339)))
}

func And(formulas ...string) string {
	return join("AND", formulas)
}

func Not(formula string) string {
	return "NOT(" + formula + ")"
}

func join(op string, formulas []string) string {
	parts := make([]string, 0, len(formulas))
	for _, f := range formulas {
		if f != "" {
			parts = append(parts, f)
		}
	}
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	}
	return op + "(" + strings.Join(parts, ",") + ")"
}

func literal(value any) string {
	switch v := value.(type) {
	case string:
		return quote(v)
	case bool:
		if v {
			return "TRUE()"
		}
		return "FALSE()"
	case int:
		return strconv.Itoa(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case fmt.Stringer:
		return quote(v.String())
	}
	return quote(fmt.Sprint(value))
}

func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `\'`)
	return "'" + s + "'"
}
