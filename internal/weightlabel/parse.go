package weightlabel

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrMalformedReply means the model answered with something that is not a JSON object.
var ErrMalformedReply = errors.New("malformed recognizer reply")

const (
	maxWeight      = 99999
	poundsPerKilo  = 2.20462
	snippetMaxRune = 120
)

type Unit string

const (
	UnitLBS Unit = "LBS"
	UnitKG  Unit = "KG"
)

// Reading is a weight exactly as printed on the label.
type Reading struct {
	Weight float64 `json:"weight"`
	Unit   Unit    `json:"unit"`
}

// ToPounds normalizes a reading to pounds.
func ToPounds(r Reading) float64 {
	if r.Unit == UnitKG {
		return math.Round(r.Weight*poundsPerKilo*100) / 100
	}
	return r.Weight
}

type reply struct {
	Weight json.RawMessage `json:"weight"`
	Unit   *string         `json:"unit"`
}

// ParseReply extracts a Reading from model text. It returns (nil, nil) when the
// label was not detected or the values fall outside the accepted domain.
func ParseReply(text string) (*Reading, error) {
	body := stripCodeFence(text)
	obj, ok := firstObject(body)
	if !ok {
		return nil, fmt.Errorf("%w: no JSON object in %q", ErrMalformedReply, snippet(text))
	}

	var r reply
	if err := json.Unmarshal([]byte(obj), &r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedReply, err)
	}

	weight, ok := parseWeight(r.Weight)
	if !ok || math.IsNaN(weight) || math.IsInf(weight, 0) || weight <= 0 || weight > maxWeight {
		return nil, nil
	}
	if r.Unit == nil {
		return nil, nil
	}
	unit := Unit(strings.ToUpper(strings.TrimSpace(*r.Unit)))
	if unit != UnitLBS && unit != UnitKG {
		return nil, nil
	}
	return &Reading{Weight: weight, Unit: unit}, nil
}

func parseWeight(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, false
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

func stripCodeFence(content string) string {
	trimmed := strings.TrimSpace(content)
	start := strings.Index(trimmed, "```")
	if start < 0 {
		return trimmed
	}
	body := strings.TrimLeft(trimmed[start+3:], " \t\r\n")
	if len(body) >= 4 && strings.EqualFold(body[:4], "json") {
		body = strings.TrimLeft(body[4:], " \t\r\n")
	}
	if idx := strings.Index(body, "```"); idx >= 0 {
		body = body[:idx]
	}
	return strings.TrimSpace(body)
}

// firstObject returns the first balanced {...} span, ignoring braces inside strings.
func firstObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

func snippet(s string) string {
	clean := strings.Join(strings.Fields(s), " ")
	runes := []rune(clean)
	if len(runes) > snippetMaxRune {
		return string(runes[:snippetMaxRune]) + "..."
	}
	return clean
}
