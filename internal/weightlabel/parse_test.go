package weightlabel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseReplyAccepts(t *testing.T) {
	cases := map[string]string{
		"raw":          `{"weight": 12.5, "unit": "LBS"}`,
		"fenced":       "```json\n{\"weight\": 12.5, \"unit\": \"LBS\"}\n```",
		"bare fence":   "```\n{\"weight\": 12.5, \"unit\": \"LBS\"}\n```",
		"prose around": `Sure! Here is the result: {"weight": 12.5, "unit": "LBS"} Let me know if you need more.`,
		"lower unit":   `{"weight": 12.5, "unit": " lbs "}`,
		"string value": `{"weight": "12.5", "unit": "LBS"}`,
		"brace in str": `{"note": "a } b", "weight": 12.5, "unit": "LBS"} {"weight": 1, "unit": "KG"}`,
	}
	for name, text := range cases {
		t.Run(name, func(t *testing.T) {
			r, err := ParseReply(text)
			require.NoError(t, err)
			require.NotNil(t, r)
			assert.Equal(t, Reading{Weight: 12.5, Unit: UnitLBS}, *r)
		})
	}
}

func TestParseReplyNotDetected(t *testing.T) {
	cases := []string{
		`{"weight": null, "unit": null, "error": "not found"}`,
		`{"weight": 12, "unit": "OZ"}`,
		`{"weight": -5, "unit": "KG"}`,
		`{"weight": 0, "unit": "KG"}`,
		`{"weight": 150000, "unit": "LBS"}`,
		`{"weight": 10}`,
		`{"unit": "KG"}`,
		`{"weight": "abc", "unit": "KG"}`,
	}
	for _, text := range cases {
		r, err := ParseReply(text)
		assert.NoError(t, err, text)
		assert.Nil(t, r, text)
	}
}

func TestParseReplyBoundary(t *testing.T) {
	r, err := ParseReply(`{"weight": 99999, "unit": "kg"}`)
	require.NoError(t, err)
	assert.Equal(t, &Reading{Weight: 99999, Unit: UnitKG}, r)
}

func TestParseReplyMalformed(t *testing.T) {
	for _, text := range []string{
		"I could not read the label.",
		"",
		`{"weight": 12.5, "unit": }`,
		`{"weight": 12.5, "unit": "LBS"`,
	} {
		r, err := ParseReply(text)
		assert.ErrorIs(t, err, ErrMalformedReply, text)
		assert.Nil(t, r)
	}
}

func TestToPounds(t *testing.T) {
	assert.Equal(t, 12.5, ToPounds(Reading{Weight: 12.5, Unit: UnitLBS}))
	assert.Equal(t, 22.05, ToPounds(Reading{Weight: 10, Unit: UnitKG}))
}
