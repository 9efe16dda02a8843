package models

import (
	"encoding/json"
	"testing"

	"pgregory.net/rapid"
)

func TestRating_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		input string
		want  Rating
	}{
		{`5`, 5},
		{`0`, 0},
		{`"4"`, 4},
		{`" 3 "`, 3},
		{`4.0`, 4},
		{`4.5`, 0},
		{`6`, 0},
		{`-1`, 0},
		{`"abc"`, 0},
		{`null`, 0},
		{`true`, 0},
		{`{"x":1}`, 0},
	}

	for _, tt := range tests {
		var got struct {
			Rating Rating `json:"rating"`
		}
		if err := json.Unmarshal([]byte(`{"rating":`+tt.input+`}`), &got); err != nil {
			t.Errorf("input %s: unexpected error %v", tt.input, err)
			continue
		}
		if got.Rating != tt.want {
			t.Errorf("input %s: got %d, want %d", tt.input, got.Rating, tt.want)
		}
	}
}

func TestRating_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(Review{Name: "Anna", Rating: 5, Text: "Great", Date: "01.06.2025"})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	want := `{"name":"Anna","rating":5,"text":"Great","date":"01.06.2025"}`
	if string(data) != want {
		t.Errorf("got %s, want %s", data, want)
	}
}

func TestReview_KeepsCoercedStoredRating(t *testing.T) {
	tests := []struct {
		input string
		want  Rating
	}{
		{`"7"`, 0},
		{`"bad"`, 0},
		{`4.5`, 0},
		{`null`, 0},
		{`"4"`, 4},
	}

	for _, tt := range tests {
		var r Review
		if err := json.Unmarshal([]byte(`{"name":"a","rating":`+tt.input+`,"text":"","date":"01.01.2025"}`), &r); err != nil {
			t.Fatalf("input %s: unexpected error %v", tt.input, err)
		}
		if r.Rating != tt.want || !r.Coerced() {
			t.Errorf("input %s: got rating %d coerced=%v", tt.input, r.Rating, r.Coerced())
		}

		data, err := json.Marshal(r)
		if err != nil {
			t.Fatalf("Marshal failed: %v", err)
		}
		want := `{"name":"a","rating":` + tt.input + `,"text":"","date":"01.01.2025"}`
		if string(data) != want {
			t.Errorf("got %s, want %s", data, want)
		}
	}
}

func TestReview_PlainRatingNotCoerced(t *testing.T) {
	var r Review
	if err := json.Unmarshal([]byte(`{"name":"a","rating":3}`), &r); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if r.Coerced() {
		t.Error("Plain integer rating should not be marked coerced")
	}
}

// TestProperty_CollectionRoundTrip tests that valid collections survive encoding
// *For any* collection of valid reviews, decoding its JSON SHALL yield an equal collection.
func TestProperty_CollectionRoundTrip(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(0, 20).Draw(rt, "n")
		c := make(Collection, n)
		for i := range c {
			c[i] = Review{
				Name:   rapid.String().Draw(rt, "name"),
				Rating: Rating(rapid.IntRange(MinRating, MaxRating).Draw(rt, "rating")),
				Text:   rapid.String().Draw(rt, "text"),
				Date:   rapid.StringMatching(`[0-3][0-9]\.[01][0-9]\.20[0-9]{2}`).Draw(rt, "date"),
			}
		}

		data, err := json.Marshal(c)
		if err != nil {
			rt.Fatalf("Marshal failed: %v", err)
		}
		var decoded Collection
		if err := json.Unmarshal(data, &decoded); err != nil {
			rt.Fatalf("Unmarshal failed: %v", err)
		}

		if len(decoded) != len(c) {
			rt.Fatalf("PROPERTY VIOLATION: length %d != %d", len(decoded), len(c))
		}
		for i := range c {
			if decoded[i] != c[i] {
				rt.Fatalf("PROPERTY VIOLATION: review %d changed: %+v != %+v", i, decoded[i], c[i])
			}
		}
	})
}

func TestCollection_Clone(t *testing.T) {
	c := Collection{{Name: "a", Rating: 1}}
	clone := c.Clone()
	clone[0].Name = "b"
	if c[0].Name != "a" {
		t.Error("Clone should not share backing array")
	}
}
