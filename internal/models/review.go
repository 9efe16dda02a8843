package models

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// DefaultAuthor is shown for reviews submitted without a name
const DefaultAuthor = "Anonymous user"

// Rating bounds
const (
	MinRating = 0
	MaxRating = 5
)

// Rating is a star rating in [MinRating, MaxRating].
//
// Stored data may hold the rating as a number or as a numeric string ("5").
// Anything that is not an integer in range decodes to 0 so a single bad
// record cannot break loading of the whole list.
type Rating int

// Valid reports whether r is within the allowed range
func (r Rating) Valid() bool {
	return r >= MinRating && r <= MaxRating
}

// MarshalJSON always writes the rating as a JSON integer
func (r Rating) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Itoa(int(r))), nil
}

// UnmarshalJSON accepts numbers and numeric strings
func (r *Rating) UnmarshalJSON(data []byte) error {
	*r = 0
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	raw := string(data)
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		raw = strings.TrimSpace(s)
	}

	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f != math.Trunc(f) {
		return nil
	}
	if v := Rating(f); v.Valid() {
		*r = v
	}
	return nil
}

// Review represents one visitor review
type Review struct {
	Name   string `json:"name"`
	Rating Rating `json:"rating"`
	Text   string `json:"text"`
	Date   string `json:"date"`

	// storedRating keeps a decoded rating that was not a plain in-range
	// integer, so writing the list back leaves that record as it was.
	storedRating string
}

type reviewJSON struct {
	Name   string          `json:"name"`
	Rating json.RawMessage `json:"rating"`
	Text   string          `json:"text"`
	Date   string          `json:"date"`
}

// MarshalJSON writes Rating, or the original stored rating when it was
// coerced on decode
func (r Review) MarshalJSON() ([]byte, error) {
	rating := json.RawMessage(r.storedRating)
	if len(rating) == 0 {
		rating, _ = r.Rating.MarshalJSON()
	}
	return json.Marshal(reviewJSON{Name: r.Name, Rating: rating, Text: r.Text, Date: r.Date})
}

// UnmarshalJSON decodes a review leniently, see Rating
func (r *Review) UnmarshalJSON(data []byte) error {
	var aux reviewJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	*r = Review{Name: aux.Name, Text: aux.Text, Date: aux.Date}
	if len(aux.Rating) == 0 {
		return nil
	}
	_ = r.Rating.UnmarshalJSON(aux.Rating)
	if raw := string(bytes.TrimSpace(aux.Rating)); raw != strconv.Itoa(int(r.Rating)) {
		r.storedRating = raw
	}
	return nil
}

// Coerced reports whether the stored rating was not a plain in-range
// integer and Rating holds its coerced value
func (r Review) Coerced() bool {
	return r.storedRating != ""
}

// Collection is the ordered list of reviews, oldest first
type Collection []Review

// Clone returns an independent copy of the collection
func (c Collection) Clone() Collection {
	out := make(Collection, len(c))
	copy(out, c)
	return out
}
