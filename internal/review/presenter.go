package review

import (
	"strconv"
	"strings"

	"github.com/aimerfeng/StarReviews/internal/models"
)

// Star glyphs
const (
	FilledStar = "★"
	EmptyStar  = "☆"
)

// StarGlyphs renders a rating as five glyphs, filled first. Ratings outside
// [0,5] are clamped to the nearest bound.
func StarGlyphs(rating int) string {
	if rating < models.MinRating {
		rating = models.MinRating
	}
	if rating > models.MaxRating {
		rating = models.MaxRating
	}
	return strings.Repeat(FilledStar, rating) + strings.Repeat(EmptyStar, models.MaxRating-rating)
}

// Summary is the header line of the board
type Summary struct {
	Count   int     `json:"count"`
	Average float64 `json:"average"`
}

// Summarize derives the count and average from the same collection
func Summarize(c models.Collection) Summary {
	return Summary{
		Count:   len(c),
		Average: Average(c),
	}
}

// DisplayReview is one review ready to paint
type DisplayReview struct {
	Name  string `json:"name"`
	Stars string `json:"stars"`
	Text  string `json:"text"`
	Date  string `json:"date"`
}

// DisplayModel is everything a renderer needs
type DisplayModel struct {
	Reviews []DisplayReview `json:"reviews"`
	Summary
	// AverageLabel is "0" for an empty board, otherwise one decimal
	AverageLabel string `json:"average_label"`
	Empty        bool   `json:"empty"`
}

// Render derives the display model from a collection. It has no side effects.
func Render(c models.Collection) DisplayModel {
	view := DisplayModel{
		Reviews: make([]DisplayReview, 0, len(c)),
		Summary: Summarize(c),
		Empty:   len(c) == 0,
	}

	for _, r := range c {
		view.Reviews = append(view.Reviews, DisplayReview{
			Name:  r.Name,
			Stars: StarGlyphs(int(r.Rating)),
			Text:  r.Text,
			Date:  r.Date,
		})
	}

	if view.Empty {
		view.AverageLabel = "0"
	} else {
		view.AverageLabel = strconv.FormatFloat(view.Average, 'f', 1, 64)
	}
	return view
}
