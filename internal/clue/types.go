package clue

import (
	"errors"
	"time"
)

// Round constants. The dataset only carries the two main board rounds.
const (
	RoundSingle = 1
	RoundDouble = 2
)

// ValidRound reports whether v names a playable round.
func ValidRound(v int) bool {
	return v == RoundSingle || v == RoundDouble
}

// Sentinel errors surfaced to the HTTP boundary.
var (
	ErrInvalidRound     = errors.New("round value must be 1 (Single Jeopardy) or 2 (Double Jeopardy)")
	ErrCategoryNotFound = errors.New("category not found")
	ErrClueNotFound     = errors.New("clue not found")
	ErrNoCategories     = errors.New("no categories found for this round")
)

// Clue is one stored trivia record. Rows are written once by the bulk
// loader and read-only afterwards.
type Clue struct {
	ID            int64
	Round         int
	Value         int
	IsDailyDouble bool
	Category      string
	Comments      string
	ClueText      string
	CorrectAnswer string
	AirDate       time.Time
	Notes         string
}

// View is the projection returned to clients for board rendering.
type View struct {
	ID            int64  `json:"id"`
	Value         int    `json:"clue_value"`
	IsDailyDouble bool   `json:"is_daily_double"`
	ClueText      string `json:"clue_text"`
	CorrectAnswer string `json:"correct_answer"`
	AirDate       string `json:"air_date"`
	Notes         string `json:"notes"`
}

// ToView projects a stored clue into its client shape. The air date is
// rendered as a calendar date, not a timestamp.
func ToView(c Clue) View {
	return View{
		ID:            c.ID,
		Value:         c.Value,
		IsDailyDouble: c.IsDailyDouble,
		ClueText:      c.ClueText,
		CorrectAnswer: c.CorrectAnswer,
		AirDate:       c.AirDate.Format("2006-01-02"),
		Notes:         c.Notes,
	}
}

// Board maps category name to its clues ordered ascending by value.
type Board map[string][]View
