package rating

import (
	"math"

	"github.com/jason-s-yu/chessmatch/internal/models"
)

const (
	// DefaultK is the K-factor applied to every rated game.
	DefaultK = 32
	// DefaultRating is assigned to players that have no stored rating, and to guests.
	DefaultRating = 1000
)

// Expected returns the expected score of a player rated a against a player rated b.
func Expected(a, b int) float64 {
	return 1.0 / (1.0 + math.Pow(10, float64(b-a)/400.0))
}

// Update applies the Elo formula and rounds to the nearest integer rating.
func Update(rating int, actual, expected float64, k int) int {
	return int(math.Round(float64(rating) + float64(k)*(actual-expected)))
}

// Side is one participant of a rated game as recorded when the room was created.
type Side struct {
	PlayerID string
	Rating   int
	IsGuest  bool
}

// Outcome is the rating change request for a single player at the end of a game.
type Outcome struct {
	RoomID   string
	GameNo   int
	PlayerID string
	Result   models.Result
	// Rating is the rating recorded at room creation, the base of the update.
	Rating   int
	Expected float64
	K        int
}

// NewRating is the rating the player ends with once o is applied.
func (o Outcome) NewRating() int {
	k := o.K
	if k <= 0 {
		k = DefaultK
	}
	return Update(o.Rating, o.Result.Score(), o.Expected, k)
}

// Outcomes builds the per-player outcomes for a finished game between a and b.
// Both expectations are computed from the same pre-game ratings. Guests are skipped.
func Outcomes(roomID string, gameNo int, a, b Side, resultA models.Result, k int) []Outcome {
	resultB := models.ResultDraw
	switch resultA {
	case models.ResultWin:
		resultB = models.ResultLoss
	case models.ResultLoss:
		resultB = models.ResultWin
	}

	var out []Outcome
	if !a.IsGuest {
		out = append(out, Outcome{
			RoomID: roomID, GameNo: gameNo, PlayerID: a.PlayerID, Result: resultA,
			Rating: a.Rating, Expected: Expected(a.Rating, b.Rating), K: k,
		})
	}
	if !b.IsGuest {
		out = append(out, Outcome{
			RoomID: roomID, GameNo: gameNo, PlayerID: b.PlayerID, Result: resultB,
			Rating: b.Rating, Expected: Expected(b.Rating, a.Rating), K: k,
		})
	}
	return out
}

// Apply folds o into rec. Counters follow the result; draws only count toward the total.
func Apply(rec *models.RatingRecord, o Outcome) {
	rec.Rating = o.NewRating()
	rec.GamesTotal++
	switch o.Result {
	case models.ResultWin:
		rec.Wins++
	case models.ResultLoss:
		rec.Losses++
	}
}
