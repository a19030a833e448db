package models

// Result is the outcome of a finished game from one participant's point of view.
type Result string

const (
	ResultWin  Result = "win"
	ResultLoss Result = "loss"
	ResultDraw Result = "draw"
)

// Score maps a result onto the paired-comparison actual score.
func (r Result) Score() float64 {
	switch r {
	case ResultWin:
		return 1
	case ResultDraw:
		return 0.5
	default:
		return 0
	}
}

// RatingRecord is the persisted rating state of a registered player.
type RatingRecord struct {
	PlayerID   string `json:"player_id"`
	Rating     int    `json:"rating"`
	GamesTotal int    `json:"games_total"`
	Wins       int    `json:"wins"`
	Losses     int    `json:"losses"`
}
