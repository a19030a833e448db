package models

// Color is the side of the board a participant plays.
type Color string

const (
	White Color = "white"
	Black Color = "black"
)

// Valid reports whether c is one of the two board colors.
func (c Color) Valid() bool {
	return c == White || c == Black
}

// Opponent returns the other color.
func (c Color) Opponent() Color {
	if c == White {
		return Black
	}
	return White
}

// Player is the public view of a participant sent to the other side of a room.
type Player struct {
	ID      string `json:"id"`
	Name    string `json:"name,omitempty"`
	Rematch bool   `json:"rematch"`
	Decline bool   `json:"decline,omitempty"`
}
