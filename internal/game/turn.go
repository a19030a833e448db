package game

import (
	"strings"

	"github.com/corentings/chess/v2"
	"github.com/jason-s-yu/chessmatch/internal/models"
)

// sideToMove infers whose turn it is from a serialized position. The position is
// either a FEN string or a move transcript (PGN movetext, with or without headers).
// Nothing is validated: a transcript the chess library cannot replay falls back to
// counting half-moves.
func sideToMove(position string) models.Color {
	pos := strings.TrimSpace(position)
	if pos == "" || pos == "startpos" {
		return models.White
	}

	if isFEN(pos) {
		if opt, err := chess.FEN(pos); err == nil {
			return colorOf(chess.NewGame(opt).Position().Turn())
		}
	}

	moves := movetext(pos)
	g := chess.NewGame()
	for _, mv := range moves {
		if err := g.PushNotationMove(mv, chess.AlgebraicNotation{}, nil); err != nil {
			if len(moves)%2 == 0 {
				return models.White
			}
			return models.Black
		}
	}
	return colorOf(g.Position().Turn())
}

func colorOf(c chess.Color) models.Color {
	if c == chess.Black {
		return models.Black
	}
	return models.White
}

func isFEN(pos string) bool {
	fields := strings.Fields(pos)
	return len(fields) >= 2 && strings.Count(fields[0], "/") == 7
}

// movetext extracts SAN tokens, dropping tag pairs, comments, move numbers,
// annotations and the game result.
func movetext(pgn string) []string {
	var b strings.Builder
	depth := 0
	for _, line := range strings.Split(pgn, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "[") {
			continue
		}
		for _, r := range line {
			switch {
			case r == '{' || r == '(':
				depth++
			case r == '}' || r == ')':
				if depth > 0 {
					depth--
				}
			case depth == 0:
				b.WriteRune(r)
			}
		}
		b.WriteByte(' ')
	}

	var out []string
	for _, tok := range strings.Fields(b.String()) {
		if i := strings.LastIndex(tok, "."); i >= 0 {
			tok = tok[i+1:]
		}
		tok = strings.TrimRight(tok, "!?")
		switch tok {
		case "", "*", "1-0", "0-1", "1/2-1/2":
			continue
		}
		if strings.HasPrefix(tok, "$") {
			continue
		}
		out = append(out, tok)
	}
	return out
}
