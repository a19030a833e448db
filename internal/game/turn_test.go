package game

import (
	"testing"

	"github.com/jason-s-yu/chessmatch/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestSideToMove(t *testing.T) {
	cases := []struct {
		name     string
		position string
		want     models.Color
	}{
		{"empty", "", models.White},
		{"startpos", "startpos", models.White},
		{"one ply", "1. e4", models.Black},
		{"two plies", "1. e4 e5", models.White},
		{"compact numbers", "1.e4 e5 2.Nf3", models.Black},
		{"with headers and result", "[Event \"casual\"]\n[White \"a\"]\n\n1. e4 e5 2. Nf3 Nc6 *", models.White},
		{"comments and annotations", "1. e4 {best by test} e5!? 2. Nf3", models.Black},
		{"fen black to move", "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq e3 0 1", models.Black},
		{"fen white to move", "rnbqkbnr/pppp1ppp/8/4p3/4P3/8/PPPP1PPP/RNBQKBNR w KQkq e6 0 2", models.White},
		{"unparseable falls back to ply count", "1. zz9 yy8 2. xx7", models.Black},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, sideToMove(tc.position))
		})
	}
}

func TestMovetext(t *testing.T) {
	assert.Equal(t, []string{"e4", "e5", "Nf3"}, movetext("1. e4 e5 2. Nf3 1-0"))
	assert.Equal(t, []string{"e4", "c5"}, movetext("1. e4 (1. d4 d5) c5 $1"))
	assert.Empty(t, movetext("[Event \"x\"]"))
}
