package features

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const startFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

type piece struct {
	pt   PieceType
	side Side
}

type mapPosition map[int]piece

func (m mapPosition) PieceAt(sq int) (PieceType, Side, bool) {
	p, ok := m[sq]
	return p.pt, p.side, ok
}

func TestIndexFormula(t *testing.T) {
	cases := []struct {
		pt   PieceType
		side Side
		sq   int
		want Feature
	}{
		{Pawn, White, 0, 0},
		{Pawn, White, 4, 4},
		{Queen, White, 4, 260},
		{King, White, 63, 383},
		{Pawn, Black, 0, 384},
		{King, Black, 63, 767},
	}
	for _, c := range cases {
		got, err := Index(c.pt, c.side, c.sq)
		require.NoError(t, err)
		assert.Equal(t, c.want, got, "piece %d side %s square %d", c.pt, c.side, c.sq)
	}
}

func TestIndexIsBijection(t *testing.T) {
	seen := make(map[Feature]bool, NumFeatures)
	for side := White; side <= Black; side++ {
		for pt := Pawn; pt <= King; pt++ {
			for sq := 0; sq < NumSquares; sq++ {
				f, err := Index(pt, side, sq)
				require.NoError(t, err)
				require.Less(t, int(f), NumFeatures)
				require.False(t, seen[f], "duplicate feature %d", f)
				seen[f] = true

				gotPt, gotSide, gotSq, err := Decode(f)
				require.NoError(t, err)
				assert.Equal(t, pt, gotPt)
				assert.Equal(t, side, gotSide)
				assert.Equal(t, sq, gotSq)
			}
		}
	}
	assert.Len(t, seen, NumFeatures)

	_, _, _, err := Decode(NumFeatures)
	assert.ErrorIs(t, err, ErrInvalidPosition)
}

func TestIndexRejectsOutOfRange(t *testing.T) {
	for _, c := range []struct {
		pt PieceType
		sq int
	}{
		{NoPiece, 0}, {7, 0}, {Pawn, -1}, {Pawn, 64},
	} {
		_, err := Index(c.pt, White, c.sq)
		var ipe *InvalidPositionError
		require.ErrorAs(t, err, &ipe)
		assert.True(t, errors.Is(err, ErrInvalidPosition))
		assert.Equal(t, c.sq, ipe.Square)
	}
}

func TestEncodeOrdersBySquare(t *testing.T) {
	pos := mapPosition{
		4:  {Queen, White},
		60: {King, Black},
		0:  {Pawn, Black},
		12: {Pawn, White},
	}
	set, err := Encode(pos)
	require.NoError(t, err)
	// Square order, not feature order: 384 (sq 0) comes before 260 (sq 4).
	assert.Equal(t, Set{384, 260, 12, 764}, set)
}

func TestEncodeEmptyBoard(t *testing.T) {
	set, err := Encode(mapPosition{})
	require.NoError(t, err)
	assert.Empty(t, set)
}

func TestEncodeInvalidPiece(t *testing.T) {
	_, err := Encode(mapPosition{10: {9, White}})
	var ipe *InvalidPositionError
	require.ErrorAs(t, err, &ipe)
	assert.Equal(t, 10, ipe.Square)
	assert.Equal(t, PieceType(9), ipe.Piece)
}

func TestEncodeStartPosition(t *testing.T) {
	want := Set{
		192, 65, 130, 259, 324, 133, 70, 199,
		8, 9, 10, 11, 12, 13, 14, 15,
		432, 433, 434, 435, 436, 437, 438, 439,
		632, 505, 570, 699, 764, 573, 510, 639,
	}
	for _, b := range []Backend{Goose, Dragontooth} {
		set, err := EncodeFEN(b, startFEN)
		require.NoError(t, err, b.String())
		assert.Equal(t, want, set, b.String())
	}
}

func TestBackendsAgree(t *testing.T) {
	fens := []string{
		startFEN,
		"r1bqkbnr/pppp1ppp/2n5/4p3/1b1P4/5NP1/PPPNPPBP/R1BQK2R w KQkq - 4 6",
		"r2q1rk1/pp1nbppp/2p1bn2/3p2B1/3P4/2N1PN2/PPQ2PPP/R3KB1R w KQ - 2 10",
		"8/8/8/3pP3/8/8/8/6K1 w - d6",
		"6k1/4q1p1/4n3/8/2B5/8/8/6K1 b - -",
	}
	for _, fen := range fens {
		goose, err := EncodeFEN(Goose, fen)
		require.NoError(t, err, fen)
		dt, err := EncodeFEN(Dragontooth, fen)
		require.NoError(t, err, fen)
		assert.Equal(t, goose, dt, fen)

		pos, err := Goose.ParseFEN(fen)
		require.NoError(t, err)
		occupied := 0
		for sq := 0; sq < NumSquares; sq++ {
			if _, _, ok := pos.PieceAt(sq); ok {
				occupied++
			}
		}
		assert.Len(t, goose, occupied, fen)

		uniq := make(map[Feature]struct{}, len(goose))
		for _, f := range goose {
			assert.Less(t, int(f), NumFeatures)
			uniq[f] = struct{}{}
		}
		assert.Len(t, uniq, len(goose))
	}
}

func TestParseFENRejectsGarbage(t *testing.T) {
	for _, b := range []Backend{Goose, Dragontooth} {
		_, err := b.ParseFEN("not a fen")
		assert.Error(t, err, b.String())
		_, err = b.ParseFEN("rnbqkbnr/pppppppp/8/8 w - -")
		assert.Error(t, err, b.String())
	}
}

func TestParseBackend(t *testing.T) {
	b, err := ParseBackend("")
	require.NoError(t, err)
	assert.Equal(t, Goose, b)

	b, err = ParseBackend("DragonTooth")
	require.NoError(t, err)
	assert.Equal(t, Dragontooth, b)

	_, err = ParseBackend("stockfish")
	assert.Error(t, err)
}

func BenchmarkEncodeFEN(b *testing.B) {
	for _, backend := range []Backend{Goose, Dragontooth} {
		b.Run(backend.String(), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := EncodeFEN(backend, startFEN); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
