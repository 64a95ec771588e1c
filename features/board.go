package features

import (
	"fmt"
	"strings"

	"github.com/Oliverans/GooseEngineMG/goosemg"
	"github.com/dylhunn/dragontoothmg"
)

// Backend selects the board library used to turn a FEN into a Position.
type Backend int

const (
	Goose Backend = iota
	Dragontooth
)

func (b Backend) String() string {
	switch b {
	case Goose:
		return "goose"
	case Dragontooth:
		return "dragontooth"
	}
	return fmt.Sprintf("backend(%d)", int(b))
}

func ParseBackend(name string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "goose", "goosemg":
		return Goose, nil
	case "dragontooth", "dragontoothmg":
		return Dragontooth, nil
	}
	return Goose, fmt.Errorf("unknown board backend %q", name)
}

func (b Backend) ParseFEN(fen string) (Position, error) {
	switch b {
	case Goose:
		return parseGoose(fen)
	case Dragontooth:
		return parseDragontooth(fen)
	}
	return nil, fmt.Errorf("unknown board backend %d", int(b))
}

type gooseBoard struct {
	b *goosemg.Board
}

func parseGoose(fen string) (Position, error) {
	b, err := goosemg.ParseFEN(strings.TrimSpace(fen))
	if err != nil {
		return nil, fmt.Errorf("parse FEN %q: %w", fen, err)
	}
	return gooseBoard{b: b}, nil
}

func (g gooseBoard) PieceAt(sq int) (PieceType, Side, bool) {
	p := g.b.PieceAt(goosemg.Square(sq))
	if p == goosemg.NoPiece {
		return NoPiece, White, false
	}
	side := White
	if p.Color() == goosemg.Black {
		side = Black
	}
	return PieceType(p.Type()), side, true
}

type dragontoothBoard struct {
	b dragontoothmg.Board
}

// Corpus FENs often stop after the en passant field; dragontoothmg wants
// the clocks too and panics on anything it cannot read.
func parseDragontooth(fen string) (pos Position, err error) {
	fields := strings.Fields(fen)
	if len(fields) < 4 {
		return nil, fmt.Errorf("parse FEN %q: not enough fields", fen)
	}
	if len(fields) == 4 {
		fields = append(fields, "0", "1")
	}
	if strings.Count(fields[0], "/") != 7 {
		return nil, fmt.Errorf("parse FEN %q: incorrect number of ranks", fen)
	}
	defer func() {
		if r := recover(); r != nil {
			pos, err = nil, fmt.Errorf("parse FEN %q: %v", fen, r)
		}
	}()
	return &dragontoothBoard{b: dragontoothmg.ParseFen(strings.Join(fields, " "))}, nil
}

func (d *dragontoothBoard) PieceAt(sq int) (PieceType, Side, bool) {
	mask := uint64(1) << uint(sq)
	if d.b.White.All&mask != 0 {
		return pieceOn(&d.b.White, mask), White, true
	}
	if d.b.Black.All&mask != 0 {
		return pieceOn(&d.b.Black, mask), Black, true
	}
	return NoPiece, White, false
}

func pieceOn(bb *dragontoothmg.Bitboards, mask uint64) PieceType {
	switch {
	case bb.Pawns&mask != 0:
		return Pawn
	case bb.Knights&mask != 0:
		return Knight
	case bb.Bishops&mask != 0:
		return Bishop
	case bb.Rooks&mask != 0:
		return Rook
	case bb.Queens&mask != 0:
		return Queen
	case bb.Kings&mask != 0:
		return King
	}
	return NoPiece
}
