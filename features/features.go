// Package features maps board positions onto the 768 sparse inputs of the
// network: one block of 64 squares per (piece type, side).
package features

import (
	"errors"
	"fmt"
)

const (
	NumSquares  = 64
	NumPieces   = 6
	NumFeatures = 2 * NumPieces * NumSquares // 768
)

// PieceType follows the usual 1-based ordering; 0 is no piece.
type PieceType uint8

const (
	NoPiece PieceType = iota
	Pawn
	Knight
	Bishop
	Rook
	Queen
	King
)

type Side uint8

const (
	White Side = 0
	Black Side = 1
)

func (s Side) String() string {
	if s == White {
		return "white"
	}
	return "black"
}

// Feature is an input index in [0, NumFeatures).
type Feature uint16

// Set is the active features of one position in ascending square order.
type Set []Feature

var ErrInvalidPosition = errors.New("invalid position")

// InvalidPositionError reports a square or piece the board backend should
// never have produced.
type InvalidPositionError struct {
	Square int
	Piece  PieceType
	Side   Side
}

func (e *InvalidPositionError) Error() string {
	return fmt.Sprintf("invalid position: square %d piece %d side %s", e.Square, e.Piece, e.Side)
}

func (e *InvalidPositionError) Unwrap() error { return ErrInvalidPosition }

// Position is the read-only view of a board the encoder needs.
type Position interface {
	// PieceAt reports the piece on sq, ok is false for an empty square.
	PieceAt(sq int) (pt PieceType, side Side, ok bool)
}

// Index returns (pt-1 + side*6)*64 + sq.
func Index(pt PieceType, side Side, sq int) (Feature, error) {
	if sq < 0 || sq >= NumSquares || pt < Pawn || pt > King || side > Black {
		return 0, &InvalidPositionError{Square: sq, Piece: pt, Side: side}
	}
	block := int(pt-1) + int(side)*NumPieces
	return Feature(block*NumSquares + sq), nil
}

// Decode is the inverse of Index.
func Decode(f Feature) (PieceType, Side, int, error) {
	if int(f) >= NumFeatures {
		return NoPiece, White, 0, fmt.Errorf("feature %d out of range: %w", f, ErrInvalidPosition)
	}
	block := int(f) / NumSquares
	sq := int(f) % NumSquares
	side := White
	if block >= NumPieces {
		side = Black
		block -= NumPieces
	}
	return PieceType(block + 1), side, sq, nil
}

// Encode collects the feature of every occupied square, scanning a1..h8.
func Encode(pos Position) (Set, error) {
	set := make(Set, 0, 32)
	for sq := 0; sq < NumSquares; sq++ {
		pt, side, ok := pos.PieceAt(sq)
		if !ok {
			continue
		}
		f, err := Index(pt, side, sq)
		if err != nil {
			return nil, err
		}
		set = append(set, f)
	}
	return set, nil
}

// EncodeFEN parses fen with the given backend and encodes it.
func EncodeFEN(b Backend, fen string) (Set, error) {
	pos, err := b.ParseFEN(fen)
	if err != nil {
		return nil, err
	}
	return Encode(pos)
}
