package perk

import (
	"errors"
	"fmt"
	"strings"
)

var errBadSquare = errors.New("bad square name")
var errBadPosition = errors.New("bad board position")

// ClearSquare returns the FEN position with the named square emptied.
// Only the piece-placement field changes; side to move, castling rights
// and counters are preserved. Clearing an empty square is a no-op.
func ClearSquare(fen, square string) (string, error) {
	file, rank, err := parseSquare(square)
	if err != nil {
		return "", err
	}

	fields := strings.Fields(fen)
	if len(fields) < 4 {
		return "", errBadPosition
	}
	ranks := strings.Split(fields[0], "/")
	if len(ranks) != 8 {
		return "", errBadPosition
	}

	// FEN lists rank 8 first.
	row, err := expandRank(ranks[7-rank])
	if err != nil {
		return "", err
	}
	row[file] = 0
	ranks[7-rank] = compressRank(row)
	fields[0] = strings.Join(ranks, "/")
	return strings.Join(fields, " "), nil
}

// PieceAt returns the piece letter on the named square, or 0 if empty.
func PieceAt(fen, square string) (byte, error) {
	file, rank, err := parseSquare(square)
	if err != nil {
		return 0, err
	}
	fields := strings.Fields(fen)
	if len(fields) < 1 {
		return 0, errBadPosition
	}
	ranks := strings.Split(fields[0], "/")
	if len(ranks) != 8 {
		return 0, errBadPosition
	}
	row, err := expandRank(ranks[7-rank])
	if err != nil {
		return 0, err
	}
	return row[file], nil
}

func parseSquare(square string) (file, rank int, err error) {
	if len(square) != 2 || square[0] < 'a' || square[0] > 'h' || square[1] < '1' || square[1] > '8' {
		return 0, 0, fmt.Errorf("%w: %q", errBadSquare, square)
	}
	return int(square[0] - 'a'), int(square[1] - '1'), nil
}

func expandRank(s string) ([8]byte, error) {
	var row [8]byte
	i := 0
	for _, c := range []byte(s) {
		if c >= '1' && c <= '8' {
			i += int(c - '0')
			continue
		}
		if i >= 8 {
			return row, errBadPosition
		}
		row[i] = c
		i++
	}
	if i != 8 {
		return row, errBadPosition
	}
	return row, nil
}

func compressRank(row [8]byte) string {
	var b strings.Builder
	empty := 0
	for _, c := range row {
		if c == 0 {
			empty++
			continue
		}
		if empty > 0 {
			fmt.Fprintf(&b, "%d", empty)
			empty = 0
		}
		b.WriteByte(c)
	}
	if empty > 0 {
		fmt.Fprintf(&b, "%d", empty)
	}
	return b.String()
}
