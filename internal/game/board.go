package game

import (
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
)

const (
	// NumCharacteristics is the number of characteristic types of a character.
	NumCharacteristics = 4
	// NumVariants is the number of values a characteristic can take, [0,3].
	NumVariants = 4
	// BoardSize is the number of characters on the game board (6x4 grid).
	BoardSize = 24
)

var (
	ErrOutOfRange = errors.New("characteristic out of range")
	ErrNotOnBoard = errors.New("character is not on the game board")
)

// Character is an ordered tuple of characteristics, each in [0,3].
type Character [NumCharacteristics]uint8

// Board lists every selectable character, row by row.
var Board = [BoardSize]Character{
	{3, 1, 0, 1}, {0, 1, 2, 3}, {2, 0, 3, 0}, {2, 0, 1, 0}, {1, 2, 3, 2}, {1, 3, 0, 3},
	{2, 1, 3, 0}, {3, 2, 1, 0}, {2, 0, 1, 3}, {0, 1, 2, 1}, {3, 1, 0, 2}, {3, 1, 2, 1},
	{3, 1, 2, 0}, {1, 3, 2, 3}, {2, 1, 3, 1}, {2, 0, 3, 1}, {2, 1, 0, 3}, {3, 2, 0, 2},
	{1, 3, 2, 0}, {1, 3, 0, 2}, {2, 1, 0, 1}, {3, 2, 0, 1}, {0, 1, 3, 1}, {3, 2, 1, 2},
}

// InRange reports whether every characteristic is in [0,3].
func (c Character) InRange() bool {
	for _, v := range c {
		if v >= NumVariants {
			return false
		}
	}
	return true
}

// IsOnBoard reports whether c is one of the Board characters.
func IsOnBoard(c Character) bool {
	for _, b := range Board {
		if b == c {
			return true
		}
	}
	return false
}

// Validate checks range and board membership.
func (c Character) Validate() error {
	if !c.InRange() {
		return fmt.Errorf("%w: %v", ErrOutOfRange, c)
	}
	if !IsOnBoard(c) {
		return fmt.Errorf("%w: %v", ErrNotOnBoard, c)
	}
	return nil
}

// Matches reports whether guess equals c element-wise.
func (c Character) Matches(guess Character) bool { return c == guess }

// Answer reports whether c has the queried characteristic. Out of range
// queries never match.
func (c Character) Answer(q Query) bool {
	if int(q.Type) >= NumCharacteristics {
		return false
	}
	return c[q.Type] == q.Characteristic
}

func (c Character) String() string {
	parts := make([]string, len(c))
	for i, v := range c {
		parts[i] = strconv.Itoa(int(v))
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// ParseCharacter parses "3,2,1,0" (brackets optional).
func ParseCharacter(s string) (Character, error) {
	var c Character
	s = strings.Trim(strings.TrimSpace(s), "[]")
	fields := strings.Split(s, ",")
	if len(fields) != NumCharacteristics {
		return c, fmt.Errorf("character needs %d comma separated values, got %q", NumCharacteristics, s)
	}
	for i, f := range fields {
		v, err := strconv.ParseUint(strings.TrimSpace(f), 10, 8)
		if err != nil {
			return c, fmt.Errorf("characteristic %d: %w", i, err)
		}
		c[i] = uint8(v)
	}
	return c, nil
}

// RandomCharacter picks a board character.
func RandomCharacter() Character {
	return Board[rand.Intn(BoardSize)]
}

// Query asks whether characteristic Type has value Characteristic.
type Query struct {
	Type           uint8 `json:"type"`
	Characteristic uint8 `json:"characteristic"`
}

// Validate checks both fields are in [0,3].
func (q Query) Validate() error {
	if q.Type >= NumCharacteristics || q.Characteristic >= NumVariants {
		return fmt.Errorf("%w: type=%d characteristic=%d", ErrOutOfRange, q.Type, q.Characteristic)
	}
	return nil
}

// Encoded answer/verdict values as published to the room state. Circuits
// emit the raw bit; the room stores bit+1.
const (
	ResponsePending uint8 = 0
	ResponseFalse   uint8 = 1
	ResponseTrue    uint8 = 2
	// ResponseNone is reported before any query of that kind was issued.
	ResponseNone uint8 = 3
)

// EncodeResponse maps a circuit bit (0/1) to ResponseFalse/ResponseTrue.
func EncodeResponse(bit uint8) uint8 { return bit + 1 }

// Bit converts a boolean to the circuit representation.
func Bit(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
