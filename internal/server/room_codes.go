package server

import (
	"errors"
	"math/rand"
	"strings"
)

const roomCodeLength = 4

// maxRoomCodeAttempts bounds code generation so a nearly-full code space
// returns an error instead of spinning.
const maxRoomCodeAttempts = 1000

func GenerateRoomCode(usedCodes map[string]bool) (string, error) {
	for range maxRoomCodeAttempts {
		code := make([]byte, roomCodeLength)
		for i := range code {
			code[i] = 'A' + byte(rand.Intn(26))
		}
		roomCode := string(code)

		if !usedCodes[roomCode] {
			return roomCode, nil
		}
	}
	return "", errors.New("ROOM_CODES_EXHAUSTED: Could not generate an unused room code")
}

func ValidateRoomCode(code string) error {
	if len(code) != roomCodeLength {
		return errors.New("INVALID_ROOM_CODE: Room code must be exactly 4 characters")
	}

	for _, ch := range strings.ToUpper(code) {
		if ch < 'A' || ch > 'Z' {
			return errors.New("INVALID_ROOM_CODE: Room code must contain only letters A-Z")
		}
	}

	return nil
}

func NormalizeRoomCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
