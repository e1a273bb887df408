package pkg

import (
	"crypto/rand"
	"math/big"
)

// RoomCodeLength - rooms are addressed by short human-shareable codes.
const RoomCodeLength = 4

// RoomCodeAlphabet - 32 symbols, excludes the visually confusable 0, 1, O and I.
const RoomCodeAlphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"

// GenerateRoomCode - draws each character independently and uniformly from
// the alphabet. Uniqueness is not checked against existing rooms.
func GenerateRoomCode() string {
	code := make([]byte, RoomCodeLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(RoomCodeAlphabet))))
		if err != nil {
			// crypto/rand never fails on supported platforms
			code[i] = RoomCodeAlphabet[0]
			continue
		}
		code[i] = RoomCodeAlphabet[n.Int64()]
	}

	return string(code)
}
