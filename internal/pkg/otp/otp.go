package otp

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
)

const (
	codeMin = 100000
	codeMax = 999999

	resetTokenBytes = 20
)

var codeSpan = big.NewInt(codeMax - codeMin + 1)

// NewVerificationCode returns a six digit code a person can type.
func NewVerificationCode() (string, error) {
	n, err := rand.Int(rand.Reader, codeSpan)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+codeMin), nil
}

// NewResetToken returns 40 hex chars of crypto randomness. Reset links must
// not be guessable, so this never shares a generator with the short codes.
func NewResetToken() (string, error) {
	buf := make([]byte, resetTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
