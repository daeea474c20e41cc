package utils

import (
	"math/rand"
	"time"
	"unicode"
)

func IsBlank(str string) bool {
	if str == "" {
		return true
	}

	for _, c := range str {
		if !unicode.IsSpace(c) {
			return false
		}
	}
	return true
}

const hexStringLetters = "abcdef0123456789"

func RandHexString(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = hexStringLetters[rand.Intn(len(hexStringLetters))]
	}
	return string(b)
}

const orderRefLen = 8

// GenerateOrderReference returns a short random reference used as the
// subaddress label for a new order.
func GenerateOrderReference() string {
	return "order-" + RandHexString(orderRefLen)
}

func init() {
	rand.Seed(time.Now().Unix())
}
