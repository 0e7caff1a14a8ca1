// Package id generates the random identifiers used to correlate
// operations across the wire.
package id

import (
	"crypto/rand"
)

const alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// OperationLength is the length of websocket operation ids. Eight random
// alphanumeric characters keep frames short while making collisions among
// concurrently tracked operations negligible.
const OperationLength = 8

// Token returns n random characters from [a-zA-Z0-9].
func Token(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	for i := range b {
		b[i] = alphabet[int(b[i])%len(alphabet)]
	}
	return string(b)
}

// Operation returns a fresh websocket operation id.
func Operation() string {
	return Token(OperationLength)
}
