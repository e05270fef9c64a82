// Package common contains small helpers shared across Kopeck components.
package common

// WipeByteArray zeroes the buffer in place. Use it on secrets such as
// passwords once they are no longer needed.
func WipeByteArray(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
