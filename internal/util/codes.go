package util

import (
	"crypto/rand"
	"strings"
)

// codeLetters has no look-alike characters and exactly 32 entries, so five
// random bits pick one uniformly.
const codeLetters = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"

const (
	codeGroups    = 4
	codeGroupSize = 4

	// DeviceCodeLength is the length of a device code, dashes included.
	DeviceCodeLength = codeGroups*codeGroupSize + codeGroups - 1
)

// GenerateDeviceCode returns a random code of the form XXXX-XXXX-XXXX-XXXX.
func GenerateDeviceCode() (string, error) {
	raw := make([]byte, codeGroups*codeGroupSize)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}

	var b strings.Builder
	b.Grow(DeviceCodeLength)
	for i, r := range raw {
		if i > 0 && i%codeGroupSize == 0 {
			b.WriteByte('-')
		}
		b.WriteByte(codeLetters[r&0x1F])
	}
	return b.String(), nil
}

// ValidDeviceCode reports whether code has the shape GenerateDeviceCode
// produces.
func ValidDeviceCode(code string) bool {
	if len(code) != DeviceCodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if (i+1)%(codeGroupSize+1) == 0 {
			if code[i] != '-' {
				return false
			}
			continue
		}
		if strings.IndexByte(codeLetters, code[i]) < 0 {
			return false
		}
	}
	return true
}
