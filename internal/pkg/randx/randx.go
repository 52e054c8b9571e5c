/*
Package randx provides functions for generating random identifiers.

It is used for message IDs (UUID v4) and client-generated guest identity IDs.
*/
package randx

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/google/uuid"
)

const (
	// Base62Chars defines the character set used for Base62 encoding (0-9, A-Z, a-z).
	Base62Chars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

	// Base62Len is the total number of characters in the Base62 character set (62).
	Base62Len = int64(len(Base62Chars))

	// GuestIDPrefix is the prefix for generated guest identity IDs.
	GuestIDPrefix = "guest_"

	// GuestIDRawLength is the length of the random Base62 part of a guest ID.
	GuestIDRawLength = 6
)

// MessageID generates a UUID v4 string to serve as a unique message identifier.
// Collision probability is negligible (~2^-122), so IDs are unambiguous within
// and across conversation logs without any coordination.
func MessageID() string {
	return uuid.New().String()
}

// GuestID generates a guest identity ID of the form "guest_" plus
// GuestIDRawLength random Base62 characters, using crypto/rand.
func GuestID() (string, error) {
	result := make([]byte, GuestIDRawLength)

	for i := range GuestIDRawLength {
		num, err := rand.Int(rand.Reader, big.NewInt(Base62Len))
		if err != nil {
			return "", fmt.Errorf("failed to generate random number for guest id: %v", err)
		}

		result[i] = Base62Chars[num.Int64()]
	}

	return GuestIDPrefix + string(result), nil
}

// AvatarColor picks a random entry from the given palette. It is used when
// seeding contacts locally; an empty palette yields an empty string.
func AvatarColor(palette []string) string {
	if len(palette) == 0 {
		return ""
	}

	num, err := rand.Int(rand.Reader, big.NewInt(int64(len(palette))))
	if err != nil {
		return palette[0]
	}

	return palette[num.Int64()]
}
