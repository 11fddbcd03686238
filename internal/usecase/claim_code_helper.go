package usecase

import (
	"crypto/rand"
	"encoding/hex"
	"hash/fnv"
	"io"
)

// generateClaimCode creates a secure, random, and human-readable claim code.
// Format: XXXX-XXXX-XXXX-XXXX
func generateClaimCode() (string, error) {
	// A character set that avoids ambiguous characters like O/0, I/1, l.
	const chars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	const codeLength = 16

	buffer := make([]byte, codeLength)
	if _, err := io.ReadFull(rand.Reader, buffer); err != nil {
		return "", err
	}

	for i := 0; i < codeLength; i++ {
		buffer[i] = chars[int(buffer[i])%len(chars)]
	}

	return string(buffer[0:4]) + "-" + string(buffer[4:8]) + "-" + string(buffer[8:12]) + "-" + string(buffer[12:16]), nil
}

// generateAPICredential mints the partner secret returned once at
// registration. 32 random bytes, hex encoded.
func generateAPICredential() (string, error) {
	buf := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "", err
	}
	return "llk_" + hex.EncodeToString(buf), nil
}

// customerLockKey maps a (partner, external customer) pair onto the advisory
// lock keyspace. Operations on the same pair serialize; different pairs never
// contend.
func customerLockKey(partnerID, externalCustomerID string) int64 {
	h := fnv.New64a()
	h.Write([]byte(partnerID))
	h.Write([]byte{0})
	h.Write([]byte(externalCustomerID))
	return int64(h.Sum64() & ((1 << 63) - 1))
}
