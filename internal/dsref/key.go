package dsref

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/zeebo/xxh3"
)

// KeyFunc maps a canonical id onto an opaque fixed-length store key.
type KeyFunc func(id string) string

// MD5Key is the key used by existing fix indexes.
func MD5Key(id string) string {
	sum := md5.Sum([]byte(id))
	return hex.EncodeToString(sum[:])
}

// SHA256Key hashes id with SHA-256.
func SHA256Key(id string) string {
	sum := sha256.Sum256([]byte(id))
	return hex.EncodeToString(sum[:])
}

// XXH3Key hashes id with 128-bit xxh3.
func XXH3Key(id string) string {
	b := xxh3.HashString128(id).Bytes()
	return hex.EncodeToString(b[:])
}

// KeyFuncFor returns the key function named by config (md5, sha256, xxh3).
// Empty selects md5.
func KeyFuncFor(name string) (KeyFunc, error) {
	switch name {
	case "", "md5":
		return MD5Key, nil
	case "sha256":
		return SHA256Key, nil
	case "xxh3":
		return XXH3Key, nil
	}
	return nil, fmt.Errorf("dsref: unknown key hash %q", name)
}
