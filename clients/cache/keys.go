package cache

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
)

const blockCacheKeyPart = "block-cache"

// BuildBlockKey returns the key of the hash holding the results of a block
func BuildBlockKey(prefix string, blockNumber uint64) string {
	return strings.Join([]string{prefix, blockCacheKeyPart, fmt.Sprint(blockNumber)}, ":")
}

// BuildIndexKey returns the key of the sorted set indexing the cached blocks
func BuildIndexKey(prefix string) string {
	return strings.Join([]string{prefix, blockCacheKeyPart, "index"}, ":")
}

// HashFingerprint returns the keccak256 hash of a fingerprint, used as the field
// of the result within its block hash
func HashFingerprint(fingerprint string) string {
	return crypto.Keccak256Hash([]byte(fingerprint)).Hex()
}

// GetQueryKey returns the full logical key of a cached result
func GetQueryKey(prefix string, blockNumber uint64, fingerprint string) string {
	return BuildBlockKey(prefix, blockNumber) + ":" + HashFingerprint(fingerprint)
}
