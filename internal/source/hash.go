package source

import (
	"crypto/sha256"
	"encoding/hex"
)

// Digest - фиксированный 256 битный хеш содержимого файла.
type Digest [32]byte

// Sum hashes raw bytes.
func Sum(content []byte) Digest {
	return Digest(sha256.Sum256(content))
}

func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}
