package scanner

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// fingerprintChunk is how much of the head and tail of a file goes into the
// fingerprint.
const fingerprintChunk = 64 * 1024

// Fingerprint hashes the first and last 64 KiB of a file together with its
// size. Reading two fixed chunks keeps fingerprinting cheap on large media
// files while still catching both remuxes and partial overwrites.
func Fingerprint(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s for fingerprinting: %w", path, err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("failed to stat %s: %w", path, err)
	}
	size := stat.Size()

	h := sha256.New()
	if err := binary.Write(h, binary.LittleEndian, size); err != nil {
		return "", err
	}

	head := make([]byte, min(size, fingerprintChunk))
	if _, err := io.ReadFull(f, head); err != nil {
		return "", fmt.Errorf("failed to read head of %s: %w", path, err)
	}
	h.Write(head)

	if size > fingerprintChunk {
		tail := make([]byte, fingerprintChunk)
		if _, err := f.ReadAt(tail, size-fingerprintChunk); err != nil {
			return "", fmt.Errorf("failed to read tail of %s: %w", path, err)
		}
		h.Write(tail)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
