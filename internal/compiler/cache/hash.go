// Package cache provides the build cache: content hashing of a build's inputs and
// storage of the generated output under that hash, in memory or in Redis.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// File is one build input
type File struct {
	Path    string
	Content []byte
}

// BuildInput is everything a build's output depends on
type BuildInput struct {
	// Generator identifies the code generator; a new generator invalidates old outputs
	Generator string
	// Config is the canonical form of the kinds, chains and build settings
	Config []byte
	// Files are hashed in order, since expansion order follows input order
	Files []File
}

// FileHasher computes content hashes for cache keys
type FileHasher struct{}

// NewFileHasher creates a new file hasher
func NewFileHasher() *FileHasher {
	return &FileHasher{}
}

// HashFile computes a SHA-256 hash of the file contents
func (fh *FileHasher) HashFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", err
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// HashContent computes a SHA-256 hash of the given content
func (fh *FileHasher) HashContent(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// BuildKey hashes a build's inputs. Every part is length-prefixed so that moving
// bytes between parts changes the key.
func (fh *FileHasher) BuildKey(in BuildInput) string {
	hasher := sha256.New()

	writePart := func(b []byte) {
		fmt.Fprintf(hasher, "%d:", len(b))
		hasher.Write(b)
	}

	writePart([]byte(in.Generator))
	writePart(in.Config)
	fmt.Fprintf(hasher, "files:%d;", len(in.Files))
	for _, f := range in.Files {
		writePart([]byte(f.Path))
		writePart(f.Content)
	}

	return hex.EncodeToString(hasher.Sum(nil))
}
