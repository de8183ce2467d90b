package hasher

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"hash"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/pkg/errors"
)

const DefaultAlgorithm = "sha1"

var ErrUnsupportedAlgorithm = errors.New("unsupported hash algorithm")

type Algorithm struct {
	Name    string
	Size    int
	NewFunc func() hash.Hash
}

var algorithms = map[string]Algorithm{
	"sha1":   {Name: "sha1", Size: sha1.Size, NewFunc: sha1.New},
	"sha256": {Name: "sha256", Size: sha256.Size, NewFunc: sha256.New},
	"sha512": {Name: "sha512", Size: sha512.Size, NewFunc: sha512.New},
	"md5":    {Name: "md5", Size: md5.Size, NewFunc: md5.New},
	"xxhash": {Name: "xxhash", Size: 8, NewFunc: func() hash.Hash { return xxhash.New() }},
}

// GetAlgorithm looks an algorithm up by name, case-insensitively.
func GetAlgorithm(name string) (Algorithm, error) {
	if name == "" {
		name = DefaultAlgorithm
	}

	algo, ok := algorithms[strings.ToLower(name)]
	if !ok {
		return Algorithm{}, errors.Wrapf(ErrUnsupportedAlgorithm, "%q", name)
	}

	return algo, nil
}

// Algorithms lists the supported algorithm names.
func Algorithms() []string {
	return []string{"sha1", "sha256", "sha512", "md5", "xxhash"}
}
