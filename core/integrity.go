package core

import (
	"fmt"
	"sort"

	"github.com/smarty/jarsmith/contracts"
)

// DigestIntegrityCheck compares files on disk with the digests they are
// expected to have. The first mismatch (in path order) is reported.
type DigestIntegrityCheck struct {
	fileSystem contracts.FileOpener
	operation  string
	hint       string
}

func NewDigestIntegrityCheck(fileSystem contracts.FileOpener, operation, hint string) *DigestIntegrityCheck {
	return &DigestIntegrityCheck{fileSystem: fileSystem, operation: operation, hint: hint}
}

func (this *DigestIntegrityCheck) Verify(expected map[string]string) error {
	paths := make([]string, 0, len(expected))
	for path := range expected {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	for _, path := range paths {
		digest, err := DigestFile(this.fileSystem, path)
		if err != nil {
			return contracts.NewError(contracts.VerificationError, this.operation, path, err)
		}
		if !SameDigest(digest, expected[path]) {
			return contracts.NewError(contracts.VerificationError, this.operation, path,
				fmt.Errorf("%s %s", baseName(path), this.hint))
		}
	}
	return nil
}
