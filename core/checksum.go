package core

import (
	"crypto/md5"
	"encoding/hex"
	"hash"
	"io"
	"strings"

	"github.com/smarty/jarsmith/contracts"
)

func Digest(reader io.Reader) (string, error) {
	hasher := md5.New()
	_, err := io.Copy(hasher, reader)
	if err != nil {
		return "", err
	}
	return hexDigest(hasher), nil
}

func DigestBytes(raw []byte) string {
	sum := md5.Sum(raw)
	return hex.EncodeToString(sum[:])
}

func DigestFile(fileSystem contracts.FileOpener, path string) (string, error) {
	reader, err := fileSystem.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = reader.Close() }()
	return Digest(reader)
}

// NormalizeTag turns an entity tag as sent by a server (`"abc"`, `W/"abc"`)
// into the bare lower-case form digests are compared in.
func NormalizeTag(tag string) string {
	tag = strings.TrimSpace(tag)
	tag = strings.TrimPrefix(tag, "W/")
	tag = strings.Trim(tag, `"`)
	return strings.ToLower(tag)
}

func SameDigest(a, b string) bool {
	return NormalizeTag(a) == NormalizeTag(b)
}

// IsDigestTag reports whether a tag is a plain MD5 of the content. Servers
// emit other forms for multipart uploads; those can only be used as cache
// validators.
func IsDigestTag(tag string) bool {
	tag = NormalizeTag(tag)
	if len(tag) != md5.Size*2 {
		return false
	}
	_, err := hex.DecodeString(tag)
	return err == nil
}

func hexDigest(hasher hash.Hash) string {
	return hex.EncodeToString(hasher.Sum(nil))
}
