package contracts

import (
	"errors"
	"sort"
	"strings"
)

const (
	PatchManifestFilename = "checksum.json"
	PatchFileExtension    = ".ptch"
)

// PatchManifest lists, per artifact, the digest the installed file must have
// before patching (CurrentVersion) and the digest expected afterwards
// (OldVersion, the downgrade target).
type PatchManifest struct {
	OldVersion     map[string]string `json:"OldVersion"`
	CurrentVersion map[string]string `json:"CurrentVersion"`
}

func (this PatchManifest) Validate() error {
	if len(this.CurrentVersion) == 0 {
		return errors.New("patch manifest lists no source digests")
	}
	for artifact := range this.CurrentVersion {
		if artifact == "" || strings.ContainsAny(artifact, `/\`) || strings.Contains(artifact, "..") {
			return errors.New("patch manifest names an artifact outside the bin directory: " + artifact)
		}
		if _, found := this.OldVersion[artifact]; !found {
			return errors.New("patch manifest has no target digest for " + artifact)
		}
	}
	return nil
}

func (this PatchManifest) SourceDigest(artifact string) string { return this.CurrentVersion[artifact] }
func (this PatchManifest) TargetDigest(artifact string) string { return this.OldVersion[artifact] }

func (this PatchManifest) Artifacts() (artifacts []string) {
	for artifact := range this.CurrentVersion {
		artifacts = append(artifacts, artifact)
	}
	sort.Strings(artifacts)
	return artifacts
}

type PatchLocation struct {
	URL string `json:"url"`
}

type DowngradeIndex struct {
	PatchSource string                `json:"mcversion"`
	Versions    []DowngradeIndexEntry `json:"versions"`
}

type DowngradeIndexEntry struct {
	Name string `json:"name"`
	MD5  string `json:"md5"`
}

// PatchCodec is a bsdiff-compatible binary diff: Apply(old, Diff(old, new))
// must reproduce new exactly.
type PatchCodec interface {
	Diff(old, new []byte) ([]byte, error)
	Apply(old, patch []byte) ([]byte, error)
}
