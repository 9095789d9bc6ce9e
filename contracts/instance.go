package contracts

import "path/filepath"

const (
	BaseArchiveName      = "minecraft.jar"
	BackupSuffix         = ".backup"
	NativesDirectoryName = "natives"
	CacheRecordFilename  = "md5sums"
	VersionFilename      = "version"
	InstanceRecordName   = "instance.yaml"
	OverlaysDirectory    = "instMods"
	OverlayOrderFilename = "modlist"
	MetadataDirectory    = "META-INF/"
)

type Instance struct {
	ID      string
	RootDir string
}

func (this Instance) BinDir() string            { return filepath.Join(this.RootDir, "bin") }
func (this Instance) BaseArchivePath() string   { return filepath.Join(this.BinDir(), BaseArchiveName) }
func (this Instance) BackupArchivePath() string { return this.BaseArchivePath() + BackupSuffix }
func (this Instance) NativesDir() string        { return filepath.Join(this.BinDir(), NativesDirectoryName) }
func (this Instance) CacheRecordPath() string   { return filepath.Join(this.BinDir(), CacheRecordFilename) }
func (this Instance) VersionFilePath() string   { return filepath.Join(this.BinDir(), VersionFilename) }
func (this Instance) RecordPath() string        { return filepath.Join(this.RootDir, InstanceRecordName) }
func (this Instance) OverlaysRoot() string      { return filepath.Join(this.RootDir, OverlaysDirectory) }
func (this Instance) OverlayOrderPath() string  { return filepath.Join(this.RootDir, OverlayOrderFilename) }

func (this Instance) ArtifactPath(name string) string {
	return filepath.Join(this.BinDir(), name)
}

type InstanceArtifactState struct {
	BaseArchivePath    string `yaml:"base_archive_path"`
	BackupArchivePath  string `yaml:"backup_archive_path,omitempty"`
	CachedVersionLabel string `yaml:"cached_version_label,omitempty"`
	CachedTimestamp    int64  `yaml:"cached_timestamp,omitempty"`
	NeedsRebuild       bool   `yaml:"needs_rebuild"`
	OverlayFingerprint string `yaml:"overlay_fingerprint,omitempty"`
}

// StateTransition is what a pipeline component hands back instead of
// mutating instance state itself. Nil fields are left alone by Apply.
type StateTransition struct {
	BackupArchivePath  *string
	CachedVersionLabel *string
	CachedTimestamp    *int64
	NeedsRebuild       *bool
	OverlayFingerprint *string
}

func (this StateTransition) Apply(state InstanceArtifactState) InstanceArtifactState {
	if this.BackupArchivePath != nil {
		state.BackupArchivePath = *this.BackupArchivePath
	}
	if this.CachedVersionLabel != nil {
		state.CachedVersionLabel = *this.CachedVersionLabel
	}
	if this.CachedTimestamp != nil {
		state.CachedTimestamp = *this.CachedTimestamp
	}
	if this.NeedsRebuild != nil {
		state.NeedsRebuild = *this.NeedsRebuild
	}
	if this.OverlayFingerprint != nil {
		state.OverlayFingerprint = *this.OverlayFingerprint
	}
	return state
}

func (this StateTransition) IsEmpty() bool {
	return this == StateTransition{}
}

func StringValue(value string) *string { return &value }
func Int64Value(value int64) *int64    { return &value }
func BoolValue(value bool) *bool       { return &value }

func StringValueOf(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

type FetchResult struct {
	Transition       StateTransition
	Downloaded       []string
	Skipped          []string
	BytesTransferred int64
}

type PatchResult struct {
	Transition StateTransition
	Patched    []string
	Warnings   []string
}

type AssemblyResult struct {
	Transition   StateTransition
	EntryCount   int
	OverlayCount int
}

type EnsureRequest struct {
	Version     string
	DowngradeTo string
	Force       bool
}
