package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/url"
	"strings"

	"github.com/smarty/jarsmith/contracts"
)

const patchingSuffix = ".patching"

// PatchEngine downgrades an instance by applying binary diffs published for
// the installed version. Nothing is replaced until every patched file exists.
type PatchEngine struct {
	fetcher contracts.Fetcher
	disk    contracts.FileSystem
	store   *InstanceStore
	codec   contracts.PatchCodec
	config  contracts.PatchConfig
	logger  *log.Logger
}

func NewPatchEngine(fetcher contracts.Fetcher, disk contracts.FileSystem, store *InstanceStore, codec contracts.PatchCodec, config contracts.PatchConfig) *PatchEngine {
	if config.PostPatchPolicy == "" {
		config.PostPatchPolicy = contracts.WarnOnMismatch
	}
	return &PatchEngine{fetcher: fetcher, disk: disk, store: store, codec: codec, config: config, logger: log.Default()}
}

type patchTarget struct {
	Artifact string
	Name     string
	Path     string
	Patch    []byte
	Temp     string
}

func (this *PatchEngine) Downgrade(
	ctx context.Context,
	instance contracts.Instance,
	target string,
	progress contracts.ProgressSink,
) (result contracts.PatchResult, err error) {
	phase := newPhaseProgress(progress, 0, 100)

	phase.Report(0, "Downloading patches...")
	targets, manifest, err := this.downloadPatches(ctx, instance, target, phase)
	if err != nil {
		return result, err
	}

	phase.Report(0.4, "Verifying files...")
	expected := make(map[string]string, len(targets))
	for _, item := range targets {
		expected[item.Path] = manifest.SourceDigest(item.Artifact)
	}
	err = NewDigestIntegrityCheck(this.disk, "verify before patching", "has been modified, force-update before downgrading").Verify(expected)
	if err != nil {
		return result, err
	}

	defer func() {
		if err != nil {
			for _, item := range targets {
				_ = this.disk.Delete(item.Temp)
			}
		}
	}()

	phase.Report(0.6, "Patching files...")
	for _, item := range targets {
		if err = ctx.Err(); err != nil {
			return result, contracts.NewError(contracts.CanceledError, "patch", item.Path, err)
		}
		warning, patchErr := this.apply(item, manifest.TargetDigest(item.Artifact))
		if patchErr != nil {
			err = patchErr
			return result, err
		}
		if warning != "" {
			result.Warnings = append(result.Warnings, warning)
		}
	}

	err = this.forget(instance, targets)
	if err != nil {
		return result, err
	}
	for _, item := range targets {
		err = this.disk.Rename(item.Temp, item.Path)
		if err != nil {
			return result, contracts.NewError(contracts.FilesystemError, "replace", item.Path, err)
		}
		result.Patched = append(result.Patched, item.Artifact)
	}

	timestamp := int64(0)
	if info, statErr := this.disk.Stat(targets[0].Path); statErr == nil {
		timestamp = info.ModTime().Unix()
	}
	result.Transition.CachedVersionLabel = contracts.StringValue(target)
	result.Transition.CachedTimestamp = contracts.Int64Value(timestamp)
	result.Transition.NeedsRebuild = contracts.BoolValue(true)
	if exists(this.disk, instance.BackupArchivePath()) {
		result.Transition.BackupArchivePath = contracts.StringValue(instance.BackupArchivePath())
	}
	phase.Report(1, "Done!")
	this.logger.Printf("[INFO] %s downgraded to %s (%s).", instance.ID, target, strings.Join(result.Patched, ", "))
	return result, nil
}

func (this *PatchEngine) downloadPatches(ctx context.Context, instance contracts.Instance, target string, phase phaseProgress) (targets []patchTarget, manifest contracts.PatchManifest, err error) {
	location, err := this.locate(ctx, target)
	if err != nil {
		return nil, manifest, err
	}
	phase.Report(0.1, "Downloading patches: "+contracts.PatchManifestFilename)
	raw, err := this.download(ctx, joinURL(location.URL, contracts.PatchManifestFilename))
	if err != nil {
		return nil, manifest, err
	}
	err = json.Unmarshal(raw, &manifest)
	if err == nil {
		err = manifest.Validate()
	}
	if err != nil {
		return nil, manifest, contracts.NewError(contracts.FormatError, "read patch manifest", location.URL, err)
	}

	artifacts := manifest.Artifacts()
	for x, artifact := range artifacts {
		name := strings.TrimSuffix(artifact, ".jar")
		phase.Report(0.1+0.3*float64(x)/float64(len(artifacts)), "Downloading patches: "+name+contracts.PatchFileExtension)
		patch, err := this.download(ctx, joinURL(location.URL, name+contracts.PatchFileExtension))
		if err != nil {
			return nil, manifest, err
		}
		path := this.sourcePath(instance, name+".jar")
		targets = append(targets, patchTarget{Artifact: artifact, Name: name + ".jar", Path: path, Patch: patch, Temp: path + patchingSuffix})
	}
	return targets, manifest, nil
}

// forget drops the cached content tags of the files about to be patched. Those
// tags describe the unpatched bytes; keeping them would let the server report
// the downgraded files as current.
func (this *PatchEngine) forget(instance contracts.Instance, targets []patchTarget) error {
	record, err := this.store.LoadCacheRecord(instance)
	if err != nil {
		return err
	}
	for _, item := range targets {
		delete(record, item.Name)
	}
	return this.store.SaveCacheRecord(instance, record)
}

func (this *PatchEngine) locate(ctx context.Context, target string) (location contracts.PatchLocation, err error) {
	address, err := url.Parse(this.config.IndexURL)
	if err != nil {
		return location, contracts.NewError(contracts.FormatError, "locate patches", this.config.IndexURL, err)
	}
	query := address.Query()
	query.Set("pversion", "1")
	query.Set("mcversion", target)
	address.RawQuery = query.Encode()

	raw, err := this.download(ctx, address.String())
	if err != nil {
		return location, err
	}
	err = json.Unmarshal(raw, &location)
	if err != nil {
		return location, contracts.NewError(contracts.FormatError, "locate patches", address.String(), err)
	}
	if location.URL == "" {
		return location, contracts.NewError(contracts.NotFoundError, "locate patches", target, errNoPatches)
	}
	return location, nil
}

func (this *PatchEngine) download(ctx context.Context, address string) ([]byte, error) {
	response, err := this.fetcher.Fetch(ctx, contracts.GetRequest(address))
	if err != nil {
		return nil, err
	}
	defer func() { _ = response.Close() }()
	if response.Body == nil {
		return nil, contracts.NewError(contracts.NetworkError, "download", address, io.ErrUnexpectedEOF)
	}
	raw, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, contracts.NewError(contracts.NetworkError, "download", address, err)
	}
	return raw, nil
}

// sourcePath prefers the backup for the base archive: the live file may
// already carry overlay content.
func (this *PatchEngine) sourcePath(instance contracts.Instance, name string) string {
	if name == contracts.BaseArchiveName && exists(this.disk, instance.BackupArchivePath()) {
		return instance.BackupArchivePath()
	}
	return instance.ArtifactPath(name)
}

func (this *PatchEngine) apply(item patchTarget, expected string) (warning string, err error) {
	old, err := this.disk.ReadFile(item.Path)
	if err != nil {
		return "", contracts.NewError(contracts.FilesystemError, "patch", item.Path, err)
	}
	patched, err := this.codec.Apply(old, item.Patch)
	if err != nil {
		return "", contracts.NewError(contracts.FormatError, "patch", item.Path, fmt.Errorf("corrupt patch: %w", err))
	}
	err = this.disk.WriteFile(item.Temp, patched)
	if err != nil {
		return "", contracts.NewError(contracts.FilesystemError, "patch", item.Temp, err)
	}
	if SameDigest(DigestBytes(patched), expected) {
		return "", nil
	}
	message := fmt.Sprintf("the digest of %s did not match what it was supposed to be after patching", baseName(item.Path))
	if this.config.PostPatchPolicy == contracts.ErrorOnMismatch {
		return "", contracts.NewError(contracts.VerificationError, "verify after patching", item.Path, errors.New(message))
	}
	this.logger.Printf("[WARN] %s.", message)
	return message, nil
}

func baseName(path string) string {
	return path[strings.LastIndexAny(path, `/\`)+1:]
}

var errNoPatches = errors.New("no patches are published for this version")
