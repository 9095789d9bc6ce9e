package core

import (
	"context"
	"crypto/md5"
	"errors"
	"fmt"
	"io"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/smarty/jarsmith/contracts"
)

type artifact struct {
	Name    string
	URL     string
	Base    bool
	Natives bool
}

// FetchCacheEngine downloads the base archive and its support libraries for
// one version, skipping whatever the server reports as unchanged.
type FetchCacheEngine struct {
	fetcher  contracts.Fetcher
	disk     contracts.FileSystem
	store    *InstanceStore
	config   contracts.FetchConfig
	platform contracts.Platform
	backoff  Backoff
	interval time.Duration
	logger   *log.Logger
}

func NewFetchCacheEngine(
	fetcher contracts.Fetcher,
	disk contracts.FileSystem,
	store *InstanceStore,
	config contracts.FetchConfig,
	platform contracts.Platform,
	backoff Backoff,
) *FetchCacheEngine {
	return &FetchCacheEngine{
		fetcher:  fetcher,
		disk:     disk,
		store:    store,
		config:   config,
		platform: platform,
		backoff:  backoff,
		interval: time.Second * 2,
		logger:   log.Default(),
	}
}

func (this *FetchCacheEngine) EnsureBase(
	ctx context.Context,
	instance contracts.Instance,
	version contracts.VersionEntry,
	force bool,
	progress contracts.ProgressSink,
) (result contracts.FetchResult, err error) {
	phase := newPhaseProgress(progress, 0, 100)
	phase.Report(0, "Determining packages to load...")
	artifacts, err := this.artifacts(version)
	if err != nil {
		return result, err
	}
	record, err := this.store.LoadCacheRecord(instance)
	if err != nil {
		return result, err
	}
	err = this.disk.MkdirAll(instance.BinDir())
	if err != nil {
		return result, contracts.NewError(contracts.FilesystemError, "ensure base", instance.BinDir(), err)
	}

	phase.Report(0.05, "Checking cache for existing files...")
	var pending []artifact
	for _, item := range artifacts {
		if !force && this.unchanged(ctx, instance, item, record) {
			result.Skipped = append(result.Skipped, item.Name)
			continue
		}
		pending = append(pending, item)
	}

	var staged []stagedFile
	defer func() {
		if err != nil {
			for _, item := range staged {
				_ = this.disk.Delete(item.Temp)
			}
		}
	}()
	for x, item := range pending {
		start, end := 10+80*x/len(pending), 10+80*(x+1)/len(pending)
		files, written, stageErr := this.stage(ctx, instance, item, newPhaseProgress(progress, start, end))
		staged = append(staged, files...)
		if stageErr != nil {
			return result, stageErr
		}
		result.Downloaded = append(result.Downloaded, item.Name)
		result.BytesTransferred += written
	}

	natives, nativesStaged := instance.ArtifactPath(this.platform.NativesArchiveName()), false
	for _, item := range staged {
		if item.Natives {
			natives, nativesStaged = item.Temp, true
		}
	}
	if nativesStaged || !hasNatives(this.disk, instance.NativesDir()) {
		phase.Report(0.9, "Extracting natives...")
		_, err = extractNatives(ctx, this.disk, natives, instance.NativesDir())
		if err != nil {
			return result, err
		}
	}

	baseReplaced, err := this.swap(instance, staged, record)
	if err != nil {
		if baseReplaced {
			result.Transition.NeedsRebuild = contracts.BoolValue(true)
		}
		return result, err
	}

	result.Transition.CachedVersionLabel = contracts.StringValue(version.Label)
	result.Transition.CachedTimestamp = contracts.Int64Value(version.Timestamp)
	if baseReplaced {
		result.Transition.NeedsRebuild = contracts.BoolValue(true)
	}
	if exists(this.disk, instance.BackupArchivePath()) {
		result.Transition.BackupArchivePath = contracts.StringValue(instance.BackupArchivePath())
	}
	phase.Report(1, "Done.")
	this.logger.Printf("[INFO] %s %s: downloaded %d, skipped %d (%s).",
		instance.ID, version.Title(), len(result.Downloaded), len(result.Skipped), humanFileSize(float64(result.BytesTransferred)))
	return result, nil
}

func (this *FetchCacheEngine) artifacts(version contracts.VersionEntry) ([]artifact, error) {
	if version.URL() == "" {
		return nil, contracts.NewError(contracts.NotFoundError, "ensure base", version.Label,
			errors.New("version has no download location"))
	}
	if this.platform == "" {
		return nil, contracts.NewError(contracts.NotFoundError, "ensure base", version.Label,
			errors.New("no natives are published for this platform"))
	}
	artifacts := []artifact{{Name: contracts.BaseArchiveName, URL: joinURL(version.URL(), contracts.BaseArchiveName), Base: true}}
	for _, library := range this.config.Libraries {
		artifacts = append(artifacts, artifact{Name: library, URL: joinURL(this.config.LibraryBaseURL, library)})
	}
	natives := this.platform.NativesArchiveName()
	artifacts = append(artifacts, artifact{Name: natives, URL: joinURL(this.config.LibraryBaseURL, natives), Natives: true})
	return artifacts, nil
}

// unchanged asks the server whether the cached copy is still current.
func (this *FetchCacheEngine) unchanged(ctx context.Context, instance contracts.Instance, item artifact, record contracts.CacheRecord) bool {
	tag := record[item.Name]
	if tag == "" || !this.present(instance, item) {
		return false
	}
	response, err := this.fetcher.Fetch(ctx, contracts.ConditionalHeadRequest(item.URL, tag))
	if err != nil {
		this.logger.Printf("[WARN] could not check %s, downloading it instead: %s", item.URL, err)
		return false
	}
	defer func() { _ = response.Close() }()
	return response.NotModified()
}

func (this *FetchCacheEngine) present(instance contracts.Instance, item artifact) bool {
	if exists(this.disk, instance.ArtifactPath(item.Name)) {
		return true
	}
	return item.Base && exists(this.disk, instance.BackupArchivePath())
}

// stagedFile is a verified download waiting next to the file it replaces.
type stagedFile struct {
	artifact
	Temp   string
	Target string
	Tag    string
	Backup bool
}

// stage downloads one artifact until its digest matches the server's tag (or
// attempts run out). Nothing in place is touched: a new base archive is also
// copied next to an existing backup so the swap is renames only.
func (this *FetchCacheEngine) stage(ctx context.Context, instance contracts.Instance, item artifact, progress phaseProgress) (staged []stagedFile, written int64, err error) {
	target := instance.ArtifactPath(item.Name)
	temp := target + partialSuffix
	var tag string
	for attempt := 1; attempt <= this.backoff.MaxAttempts(); attempt++ {
		tag, written, err = this.download(ctx, item, temp, progress)
		if err == nil {
			break
		}
		_ = this.disk.Delete(temp)
		if !errors.Is(err, contracts.ErrVerification) && !isRetryable(err) {
			return nil, 0, err
		}
		if attempt < this.backoff.MaxAttempts() {
			this.logger.Printf("[WARN] download of %s failed (attempt %d of %d), retry imminent: %s",
				item.URL, attempt, this.backoff.MaxAttempts(), err)
			if waitErr := this.backoff.Wait(ctx, attempt); waitErr != nil {
				return nil, 0, contracts.NewError(contracts.CanceledError, "download", item.URL, waitErr)
			}
		}
	}
	if errors.Is(err, contracts.ErrVerification) {
		return nil, 0, contracts.NewError(contracts.NetworkError, "download", item.URL,
			fmt.Errorf("gave up after %d attempts: %w", this.backoff.MaxAttempts(), err))
	}
	if err != nil {
		return nil, 0, err
	}
	staged = append(staged, stagedFile{artifact: item, Temp: temp, Target: target, Tag: tag})

	if item.Base && exists(this.disk, instance.BackupArchivePath()) {
		backup := instance.BackupArchivePath() + stagedSuffix
		err = copyFile(ctx, this.disk, temp, backup)
		if err != nil {
			return staged, 0, err
		}
		staged = append(staged, stagedFile{artifact: item, Temp: backup, Target: instance.BackupArchivePath(), Tag: tag, Backup: true})
	}
	return staged, written, nil
}

// swap renames every staged file into place: libraries, then the base archive,
// then its backup. A record entry must only describe bytes on disk, so staged
// tags are dropped before the first rename and written after the last. If the
// backup rename fails, baseReplaced is still reported and a rebuild from the
// untouched backup restores the previous version.
func (this *FetchCacheEngine) swap(instance contracts.Instance, staged []stagedFile, record contracts.CacheRecord) (baseReplaced bool, err error) {
	if len(staged) == 0 {
		return false, nil
	}
	for _, item := range staged {
		delete(record, item.Name)
	}
	err = this.store.SaveCacheRecord(instance, record)
	if err != nil {
		return false, err
	}

	ordered := append([]stagedFile(nil), staged...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].rank() < ordered[j].rank() })
	for _, item := range ordered {
		err = this.disk.Rename(item.Temp, item.Target)
		if err != nil {
			return baseReplaced, contracts.NewError(contracts.FilesystemError, "replace", item.Target, err)
		}
		baseReplaced = baseReplaced || (item.Base && !item.Backup)
	}

	for _, item := range staged {
		if item.Tag != "" && !item.Backup {
			record[item.Name] = item.Tag
		}
	}
	err = this.store.SaveCacheRecord(instance, record)
	if err != nil {
		this.logger.Printf("[WARN] %s: the new files are in place but their tags were not cached: %s", instance.ID, err)
	}
	return baseReplaced, nil
}

func (this stagedFile) rank() int {
	switch {
	case this.Backup:
		return 2
	case this.Base:
		return 1
	default:
		return 0
	}
}

func (this *FetchCacheEngine) download(ctx context.Context, item artifact, temp string, progress phaseProgress) (string, int64, error) {
	response, err := this.fetcher.Fetch(ctx, contracts.GetRequest(item.URL))
	if err != nil {
		return "", 0, err
	}
	defer func() { _ = response.Close() }()
	if response.Body == nil {
		return "", 0, contracts.NewError(contracts.NetworkError, "download", item.URL, io.ErrUnexpectedEOF)
	}

	writer, err := this.disk.Create(temp)
	if err != nil {
		return "", 0, contracts.NewError(contracts.FilesystemError, "download", temp, err)
	}
	hasher := NewHashReader(response.Body, md5.New())
	counter := newTransferCounter(response.ContentLength, this.interval, func(written, total int64) {
		fraction := 0.0
		if total > 0 {
			fraction = float64(written) / float64(total)
		}
		progress.Report(fraction, describeTransfer("Downloaded", item.Name, written, total))
	})
	written, err := copyWithContext(ctx, io.MultiWriter(diskWriter{Writer: writer, path: temp}, counter), hasher)
	_ = counter.Close()
	closeErr := writer.Close()
	if errors.Is(err, contracts.ErrFilesystem) {
		return "", written, err
	}
	if err != nil {
		return "", written, contracts.NewError(contracts.NetworkError, "download", item.URL, err)
	}
	if closeErr != nil {
		return "", written, contracts.NewError(contracts.FilesystemError, "download", temp, closeErr)
	}

	tag := NormalizeTag(response.ETag)
	switch {
	case tag == "":
		this.logger.Printf("[WARN] %s was served without a content tag; accepted unverified and not cached.", item.URL)
	case !IsDigestTag(tag):
		this.logger.Printf("[WARN] the content tag of %s is not a digest; accepted unverified.", item.URL)
	case hasher.HexDigest() != tag:
		return "", written, contracts.NewError(contracts.VerificationError, "verify download", item.URL,
			fmt.Errorf("digest %s does not match content tag %s", hasher.HexDigest(), tag))
	}
	return tag, written, nil
}

// diskWriter tags write failures so a full or read-only disk is not mistaken
// for a dropped connection and retried.
type diskWriter struct {
	io.Writer
	path string
}

func (this diskWriter) Write(p []byte) (int, error) {
	written, err := this.Writer.Write(p)
	if err != nil {
		err = contracts.NewError(contracts.FilesystemError, "write", this.path, err)
	}
	return written, err
}

func joinURL(base, name string) string {
	if base == "" || strings.HasSuffix(base, "/") {
		return base + name
	}
	return base + "/" + name
}
