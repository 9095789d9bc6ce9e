package core

import (
	"context"
	"crypto/md5"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/flate"

	"github.com/smarty/jarsmith/archive"
	"github.com/smarty/jarsmith/contracts"
)

const assemblingSuffix = ".assembling"

// ArchiveAssembler rebuilds the runnable archive from the pristine backup
// with the instance's overlays merged on top.
type ArchiveAssembler struct {
	disk   contracts.FileSystem
	level  int
	logger *log.Logger
}

func NewArchiveAssembler(disk contracts.FileSystem) *ArchiveAssembler {
	return &ArchiveAssembler{disk: disk, level: flate.DefaultCompression, logger: log.Default()}
}

func (this *ArchiveAssembler) Rebuild(
	ctx context.Context,
	instance contracts.Instance,
	overlays []contracts.OverlayEntry,
	progress contracts.ProgressSink,
) (result contracts.AssemblyResult, err error) {
	phase := newPhaseProgress(progress, 0, 100)
	phase.Report(0, "Preparing base archive...")
	err = this.ensureBackup(ctx, instance)
	if err != nil {
		return result, err
	}

	ordered := orderOverlays(overlays)
	base := instance.BaseArchivePath()
	temp := base + assemblingSuffix
	file, err := this.disk.Create(temp)
	if err != nil {
		return result, contracts.NewError(contracts.FilesystemError, "rebuild", temp, err)
	}
	writer := archive.NewZipArchiveWriter(file, this.level)
	defer func() {
		if err != nil {
			_ = writer.Close()
			_ = file.Close()
			_ = this.disk.Delete(temp)
		}
	}()

	written := make(map[string]struct{})
	for x, overlay := range ordered {
		phase.Report(0.05+0.75*float64(x)/float64(len(ordered)), "Adding "+filepath.Base(overlay.Path)+"...")
		count, overlayErr := this.addOverlay(ctx, writer, instance, overlay, written)
		if errors.Is(overlayErr, fs.ErrNotExist) {
			this.logger.Printf("[WARN] overlay %s is missing and was left out.", overlay.Path)
			continue
		}
		if overlayErr != nil {
			err = overlayErr
			return result, err
		}
		result.OverlayCount++
		result.EntryCount += count
	}

	phase.Report(0.8, "Adding base archive contents...")
	count, err := this.merge(ctx, writer, instance.BackupArchivePath(), written)
	if err != nil {
		return result, err
	}
	result.EntryCount += count

	err = writer.Close()
	if err == nil {
		err = file.Close()
	}
	if err != nil {
		err = contracts.NewError(contracts.FilesystemError, "rebuild", temp, err)
		return result, err
	}
	err = this.disk.Rename(temp, base)
	if err != nil {
		err = contracts.NewError(contracts.FilesystemError, "replace", base, err)
		return result, err
	}

	result.Transition.NeedsRebuild = contracts.BoolValue(false)
	result.Transition.BackupArchivePath = contracts.StringValue(instance.BackupArchivePath())
	result.Transition.OverlayFingerprint = contracts.StringValue(OverlayFingerprint(this.disk, ordered))
	phase.Report(1, "Done!")
	this.logger.Printf("[INFO] %s rebuilt with %d overlays (%d entries).", instance.ID, result.OverlayCount, result.EntryCount)
	return result, nil
}

// ensureBackup keeps the first pristine copy of the base archive; it is
// never overwritten here once it exists.
func (this *ArchiveAssembler) ensureBackup(ctx context.Context, instance contracts.Instance) error {
	if exists(this.disk, instance.BackupArchivePath()) {
		return nil
	}
	if !exists(this.disk, instance.BaseArchivePath()) {
		return contracts.NewError(contracts.NotFoundError, "rebuild", instance.BaseArchivePath(),
			errors.New("the base archive has not been downloaded"))
	}
	return copyFile(ctx, this.disk, instance.BaseArchivePath(), instance.BackupArchivePath())
}

func (this *ArchiveAssembler) addOverlay(ctx context.Context, writer contracts.ArchiveWriter, instance contracts.Instance, overlay contracts.OverlayEntry, written map[string]struct{}) (int, error) {
	info, err := this.disk.Stat(overlay.Path)
	if err != nil {
		return 0, err
	}
	if overlay.Kind == contracts.ArchiveOverlay {
		return this.merge(ctx, writer, overlay.Path, written)
	}

	name := looseEntryName(instance, overlay.Path)
	if _, found := written[name]; found || isMetadata(name) {
		return 0, nil
	}
	reader, err := this.disk.Open(overlay.Path)
	if err != nil {
		return 0, contracts.NewError(contracts.FilesystemError, "rebuild", overlay.Path, err)
	}
	defer func() { _ = reader.Close() }()
	err = this.copyEntry(ctx, writer, contracts.ArchiveHeader{
		Name: name, Size: info.Size(), ModTime: info.ModTime(), Mode: info.Mode(),
	}, reader)
	if err != nil {
		return 0, err
	}
	written[name] = struct{}{}
	return 1, nil
}

// merge copies every entry of an archive not already written, skipping the
// signature directory so merged archives never carry stale signatures.
func (this *ArchiveAssembler) merge(ctx context.Context, writer contracts.ArchiveWriter, archivePath string, written map[string]struct{}) (count int, err error) {
	reader, release, err := openArchive(this.disk, archivePath)
	if err != nil {
		return 0, err
	}
	defer release()

	for {
		header, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return count, nil
		}
		if err != nil {
			return count, contracts.NewError(contracts.FormatError, "rebuild", archivePath, err)
		}
		if _, found := written[header.Name]; found || isMetadata(header.Name) {
			continue
		}
		err = this.copyEntry(ctx, writer, header, reader)
		if err != nil {
			return count, err
		}
		written[header.Name] = struct{}{}
		count++
	}
}

func (this *ArchiveAssembler) copyEntry(ctx context.Context, writer contracts.ArchiveWriter, header contracts.ArchiveHeader, source io.Reader) error {
	err := writer.WriteHeader(header)
	if err == nil {
		_, err = copyWithContext(ctx, writer, source)
	}
	if err != nil {
		return contracts.NewError(contracts.FilesystemError, "rebuild", header.Name, err)
	}
	return nil
}

func orderOverlays(overlays []contracts.OverlayEntry) []contracts.OverlayEntry {
	ordered := append([]contracts.OverlayEntry(nil), overlays...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Priority < ordered[j].Priority })
	return ordered
}

// looseEntryName places a loose file at its path below the overlays
// directory; files outside it land at the archive root.
func looseEntryName(instance contracts.Instance, path string) string {
	relative, err := filepath.Rel(instance.OverlaysRoot(), path)
	if err != nil || strings.HasPrefix(relative, "..") {
		relative = filepath.Base(path)
	}
	return filepath.ToSlash(relative)
}

// OverlayFingerprint summarizes the overlay list and the size and time of
// every file in it, so a changed mod list can be noticed without a rebuild.
func OverlayFingerprint(disk contracts.FileChecker, overlays []contracts.OverlayEntry) string {
	hasher := md5.New()
	for _, overlay := range orderOverlays(overlays) {
		size, modified := int64(-1), int64(0)
		if info, err := disk.Stat(overlay.Path); err == nil {
			size, modified = info.Size(), info.ModTime().UnixNano()
		}
		_, _ = fmt.Fprintf(hasher, "%d|%s|%s|%d|%d\n", overlay.Priority, overlay.Kind, overlay.Path, size, modified)
	}
	return hexDigest(hasher)
}
