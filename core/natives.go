package core

import (
	"context"
	"errors"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/smarty/jarsmith/archive"
	"github.com/smarty/jarsmith/contracts"
)

func openArchive(disk contracts.FileSystem, archivePath string) (contracts.ArchiveReader, func(), error) {
	info, err := disk.Stat(archivePath)
	if err != nil {
		return nil, nil, contracts.NewError(contracts.FilesystemError, "open archive", archivePath, err)
	}
	file, err := disk.Open(archivePath)
	if err != nil {
		return nil, nil, contracts.NewError(contracts.FilesystemError, "open archive", archivePath, err)
	}
	reader, err := archive.NewZipArchiveReader(file, info.Size())
	if err != nil {
		_ = file.Close()
		return nil, nil, contracts.NewError(contracts.FormatError, "open archive", archivePath, err)
	}
	release := func() {
		_ = reader.Close()
		_ = file.Close()
	}
	return reader, release, nil
}

func isMetadata(name string) bool {
	return strings.HasPrefix(name, contracts.MetadataDirectory)
}

// extractNatives unpacks every entry of the natives archive except the
// metadata directory into destination.
func extractNatives(ctx context.Context, disk contracts.FileSystem, archivePath, destination string) (count int, err error) {
	reader, release, err := openArchive(disk, archivePath)
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
			return count, contracts.NewError(contracts.FormatError, "extract natives", archivePath, err)
		}
		if isMetadata(header.Name) {
			continue
		}
		target := filepath.Join(destination, filepath.FromSlash(path.Clean("/"+header.Name)))
		_, err = writeAtomically(ctx, disk, target, reader)
		if err != nil {
			return count, err
		}
		count++
	}
}

func hasNatives(disk contracts.PathLister, destination string) bool {
	listing, err := disk.Listing(destination)
	return err == nil && len(listing) > 0
}
