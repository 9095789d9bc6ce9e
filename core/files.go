package core

import (
	"context"
	"io"
	"path/filepath"

	"github.com/smarty/jarsmith/contracts"
)

const (
	partialSuffix = ".partial"
	stagedSuffix  = ".staged"
)

func exists(disk contracts.FileChecker, path string) bool {
	_, err := disk.Stat(path)
	return err == nil
}

// writeAtomically streams source into a sibling temp file and renames it over
// target, so target is either untouched or complete.
func writeAtomically(ctx context.Context, disk contracts.FileSystem, target string, source io.Reader) (written int64, err error) {
	err = disk.MkdirAll(filepath.Dir(target))
	if err != nil {
		return 0, contracts.NewError(contracts.FilesystemError, "write", target, err)
	}
	temp := target + partialSuffix
	writer, err := disk.Create(temp)
	if err != nil {
		return 0, contracts.NewError(contracts.FilesystemError, "write", temp, err)
	}
	written, err = copyWithContext(ctx, writer, source)
	closeErr := writer.Close()
	if err == nil && closeErr != nil {
		err = closeErr
	}
	if err != nil {
		_ = disk.Delete(temp)
		return written, contracts.NewError(contracts.FilesystemError, "write", temp, err)
	}
	err = disk.Rename(temp, target)
	if err != nil {
		_ = disk.Delete(temp)
		return written, contracts.NewError(contracts.FilesystemError, "replace", target, err)
	}
	return written, nil
}

func copyFile(ctx context.Context, disk contracts.FileSystem, source, target string) error {
	reader, err := disk.Open(source)
	if err != nil {
		return contracts.NewError(contracts.FilesystemError, "copy", source, err)
	}
	defer func() { _ = reader.Close() }()
	_, err = writeAtomically(ctx, disk, target, reader)
	return err
}
