package archive

import (
	"archive/zip"
	"errors"
	"io"
	"strings"

	"github.com/mholt/archiver"

	"github.com/smarty/jarsmith/contracts"
)

type ZipArchiveReader struct {
	inner   *archiver.Zip
	current io.ReadCloser
}

// NewZipArchiveReader opens a zip (or jar) held by source, which must also
// implement io.ReaderAt.
func NewZipArchiveReader(source io.Reader, size int64) (*ZipArchiveReader, error) {
	inner := archiver.NewZip()
	err := inner.Open(source, size)
	if err != nil {
		return nil, err
	}
	return &ZipArchiveReader{inner: inner}, nil
}

func (this *ZipArchiveReader) Next() (contracts.ArchiveHeader, error) {
	this.closeCurrent()
	for {
		file, err := this.inner.Read()
		if err == io.EOF {
			return contracts.ArchiveHeader{}, io.EOF
		}
		if err != nil {
			return contracts.ArchiveHeader{}, err
		}
		if file.IsDir() {
			_ = file.Close()
			continue
		}
		header, ok := file.Header.(zip.FileHeader)
		if !ok {
			_ = file.Close()
			return contracts.ArchiveHeader{}, errUnexpectedHeader
		}
		if strings.HasSuffix(header.Name, "/") {
			_ = file.Close()
			continue
		}
		this.current = file.ReadCloser
		modified := header.Modified
		if modified.IsZero() {
			modified = file.ModTime()
		}
		return contracts.ArchiveHeader{
			Name:    header.Name,
			Size:    int64(header.UncompressedSize64),
			ModTime: modified,
			Mode:    file.Mode(),
		}, nil
	}
}

func (this *ZipArchiveReader) Read(buffer []byte) (int, error) {
	if this.current == nil {
		return 0, io.EOF
	}
	return this.current.Read(buffer)
}

func (this *ZipArchiveReader) Close() error {
	this.closeCurrent()
	return this.inner.Close()
}

func (this *ZipArchiveReader) closeCurrent() {
	if this.current != nil {
		_ = this.current.Close()
		this.current = nil
	}
}

var errUnexpectedHeader = errors.New("zip entry carries an unexpected header type")
