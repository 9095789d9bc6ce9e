package archive

import (
	"errors"
	"io"
	"sync"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"

	"github.com/smarty/jarsmith/contracts"
)

// ZipArchiveWriter writes entries with only the caller's header fields set,
// so equal input always produces equal bytes.
type ZipArchiveWriter struct {
	inner   *zip.Writer
	current io.Writer
	once    sync.Once
}

func NewZipArchiveWriter(writer io.Writer, level int) *ZipArchiveWriter {
	inner := zip.NewWriter(writer)
	inner.RegisterCompressor(zip.Deflate, func(target io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(target, level)
	})
	return &ZipArchiveWriter{inner: inner}
}

func (this *ZipArchiveWriter) WriteHeader(header contracts.ArchiveHeader) (err error) {
	zipHeader := &zip.FileHeader{
		Name:     header.Name,
		Modified: header.ModTime.UTC(),
		Method:   zip.Deflate,
	}
	if header.Mode != 0 {
		zipHeader.SetMode(header.Mode)
	}
	this.current, err = this.inner.CreateHeader(zipHeader)
	return err
}

func (this *ZipArchiveWriter) Write(buffer []byte) (int, error) {
	if this.current == nil {
		return 0, errNoCurrentEntry
	}
	return this.current.Write(buffer)
}

func (this *ZipArchiveWriter) Close() (err error) {
	this.current = nil
	this.once.Do(func() { err = this.inner.Close() })
	return err
}

var errNoCurrentEntry = errors.New("write called before any header was written")
