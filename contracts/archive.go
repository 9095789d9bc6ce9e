package contracts

import (
	"io"
	"os"
	"time"
)

type ArchiveHeader struct {
	Name    string
	Size    int64
	ModTime time.Time
	Mode    os.FileMode
}

// ArchiveReader iterates the file entries of an archive. Next returns io.EOF
// after the last entry; Read reads the entry returned by the latest Next.
type ArchiveReader interface {
	io.ReadCloser
	Next() (ArchiveHeader, error)
}

type ArchiveWriter interface {
	io.WriteCloser
	WriteHeader(header ArchiveHeader) error
}
