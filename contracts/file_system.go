package contracts

import (
	"io"
	"os"
	"time"
)

type FileSystem interface {
	FileOpener
	FileCreator
	FileReader
	FileWriter
	FileChecker
	Deleter
	Renamer
	DirectoryMaker
	PathLister
}

// File is what an opened file must offer: archives need random access.
type File interface {
	io.Reader
	io.ReaderAt
	io.Closer
}

type FileOpener interface {
	Open(path string) (File, error)
}

type FileCreator interface {
	Create(path string) (io.WriteCloser, error)
}

type FileReader interface {
	ReadFile(path string) ([]byte, error)
}

// FileWriter implementations must replace the target atomically (write a
// sibling temp file, then rename it over the target).
type FileWriter interface {
	WriteFile(path string, content []byte) error
}

type FileChecker interface {
	Stat(path string) (FileInfo, error)
}

type Deleter interface {
	Delete(path string) error
}

type Renamer interface {
	Rename(source, target string) error
}

type DirectoryMaker interface {
	MkdirAll(path string) error
}

type PathLister interface {
	Listing(root string) ([]FileInfo, error)
}

type FileInfo interface {
	Path() string
	Size() int64
	ModTime() time.Time
	Mode() os.FileMode
}
