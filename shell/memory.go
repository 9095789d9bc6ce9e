package shell

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/smarty/jarsmith/contracts"
)

// InMemoryFileSystem is a contracts.FileSystem for tests. Errors can be
// planted per path to simulate a failing disk.
type InMemoryFileSystem struct {
	mutex       sync.Mutex
	fileSystem  map[string]*file
	ErrReadFile map[string]error
	ErrWrite    map[string]error
}

func NewInMemoryFileSystem() *InMemoryFileSystem {
	return &InMemoryFileSystem{
		fileSystem:  make(map[string]*file),
		ErrReadFile: make(map[string]error),
		ErrWrite:    make(map[string]error),
	}
}

func (this *InMemoryFileSystem) Stat(path string) (contracts.FileInfo, error) {
	this.mutex.Lock()
	defer this.mutex.Unlock()
	target, found := this.fileSystem[filepath.Clean(path)]
	if !found {
		return nil, notExist("stat", path)
	}
	return target, nil
}

func (this *InMemoryFileSystem) Listing(root string) (files []contracts.FileInfo, err error) {
	this.mutex.Lock()
	defer this.mutex.Unlock()
	prefix := filepath.Clean(root) + string(filepath.Separator)
	for path, file := range this.fileSystem {
		if strings.HasPrefix(path, prefix) {
			files = append(files, file)
		}
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path() < files[j].Path() })
	return files, nil
}

func (this *InMemoryFileSystem) Open(path string) (contracts.File, error) {
	raw, err := this.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return nopCloser{Reader: bytes.NewReader(raw)}, nil
}

func (this *InMemoryFileSystem) Create(path string) (io.WriteCloser, error) {
	err := this.WriteFile(path, nil)
	if err != nil {
		return nil, err
	}
	this.mutex.Lock()
	defer this.mutex.Unlock()
	return this.fileSystem[filepath.Clean(path)], nil
}

func (this *InMemoryFileSystem) ReadFile(path string) ([]byte, error) {
	this.mutex.Lock()
	defer this.mutex.Unlock()
	path = filepath.Clean(path)
	target, found := this.fileSystem[path]
	if !found {
		return nil, notExist("open", path)
	}
	if err := this.ErrReadFile[path]; err != nil {
		return nil, err
	}
	return append([]byte(nil), target.contents...), nil
}

func (this *InMemoryFileSystem) WriteFile(path string, content []byte) error {
	this.mutex.Lock()
	defer this.mutex.Unlock()
	path = filepath.Clean(path)
	if err := this.ErrWrite[path]; err != nil {
		return err
	}
	this.fileSystem[path] = &file{
		path:     path,
		contents: append([]byte(nil), content...),
		mod:      InMemoryModTime,
	}
	return nil
}

func (this *InMemoryFileSystem) Delete(path string) error {
	this.mutex.Lock()
	defer this.mutex.Unlock()
	delete(this.fileSystem, filepath.Clean(path))
	return nil
}

func (this *InMemoryFileSystem) Rename(source, target string) error {
	this.mutex.Lock()
	defer this.mutex.Unlock()
	source, target = filepath.Clean(source), filepath.Clean(target)
	moved, found := this.fileSystem[source]
	if !found {
		return notExist("rename", source)
	}
	delete(this.fileSystem, source)
	moved.path = target
	this.fileSystem[target] = moved
	return nil
}

func (this *InMemoryFileSystem) MkdirAll(string) error { return nil }

func notExist(op, path string) error {
	return &os.PathError{Op: op, Path: path, Err: os.ErrNotExist}
}

/////////////////////////////////////////////////

type file struct {
	path     string
	contents []byte
	mod      time.Time
}

var InMemoryModTime = time.Date(2012, time.March, 1, 0, 0, 0, 0, time.UTC)

func (this *file) Path() string       { return this.path }
func (this *file) Size() int64        { return int64(len(this.contents)) }
func (this *file) ModTime() time.Time { return this.mod }
func (this *file) Mode() os.FileMode  { return 0644 }

func (this *file) Write(p []byte) (n int, err error) {
	this.contents = append(this.contents, p...)
	return len(p), nil
}

func (this *file) Close() error {
	return nil
}

type nopCloser struct{ *bytes.Reader }

func (nopCloser) Close() error { return nil }
