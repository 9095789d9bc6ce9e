package shell

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/smarty/jarsmith/contracts"
)

type DiskFileSystem struct{}

func NewDiskFileSystem() *DiskFileSystem {
	return &DiskFileSystem{}
}

func (this *DiskFileSystem) Listing(root string) (listing []contracts.FileInfo, err error) {
	err = filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		info, err := entry.Info()
		if err != nil {
			return err
		}
		listing = append(listing, newFileInfo(path, info))
		return nil
	})
	sort.Slice(listing, func(i, j int) bool { return listing[i].Path() < listing[j].Path() })
	return listing, err
}

func (this *DiskFileSystem) Stat(path string) (contracts.FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	return newFileInfo(path, info), nil
}

func (this *DiskFileSystem) Open(path string) (contracts.File, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return file, nil
}

func (this *DiskFileSystem) Create(path string) (io.WriteCloser, error) {
	err := os.MkdirAll(filepath.Dir(path), 0755)
	if err != nil {
		return nil, err
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return file, nil
}

func (this *DiskFileSystem) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

func (this *DiskFileSystem) WriteFile(path string, content []byte) error {
	directory := filepath.Dir(path)
	err := os.MkdirAll(directory, 0755)
	if err != nil {
		return err
	}
	temp, err := os.CreateTemp(directory, filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(temp.Name()) }()

	_, err = temp.Write(content)
	if err == nil {
		err = temp.Sync()
	}
	if closeErr := temp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return err
	}
	err = os.Chmod(temp.Name(), 0644)
	if err != nil {
		return err
	}
	return os.Rename(temp.Name(), path)
}

func (this *DiskFileSystem) Delete(path string) error {
	err := os.Remove(path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (this *DiskFileSystem) Rename(source, target string) error {
	return os.Rename(source, target)
}

func (this *DiskFileSystem) MkdirAll(path string) error {
	return os.MkdirAll(path, 0755)
}

////////////////////////////////////////

type FileInfo struct {
	path string
	size int64
	mod  time.Time
	mode os.FileMode
}

func newFileInfo(path string, info os.FileInfo) FileInfo {
	return FileInfo{path: path, size: info.Size(), mod: info.ModTime(), mode: info.Mode()}
}

func (this FileInfo) Path() string       { return this.path }
func (this FileInfo) Size() int64        { return this.size }
func (this FileInfo) ModTime() time.Time { return this.mod }
func (this FileInfo) Mode() os.FileMode  { return this.mode }
