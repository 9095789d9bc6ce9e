package shell

import (
	"bufio"
	"bytes"
	"errors"
	"io/fs"
	"log"
	"path/filepath"
	"strings"

	"github.com/smarty/jarsmith/contracts"
)

// ModListOverlayProvider reads an instance's overlays from its mod list: one
// path per line, relative to the overlays directory, highest priority first.
// Files found in the overlays directory but not listed follow in path order.
type ModListOverlayProvider struct {
	disk   contracts.FileSystem
	logger *log.Logger
}

func NewModListOverlayProvider(disk contracts.FileSystem) *ModListOverlayProvider {
	return &ModListOverlayProvider{disk: disk, logger: log.Default()}
}

func (this *ModListOverlayProvider) Overlays(instance contracts.Instance) (overlays []contracts.OverlayEntry, err error) {
	listed, err := this.readModList(instance)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	add := func(path string) {
		if _, found := seen[path]; found {
			return
		}
		seen[path] = struct{}{}
		overlays = append(overlays, contracts.OverlayEntry{
			Path:     path,
			Kind:     contracts.OverlayKindOf(path),
			Priority: len(overlays),
		})
	}

	for _, name := range listed {
		path := filepath.Join(instance.OverlaysRoot(), filepath.FromSlash(name))
		if _, err := this.disk.Stat(path); err != nil {
			this.logger.Printf("[WARN] %s is in the mod list but %s does not exist; skipping it.", name, path)
			continue
		}
		add(path)
	}

	found, err := this.disk.Listing(instance.OverlaysRoot())
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	for _, file := range found {
		add(filepath.Clean(file.Path()))
	}
	return overlays, nil
}

func (this *ModListOverlayProvider) readModList(instance contracts.Instance) (names []string, err error) {
	raw, err := this.disk.ReadFile(instance.OverlayOrderPath())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	scanner := bufio.NewScanner(bytes.NewReader(raw))
	for scanner.Scan() {
		name := strings.TrimSpace(scanner.Text())
		if name == "" || strings.HasPrefix(name, "#") {
			continue
		}
		names = append(names, name)
	}
	return names, scanner.Err()
}

// SaveModList writes the order of the given overlays back to the mod list.
func (this *ModListOverlayProvider) SaveModList(instance contracts.Instance, overlays []contracts.OverlayEntry) error {
	buffer := new(bytes.Buffer)
	for _, overlay := range overlays {
		name, err := filepath.Rel(instance.OverlaysRoot(), overlay.Path)
		if err != nil || strings.HasPrefix(name, "..") {
			return errors.New("overlay is outside the overlays directory: " + overlay.Path)
		}
		buffer.WriteString(filepath.ToSlash(name))
		buffer.WriteString("\n")
	}
	return this.disk.WriteFile(instance.OverlayOrderPath(), buffer.Bytes())
}
