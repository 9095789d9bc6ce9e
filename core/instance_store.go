package core

import (
	"errors"
	"io/fs"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/smarty/jarsmith/contracts"
)

// InstanceStore persists what is known about an instance's artifacts. Every
// write goes through contracts.FileWriter, which replaces files atomically.
type InstanceStore struct {
	disk contracts.FileSystem
}

func NewInstanceStore(disk contracts.FileSystem) *InstanceStore {
	return &InstanceStore{disk: disk}
}

func (this *InstanceStore) Load(instance contracts.Instance) (state contracts.InstanceArtifactState, err error) {
	raw, err := this.disk.ReadFile(instance.RecordPath())
	if errors.Is(err, fs.ErrNotExist) {
		return this.initialState(instance), nil
	}
	if err != nil {
		return state, contracts.NewError(contracts.FilesystemError, "load instance", instance.RecordPath(), err)
	}
	err = yaml.Unmarshal(raw, &state)
	if err != nil {
		return state, contracts.NewError(contracts.FormatError, "load instance", instance.RecordPath(), err)
	}
	state.BaseArchivePath = instance.BaseArchivePath()
	if state.CachedTimestamp == 0 {
		state.CachedTimestamp = this.readVersionFile(instance)
	}
	return state, nil
}

func (this *InstanceStore) initialState(instance contracts.Instance) contracts.InstanceArtifactState {
	state := contracts.InstanceArtifactState{
		BaseArchivePath: instance.BaseArchivePath(),
		CachedTimestamp: this.readVersionFile(instance),
	}
	if _, err := this.disk.Stat(instance.BackupArchivePath()); err == nil {
		state.BackupArchivePath = instance.BackupArchivePath()
	}
	return state
}

func (this *InstanceStore) readVersionFile(instance contracts.Instance) int64 {
	raw, err := this.disk.ReadFile(instance.VersionFilePath())
	if err != nil {
		return 0
	}
	timestamp, _ := strconv.ParseInt(strings.TrimSpace(string(raw)), 10, 64)
	return timestamp
}

func (this *InstanceStore) Save(instance contracts.Instance, state contracts.InstanceArtifactState) error {
	raw, err := yaml.Marshal(state)
	if err != nil {
		return contracts.NewError(contracts.FormatError, "save instance", instance.RecordPath(), err)
	}
	err = this.disk.MkdirAll(instance.BinDir())
	if err != nil {
		return contracts.NewError(contracts.FilesystemError, "save instance", instance.BinDir(), err)
	}
	err = this.disk.WriteFile(instance.RecordPath(), raw)
	if err != nil {
		return contracts.NewError(contracts.FilesystemError, "save instance", instance.RecordPath(), err)
	}
	version := strconv.FormatInt(state.CachedTimestamp, 10) + "\n"
	err = this.disk.WriteFile(instance.VersionFilePath(), []byte(version))
	if err != nil {
		return contracts.NewError(contracts.FilesystemError, "save instance", instance.VersionFilePath(), err)
	}
	return nil
}

func (this *InstanceStore) LoadCacheRecord(instance contracts.Instance) (contracts.CacheRecord, error) {
	raw, err := this.disk.ReadFile(instance.CacheRecordPath())
	if errors.Is(err, fs.ErrNotExist) {
		return make(contracts.CacheRecord), nil
	}
	if err != nil {
		return nil, contracts.NewError(contracts.FilesystemError, "load cache record", instance.CacheRecordPath(), err)
	}
	record, err := contracts.ParseCacheRecord(raw)
	if err != nil {
		return nil, contracts.NewError(contracts.FormatError, "load cache record", instance.CacheRecordPath(), err)
	}
	return record, nil
}

func (this *InstanceStore) SaveCacheRecord(instance contracts.Instance, record contracts.CacheRecord) error {
	err := this.disk.WriteFile(instance.CacheRecordPath(), record.Format())
	if err != nil {
		return contracts.NewError(contracts.FilesystemError, "save cache record", instance.CacheRecordPath(), err)
	}
	return nil
}
