package core

import (
	"encoding/json"
	"errors"

	"github.com/smarty/jarsmith/contracts"
)

var errEmptyDowngradeIndex = errors.New("downgrade index names no patch source version")

func parseDowngradeIndex(raw []byte) (index contracts.DowngradeIndex, err error) {
	err = json.Unmarshal(raw, &index)
	if err != nil {
		return index, err
	}
	if index.PatchSource == "" {
		return index, errEmptyDowngradeIndex
	}
	return index, nil
}

// downgradeTargets lists the versions reachable only by patching. Versions
// that can be downloaded directly and pre-release names are left out.
func downgradeTargets(index contracts.DowngradeIndex, known map[string]bool) (targets []*contracts.VersionEntry) {
	for _, version := range index.Versions {
		if version.Name == "" || known[version.Name] || snapshotPattern.MatchString(version.Name) {
			continue
		}
		known[version.Name] = true
		targets = append(targets, &contracts.VersionEntry{
			Label:          version.Name,
			Classification: contracts.DowngradeTarget,
			ContentTag:     NormalizeTag(version.MD5),
			PatchSource:    index.PatchSource,
		})
	}
	return targets
}
