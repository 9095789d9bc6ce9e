package core

import (
	"context"
	"fmt"
	"io"
	"log"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/smarty/jarsmith/contracts"
)

// knownEquivalentTags pairs content tags that were published for identical
// archives under different keys. Deployments extend it through
// catalog.equivalent_tags.
var knownEquivalentTags = map[string]string{}

// Catalog is one load of the version sources: concrete entries sorted newest
// first plus the symbolic labels aliasing them.
type Catalog struct {
	entries []*contracts.VersionEntry
	index   map[string]*contracts.VersionEntry
}

func newCatalog(entries []*contracts.VersionEntry) *Catalog {
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Timestamp > entries[j].Timestamp })
	this := &Catalog{entries: entries, index: make(map[string]*contracts.VersionEntry, len(entries)+4)}
	for _, entry := range entries {
		if _, found := this.index[entry.Label]; !found {
			this.index[entry.Label] = entry
		}
	}
	this.alias(contracts.CurrentStableLabel, this.first(contracts.CurrentStable))
	this.alias(contracts.LatestStableLabel, this.first(contracts.CurrentStable, contracts.Stable))
	latestSnapshot := this.first(contracts.Snapshot)
	if latestSnapshot == nil {
		latestSnapshot = this.first(contracts.CurrentStable)
	}
	this.alias(contracts.LatestSnapshotLabel, latestSnapshot)
	if _, found := this.index[contracts.ReleasePointerLabel]; !found {
		this.alias(contracts.ReleasePointerLabel, this.first(contracts.CurrentStable))
	}
	return this
}

func (this *Catalog) alias(label string, target *contracts.VersionEntry) {
	if target != nil {
		this.index[label] = &contracts.VersionEntry{Label: label, AliasOf: target}
	}
}

func (this *Catalog) first(kinds ...contracts.Classification) *contracts.VersionEntry {
	for _, entry := range this.entries {
		for _, kind := range kinds {
			if entry.Classification == kind {
				return entry
			}
		}
	}
	return nil
}

func (this *Catalog) Len() int { return len(this.entries) }

func (this *Catalog) Lookup(label string) (*contracts.VersionEntry, bool) {
	entry, found := this.index[label]
	return entry, found
}

func (this *Catalog) Entries() []contracts.VersionEntry {
	entries := make([]contracts.VersionEntry, 0, len(this.entries))
	for _, entry := range this.entries {
		entries = append(entries, entry.Flatten())
	}
	return entries
}

type VersionCatalog struct {
	fetcher    contracts.Fetcher
	config     contracts.CatalogConfig
	equivalent map[string]string
	logger     *log.Logger

	mutex   sync.Mutex
	current *Catalog
}

func NewVersionCatalog(fetcher contracts.Fetcher, config contracts.CatalogConfig) *VersionCatalog {
	equivalent := make(map[string]string, len(knownEquivalentTags)+len(config.EquivalentTags))
	for _, pairs := range []map[string]string{knownEquivalentTags, config.EquivalentTags} {
		for left, right := range pairs {
			equivalent[NormalizeTag(left)] = NormalizeTag(right)
			equivalent[NormalizeTag(right)] = NormalizeTag(left)
		}
	}
	return &VersionCatalog{fetcher: fetcher, config: config, equivalent: equivalent, logger: log.Default()}
}

// Load returns the cached catalog, fetching it only when nothing has been
// cached yet (or the last load came back empty).
func (this *VersionCatalog) Load(ctx context.Context) (*Catalog, error) {
	this.mutex.Lock()
	defer this.mutex.Unlock()
	if this.current != nil && this.current.Len() > 0 {
		return this.current, nil
	}
	return this.reload(ctx)
}

func (this *VersionCatalog) Reload(ctx context.Context) (*Catalog, error) {
	this.mutex.Lock()
	defer this.mutex.Unlock()
	return this.reload(ctx)
}

// Entries returns the concrete entries of the cached catalog, newest first.
func (this *VersionCatalog) Entries() []contracts.VersionEntry {
	this.mutex.Lock()
	defer this.mutex.Unlock()
	if this.current == nil {
		return nil
	}
	return this.current.Entries()
}

// Resolve returns the concrete entry a label names, following symbolic
// labels to whatever entry they currently alias.
func (this *VersionCatalog) Resolve(ctx context.Context, label string) (contracts.VersionEntry, error) {
	catalog, err := this.Load(ctx)
	if catalog == nil {
		return contracts.VersionEntry{}, err
	}
	entry, found := catalog.Lookup(label)
	if !found {
		if err != nil {
			return contracts.VersionEntry{}, err
		}
		return contracts.VersionEntry{}, contracts.NewError(contracts.NotFoundError, "resolve version", label, nil)
	}
	return entry.Flatten(), nil
}

func (this *VersionCatalog) reload(ctx context.Context) (*Catalog, error) {
	var (
		release, history, downgrade          []byte
		releaseErr, historyErr, downgradeErr error
	)
	var group errgroup.Group
	group.Go(func() error {
		release, releaseErr = this.download(ctx, this.config.ReleaseListingURL)
		return ctx.Err()
	})
	group.Go(func() error {
		history, historyErr = this.download(ctx, this.config.HistoryListingURL)
		return ctx.Err()
	})
	if this.config.DowngradeIndexURL != "" {
		group.Go(func() error {
			downgrade, downgradeErr = this.download(ctx, this.config.DowngradeIndexURL)
			return ctx.Err()
		})
	}
	if err := group.Wait(); err != nil {
		return this.current, contracts.NewError(contracts.CanceledError, "load versions", "", err)
	}

	var lastErr error
	succeeded := 0
	pointer, releaseErr := this.parseRelease(release, releaseErr)
	if releaseErr == nil {
		succeeded++
	} else {
		lastErr = this.warn("release listing", releaseErr)
	}
	historical, historyErr := this.parseHistory(history, historyErr)
	if historyErr == nil {
		succeeded++
	} else {
		lastErr = this.warn("version history", historyErr)
	}

	entries := this.classify(pointer, historical)

	if this.config.DowngradeIndexURL != "" {
		targets, err := this.parseDowngrades(downgrade, downgradeErr, entries)
		if err == nil {
			succeeded++
			entries = append(entries, targets...)
		} else {
			lastErr = this.warn("downgrade index", err)
		}
	}

	if succeeded == 0 {
		return this.current, lastErr
	}
	this.current = newCatalog(entries)
	return this.current, nil
}

func (this *VersionCatalog) download(ctx context.Context, address string) ([]byte, error) {
	response, err := this.fetcher.Fetch(ctx, contracts.GetRequest(address))
	if err != nil {
		return nil, err
	}
	defer func() { _ = response.Close() }()
	if response.Body == nil {
		return nil, contracts.NewError(contracts.NetworkError, "load versions", address, io.ErrUnexpectedEOF)
	}
	raw, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, contracts.NewError(contracts.NetworkError, "load versions", address, err)
	}
	return raw, nil
}

func (this *VersionCatalog) warn(source string, err error) error {
	this.logger.Printf("[WARN] could not load the %s, continuing without it: %s", source, err)
	return err
}

func (this *VersionCatalog) parseRelease(raw []byte, err error) (*listingItem, error) {
	if err != nil {
		return nil, err
	}
	items, err := parseListing(raw)
	if err != nil {
		return nil, contracts.NewError(contracts.FormatError, "parse release listing", this.config.ReleaseListingURL, err)
	}
	pointer, found := findReleasePointer(items, contracts.BaseArchiveName)
	if !found {
		return nil, contracts.NewError(contracts.FormatError, "parse release listing", this.config.ReleaseListingURL,
			fmt.Errorf("no %s entry", contracts.BaseArchiveName))
	}
	return &pointer, nil
}

func (this *VersionCatalog) parseHistory(raw []byte, err error) ([]historicalEntry, error) {
	if err != nil {
		return nil, err
	}
	items, err := parseListing(raw)
	if err != nil {
		return nil, contracts.NewError(contracts.FormatError, "parse version history", this.config.HistoryListingURL, err)
	}
	return historicalEntries(items, contracts.BaseArchiveName), nil
}

func (this *VersionCatalog) parseDowngrades(raw []byte, err error, entries []*contracts.VersionEntry) ([]*contracts.VersionEntry, error) {
	if err != nil {
		return nil, err
	}
	index, err := parseDowngradeIndex(raw)
	if err != nil {
		return nil, contracts.NewError(contracts.FormatError, "parse downgrade index", this.config.DowngradeIndexURL, err)
	}
	known := make(map[string]bool, len(entries))
	for _, entry := range entries {
		known[entry.Label] = true
	}
	return downgradeTargets(index, known), nil
}

func (this *VersionCatalog) classify(pointer *listingItem, historical []historicalEntry) []*contracts.VersionEntry {
	entries := make([]*contracts.VersionEntry, 0, len(historical)+1)
	var current *contracts.VersionEntry
	for _, item := range historical {
		entry := &contracts.VersionEntry{
			Label:       item.Label,
			Timestamp:   item.Timestamp,
			DownloadURL: this.config.HistoryListingURL + item.Prefix + "/",
			ContentTag:  item.Tag,
		}
		entries = append(entries, entry)
		if pointer != nil && this.sameTag(item.Tag, pointer.Tag) {
			if current == nil || entry.Timestamp > current.Timestamp {
				current = entry
			}
		}
	}

	for _, entry := range entries {
		switch {
		case entry == current:
			entry.Classification = contracts.CurrentStable
			entry.DownloadURL = this.config.ReleaseListingURL
		case pointer == nil && snapshotPattern.MatchString(entry.Label):
			entry.Classification = contracts.Snapshot
		case pointer == nil:
			entry.Classification = contracts.Stable
		case entry.Timestamp > pointer.Timestamp:
			entry.Classification = contracts.Snapshot
		case entry.Timestamp < pointer.Timestamp && snapshotPattern.MatchString(entry.Label):
			entry.Classification = contracts.OldSnapshot
		default:
			entry.Classification = contracts.Stable
		}
	}

	if pointer != nil && current == nil {
		entries = append(entries, &contracts.VersionEntry{
			Label:          contracts.ReleasePointerLabel,
			Classification: contracts.CurrentStable,
			Timestamp:      pointer.Timestamp,
			DownloadURL:    this.config.ReleaseListingURL,
			ContentTag:     pointer.Tag,
			Synthetic:      true,
		})
	}
	return entries
}

func (this *VersionCatalog) sameTag(tag, pointerTag string) bool {
	if tag == "" || pointerTag == "" {
		return false
	}
	return tag == pointerTag || this.equivalent[tag] == pointerTag
}

// Versions lists the catalog, fetching it again first when reload is set.
func (this *VersionCatalog) Versions(ctx context.Context, reload bool) ([]contracts.VersionEntry, error) {
	load := this.Load
	if reload {
		load = this.Reload
	}
	catalog, err := load(ctx)
	if catalog == nil {
		return nil, err
	}
	return catalog.Entries(), err
}
