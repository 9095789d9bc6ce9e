package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/smarty/assertions/should"
	"github.com/smarty/gunit"

	"github.com/smarty/jarsmith/contracts"
)

func TestVersionCatalogFixture(t *testing.T) {
	gunit.Run(new(VersionCatalogFixture), t)
}

type VersionCatalogFixture struct {
	*gunit.Fixture
	fetcher *FakeFetcher
	config  contracts.CatalogConfig
	catalog *VersionCatalog
}

const (
	releaseURL   = "http://release.test/"
	historyURL   = "http://history.test/"
	downgradeURL = "http://downgrade.test/index"

	tag100 = "11111111111111111111111111111111"
	tag110 = "22222222222222222222222222222222"
	tag120 = "33333333333333333333333333333333"
	tag12w = "44444444444444444444444444444444"
	tagPre = "55555555555555555555555555555555"
)

func (this *VersionCatalogFixture) Setup() {
	this.fetcher = NewFakeFetcher()
	this.config = contracts.CatalogConfig{
		ReleaseListingURL: releaseURL,
		HistoryListingURL: historyURL,
		DowngradeIndexURL: downgradeURL,
	}
	this.fetcher.Serve(releaseURL, bucketListing(listingRow{"minecraft.jar", "2012-03-01T10:00:00.000Z", tag110}), "")
	this.fetcher.Serve(historyURL, bucketListing(
		listingRow{"1_0/minecraft.jar", "2011-11-18T10:00:00.000Z", tag100},
		listingRow{"1_1/minecraft.jar", "2012-03-01T10:00:00.000Z", tag110},
		listingRow{"12w01a/minecraft.jar", "2012-01-05T10:00:00.000Z", tag12w},
		listingRow{"1_2_pre/minecraft.jar", "2012-04-01T10:00:00.000Z", tagPre},
		listingRow{"1_2/minecraft.jar", "2012-05-01T10:00:00.000Z", tag120},
		listingRow{"1_2/lwjgl.jar", "2012-05-01T10:00:00.000Z", tag120},
	), "")
	this.fetcher.Serve(downgradeURL, `{"mcversion": "1.1", "versions": [
		{"name": "1.0", "md5": "`+tag100+`"},
		{"name": "1.0.1", "md5": "66666666666666666666666666666666"},
		{"name": "1.0_pre", "md5": "77777777777777777777777777777777"}]}`, "")
	this.newCatalog()
}

func (this *VersionCatalogFixture) newCatalog() {
	this.catalog = NewVersionCatalog(this.fetcher, this.config)
	this.catalog.logger = discardLogger()
}

func (this *VersionCatalogFixture) load() *Catalog {
	catalog, err := this.catalog.Load(context.Background())
	this.So(err, should.BeNil)
	return catalog
}

func (this *VersionCatalogFixture) kinds(catalog *Catalog) map[string]contracts.Classification {
	kinds := make(map[string]contracts.Classification)
	for _, entry := range catalog.Entries() {
		kinds[entry.Label] = entry.Classification
	}
	return kinds
}

func (this *VersionCatalogFixture) TestClassification() {
	kinds := this.kinds(this.load())

	this.So(kinds, should.Resemble, map[string]contracts.Classification{
		"1.0":     contracts.Stable,
		"1.1":     contracts.CurrentStable,
		"12w01a":  contracts.OldSnapshot,
		"1.2.pre": contracts.Snapshot,
		"1.2":     contracts.Snapshot,
		"1.0.1":   contracts.DowngradeTarget,
	})
}

func (this *VersionCatalogFixture) TestEntriesAreSortedNewestFirstWithDowngradeTargetsLast() {
	var labels []string
	for _, entry := range this.load().Entries() {
		labels = append(labels, entry.Label)
	}

	this.So(labels, should.Resemble, []string{"1.2", "1.2.pre", "1.1", "12w01a", "1.0", "1.0.1"})
}

func (this *VersionCatalogFixture) TestCurrentStableTakesTheReleaseURL() {
	entry, err := this.catalog.Resolve(context.Background(), "1.1")

	this.So(err, should.BeNil)
	this.So(entry.DownloadURL, should.Equal, releaseURL)
	this.So(entry.ContentTag, should.Equal, tag110)
}

func (this *VersionCatalogFixture) TestHistoricalEntriesDownloadFromTheirOwnPrefix() {
	entry, _ := this.catalog.Resolve(context.Background(), "1.0")

	this.So(entry.DownloadURL, should.Equal, historyURL+"1_0/")
}

func (this *VersionCatalogFixture) TestAtMostOneCurrentStable() {
	this.fetcher.Serve(historyURL, bucketListing(
		listingRow{"1_1/minecraft.jar", "2012-03-01T10:00:00.000Z", tag110},
		listingRow{"1_1_again/minecraft.jar", "2012-03-02T10:00:00.000Z", tag110},
	), "")

	kinds := this.kinds(this.load())

	this.So(kinds["1.1.again"], should.Equal, contracts.CurrentStable)
	this.So(kinds["1.1"], should.Equal, contracts.Stable)
}

func (this *VersionCatalogFixture) TestSymbolicLabelsResolveToTheAliasedData() {
	catalog := this.load()
	for _, label := range []string{contracts.CurrentStableLabel, contracts.LatestStableLabel, contracts.ReleasePointerLabel} {
		symbolic, err := this.catalog.Resolve(context.Background(), label)
		concrete, _ := catalog.Lookup("1.1")

		this.So(err, should.BeNil)
		this.So(symbolic.Timestamp, should.Equal, concrete.Timestamp)
		this.So(symbolic.DownloadURL, should.Equal, concrete.DownloadURL)
		this.So(symbolic.ContentTag, should.Equal, concrete.ContentTag)
		this.So(symbolic.Label, should.Equal, "1.1")
	}
	snapshot, _ := this.catalog.Resolve(context.Background(), contracts.LatestSnapshotLabel)
	this.So(snapshot.Label, should.Equal, "1.2")
}

func (this *VersionCatalogFixture) TestAliasChainsTerminate() {
	catalog := this.load()
	for _, label := range []string{contracts.CurrentStableLabel, contracts.LatestStableLabel, contracts.LatestSnapshotLabel} {
		entry, found := catalog.Lookup(label)
		this.So(found, should.BeTrue)
		this.So(entry.IsAlias(), should.BeTrue)
		this.So(entry.Resolved().IsAlias(), should.BeFalse)
	}
}

func (this *VersionCatalogFixture) TestUnmatchedPointerBecomesSyntheticCurrentStable() {
	this.fetcher.Serve(releaseURL, bucketListing(listingRow{"minecraft.jar", "2012-06-01T10:00:00.000Z", "99999999999999999999999999999999"}), "")

	catalog := this.load()

	current, found := catalog.Lookup(contracts.ReleasePointerLabel)
	this.So(found, should.BeTrue)
	this.So(current.Synthetic, should.BeTrue)
	this.So(current.Classification, should.Equal, contracts.CurrentStable)
	this.So(current.DownloadURL, should.Equal, releaseURL)
	kinds := this.kinds(catalog)
	this.So(kinds["1.1"], should.Equal, contracts.Stable)
	this.So(kinds["1.2"], should.Equal, contracts.Stable)
}

func (this *VersionCatalogFixture) TestEquivalentTagsMatchThePointer() {
	this.config.EquivalentTags = map[string]string{tag100: tag110}
	this.fetcher.Serve(historyURL, bucketListing(listingRow{"1_0/minecraft.jar", "2011-11-18T10:00:00.000Z", tag100}), "")
	this.newCatalog()

	kinds := this.kinds(this.load())

	this.So(kinds["1.0"], should.Equal, contracts.CurrentStable)
	_, found := this.kinds(this.load())[contracts.ReleasePointerLabel]
	this.So(found, should.BeFalse)
}

func (this *VersionCatalogFixture) TestWithoutPointerSnapshotNamesAreSnapshots() {
	delete(this.fetcher.resources, releaseURL)

	kinds := this.kinds(this.load())

	this.So(kinds["12w01a"], should.Equal, contracts.Snapshot)
	this.So(kinds["1.2.pre"], should.Equal, contracts.Snapshot)
	this.So(kinds["1.1"], should.Equal, contracts.Stable)
}

func (this *VersionCatalogFixture) TestMalformedSourceIsSkipped() {
	this.fetcher.Serve(downgradeURL, "{not json", "")

	kinds := this.kinds(this.load())

	this.So(kinds, should.HaveLength, 5)
	_, found := kinds["1.0.1"]
	this.So(found, should.BeFalse)
}

func (this *VersionCatalogFixture) TestTotalFailureReturnsTheError() {
	this.fetcher.failure = contracts.NewError(contracts.NetworkError, "fetch", "", errors.New("offline"))

	_, err := this.catalog.Load(context.Background())

	this.So(errors.Is(err, contracts.ErrNetwork), should.BeTrue)
}

func (this *VersionCatalogFixture) TestCachedCatalogIsNotRefetched() {
	this.load()
	attempts := this.fetcher.attempts

	this.load()
	_, _ = this.catalog.Resolve(context.Background(), "1.0")

	this.So(this.fetcher.attempts, should.Equal, attempts)
}

func (this *VersionCatalogFixture) TestReloadRefetches() {
	this.load()
	attempts := this.fetcher.attempts

	_, err := this.catalog.Reload(context.Background())

	this.So(err, should.BeNil)
	this.So(this.fetcher.attempts, should.Equal, attempts+3)
}

func (this *VersionCatalogFixture) TestUnknownLabelIsNotFound() {
	_, err := this.catalog.Resolve(context.Background(), "0.0.1")

	this.So(errors.Is(err, contracts.ErrNotFound), should.BeTrue)
}

//////////////////////////////////////////////////////////

type listingRow struct {
	key      string
	modified string
	tag      string
}

func bucketListing(rows ...listingRow) string {
	builder := new(strings.Builder)
	builder.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	builder.WriteString(`<ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/"><Name>bucket</Name>`)
	for _, row := range rows {
		_, _ = fmt.Fprintf(builder, `<Contents><Key>%s</Key><LastModified>%s</LastModified><ETag>&quot;%s&quot;</ETag><Size>1</Size></Contents>`,
			row.key, row.modified, row.tag)
	}
	builder.WriteString(`</ListBucketResult>`)
	return builder.String()
}
