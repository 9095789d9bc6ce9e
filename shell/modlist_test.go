package shell

import (
	"io"
	"log"
	"testing"

	"github.com/smarty/assertions/should"
	"github.com/smarty/gunit"

	"github.com/smarty/jarsmith/contracts"
)

func TestModListOverlayProviderFixture(t *testing.T) {
	gunit.Run(new(ModListOverlayProviderFixture), t)
}

type ModListOverlayProviderFixture struct {
	*gunit.Fixture
	disk     *InMemoryFileSystem
	provider *ModListOverlayProvider
	instance contracts.Instance
}

func (this *ModListOverlayProviderFixture) Setup() {
	this.disk = NewInMemoryFileSystem()
	this.provider = NewModListOverlayProvider(this.disk)
	this.provider.logger = log.New(io.Discard, "", 0)
	this.instance = contracts.Instance{ID: "mods", RootDir: "/games/mods"}
}

func (this *ModListOverlayProviderFixture) mod(name string) string {
	path := this.instance.OverlaysRoot() + "/" + name
	_ = this.disk.WriteFile(path, []byte(name))
	return path
}

func (this *ModListOverlayProviderFixture) TestNoModsNoOverlays() {
	overlays, err := this.provider.Overlays(this.instance)

	this.So(err, should.BeNil)
	this.So(overlays, should.BeEmpty)
}

func (this *ModListOverlayProviderFixture) TestListedModsKeepTheirOrder() {
	second := this.mod("b.zip")
	first := this.mod("a/texture.png")
	_ = this.disk.WriteFile(this.instance.OverlayOrderPath(), []byte("a/texture.png\n\n# comment\nb.zip\n"))

	overlays, err := this.provider.Overlays(this.instance)

	this.So(err, should.BeNil)
	this.So(overlays, should.Resemble, []contracts.OverlayEntry{
		{Path: first, Kind: contracts.LooseFileOverlay, Priority: 0},
		{Path: second, Kind: contracts.ArchiveOverlay, Priority: 1},
	})
}

func (this *ModListOverlayProviderFixture) TestMissingListedModsAreDropped() {
	present := this.mod("present.jar")
	_ = this.disk.WriteFile(this.instance.OverlayOrderPath(), []byte("gone.zip\npresent.jar\n"))

	overlays, err := this.provider.Overlays(this.instance)

	this.So(err, should.BeNil)
	this.So(overlays, should.Resemble, []contracts.OverlayEntry{{Path: present, Kind: contracts.ArchiveOverlay, Priority: 0}})
}

func (this *ModListOverlayProviderFixture) TestUnlistedModsFollowInPathOrder() {
	listed := this.mod("z.zip")
	unlistedB := this.mod("b.jar")
	unlistedA := this.mod("a.zip")
	_ = this.disk.WriteFile(this.instance.OverlayOrderPath(), []byte("z.zip\nz.zip\n"))

	overlays, err := this.provider.Overlays(this.instance)

	this.So(err, should.BeNil)
	this.So(overlays, should.Resemble, []contracts.OverlayEntry{
		{Path: listed, Kind: contracts.ArchiveOverlay, Priority: 0},
		{Path: unlistedA, Kind: contracts.ArchiveOverlay, Priority: 1},
		{Path: unlistedB, Kind: contracts.ArchiveOverlay, Priority: 2},
	})
}

func (this *ModListOverlayProviderFixture) TestUnreadableModListIsAnError() {
	_ = this.disk.WriteFile(this.instance.OverlayOrderPath(), []byte("a.zip\n"))
	this.disk.ErrReadFile[this.instance.OverlayOrderPath()] = io.ErrUnexpectedEOF

	_, err := this.provider.Overlays(this.instance)

	this.So(err, should.Equal, io.ErrUnexpectedEOF)
}

func (this *ModListOverlayProviderFixture) TestSavedOrderIsReadBack() {
	a, b := this.mod("a.zip"), this.mod("sub/b.png")
	entries := []contracts.OverlayEntry{{Path: b, Priority: 0}, {Path: a, Priority: 1}}

	err := this.provider.SaveModList(this.instance, entries)

	this.So(err, should.BeNil)
	raw, _ := this.disk.ReadFile(this.instance.OverlayOrderPath())
	this.So(string(raw), should.Equal, "sub/b.png\na.zip\n")
	overlays, _ := this.provider.Overlays(this.instance)
	this.So(overlays[0].Path, should.Equal, b)
}

func (this *ModListOverlayProviderFixture) TestSavingForeignPathsIsRejected() {
	err := this.provider.SaveModList(this.instance, []contracts.OverlayEntry{{Path: "/elsewhere/mod.zip"}})

	this.So(err, should.NotBeNil)
}
