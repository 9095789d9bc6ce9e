package core

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/smarty/assertions/should"
	"github.com/smarty/gunit"
)

func TestProgressFixture(t *testing.T) {
	gunit.Run(new(ProgressFixture), t)
}

type ProgressFixture struct {
	*gunit.Fixture
	written int64
	total   int64
	reports int
}

func (this *ProgressFixture) TestHumanFileSizeWithZero() {
	this.So(humanFileSize(0), should.Equal, "0 B")
}

func (this *ProgressFixture) TestHumanFileSizes() {
	this.So(humanFileSize(1536), should.Equal, "1.5 KB")
	this.So(humanFileSize(3*1024*1024), should.Equal, "3 MB")
	this.So(humanFileSize(250_000_000), should.Equal, "238.42 MB")
}

func (this *ProgressFixture) TestRound() {
	rounded := round(26.2245, .5, 3)
	this.So(rounded, should.Equal, 26.225)
}

func (this *ProgressFixture) TestDescribeTransfer() {
	this.So(describeTransfer("Downloaded", "lwjgl.jar", 1536, 3*1024*1024), should.Equal, "Downloaded lwjgl.jar: 1.5 KB of 3 MB")
	this.So(describeTransfer("Downloaded", "lwjgl.jar", 1536, 0), should.Equal, "Downloaded lwjgl.jar: 1.5 KB")
}

func (this *ProgressFixture) TestCounterReportsOnClose() {
	counter := newTransferCounter(8, time.Hour, this.onProgress)
	_, _ = counter.Write([]byte("test"))
	_, _ = counter.Write([]byte("test"))

	_ = counter.Close()

	this.So(this.written, should.Equal, 8)
	this.So(this.total, should.Equal, 8)
	this.So(this.reports, should.Equal, 1)
}

func (this *ProgressFixture) TestCopyWithContextCopiesEverything() {
	source := strings.Repeat("block", 20_000)
	target := new(bytes.Buffer)

	written, err := copyWithContext(context.Background(), target, strings.NewReader(source))

	this.So(err, should.BeNil)
	this.So(written, should.Equal, len(source))
	this.So(target.String(), should.Equal, source)
}

func (this *ProgressFixture) TestCopyWithContextStopsWhenCanceled() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	target := new(bytes.Buffer)

	written, err := copyWithContext(ctx, target, strings.NewReader("never copied"))

	this.So(err, should.Equal, context.Canceled)
	this.So(written, should.Equal, 0)
	this.So(target.Len(), should.Equal, 0)
}

func (this *ProgressFixture) TestPhaseProgressScalesIntoRange() {
	sink := new(FakeProgressSink)
	phase := newPhaseProgress(sink, 10, 90)

	phase.Report(0.5, "halfway")
	phase.Report(2, "overshoot")

	this.So(sink.percents, should.Resemble, []int{50, 90})
	this.So(sink.messages, should.Resemble, []string{"halfway", "overshoot"})
}

func (this *ProgressFixture) onProgress(written, total int64) {
	this.written = written
	this.total = total
	this.reports++
}

//////////////////////////////////////////////////////////

type FakeProgressSink struct {
	mutex    sync.Mutex
	percents []int
	messages []string
}

func (this *FakeProgressSink) Report(percent int, message string) {
	this.mutex.Lock()
	defer this.mutex.Unlock()
	this.percents = append(this.percents, percent)
	this.messages = append(this.messages, message)
}
