package core

import (
	"context"
	"fmt"
	"io"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/smarty/jarsmith/contracts"
)

var (
	suffixes = [5]string{"B", "KB", "MB", "GB", "TB"}
)

func round(val float64, roundOn float64, places int) (newVal float64) {
	var round float64
	pow := math.Pow(10, float64(places))
	digit := pow * val
	_, div := math.Modf(digit)
	if div >= roundOn {
		round = math.Ceil(digit)
	} else {
		round = math.Floor(digit)
	}
	newVal = round / pow
	return
}

func humanFileSize(size float64) string {
	if size < 1 {
		return "0 B"
	}
	base := math.Log(size) / math.Log(1024)
	getSize := round(math.Pow(1024, base-math.Floor(base)), .5, 2)
	getSuffix := suffixes[int(math.Floor(base))]
	return strconv.FormatFloat(getSize, 'f', -1, 64) + " " + getSuffix
}

// transferCounter counts bytes written through it and reports them on a
// ticker and once more on Close.
type transferCounter struct {
	mutex      sync.Mutex
	written    int64
	total      int64
	onProgress func(written, total int64)
	printTimer *time.Ticker
	done       chan struct{}
}

func newTransferCounter(total int64, interval time.Duration, onProgress func(written, total int64)) *transferCounter {
	this := &transferCounter{total: total, onProgress: onProgress}
	this.printTimer = time.NewTicker(interval)
	this.done = make(chan struct{})
	go func() {
		for {
			select {
			case <-this.printTimer.C:
				this.reportProgress()
			case <-this.done:
				return
			}
		}
	}()
	return this
}

func (this *transferCounter) Write(p []byte) (n int, e error) {
	n = len(p)
	this.mutex.Lock()
	this.written += int64(n)
	this.mutex.Unlock()
	return
}

func (this *transferCounter) Written() int64 {
	this.mutex.Lock()
	defer this.mutex.Unlock()
	return this.written
}

func (this *transferCounter) Close() error {
	this.printTimer.Stop()
	close(this.done)
	this.reportProgress()
	return nil
}

func (this *transferCounter) reportProgress() {
	this.onProgress(this.Written(), this.total)
}

func describeTransfer(verb, name string, written, total int64) string {
	if total <= 0 {
		return fmt.Sprintf("%s %s: %s", verb, name, humanFileSize(float64(written)))
	}
	return fmt.Sprintf("%s %s: %s of %s", verb, name, humanFileSize(float64(written)), humanFileSize(float64(total)))
}

// copyWithContext is io.Copy that gives up between chunks once ctx is done.
func copyWithContext(ctx context.Context, target io.Writer, source io.Reader) (written int64, err error) {
	buffer := make([]byte, 32*1024)
	for {
		if err = ctx.Err(); err != nil {
			return written, err
		}
		count, readErr := source.Read(buffer)
		if count > 0 {
			wrote, writeErr := target.Write(buffer[0:count])
			written += int64(wrote)
			if writeErr != nil {
				return written, writeErr
			}
			if wrote != count {
				return written, io.ErrShortWrite
			}
		}
		if readErr == io.EOF {
			return written, nil
		}
		if readErr != nil {
			return written, readErr
		}
	}
}

// phaseProgress maps a step within an operation onto the percent range
// [start, end] of the caller's sink.
type phaseProgress struct {
	sink  contracts.ProgressSink
	start int
	end   int
}

func newPhaseProgress(sink contracts.ProgressSink, start, end int) phaseProgress {
	if sink == nil {
		sink = nopProgress{}
	}
	return phaseProgress{sink: sink, start: start, end: end}
}

func (this phaseProgress) Report(fraction float64, message string) {
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	this.sink.Report(this.start+int(float64(this.end-this.start)*fraction), message)
}

type nopProgress struct{}

func (nopProgress) Report(int, string) {}
