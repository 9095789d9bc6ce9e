package shell

import (
	"fmt"
	"io"
	"log"
	"sync"
)

// TerminalProgressSink redraws a single status line.
type TerminalProgressSink struct {
	mutex  sync.Mutex
	writer io.Writer
	last   string
}

func NewTerminalProgressSink(writer io.Writer) *TerminalProgressSink {
	return &TerminalProgressSink{writer: writer}
}

func (this *TerminalProgressSink) Report(percent int, message string) {
	this.mutex.Lock()
	defer this.mutex.Unlock()
	line := fmt.Sprintf("%3d%% %s", percent, message)
	if line == this.last {
		return
	}
	this.last = line
	_, _ = fmt.Fprintf(this.writer, "\033[2K\r%s", line)
	if percent >= 100 {
		_, _ = fmt.Fprintln(this.writer)
	}
}

type LogProgressSink struct {
	logger *log.Logger
}

func NewLogProgressSink(logger *log.Logger) *LogProgressSink {
	if logger == nil {
		logger = log.Default()
	}
	return &LogProgressSink{logger: logger}
}

func (this *LogProgressSink) Report(percent int, message string) {
	this.logger.Printf("[INFO] %3d%% %s", percent, message)
}
