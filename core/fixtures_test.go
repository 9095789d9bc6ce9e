package core

import (
	"bytes"
	"context"
	"io"
	"log"
	"os"
	"time"

	"github.com/klauspost/compress/flate"

	"github.com/smarty/jarsmith/archive"
	"github.com/smarty/jarsmith/contracts"
)

func discardLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

type archiveEntry struct {
	name    string
	content string
}

var archiveModTime = time.Date(2012, time.March, 22, 10, 30, 0, 0, time.UTC)

func buildArchive(entries ...archiveEntry) []byte {
	buffer := new(bytes.Buffer)
	writer := archive.NewZipArchiveWriter(buffer, flate.DefaultCompression)
	for _, entry := range entries {
		_ = writer.WriteHeader(contracts.ArchiveHeader{Name: entry.name, ModTime: archiveModTime})
		_, _ = io.WriteString(writer, entry.content)
	}
	_ = writer.Close()
	return buffer.Bytes()
}

// readArchive returns the entries of a zip on disk in archive order.
func readArchive(path string) (names []string, contents map[string]string) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil
	}
	reader, err := archive.NewZipArchiveReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, nil
	}
	defer func() { _ = reader.Close() }()
	contents = make(map[string]string)
	for {
		header, err := reader.Next()
		if err != nil {
			return names, contents
		}
		content, _ := io.ReadAll(reader)
		names = append(names, header.Name)
		contents[header.Name] = string(content)
	}
}

func quotedDigest(content []byte) string {
	return `"` + DigestBytes(content) + `"`
}

func readFile(path string) string {
	raw, _ := os.ReadFile(path)
	return string(raw)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

var background = context.Background()
