package contracts

import (
	"bufio"
	"bytes"
	"fmt"
	"sort"
	"strings"
)

// CacheRecord maps an artifact's path (relative to the bin directory) to the
// content tag it was last verified against.
type CacheRecord map[string]string

func ParseCacheRecord(raw []byte) (CacheRecord, error) {
	record := make(CacheRecord)
	scanner := bufio.NewScanner(bytes.NewReader(raw))
	for line := 1; scanner.Scan(); line++ {
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		key, value, found := strings.Cut(text, "=")
		if !found || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("malformed cache record at line %d: %q", line, text)
		}
		record[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return record, scanner.Err()
}

func (this CacheRecord) Format() []byte {
	keys := make([]string, 0, len(this))
	for key := range this {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	buffer := new(bytes.Buffer)
	for _, key := range keys {
		_, _ = fmt.Fprintf(buffer, "%s=%s\n", key, this[key])
	}
	return buffer.Bytes()
}

func (this CacheRecord) Clone() CacheRecord {
	clone := make(CacheRecord, len(this))
	for key, value := range this {
		clone[key] = value
	}
	return clone
}
