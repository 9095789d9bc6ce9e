package core

import (
	"encoding/xml"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// listBucketResult is the directory-listing document both version sources
// serve (an S3 bucket listing).
type listBucketResult struct {
	XMLName  xml.Name         `xml:"ListBucketResult"`
	Contents []listingContent `xml:"Contents"`
}

type listingContent struct {
	Key          string `xml:"Key"`
	LastModified string `xml:"LastModified"`
	ETag         string `xml:"ETag"`
}

type listingItem struct {
	Key       string
	Timestamp int64
	Tag       string
}

var snapshotPattern = regexp.MustCompile(`[0-9][0-9]w[0-9][0-9][a-z]|pre|rc`)

func parseListing(raw []byte) ([]listingItem, error) {
	var document listBucketResult
	err := xml.Unmarshal(raw, &document)
	if err != nil {
		return nil, err
	}
	items := make([]listingItem, 0, len(document.Contents))
	for _, content := range document.Contents {
		modified, err := time.Parse(time.RFC3339, strings.TrimSpace(content.LastModified))
		if err != nil {
			return nil, fmt.Errorf("listing entry %q: %w", content.Key, err)
		}
		items = append(items, listingItem{
			Key:       content.Key,
			Timestamp: modified.Unix(),
			Tag:       NormalizeTag(content.ETag),
		})
	}
	return items, nil
}

func findReleasePointer(items []listingItem, archiveName string) (listingItem, bool) {
	for _, item := range items {
		if item.Key == archiveName {
			return item, true
		}
	}
	return listingItem{}, false
}

// historicalEntry is one versioned copy of the base archive, keyed
// "<version>/<archive>" with underscores standing in for dots.
type historicalEntry struct {
	listingItem
	Label  string
	Prefix string
}

func historicalEntries(items []listingItem, archiveName string) (entries []historicalEntry) {
	suffix := "/" + archiveName
	seen := make(map[string]int)
	for _, item := range items {
		if !strings.HasSuffix(item.Key, suffix) {
			continue
		}
		prefix := strings.TrimSuffix(item.Key, suffix)
		if prefix == "" {
			continue
		}
		entry := historicalEntry{listingItem: item, Label: strings.ReplaceAll(prefix, "_", "."), Prefix: prefix}
		if index, found := seen[entry.Label]; found {
			if entry.Timestamp > entries[index].Timestamp {
				entries[index] = entry
			}
			continue
		}
		seen[entry.Label] = len(entries)
		entries = append(entries, entry)
	}
	return entries
}
