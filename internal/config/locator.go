package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// BucketURL turns a container locator into a gocloud blob URL. Plain paths
// become fileblob URLs, created on demand when create is set. Fileblob URLs
// skip the .attrs sidecar files so the directory stays a plain N5 container;
// other schemes are returned unchanged.
func BucketURL(locator string, create bool) (string, error) {
	if strings.Contains(locator, "://") && !strings.HasPrefix(locator, "file://") {
		return locator, nil
	}
	base, rawQuery, _ := strings.Cut(locator, "?")
	if !strings.HasPrefix(base, "file://") {
		abs, err := filepath.Abs(base)
		if err != nil {
			return "", fmt.Errorf("could not resolve container path %q: %w", locator, err)
		}
		base = "file://" + filepath.ToSlash(abs)
	}
	q, err := url.ParseQuery(rawQuery)
	if err != nil {
		return "", fmt.Errorf("invalid container locator %q: %w", locator, err)
	}
	if create && !q.Has("create_dir") {
		q.Set("create_dir", "true")
	}
	if !q.Has("metadata") {
		q.Set("metadata", "skip")
	}
	return base + "?" + q.Encode(), nil
}
