package common

import (
	"path"
	"strings"
)

// UploadsPrefix roots relative image paths.
const UploadsPrefix = "/uploads/"

// NormalizeImagePath turns the assorted forms stored by upload tooling
// (windows separators, "uploads/x.png", "./x.png", "//x.png") into one
// canonical form. Absolute http(s) URLs are returned unchanged.
// An empty result means the input carried no usable path.
func NormalizeImagePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	lower := strings.ToLower(p)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return p
	}
	p = strings.ReplaceAll(p, "\\", "/")
	p = strings.TrimPrefix(p, "public/")
	cleaned := path.Clean("/" + p)
	if cleaned == "/" {
		return ""
	}
	if strings.HasPrefix(cleaned, UploadsPrefix) {
		return cleaned
	}
	return path.Join(UploadsPrefix, cleaned)
}

// NormalizeImagePaths normalises every entry, dropping empty and duplicate ones.
func NormalizeImagePaths(paths []string) []string {
	out := make([]string, 0, len(paths))
	seen := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		n := NormalizeImagePath(p)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

// PublicImageURL prefixes rooted paths with the asset base url when one is configured.
func PublicImageURL(baseURL, p string) string {
	if baseURL == "" || !strings.HasPrefix(p, "/") {
		return p
	}
	return strings.TrimRight(baseURL, "/") + p
}
