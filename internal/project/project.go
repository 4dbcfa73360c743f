// Package project derives stable project identities from filesystem paths.
// The normalized name is the single source of truth for collection routing:
// any encoding of the same project path must hash to the same collection.
package project

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
)

// Known organizational parent directories that carry no project identity.
var parentDirs = map[string]bool{
	"projects": true,
	"src":      true,
	"code":     true,
	"repos":    true,
	"work":     true,
	"dev":      true,
}

// Root directories whose following segment is a username, not a project.
var homeRoots = map[string]bool{
	"users": true,
	"home":  true,
}

// Normalize reduces any encoding of a project path to its canonical name.
// Accepted encodings: OS-native paths ("/Users/a/projects/foo"), Windows
// paths ("C:\\work\\foo"), and the dash-flattened form Claude Code uses for
// directory names under ~/.claude/projects ("-Users-a-projects-foo").
func Normalize(path string) string {
	p := strings.ReplaceAll(path, "\\", "/")
	p = strings.TrimSuffix(p, "/")

	var segs []string
	if !strings.Contains(p, "/") && strings.HasPrefix(p, "-") {
		segs = strings.Split(p, "-")
	} else {
		segs = strings.Split(p, "/")
	}

	var parts []string
	for _, s := range segs {
		if s == "" || strings.HasSuffix(s, ":") {
			continue
		}
		parts = append(parts, s)
	}

	// Strip home-root plus username, then organizational parents.
	for len(parts) > 1 {
		head := strings.ToLower(parts[0])
		switch {
		case homeRoots[head] && len(parts) > 2:
			parts = parts[2:]
		case head == "root" || head == "mnt" || head == "volumes" || parentDirs[head]:
			parts = parts[1:]
		default:
			return strings.ToLower(strings.Join(parts, "-"))
		}
	}
	return strings.ToLower(strings.Join(parts, "-"))
}

// Hash8 returns the first 8 hex characters of the MD5 of a normalized name.
func Hash8(name string) string {
	sum := md5.Sum([]byte(name))
	return hex.EncodeToString(sum[:])[:8]
}

// CollectionName maps a project path encoding to its conversation
// collection under the given backend suffix ("local" or "voyage").
func CollectionName(path, suffix string) string {
	return "conv_" + Hash8(Normalize(path)) + "_" + suffix
}

// ReflectionsCollection names the shared reflections collection for a
// backend suffix.
func ReflectionsCollection(suffix string) string {
	return "reflections_" + suffix
}

// IsConversationCollection reports whether name belongs to the conv_*
// family for the given suffix.
func IsConversationCollection(name, suffix string) bool {
	return strings.HasPrefix(name, "conv_") && strings.HasSuffix(name, "_"+suffix)
}
