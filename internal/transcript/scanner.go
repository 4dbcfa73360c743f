package transcript

import (
	"os"
	"path/filepath"
	"strings"
)

// Scan walks the transcript root and returns every conversation JSONL file.
// Subagent transcripts and index sidecars are skipped.
func Scan(root string) ([]FileInfo, error) {
	var files []FileInfo
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // skip unreadable dirs
		}
		if info.IsDir() {
			if filepath.Base(path) == "subagents" {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".jsonl" {
			return nil
		}
		if strings.Contains(filepath.Base(path), "sessions-index") {
			return nil
		}
		files = append(files, FileInfo{
			Path:       path,
			ProjectDir: filepath.Base(filepath.Dir(path)),
			Mtime:      info.ModTime().Unix(),
			Size:       info.Size(),
		})
		return nil
	})
	if err != nil && os.IsNotExist(err) {
		return nil, nil
	}
	return files, err
}
