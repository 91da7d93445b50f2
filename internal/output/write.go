// Package output owns every on-disk artifact of a run: the two config
// documents, the map files, and the intermediate subscription listings. The
// pipeline itself never touches the filesystem.
package output

import (
	"os"
	"path/filepath"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/John-Robertt/v2raygen/internal/model"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ConfigPaths derives the per-variant file names from the base path:
// "config/config.json" -> "config/config_local.json", "config/config_lan.json".
// A base without an extension gets ".json".
func ConfigPaths(base string) (local, lan string) {
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	if ext == "" {
		ext = ".json"
	}
	return stem + "_local" + ext, stem + "_lan" + ext
}

// MapCSVPath derives the CSV twin of the JSON map path.
func MapCSVPath(mapPath string) string {
	ext := filepath.Ext(mapPath)
	return strings.TrimSuffix(mapPath, ext) + ".csv"
}

// WriteBytes creates the parent directory if needed and writes the file.
func WriteBytes(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}

// WriteConfig marshals one config document with two-space indentation.
func WriteConfig(path string, cfg *model.Config) error {
	b, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return WriteBytes(path, append(b, '\n'))
}

// WriteDecodedURIs stores the decoded node URI list, one blank line between
// entries, mirroring what the subscription actually contained.
func WriteDecodedURIs(path string, uris []string) error {
	return WriteBytes(path, []byte(strings.Join(uris, "\n\n")))
}

// WriteServerDetails stores each parsed server as indented JSON for manual
// inspection.
func WriteServerDetails(path string, servers []model.Server) error {
	var b strings.Builder
	for _, srv := range servers {
		detail, err := json.MarshalIndent(srv, "", "  ")
		if err != nil {
			return err
		}
		b.Write(detail)
		b.WriteString("\n\n")
	}
	return WriteBytes(path, []byte(b.String()))
}
