package inventory

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ParseFile parses the inventory at path. Files ending in .yml or .yaml are
// read as YAML inventories, anything else as INI.
func ParseFile(path string) (*Inventory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		return ParseYAML(f, path)
	default:
		return ParseINI(f, path)
	}
}
