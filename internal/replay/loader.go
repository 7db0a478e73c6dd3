package replay

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/tjfontaine/cassette/cassette"
)

// LoadDir decodes every cassette file (.json, .yaml, .yml) in dir.
// os.ReadDir returns entries sorted by file name, so match precedence is
// deterministic. A file that fails to decode aborts the load; a
// half-loaded replay surface would be worse than a startup error.
func LoadDir(dir string, caps cassette.Capabilities) ([]Set, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("replay: read cassette dir: %w", err)
	}

	decoder := cassette.NewDecoder(caps)
	var sets []Set
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch filepath.Ext(entry.Name()) {
		case ".json", ".yaml", ".yml":
		default:
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("replay: read cassette %s: %w", entry.Name(), err)
		}
		c, err := decoder.Decode(data)
		if err != nil {
			return nil, fmt.Errorf("replay: decode cassette %s: %w", entry.Name(), err)
		}
		sets = append(sets, Set{Name: entry.Name(), Cassette: c})
	}
	return sets, nil
}
