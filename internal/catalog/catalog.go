// Package catalog builds the command catalog from a directory of
// front-matter tagged markdown documents.
//
// The catalog is advisory: documents that cannot be read or carry no name
// are left out rather than failing the listing. Only a directory that cannot
// be listed at all is an error.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/HendryAvila/apex-spec/internal/frontmatter"
	"go.uber.org/zap"
)

// DocumentExt is the extension of command documents.
const DocumentExt = ".md"

// ErrUnavailable wraps failures to list the commands directory.
var ErrUnavailable = errors.New("command catalog unavailable")

// Command is one catalog entry.
type Command struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Catalog is the list-commands payload.
type Catalog struct {
	Commands []Command `json:"commands"`
	Count    int       `json:"count"`
}

// Reader scans a commands directory. It keeps no cache: every List call
// reads the directory fresh.
type Reader struct {
	dir    string
	logger *zap.Logger
}

// NewReader creates a Reader for dir. A nil logger disables logging.
func NewReader(dir string, logger *zap.Logger) *Reader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reader{dir: dir, logger: logger.Named("catalog")}
}

// List returns the catalog in lexicographic filename order.
func (r *Reader) List() (*Catalog, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", ErrUnavailable, r.dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), DocumentExt) {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	commands := make([]Command, 0, len(names))
	for _, name := range names {
		path := filepath.Join(r.dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			r.logger.Warn("skipping unreadable command document",
				zap.String("path", path), zap.Error(err))
			continue
		}

		doc := frontmatter.Parse(string(data))
		cmdName := doc.Get("name")
		if cmdName == "" {
			r.logger.Debug("skipping command document without name", zap.String("path", path))
			continue
		}
		commands = append(commands, Command{
			Name:        cmdName,
			Description: doc.Get("description"),
		})
	}

	return &Catalog{Commands: commands, Count: len(commands)}, nil
}
