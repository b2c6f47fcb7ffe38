// Package zone loads the authoritative record set served by rr-relay.
// Plain text zone files hold one record per line; YAML, JSON and TOML files
// describe a zone as a map of owner names to typed values.
package zone

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/haukened/rr-relay/internal/dns/domain"
)

// DefaultTTL applies to structured zone files that do not set a ttl.
const DefaultTTL int32 = 300

// LoadZoneFile loads every record from the file at path, choosing the parser
// by extension. Every failure is a *domain.ZoneFileError, several of them
// combined when more than one line is bad. No records are returned on error.
func LoadZoneFile(path string) ([]domain.Record, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &domain.ZoneFileError{Path: path, Err: err}
	}
	if info.IsDir() {
		return nil, &domain.ZoneFileError{Path: path, Err: errIsDirectory}
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json", ".toml":
		return loadStructuredZone(path)
	default:
		return loadTextZone(path)
	}
}
