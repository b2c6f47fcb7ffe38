package zone

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"go.uber.org/multierr"

	"github.com/haukened/rr-relay/internal/dns/common/utils"
	"github.com/haukened/rr-relay/internal/dns/domain"
)

// reservedKeys are top level keys that configure the zone rather than name
// an owner.
var reservedKeys = map[string]bool{
	"zone_root": true,
	"ttl":       true,
}

// loadStructuredZone loads a YAML, JSON or TOML zone:
//
//	zone_root: example.com
//	ttl: 300
//	www:
//	  A: ["192.0.2.1", "192.0.2.2"]
//	alias:
//	  CNAME: www.example.com.
//
// Owner names are relative to zone_root unless they end in a dot; "@" is the
// root itself.
func loadStructuredZone(path string) ([]domain.Record, error) {
	var parser koanf.Parser
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	case ".toml":
		parser = toml.Parser()
	default:
		return nil, &domain.ZoneFileError{Path: path, Err: fmt.Errorf("unsupported zone file extension")}
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, &domain.ZoneFileError{Path: path, Err: err}
	}

	root := utils.CanonicalDNSName(k.String("zone_root"))
	if root == "" {
		return nil, &domain.ZoneFileError{Path: path, Err: fmt.Errorf("missing 'zone_root'")}
	}
	ttl := DefaultTTL
	if k.Exists("ttl") {
		v, err := parseTTL(k.String("ttl"))
		if err != nil {
			return nil, &domain.ZoneFileError{Path: path, Err: err}
		}
		ttl = v
	}

	raw := k.Raw()
	owners := make([]string, 0, len(raw))
	for name := range raw {
		if !reservedKeys[name] {
			owners = append(owners, name)
		}
	}
	sort.Strings(owners)

	var (
		records []domain.Record
		errs    error
	)
	for _, owner := range owners {
		rrsets, ok := raw[owner].(map[string]any)
		if !ok {
			continue
		}
		fqdn := expandName(owner, root)
		types := make([]string, 0, len(rrsets))
		for rrType := range rrsets {
			types = append(types, rrType)
		}
		sort.Strings(types)
		for _, rrType := range types {
			for _, value := range toStringValues(rrsets[rrType]) {
				rr, err := domain.NewRecordFromText(fqdn, ttl, domain.RRClassIN.String(), strings.ToUpper(rrType), value)
				if err != nil {
					errs = multierr.Append(errs, &domain.ZoneFileError{
						Path: path,
						Err:  fmt.Errorf("%s %s: %w", fqdn, rrType, err),
					})
					continue
				}
				records = append(records, rr)
			}
		}
	}
	if errs != nil {
		return nil, errs
	}
	return records, nil
}

// expandName returns the fully qualified domain name for a label, expanding '@' to the root,
// and appending the root if the label is not already absolute.
func expandName(label, root string) string {
	if label == "@" {
		return root
	}
	if strings.HasSuffix(label, ".") {
		return utils.CanonicalDNSName(label)
	}
	return label + "." + root
}

// toStringValues converts a raw koanf-parsed value (string or []any of strings) into a slice of
// non-empty strings, skipping empty or non-string elements.
func toStringValues(val any) []string {
	switch v := val.(type) {
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return nil
		}
		return []string{s}
	case []any:
		out := make([]string, 0, len(v))
		for _, elem := range v {
			s, ok := elem.(string)
			if !ok {
				continue
			}
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
