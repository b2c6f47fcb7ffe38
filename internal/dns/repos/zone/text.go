package zone

import (
	"bufio"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"go.uber.org/multierr"

	"github.com/haukened/rr-relay/internal/dns/domain"
)

var errIsDirectory = errors.New("is a directory")

// textFields is the number of whitespace separated fields on a record line:
// name ttl class type data.
const textFields = 5

// loadTextZone parses a line oriented zone file. Blank lines and lines whose
// first non-blank character is ';' or '#' are skipped. Every bad line is
// reported.
func loadTextZone(path string) ([]domain.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &domain.ZoneFileError{Path: path, Err: err}
	}
	defer f.Close()

	var (
		records []domain.Record
		errs    error
		lineNo  int
	)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == ';' || line[0] == '#' {
			continue
		}
		rr, err := parseTextRecord(line)
		if err != nil {
			errs = multierr.Append(errs, &domain.ZoneFileError{Path: path, Line: lineNo, Err: err})
			continue
		}
		records = append(records, rr)
	}
	if err := scanner.Err(); err != nil {
		errs = multierr.Append(errs, &domain.ZoneFileError{Path: path, Line: lineNo + 1, Err: err})
	}
	if errs != nil {
		return nil, errs
	}
	return records, nil
}

func parseTextRecord(line string) (domain.Record, error) {
	fields := strings.Fields(line)
	if len(fields) != textFields {
		return domain.Record{}, fmt.Errorf("expected %d fields (name ttl class type data), got %d", textFields, len(fields))
	}
	ttl, err := parseTTL(fields[1])
	if err != nil {
		return domain.Record{}, err
	}
	return domain.NewRecordFromText(fields[0], ttl, fields[2], fields[3], fields[4])
}

func parseTTL(s string) (int32, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid TTL %q", s)
	}
	if v < 0 || v > math.MaxInt32 {
		return 0, fmt.Errorf("TTL %d out of range", v)
	}
	return int32(v), nil
}
