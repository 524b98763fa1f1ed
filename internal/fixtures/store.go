// Package fixtures loads the hidden test oracle: ordered (arguments, expected)
// pairs keyed by target name.
package fixtures

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"mender/internal/logging"
)

var (
	// ErrNotFound means no fixture file exists for the target name.
	ErrNotFound = errors.New("fixtures not found")
	// ErrMalformed means the fixture file is not a sequence of [arguments, expected] pairs.
	ErrMalformed = errors.New("malformed fixtures")
)

// Fixture file suffixes. The suffix alone selects the encoding.
const (
	// ArrayExtension files hold one JSON array of [arguments, expected] pairs.
	ArrayExtension = ".json"
	// LinesExtension files hold one [arguments, expected] pair per line.
	LinesExtension = ".jsonl"
)

// Format is a fixture file encoding.
type Format int

const (
	FormatArray Format = iota
	FormatLines
)

func (f Format) String() string {
	if f == FormatLines {
		return "lines"
	}
	return "array"
}

// Case is one fixture: positional arguments and the expected return value.
type Case struct {
	Args     []json.RawMessage
	Expected json.RawMessage
}

// ID returns the stable reporting identifier for the case at index i.
func ID(i int) string {
	return fmt.Sprintf("case_%d", i)
}

// Set is the ordered fixture list for one target. Treat it as read-only.
type Set struct {
	Target string
	Cases  []Case
}

// Store reads fixture files from a directory. It keeps no state besides the
// directory and never caches.
type Store struct {
	dir string
}

// NewStore creates a store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the fixture directory.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the fixture file of a target and its encoding. When no file
// exists the array path is returned with ErrNotFound; when both exist the
// target is ambiguous and ErrMalformed is returned.
func (s *Store) Path(name string) (string, Format, error) {
	arrayPath := filepath.Join(s.dir, name+ArrayExtension)
	linesPath := filepath.Join(s.dir, name+LinesExtension)
	hasArray, err := exists(arrayPath)
	if err != nil {
		return arrayPath, FormatArray, err
	}
	hasLines, err := exists(linesPath)
	if err != nil {
		return linesPath, FormatLines, err
	}

	switch {
	case hasArray && hasLines:
		return arrayPath, FormatArray, fmt.Errorf("%w: both %s and %s exist", ErrMalformed, arrayPath, linesPath)
	case hasLines:
		return linesPath, FormatLines, nil
	case hasArray:
		return arrayPath, FormatArray, nil
	}
	return arrayPath, FormatArray, fmt.Errorf("%w: %s or %s", ErrNotFound, arrayPath, linesPath)
}

func exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("failed to stat fixtures %s: %w", path, err)
}

// Load reads and decodes the fixture set for a target.
func (s *Store) Load(name string) (*Set, error) {
	if !IsIdentifier(name) {
		return nil, fmt.Errorf("%w: %q is not a valid target name", ErrNotFound, name)
	}

	path, format, err := s.Path(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("failed to read fixtures %s: %w", path, err)
	}

	cases, err := Decode(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	logging.FixturesDebug("loaded %d cases for %s (%s)", len(cases), name, format)
	return &Set{Target: name, Cases: cases}, nil
}

// Decode parses fixture content in the given encoding.
func Decode(data []byte, format Format) ([]Case, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty fixture file", ErrMalformed)
	}
	if format == FormatLines {
		return decodeLines(trimmed)
	}

	var whole []json.RawMessage
	if err := json.Unmarshal(trimmed, &whole); err != nil {
		return nil, fmt.Errorf("%w: not a JSON array of pairs: %v", ErrMalformed, err)
	}
	return decodePairs(whole)
}

func decodeLines(data []byte) ([]Case, error) {
	var pairs []json.RawMessage
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 {
			continue
		}
		if !json.Valid(text) {
			return nil, fmt.Errorf("%w: line %d is not valid JSON", ErrMalformed, line)
		}
		pairs = append(pairs, json.RawMessage(append([]byte(nil), text...)))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return decodePairs(pairs)
}

func decodePairs(raw []json.RawMessage) ([]Case, error) {
	cases := make([]Case, 0, len(raw))
	for i, r := range raw {
		var pair []json.RawMessage
		if err := json.Unmarshal(r, &pair); err != nil {
			return nil, fmt.Errorf("%w: entry %d is not a pair", ErrMalformed, i)
		}
		if len(pair) != 2 {
			return nil, fmt.Errorf("%w: entry %d has %d elements, want [arguments, expected]", ErrMalformed, i, len(pair))
		}
		var args []json.RawMessage
		if err := json.Unmarshal(pair[0], &args); err != nil || args == nil {
			return nil, fmt.Errorf("%w: entry %d arguments must be a sequence", ErrMalformed, i)
		}
		cases = append(cases, Case{Args: args, Expected: pair[1]})
	}
	return cases, nil
}
