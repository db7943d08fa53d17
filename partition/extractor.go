// Package partition maps a partition's relative path to the ordered list of
// partition key values the catalog expects.
package partition

import (
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"sync"
)

// Extractor derives partition key values from a relative partition path.
// Values are positional: they must align with the table's partition-key
// definitions in declaration order.
type Extractor interface {
	ExtractValues(relativePath string) ([]string, error)
}

// Factory builds a configured extractor. Registered under a name so the
// strategy can be selected by configuration.
type Factory func() Extractor

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// Register makes an extractor available under the given name. Built-ins use
// it from init; external implementations can use it the same way before the
// executor is constructed.
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = f
}

// New resolves a registered extractor by name.
func New(name string) (Extractor, error) {
	registryMu.RLock()
	f, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown partition value extractor %q, registered: %s",
			name, strings.Join(registered(), ", "))
	}
	return f(), nil
}

func registered() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func init() {
	Register("hive-style", func() Extractor { return HiveStyleExtractor{} })
	Register("slash-encoded-day", func() Extractor { return SlashEncodedDayExtractor{} })
	Register("slash-encoded-hour", func() Extractor { return SlashEncodedHourExtractor{} })
	Register("non-partitioned", func() Extractor { return NonPartitionedExtractor{} })
}

var keyValueSegmentRegex = regexp.MustCompile(`^(?P<name>[^=]+)=(?P<value>.*)$`)

// HiveStyleExtractor handles paths whose segments are key=value pairs, e.g.
// "country=us/dt=2024-01-02" -> ["us", "2024-01-02"]. Values are
// percent-decoded the way they were encoded when the path was written.
type HiveStyleExtractor struct{}

func (HiveStyleExtractor) ExtractValues(relativePath string) ([]string, error) {
	trimmed := strings.Trim(relativePath, "/")
	if trimmed == "" {
		return nil, nil
	}
	segments := strings.Split(trimmed, "/")
	values := make([]string, 0, len(segments))
	for _, segment := range segments {
		m := keyValueSegmentRegex.FindStringSubmatch(segment)
		if m == nil {
			return nil, fmt.Errorf("partition segment %q of %q is not key=value encoded", segment, relativePath)
		}
		value, err := url.QueryUnescape(m[keyValueSegmentRegex.SubexpIndex("value")])
		if err != nil {
			return nil, fmt.Errorf("unescape partition segment %q: %w", segment, err)
		}
		values = append(values, value)
	}
	return values, nil
}

// SlashEncodedDayExtractor handles "yyyy/mm/dd" paths, collapsing them into a
// single "yyyy-mm-dd" value.
type SlashEncodedDayExtractor struct{}

func (SlashEncodedDayExtractor) ExtractValues(relativePath string) ([]string, error) {
	parts, err := splitExact(relativePath, 3)
	if err != nil {
		return nil, fmt.Errorf("partition path %q is not yyyy/mm/dd encoded: %w", relativePath, err)
	}
	return []string{fmt.Sprintf("%s-%s-%s", parts[0], parts[1], parts[2])}, nil
}

// SlashEncodedHourExtractor handles "yyyy/mm/dd/hh" paths, collapsing them
// into a single "yyyy-mm-dd-hh" value.
type SlashEncodedHourExtractor struct{}

func (SlashEncodedHourExtractor) ExtractValues(relativePath string) ([]string, error) {
	parts, err := splitExact(relativePath, 4)
	if err != nil {
		return nil, fmt.Errorf("partition path %q is not yyyy/mm/dd/hh encoded: %w", relativePath, err)
	}
	return []string{fmt.Sprintf("%s-%s-%s-%s", parts[0], parts[1], parts[2], parts[3])}, nil
}

// NonPartitionedExtractor is for tables without partition keys.
type NonPartitionedExtractor struct{}

func (NonPartitionedExtractor) ExtractValues(string) ([]string, error) {
	return nil, nil
}

func splitExact(relativePath string, n int) ([]string, error) {
	parts := strings.Split(strings.Trim(relativePath, "/"), "/")
	if len(parts) != n {
		return nil, fmt.Errorf("expected %d segments, got %d", n, len(parts))
	}
	for _, p := range parts {
		if p == "" {
			return nil, fmt.Errorf("empty segment")
		}
	}
	return parts, nil
}
