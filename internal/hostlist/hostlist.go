package hostlist

import (
	"fmt"
	"os"
	"strings"

	"github.com/maxvaer/grpcscan/internal/netutil"
)

// Parse splits a comma-separated host list, expands CIDR entries and
// removes duplicates while keeping the first occurrence.
func Parse(list string) ([]string, error) {
	return build(strings.Split(list, ","), nil)
}

// Load reads one host per line from path. Blank lines and lines starting
// with # are ignored. Entries may also be comma-separated.
func Load(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading host list %s: %w", path, err)
	}
	var entries []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		entries = append(entries, strings.Split(line, ",")...)
	}
	return build(entries, nil)
}

// Merge returns the hosts from the comma list followed by the hosts in
// file (if any), de-duplicated across both.
func Merge(list, file string) ([]string, error) {
	hosts, err := Parse(list)
	if err != nil {
		return nil, err
	}
	if file == "" {
		return hosts, nil
	}
	fromFile, err := Load(file)
	if err != nil {
		return nil, err
	}
	return build(fromFile, hosts)
}

func build(entries, base []string) ([]string, error) {
	seen := make(map[string]struct{}, len(entries)+len(base))
	result := make([]string, 0, len(entries)+len(base))
	add := func(h string) {
		if h == "" {
			return
		}
		if _, ok := seen[h]; !ok {
			seen[h] = struct{}{}
			result = append(result, h)
		}
	}
	for _, h := range base {
		add(h)
	}
	for _, entry := range entries {
		hosts, err := netutil.ExpandHost(entry)
		if err != nil {
			return nil, err
		}
		for _, h := range hosts {
			add(h)
		}
	}
	return result, nil
}
