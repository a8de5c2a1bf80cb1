package reference

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Country is a catalog entry: the timezones it spans and up to five sample IPs.
type Country struct {
	Timezones []string `yaml:"timezones" json:"timezones"`
	IPs       []string `yaml:"ips" json:"ips"`
}

// Countries maps a country code to its catalog entry.
type Countries map[string]Country

// maxCountryIPs bounds the IP sample kept per country.
const maxCountryIPs = 5

// DefaultCountries is used when no catalog file is configured.
// Addresses come from the documentation ranges so generated data never points at real hosts.
func DefaultCountries() Countries {
	return Countries{
		"BR": {Timezones: []string{"America/Sao_Paulo"}, IPs: []string{"198.51.100.14", "198.51.100.87"}},
		"CN": {Timezones: []string{"Asia/Shanghai"}, IPs: []string{"203.0.113.21", "203.0.113.99", "203.0.113.140"}},
		"DE": {Timezones: []string{"Europe/Berlin"}, IPs: []string{"192.0.2.33", "192.0.2.34"}},
		"ES": {Timezones: []string{"Europe/Madrid"}, IPs: []string{"192.0.2.10", "192.0.2.11", "192.0.2.12"}},
		"FR": {Timezones: []string{"Europe/Paris"}, IPs: []string{"192.0.2.50"}},
		"GB": {Timezones: []string{"Europe/London"}, IPs: []string{"192.0.2.70", "192.0.2.71"}},
		"IN": {Timezones: []string{"Asia/Kolkata"}, IPs: []string{"198.51.100.120", "198.51.100.121"}},
		"KP": {Timezones: []string{"Asia/Pyongyang"}, IPs: []string{"203.0.113.200"}},
		"PT": {Timezones: []string{"Europe/Lisbon"}, IPs: []string{"192.0.2.90", "192.0.2.91"}},
		"RU": {Timezones: []string{"Europe/Moscow", "Asia/Novosibirsk"}, IPs: []string{"203.0.113.5", "203.0.113.6"}},
		"US": {Timezones: []string{"America/New_York", "America/Los_Angeles"}, IPs: []string{"198.51.100.1", "198.51.100.2", "198.51.100.3"}},
	}
}

// LoadCountries reads a YAML countries catalog. An empty path returns the defaults.
func LoadCountries(path string) (Countries, error) {
	if path == "" {
		return DefaultCountries(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read countries catalog: %w", err)
	}
	var c Countries
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse countries catalog %s: %w", path, err)
	}
	for code, entry := range c {
		if len(entry.IPs) > maxCountryIPs {
			entry.IPs = entry.IPs[:maxCountryIPs]
			c[code] = entry
		}
	}
	if len(c) == 0 {
		return DefaultCountries(), nil
	}
	return c, nil
}

// Names returns the country codes sorted.
func (c Countries) Names() []string {
	out := make([]string, 0, len(c))
	for code := range c {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

// DefaultBadIPs is the suspicious-IP list used when none is configured.
func DefaultBadIPs() []string {
	return []string{
		"203.0.113.66",
		"203.0.113.67",
		"203.0.113.166",
		"198.51.100.250",
		"192.0.2.254",
	}
}

// LoadBadIPs reads one IP per line, skipping blanks, comments and unparsable entries.
func LoadBadIPs(path string) ([]string, error) {
	if path == "" {
		return DefaultBadIPs(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open bad-ip list: %w", err)
	}
	defer f.Close()

	var ips []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if net.ParseIP(line) == nil {
			continue
		}
		ips = append(ips, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading bad-ip list: %w", err)
	}
	if len(ips) == 0 {
		return DefaultBadIPs(), nil
	}
	return ips, nil
}
