// Package config loads g2 machine configuration from ini-style files.
//
// A config file is a set of [section] blocks with "option: value" or
// "option = value" lines. Typed accessors perform validation so the
// planner never sees an unchecked value.
package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/lllars/g2/pkg/errors"
)

// File is a parsed configuration file.
type File struct {
	sections map[string]*Section
	order    []string
}

// Section provides typed access to one config section.
type Section struct {
	name    string
	options map[string]string
}

// Parse reads ini-style configuration from a string.
func Parse(data string) (*File, error) {
	f := &File{sections: make(map[string]*Section)}
	var current *Section
	scanner := bufio.NewScanner(strings.NewReader(data))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		if strings.HasPrefix(line, "[") {
			if !strings.HasSuffix(line, "]") {
				return nil, fmt.Errorf("config line %d: malformed section header %q", lineNo, line)
			}
			name := strings.ToLower(strings.TrimSpace(line[1 : len(line)-1]))
			if name == "" {
				return nil, fmt.Errorf("config line %d: empty section name", lineNo)
			}
			current = &Section{name: name, options: make(map[string]string)}
			f.sections[name] = current
			f.order = append(f.order, name)
			continue
		}
		sep := strings.IndexAny(line, ":=")
		if sep < 0 {
			return nil, fmt.Errorf("config line %d: expected 'option: value', got %q", lineNo, line)
		}
		if current == nil {
			return nil, fmt.Errorf("config line %d: option outside any section", lineNo)
		}
		key := strings.ToLower(strings.TrimSpace(line[:sep]))
		val := strings.TrimSpace(line[sep+1:])
		current.options[key] = val
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return f, nil
}

// Load reads and parses a config file from disk.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(string(data))
}

// HasSection reports whether the named section exists.
func (f *File) HasSection(name string) bool {
	_, ok := f.sections[strings.ToLower(name)]
	return ok
}

// GetSection returns the named section, or an empty one so callers can
// fall through to defaults.
func (f *File) GetSection(name string) *Section {
	if s, ok := f.sections[strings.ToLower(name)]; ok {
		return s
	}
	return &Section{name: strings.ToLower(name), options: map[string]string{}}
}

// SectionNames returns section names in file order.
func (f *File) SectionNames() []string {
	out := make([]string, len(f.order))
	copy(out, f.order)
	return out
}

// Name returns the section name.
func (s *Section) Name() string { return s.name }

// HasOption checks if an option exists in this section.
func (s *Section) HasOption(option string) bool {
	_, ok := s.options[strings.ToLower(option)]
	return ok
}

// Get returns a string option value or the fallback.
func (s *Section) Get(option, fallback string) string {
	if v, ok := s.options[strings.ToLower(option)]; ok {
		return v
	}
	return fallback
}

// GetFloat returns a float64 option value or the fallback.
func (s *Section) GetFloat(option string, fallback float64) (float64, error) {
	v, ok := s.options[strings.ToLower(option)]
	if !ok {
		return fallback, nil
	}
	fv, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, errors.ConfigError(s.name, option, "not a float: "+v)
	}
	return fv, nil
}

// GetInt returns an integer option value or the fallback.
func (s *Section) GetInt(option string, fallback int) (int, error) {
	v, ok := s.options[strings.ToLower(option)]
	if !ok {
		return fallback, nil
	}
	iv, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, errors.ConfigError(s.name, option, "not an integer: "+v)
	}
	return iv, nil
}

// GetBool returns a boolean option value or the fallback.
// Accepts 1/true/yes/on and 0/false/no/off.
func (s *Section) GetBool(option string, fallback bool) (bool, error) {
	v, ok := s.options[strings.ToLower(option)]
	if !ok {
		return fallback, nil
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	}
	return false, errors.ConfigError(s.name, option, "not a boolean: "+v)
}
