package fixture

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"
)

// Format is a scenario file format.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatCUE  Format = "cue"
)

// FormatOf returns the format of path by extension.
func FormatOf(path string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, true
	case ".cue":
		return FormatCUE, true
	default:
		return "", false
	}
}

// FindScenarioFiles lists scenario files under dir, sorted by path.
// Files and directories starting with "_" are skipped.
func FindScenarioFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if path != dir && strings.HasPrefix(info.Name(), "_") {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if info.IsDir() {
			return nil
		}
		if _, ok := FormatOf(path); ok {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("find scenarios in %s: %w", dir, err)
	}
	return files, nil
}

// LoadFile reads one scenario file.
func LoadFile(path string) (*Scenario, error) {
	format, ok := FormatOf(path)
	if !ok {
		return nil, fmt.Errorf("%s: unsupported scenario format", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}

	s, err := Parse(data, format, path)
	if err != nil {
		return nil, err
	}

	if s.CasesFile != "" {
		sheetPath := s.CasesFile
		if !filepath.IsAbs(sheetPath) {
			sheetPath = filepath.Join(filepath.Dir(path), sheetPath)
		}
		cases, err := LoadSheet(sheetPath, s.CasesSheet, s.Page.Fields)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		s.Cases = append(s.Cases, cases...)
	}
	return s, nil
}

// Parse decodes a scenario. CUE input is evaluated to concrete data first
// and then decoded through the same strict path as YAML, so both formats
// reject unknown keys and keep field order.
func Parse(data []byte, format Format, source string) (*Scenario, error) {
	switch format {
	case FormatYAML:
	case FormatCUE:
		js, err := evalCUE(data, source)
		if err != nil {
			return nil, err
		}
		data = js
	default:
		return nil, fmt.Errorf("%s: unsupported format %q", source, format)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var s Scenario
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("%s: parse scenario: %w", source, err)
	}
	s.Source = source
	if s.Name == "" {
		s.Name = strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	}
	return &s, nil
}

func evalCUE(data []byte, source string) ([]byte, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(source))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("%s: compile cue: %w", source, err)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("%s: cue value is not concrete: %w", source, err)
	}
	js, err := v.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("%s: export cue: %w", source, err)
	}
	return js, nil
}
