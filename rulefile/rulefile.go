// Package rulefile loads scanner definitions from declarative rule files.
//
// JSON, YAML and TOML files share one schema:
//
//	initial: INITIAL
//	inclusive: [NUM]
//	nodefault: false
//	conditions:
//	  - name: INITIAL
//	    rules:
//	      - {name: Comment, pattern: '/\*', action: 'push:COMMENT'}
//	      - {name: Ident, pattern: '[a-z]+'}
//	      - {name: whitespace, pattern: '\s+'}
//	  - name: COMMENT
//	    rules:
//	      - {pattern: '\*/', action: pop}
//	      - {pattern: '[^*]+|\*', action: skip}
//
// A rule with "include" set instead of a pattern includes the rules of another
// condition. EBNF grammars are loaded with the ebnf package.
package rulefile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml"
	"gopkg.in/yaml.v2"

	"github.com/pix3l-p33p3r/ft-lex"
	"github.com/pix3l-p33p3r/ft-lex/ebnf"
	"github.com/pix3l-p33p3r/ft-lex/lexer"
)

// Supported formats.
const (
	JSON = "json"
	YAML = "yaml"
	TOML = "toml"
	EBNF = "ebnf"
)

// File is the decoded form of a JSON, YAML or TOML rule file.
type File struct {
	Initial    string      `json:"initial,omitempty" yaml:"initial,omitempty" toml:"initial,omitempty"`
	Inclusive  []string    `json:"inclusive,omitempty" yaml:"inclusive,omitempty" toml:"inclusive,omitempty"`
	NoDefault  bool        `json:"nodefault,omitempty" yaml:"nodefault,omitempty" toml:"nodefault,omitempty"`
	Conditions []Condition `json:"conditions" yaml:"conditions" toml:"conditions"`
}

// Condition is a start condition and its rules, in priority order.
type Condition struct {
	Name  string `json:"name" yaml:"name" toml:"name"`
	Rules []Rule `json:"rules" yaml:"rules" toml:"rules"`
}

// Rule is one pattern and its action, or an include of another condition.
type Rule struct {
	Name    string `json:"name,omitempty" yaml:"name,omitempty" toml:"name,omitempty"`
	Pattern string `json:"pattern,omitempty" yaml:"pattern,omitempty" toml:"pattern,omitempty"`
	Action  string `json:"action,omitempty" yaml:"action,omitempty" toml:"action,omitempty"`
	Include string `json:"include,omitempty" yaml:"include,omitempty" toml:"include,omitempty"`
}

// FormatOf returns the rule file format implied by the extension of path.
func FormatOf(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return JSON, nil
	case ".yaml", ".yml":
		return YAML, nil
	case ".toml":
		return TOML, nil
	case ".ebnf":
		return EBNF, nil
	}
	return "", fmt.Errorf("%s: unknown rule file format", path)
}

// Load reads the rule file at path and builds a Definition from it.
func Load(path string, options ...ftlex.Option) (*ftlex.Definition, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	r, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	def, err := Parse(format, r, options...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return def, nil
}

// Parse reads rules in the given format and builds a Definition from them.
//
// Options are applied after those given by the file itself.
func Parse(format string, r io.Reader, options ...ftlex.Option) (*ftlex.Definition, error) {
	if format == EBNF {
		return ebnf.New(lexer.NameOfReader(r), r, options...)
	}
	file, err := Decode(format, r)
	if err != nil {
		return nil, err
	}
	return file.Definition(options...)
}

// Decode reads a JSON, YAML or TOML rule file.
func Decode(format string, r io.Reader) (*File, error) {
	data, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, err
	}
	file := &File{}
	switch format {
	case JSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(file)
	case YAML:
		err = yaml.UnmarshalStrict(data, file)
	case TOML:
		err = toml.Unmarshal(data, file)
	default:
		return nil, fmt.Errorf("unsupported rule file format %q", format)
	}
	if err != nil {
		return nil, err
	}
	return file, nil
}

// Rules converts the file into ftlex rules and the options it asks for.
func (f *File) Rules() (ftlex.Rules, []ftlex.Option, error) {
	rules := ftlex.Rules{}
	for _, condition := range f.Conditions {
		if condition.Name == "" {
			return nil, nil, fmt.Errorf("start condition without a name")
		}
		if _, ok := rules[condition.Name]; ok {
			return nil, nil, fmt.Errorf("start condition %q defined twice", condition.Name)
		}
		converted := make([]ftlex.Rule, 0, len(condition.Rules))
		for i, rule := range condition.Rules {
			if rule.Include != "" {
				if rule.Pattern != "" || rule.Action != "" {
					return nil, nil, fmt.Errorf("%s.%d: an include has no pattern or action", condition.Name, i)
				}
				converted = append(converted, ftlex.Include(rule.Include))
				continue
			}
			action, err := ParseAction(rule.Action)
			if err != nil {
				return nil, nil, fmt.Errorf("%s.%d: %w", condition.Name, i, err)
			}
			converted = append(converted, ftlex.Rule{Name: rule.Name, Pattern: rule.Pattern, Action: action})
		}
		rules[condition.Name] = converted
	}
	options := []ftlex.Option{}
	if f.Initial != "" {
		options = append(options, ftlex.InitialState(f.Initial))
	}
	if len(f.Inclusive) > 0 {
		options = append(options, ftlex.Inclusive(f.Inclusive...))
	}
	if f.NoDefault {
		options = append(options, ftlex.NoDefault())
	}
	return rules, options, nil
}

// Definition compiles the file.
func (f *File) Definition(options ...ftlex.Option) (*ftlex.Definition, error) {
	rules, fileOptions, err := f.Rules()
	if err != nil {
		return nil, err
	}
	return ftlex.New(rules, append(fileOptions, options...)...)
}
