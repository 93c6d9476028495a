// Package urls classifies, names and canonicalizes the URLs participants
// visited. Every function here is pure given its loaded tables.
package urls

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Sentinel labels.
const (
	BrowserPage  = "Browser page"
	Unclassified = "Unclassified"
)

// Label describes what a participant would find at a URL.
type Label struct {
	Name     string
	Project  string
	Target   string
	Domain   string
	Redirect bool
	Types    []string
}

// Classifier maps a URL to a label. The boolean is false when the URL is not
// covered by the classifier's table.
type Classifier interface {
	Classify(rawURL string) (Label, bool)
}

// Patterns is a list of regular expressions. In YAML it may be written as a
// single string or as a list of strings.
type Patterns []string

// UnmarshalYAML normalizes a scalar pattern into a one-element list.
func (p *Patterns) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		*p = Patterns{value.Value}
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := value.Decode(&list); err != nil {
			return err
		}
		*p = Patterns(list)
		return nil
	default:
		return fmt.Errorf("line %d: path must be a string or a list of strings", value.Line)
	}
}

// LabelRule assigns Name to URLs on Domain whose path matches one of Path and,
// when set, whose fragment matches Fragment.
type LabelRule struct {
	Name     string   `yaml:"name"`
	Domain   string   `yaml:"domain"`
	Path     Patterns `yaml:"path"`
	Fragment string   `yaml:"fragment"`
	Project  string   `yaml:"project"`
	Target   string   `yaml:"target"`
	Redirect bool     `yaml:"redirect"`

	domain   *regexp.Regexp
	paths    []*regexp.Regexp
	fragment *regexp.Regexp
}

// DomainRule names a domain. Subdomains of Domain share its name.
type DomainRule struct {
	Domain string `yaml:"domain"`
	Name   string `yaml:"name"`

	pattern *regexp.Regexp
}

// RuleSet is an ordered, compiled table of label and domain rules.
type RuleSet struct {
	Domains []DomainRule `yaml:"domains"`
	Labels  []LabelRule  `yaml:"labels"`
}

//go:embed default_rules.yaml
var defaultRules []byte

// DefaultRuleSet returns the built-in rule table.
func DefaultRuleSet() *RuleSet {
	rs, err := ParseRuleSet(defaultRules)
	if err != nil {
		panic(fmt.Sprintf("urls: built-in rules: %v", err))
	}
	return rs
}

// LoadRuleSet reads and compiles a YAML rule file.
func LoadRuleSet(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rules file: %w", err)
	}
	rs, err := ParseRuleSet(data)
	if err != nil {
		return nil, fmt.Errorf("rules file %s: %w", path, err)
	}
	return rs, nil
}

// ParseRuleSet decodes and compiles a YAML rule table.
func ParseRuleSet(data []byte) (*RuleSet, error) {
	var rs RuleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("parsing rules: %w", err)
	}
	if err := rs.compile(); err != nil {
		return nil, err
	}
	return &rs, nil
}

func (rs *RuleSet) compile() error {
	for i := range rs.Domains {
		d := &rs.Domains[i]
		if d.Domain == "" || d.Name == "" {
			return fmt.Errorf("domain rule %d: domain and name are required", i)
		}
		d.pattern = regexp.MustCompile(`^(www\.)?(.*\.)?` + regexp.QuoteMeta(d.Domain) + `$`)
	}

	for i := range rs.Labels {
		l := &rs.Labels[i]
		if l.Name == "" || l.Domain == "" {
			return fmt.Errorf("label rule %d: name and domain are required", i)
		}
		if len(l.Path) == 0 {
			return fmt.Errorf("label rule %q: at least one path pattern is required", l.Name)
		}
		l.domain = regexp.MustCompile(`^(www\.)?` + regexp.QuoteMeta(l.Domain) + `$`)
		for _, p := range l.Path {
			re, err := regexp.Compile(p)
			if err != nil {
				return fmt.Errorf("label rule %q: path %q: %w", l.Name, p, err)
			}
			l.paths = append(l.paths, re)
		}
		if l.Fragment != "" {
			re, err := regexp.Compile(`^(?:` + l.Fragment + `)`)
			if err != nil {
				return fmt.Errorf("label rule %q: fragment %q: %w", l.Name, l.Fragment, err)
			}
			l.fragment = re
		}
	}
	return nil
}

func (l *LabelRule) matches(u *url.URL) bool {
	if !l.domain.MatchString(u.Host) {
		return false
	}
	path := strings.TrimPrefix(u.Path, "/")
	for _, re := range l.paths {
		if !re.MatchString(path) {
			continue
		}
		if l.fragment == nil || l.fragment.MatchString(u.Fragment) {
			return true
		}
	}
	return false
}

// Classify returns the first label rule matching rawURL. about: pages are
// always BrowserPage.
func (rs *RuleSet) Classify(rawURL string) (Label, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Label{}, false
	}
	if u.Scheme == "about" {
		return Label{Name: BrowserPage}, true
	}
	for i := range rs.Labels {
		l := &rs.Labels[i]
		if l.matches(u) {
			return Label{
				Name:     l.Name,
				Project:  l.Project,
				Target:   l.Target,
				Domain:   rs.domainName(u.Host),
				Redirect: l.Redirect,
			}, true
		}
	}
	return Label{}, false
}

// DomainName returns the name of the first domain rule matching the host of
// rawURL, or Unclassified.
func (rs *RuleSet) DomainName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Unclassified
	}
	return rs.domainName(u.Host)
}

func (rs *RuleSet) domainName(host string) string {
	for _, d := range rs.Domains {
		if d.pattern.MatchString(host) {
			return d.Name
		}
	}
	return Unclassified
}

var builtin = DefaultRuleSet()

// DomainName names the domain of rawURL using the built-in table.
func DomainName(rawURL string) string {
	return builtin.DomainName(rawURL)
}

// PageType is one entry of a hand-coded page type table.
type PageType struct {
	MainType string   `json:"main_type"`
	Redirect bool     `json:"redirect"`
	Types    []string `json:"types"`
}

// Lookup classifies URLs from a page type table keyed by URL. URLs missing
// from the table are retried by their canonical form.
type Lookup struct {
	byURL       map[string]PageType
	byCanonical map[string]PageType
}

// LoadLookup reads a JSON page type table of the form
// {"<url>": {"main_type": "...", "redirect": false, "types": ["..."]}}.
func LoadLookup(path string) (*Lookup, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading page types file: %w", err)
	}
	var table map[string]PageType
	if err := json.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("parsing page types file %s: %w", path, err)
	}
	return NewLookup(table), nil
}

// NewLookup indexes table by raw and canonical URL. When several raw URLs
// share a canonical form, the lexically smallest one wins.
func NewLookup(table map[string]PageType) *Lookup {
	keys := make([]string, 0, len(table))
	for k := range table {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	l := &Lookup{
		byURL:       make(map[string]PageType, len(table)),
		byCanonical: make(map[string]PageType, len(table)),
	}
	for _, k := range keys {
		l.byURL[k] = table[k]
		c := Canonicalize(k)
		if _, seen := l.byCanonical[c]; !seen {
			l.byCanonical[c] = table[k]
		}
	}
	return l
}

// Len returns the number of URLs in the table.
func (l *Lookup) Len() int {
	return len(l.byURL)
}

// Classify returns the page type recorded for rawURL.
func (l *Lookup) Classify(rawURL string) (Label, bool) {
	pt, ok := l.byURL[rawURL]
	if !ok {
		pt, ok = l.byCanonical[Canonicalize(rawURL)]
	}
	if !ok {
		return Label{}, false
	}
	return Label{
		Name:     pt.MainType,
		Domain:   DomainName(rawURL),
		Redirect: pt.Redirect,
		Types:    pt.Types,
	}, true
}
