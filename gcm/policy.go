package gcm

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
)

// alignRule pairs a glob pattern with a power-of-two alignment. Rules
// are consulted in order; the first matching pattern wins.
type alignRule struct {
	pattern   string
	alignment uint32
}

// PlacementPolicy answers "where may this file go": a first-match-wins
// alignment table keyed by glob, an exact-path explicit offset table and
// a glob exclusion table.
//
// Globs follow fnmatch semantics: '*' matches any run of characters
// including '/', '?' matches a single character, and matching is
// case-insensitive. Patterns are applied to the node's full tree path.
type PlacementPolicy struct {
	alignments []alignRule
	locations  map[string]uint64
	excluded   []string

	globCache map[string]*regexp.Regexp
}

// NewPlacementPolicy returns an empty policy: default alignment for
// everything, no overrides, no exclusions.
func NewPlacementPolicy() *PlacementPolicy {
	return &PlacementPolicy{
		locations: make(map[string]uint64),
		globCache: make(map[string]*regexp.Regexp),
	}
}

// AddAlignment appends an alignment rule. Values that are not powers of
// two are rounded up to the next power of two.
func (p *PlacementPolicy) AddAlignment(pattern string, alignment uint32) {
	if alignment == 0 {
		alignment = DefaultAlignment
	}
	p.alignments = append(p.alignments, alignRule{pattern, nextPow2(alignment)})
}

// SetOffset pins an exact path to an absolute byte offset.
func (p *PlacementPolicy) SetOffset(path string, offset uint64) {
	p.locations[path] = offset
}

// AddExclusion appends an exclusion glob.
func (p *PlacementPolicy) AddExclusion(pattern string) {
	p.excluded = append(p.excluded, pattern)
}

// AlignmentFor returns the alignment of the first rule matching path, or
// the default of 4.
func (p *PlacementPolicy) AlignmentFor(path string) uint32 {
	for _, rule := range p.alignments {
		if p.matchGlob(rule.pattern, path) {
			return rule.alignment
		}
	}
	return DefaultAlignment
}

// OffsetFor returns the explicit offset pinned for path. Exact-path
// lookup only, no globbing.
func (p *PlacementPolicy) OffsetFor(path string) (uint64, bool) {
	off, ok := p.locations[path]
	return off, ok
}

// IsExcluded reports whether any exclusion glob matches path.
func (p *PlacementPolicy) IsExcluded(path string) bool {
	for _, pattern := range p.excluded {
		if p.matchGlob(pattern, path) {
			return true
		}
	}
	return false
}

// RegenerateFrom rebuilds all three tables from the final state of a
// tree: alignment only where it differs from the default, location only
// for manually pinned files, exclusion for every inactive node. This is
// the inverse of loading and is what gets persisted after an extract so
// a later rebuild reproduces the same placement.
func (p *PlacementPolicy) RegenerateFrom(root *Node) {
	p.alignments = nil
	p.locations = make(map[string]uint64)
	p.excluded = nil

	_ = root.Walk(false, func(n *Node) error {
		if n.IsFile() {
			if a := n.Alignment(); a != DefaultAlignment {
				p.AddAlignment(n.Path(), a)
			}
			if n.Pinned() {
				if off, ok := n.Offset(); ok {
					p.locations[n.Path()] = off
				}
			}
		}
		if !n.Active() {
			p.excluded = append(p.excluded, n.Path())
		}
		return nil
	})
	sortAlignRules(p.alignments)
	sort.Strings(p.excluded)
}

// matchGlob matches path against an fnmatch-style pattern.
func (p *PlacementPolicy) matchGlob(pattern, path string) bool {
	re, ok := p.globCache[pattern]
	if !ok {
		re = compileGlob(pattern)
		if p.globCache == nil {
			p.globCache = make(map[string]*regexp.Regexp)
		}
		p.globCache[pattern] = re
	}
	if re == nil {
		return false
	}
	return re.MatchString(path)
}

// compileGlob translates an fnmatch pattern into an anchored regexp.
// Unlike path.Match, '*' crosses path separators, which is what sidecar
// configs written against the original tooling expect.
func compileGlob(pattern string) *regexp.Regexp {
	var sb strings.Builder
	sb.WriteString(`(?i)\A`)
	for _, r := range strings.TrimSpace(pattern) {
		switch r {
		case '*':
			sb.WriteString(`.*`)
		case '?':
			sb.WriteString(`.`)
		default:
			sb.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	sb.WriteString(`\z`)
	re, err := regexp.Compile(sb.String())
	if err != nil {
		return nil
	}
	return re
}

// sortAlignRules orders rules by pattern so regenerated policies are
// deterministic regardless of walk details.
func sortAlignRules(rules []alignRule) {
	sort.SliceStable(rules, func(i, j int) bool {
		return rules[i].pattern < rules[j].pattern
	})
}

// Config is the persisted sidecar (sys/.config.json). It couples the
// boot header's identity fields with the three placement tables.
type Config struct {
	GameName  string            `json:"gamename"`
	GameID    string            `json:"gameid"`
	DiskID    uint8             `json:"diskid"`
	Version   uint8             `json:"version"`
	Alignment map[string]uint32 `json:"alignment"`
	Location  map[string]uint64 `json:"location"`
	Exclude   []string          `json:"exclude"`
}

// Policy materializes the config's placement tables. Alignment rules are
// ordered by sorted pattern, matching how the original persisted them.
func (c *Config) Policy() *PlacementPolicy {
	p := NewPlacementPolicy()
	patterns := make([]string, 0, len(c.Alignment))
	for pattern := range c.Alignment {
		patterns = append(patterns, pattern)
	}
	sort.Strings(patterns)
	for _, pattern := range patterns {
		p.AddAlignment(pattern, c.Alignment[pattern])
	}
	for path, off := range c.Location {
		p.SetOffset(path, off)
	}
	for _, pattern := range c.Exclude {
		p.AddExclusion(pattern)
	}
	return p
}

// SetPolicy stores the policy's tables back into the config.
func (c *Config) SetPolicy(p *PlacementPolicy) {
	c.Alignment = make(map[string]uint32, len(p.alignments))
	for _, rule := range p.alignments {
		c.Alignment[rule.pattern] = rule.alignment
	}
	c.Location = make(map[string]uint64, len(p.locations))
	for path, off := range p.locations {
		c.Location[path] = off
	}
	c.Exclude = append([]string(nil), p.excluded...)
}

// LoadConfig reads a sidecar config from path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %q: %w", path, err)
	}
	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %q: %w", path, err)
	}
	return cfg, nil
}

// Save writes the sidecar config to path. Map keys are emitted sorted,
// keeping repeated saves byte-stable.
func (c *Config) Save(path string) error {
	if c.Alignment == nil {
		c.Alignment = map[string]uint32{}
	}
	if c.Location == nil {
		c.Location = map[string]uint64{}
	}
	if c.Exclude == nil {
		c.Exclude = []string{}
	}
	data, err := json.MarshalIndent(c, "", "    ")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing config %q: %w", path, err)
	}
	return nil
}
