package schema

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v2"

	"nycsales/pkg/contracts/domain"
)

// AliasRule maps one historical header spelling onto the canonical schema.
// A rule is either a full-match rule (Match + Canonical: the folded header
// that matches Match resolves to Canonical and rule evaluation stops) or a
// rewrite rule (Pattern + Replace: the folded header is transformed and
// evaluation continues with the next rule). Rules apply in table order.
type AliasRule struct {
	Match     string `yaml:"match,omitempty"`
	Canonical string `yaml:"canonical,omitempty"`
	Pattern   string `yaml:"pattern,omitempty"`
	Replace   string `yaml:"replace,omitempty"`

	matchRE   *regexp.Regexp
	patternRE *regexp.Regexp
}

// AliasTable resolves observed header labels to canonical column names. The
// table is data, not code: new spreadsheet vintages are handled by adding
// rules, never by touching the reconciler.
type AliasTable struct {
	Rules []AliasRule `yaml:"rules"`

	canonical map[string]bool
}

// DefaultAliasTable returns the built-in rules covering every header variant
// observed in the rolling-sales files published since 2015: the hyphenated
// and concatenated EASEMENT spellings, the "AS OF FINAL ROLL" tax and
// building class columns, the split APARTMENT NUMBER header, and collapsed
// spaces around UNITS and SQUARE FEET.
func DefaultAliasTable() *AliasTable {
	t := &AliasTable{
		Rules: []AliasRule{
			{Match: `EASE-?MENT`, Canonical: domain.ColEasement},
			{Match: `TAX CLASS AS OF.*`, Canonical: domain.ColTaxClassPresent},
			{Match: `BUILDING CLASS AS OF.*`, Canonical: domain.ColBuildingClassPresent},
			{Match: `APART ?MENT ?NUMBER`, Canonical: domain.ColApartmentNumber},
			{Pattern: `\s*UNITS$`, Replace: " UNITS"},
			{Pattern: `\s*SQUARE\s*FEET$`, Replace: " SQUARE FEET"},
			{Pattern: `BUILDING CLASS\s*AT TIME OF SALE`, Replace: "BUILDING CLASS AT TIME OF SALE"},
			{Pattern: `SALE\s*PRICE$`, Replace: "SALE PRICE"},
			{Pattern: `SALE\s*DATE$`, Replace: "SALE DATE"},
		},
	}
	if err := t.compile(); err != nil {
		// Built-in rules are constants; a compile failure is a programming
		// error, not an input condition.
		panic(fmt.Sprintf("schema: default alias table invalid: %v", err))
	}
	return t
}

// LoadAliasTable reads an alias table from a YAML file and appends the rules
// to the built-in defaults, so a site-local file only needs the variants the
// defaults miss.
func LoadAliasTable(path string) (*AliasTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read alias table %s: %w", path, err)
	}

	var loaded AliasTable
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("parse alias table %s: %w", path, err)
	}

	table := DefaultAliasTable()
	table.Rules = append(table.Rules, loaded.Rules...)
	if err := table.compile(); err != nil {
		return nil, fmt.Errorf("alias table %s: %w", path, err)
	}
	return table, nil
}

// compile validates every rule and prepares its matcher. Full-match rules
// are anchored so `EASE-?MENT` cannot match inside a longer label.
func (t *AliasTable) compile() error {
	t.canonical = make(map[string]bool, len(domain.CanonicalColumns()))
	for _, col := range domain.CanonicalColumns() {
		t.canonical[col] = true
	}

	for i := range t.Rules {
		rule := &t.Rules[i]
		switch {
		case rule.Match != "" && rule.Canonical != "":
			if !t.canonical[rule.Canonical] {
				return fmt.Errorf("rule %d: %q is not a canonical column", i, rule.Canonical)
			}
			re, err := regexp.Compile(`^(?:` + rule.Match + `)$`)
			if err != nil {
				return fmt.Errorf("rule %d: invalid match pattern %q: %w", i, rule.Match, err)
			}
			rule.matchRE = re
		case rule.Pattern != "":
			re, err := regexp.Compile(rule.Pattern)
			if err != nil {
				return fmt.Errorf("rule %d: invalid rewrite pattern %q: %w", i, rule.Pattern, err)
			}
			rule.patternRE = re
		default:
			return fmt.Errorf("rule %d: needs either match+canonical or pattern+replace", i)
		}
	}
	return nil
}

// Fold normalizes a raw header cell before alias resolution: trim, collapse
// every whitespace run (embedded newlines included) to one space, uppercase.
func Fold(label string) string {
	return strings.ToUpper(strings.Join(strings.Fields(label), " "))
}

// Resolve maps an observed header label to its canonical column name. The
// second return is false when no folding or rule lands the label on the
// canonical schema.
func (t *AliasTable) Resolve(label string) (string, bool) {
	folded := Fold(label)
	if folded == "" {
		return "", false
	}

	for i := range t.Rules {
		rule := &t.Rules[i]
		if rule.matchRE != nil {
			if rule.matchRE.MatchString(folded) {
				return rule.Canonical, true
			}
			continue
		}
		folded = rule.patternRE.ReplaceAllString(folded, rule.Replace)
		folded = strings.TrimSpace(folded)
	}

	if t.canonical[folded] {
		return folded, true
	}
	return "", false
}
