package alias

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"golang.org/x/text/unicode/norm"
)

// SourceBuiltin is reported by Table.Source for the default table.
const SourceBuiltin = "builtin"

var errEmpty = errors.New("no alias entries")

// Entry is one canonical map and the aliases that resolve to it.
type Entry struct {
	DisplayName string   `json:"display_name"`
	Aliases     []string `json:"aliases"`
}

// Table maps user queries onto canonical display names.
// A Table is read-only once built and safe for concurrent use.
type Table struct {
	entries []Entry
	index   map[string]string // normalised alias or display name -> display name
	source  string
}

// ConfigLoadError reports why an alias file could not be used. It is never
// fatal: Load returns the built-in table alongside it.
type ConfigLoadError struct {
	Path string
	Err  error
}

func (e *ConfigLoadError) Error() string {
	return fmt.Sprintf("alias: load %q: %v (using built-in table)", e.Path, e.Err)
}

func (e *ConfigLoadError) Unwrap() error { return e.Err }

// builtin is the curated table used when no alias file is available.
var builtin = []Entry{
	{DisplayName: "海关", Aliases: []string{"customs", "hg"}},
	{DisplayName: "森林", Aliases: []string{"woods", "sl", "树林"}},
	{DisplayName: "立交桥", Aliases: []string{"interchange", "ljq", "商场"}},
	{DisplayName: "海岸线", Aliases: []string{"shoreline", "hx", "疗养院", "海滨"}},
	{DisplayName: "灯塔", Aliases: []string{"lighthouse", "dt"}},
	{DisplayName: "街区", Aliases: []string{"streets", "jq", "街道"}},
	{DisplayName: "工厂", Aliases: []string{"factory", "gc"}},
	{DisplayName: "储备站", Aliases: []string{"reserve", "cbz", "军事基地"}},
	{DisplayName: "实验室", Aliases: []string{"lab", "sys"}},
}

// Default returns the built-in table of the nine canonical maps.
func Default() *Table {
	t := build(builtin)
	t.source = SourceBuiltin
	return t
}

// Load reads the alias file at path. When the file is missing, unreadable or
// holds no entries, Load returns the built-in table together with a
// *ConfigLoadError; the returned table is always usable.
func Load(path string) (*Table, error) {
	if path == "" {
		return Default(), &ConfigLoadError{Path: path, Err: os.ErrNotExist}
	}
	f, err := os.Open(path)
	if err != nil {
		return Default(), &ConfigLoadError{Path: path, Err: err}
	}
	defer f.Close()

	t, err := Parse(f)
	if err != nil {
		return Default(), &ConfigLoadError{Path: path, Err: err}
	}
	if t.Len() == 0 {
		return Default(), &ConfigLoadError{Path: path, Err: errEmpty}
	}
	t.source = path
	return t, nil
}

// Parse reads "display_name | alias1, alias2" records from r. Blank lines and
// lines starting with '#' are skipped. A line without '|' declares a display
// name with no extra aliases. A repeated display name replaces the aliases of
// the earlier line.
func Parse(r io.Reader) (*Table, error) {
	var entries []Entry
	pos := make(map[string]int)

	sc := bufio.NewScanner(r)
	first := true
	for sc.Scan() {
		line := sc.Text()
		if first {
			line = strings.TrimPrefix(line, "\ufeff")
			first = false
		}
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		name, rest, _ := strings.Cut(line, "|")
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		var aliases []string
		for _, a := range strings.Split(rest, ",") {
			if a = strings.TrimSpace(a); a != "" {
				aliases = append(aliases, strings.ToLower(a))
			}
		}

		if i, ok := pos[name]; ok {
			entries[i].Aliases = aliases
			continue
		}
		pos[name] = len(entries)
		entries = append(entries, Entry{DisplayName: name, Aliases: aliases})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("alias: scan: %w", err)
	}
	return build(entries), nil
}

func build(entries []Entry) *Table {
	t := &Table{
		entries: make([]Entry, len(entries)),
		index:   make(map[string]string),
	}
	for i, e := range entries {
		t.entries[i] = Entry{DisplayName: e.DisplayName, Aliases: append([]string(nil), e.Aliases...)}
		// First structural match wins, so never overwrite an earlier key.
		for _, key := range append([]string{e.DisplayName}, e.Aliases...) {
			k := normalize(key)
			if _, taken := t.index[k]; !taken && k != "" {
				t.index[k] = e.DisplayName
			}
		}
	}
	return t
}

// normalize folds width variants (NFKC) and case so that "ＣＵＳＴＯＭＳ",
// "CUSTOMS" and "customs" share one key.
func normalize(s string) string {
	return strings.ToLower(norm.NFKC.String(strings.TrimSpace(s)))
}

// Resolve returns the display name that query refers to. The match is
// case-insensitive and a display name always resolves to itself.
func (t *Table) Resolve(query string) (string, bool) {
	name, ok := t.index[normalize(query)]
	return name, ok
}

// Suggest returns up to n display names whose name or aliases fuzzily match
// query, best match first.
func (t *Table) Suggest(query string, n int) []string {
	q := normalize(query)
	if q == "" || n <= 0 {
		return nil
	}

	var targets, owners []string
	for _, e := range t.entries {
		for _, key := range append([]string{e.DisplayName}, e.Aliases...) {
			targets = append(targets, normalize(key))
			owners = append(owners, e.DisplayName)
		}
	}

	ranks := fuzzy.RankFindFold(q, targets)
	sort.Stable(ranks)

	seen := make(map[string]bool)
	var out []string
	for _, r := range ranks {
		name := owners[r.OriginalIndex]
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
		if len(out) == n {
			break
		}
	}
	return out
}

// Entries returns the table contents in file order.
func (t *Table) Entries() []Entry {
	out := make([]Entry, len(t.entries))
	for i, e := range t.entries {
		out[i] = Entry{DisplayName: e.DisplayName, Aliases: append([]string(nil), e.Aliases...)}
	}
	return out
}

// Len returns the number of display names in the table.
func (t *Table) Len() int { return len(t.entries) }

// Source is the file the table was loaded from, or SourceBuiltin.
func (t *Table) Source() string { return t.source }

// Holder publishes the current Table to concurrent readers. Store swaps the
// table atomically, so a reader sees either the old or the new table.
type Holder struct {
	p atomic.Pointer[Table]
}

// NewHolder returns a Holder serving t.
func NewHolder(t *Table) *Holder {
	h := &Holder{}
	h.p.Store(t)
	return h
}

// Load returns the current table.
func (h *Holder) Load() *Table { return h.p.Load() }

// Store replaces the current table.
func (h *Holder) Store(t *Table) { h.p.Store(t) }
