// Package tagid defines the canonical bike-tag identifier and the day's
// tag context (which tags are regular, oversize, or retired).
package tagid

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/valetops/tagtrack/internal/apperr"
)

// TagID is a canonical tag identifier: 1-3 lowercase letters followed by
// a 1-2 digit number with leading zeros stripped (e.g. "wa3"). The first
// letter encodes the physical tag colour. A TagID is never mutated after
// creation; equality and map keys use the canonical string.
type TagID string

// DefaultIgnoreChars are stripped from raw tag input before matching.
// Operators sometimes key tags wrapped in brackets copied from notes.
const DefaultIgnoreChars = "[]{}()"

var tagPattern = regexp.MustCompile(`^([a-z]{1,3}?)0*([0-9]{1,2})$`)

// Parse normalizes raw into a TagID: strips the ignore set and
// whitespace, lowercases, then checks the structural pattern. Fails with
// apperr.ErrBadSyntax when the cleaned string does not conform.
func Parse(raw, ignoreChars string) (TagID, error) {
	if ignoreChars == "" {
		ignoreChars = DefaultIgnoreChars
	}
	cleaned := strings.Map(func(r rune) rune {
		if strings.ContainsRune(ignoreChars, r) || r == ' ' || r == '\t' {
			return -1
		}
		return r
	}, strings.ToLower(strings.TrimSpace(raw)))

	m := tagPattern.FindStringSubmatch(cleaned)
	if m == nil {
		return "", fmt.Errorf("tag %q: %w", raw, apperr.ErrBadSyntax)
	}
	number := strings.TrimLeft(m[2], "0")
	if number == "" {
		number = "0"
	}
	return TagID(m[1] + number), nil
}

// MustParse is a test helper; it panics on invalid input.
func MustParse(raw string) TagID {
	t, err := Parse(raw, "")
	if err != nil {
		panic(err)
	}
	return t
}

// Colour returns the colour code letter (the first letter of the prefix).
func (t TagID) Colour() string {
	if t == "" {
		return ""
	}
	return string(t[0])
}

// Prefix returns the full letter prefix.
func (t TagID) Prefix() string {
	return strings.TrimRight(string(t), "0123456789")
}

// Number returns the numeric suffix.
func (t TagID) Number() int {
	n := 0
	for _, r := range strings.TrimPrefix(string(t), t.Prefix()) {
		n = n*10 + int(r-'0')
	}
	return n
}

// String implements fmt.Stringer.
func (t TagID) String() string { return string(t) }

// Kind classifies a tag against the day's context.
type Kind int

const (
	KindUnknown Kind = iota
	KindRegular
	KindOversize
	KindRetired
)

// String returns the lowercase kind name as stored in the visits table.
func (k Kind) String() string {
	switch k {
	case KindRegular:
		return "regular"
	case KindOversize:
		return "oversize"
	case KindRetired:
		return "retired"
	default:
		return "unknown"
	}
}

// Context is the day's partition of tag identifiers into disjoint
// regular, oversize, and retired sets, loaded once per day from
// configuration.
type Context struct {
	regular  map[TagID]struct{}
	oversize map[TagID]struct{}
	retired  map[TagID]struct{}
}

// NewContext builds a Context from raw tag lists. Each entry is parsed
// with the given ignore set; a tag appearing in more than one set is an
// error.
func NewContext(regular, oversize, retired []string, ignoreChars string) (*Context, error) {
	ctx := &Context{
		regular:  make(map[TagID]struct{}, len(regular)),
		oversize: make(map[TagID]struct{}, len(oversize)),
		retired:  make(map[TagID]struct{}, len(retired)),
	}

	add := func(raw string, set map[TagID]struct{}, setName string) error {
		tag, err := Parse(raw, ignoreChars)
		if err != nil {
			return fmt.Errorf("%s list: %w", setName, err)
		}
		if ctx.memberOf(tag) != "" {
			return fmt.Errorf("tag %s appears in both %s and %s lists", tag, ctx.memberOf(tag), setName)
		}
		set[tag] = struct{}{}
		return nil
	}

	for _, raw := range regular {
		if err := add(raw, ctx.regular, "regular"); err != nil {
			return nil, err
		}
	}
	for _, raw := range oversize {
		if err := add(raw, ctx.oversize, "oversize"); err != nil {
			return nil, err
		}
	}
	for _, raw := range retired {
		if err := add(raw, ctx.retired, "retired"); err != nil {
			return nil, err
		}
	}
	return ctx, nil
}

func (c *Context) memberOf(tag TagID) string {
	switch {
	case c == nil:
		return ""
	case contains(c.regular, tag):
		return "regular"
	case contains(c.oversize, tag):
		return "oversize"
	case contains(c.retired, tag):
		return "retired"
	default:
		return ""
	}
}

func contains(set map[TagID]struct{}, tag TagID) bool {
	_, ok := set[tag]
	return ok
}

// Classify is a pure lookup: Retired is a classification, not an error.
// Callers decide policy (check-in rejects retired tags, query does not).
func (c *Context) Classify(tag TagID) Kind {
	if c == nil {
		return KindUnknown
	}
	switch {
	case contains(c.retired, tag):
		return KindRetired
	case contains(c.regular, tag):
		return KindRegular
	case contains(c.oversize, tag):
		return KindOversize
	default:
		return KindUnknown
	}
}

// Usable returns every tag a bike could be checked in against, sorted.
func (c *Context) Usable() []TagID {
	out := make([]TagID, 0, len(c.regular)+len(c.oversize))
	for t := range c.regular {
		out = append(out, t)
	}
	for t := range c.oversize {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Members returns the tags of one set, sorted.
func (c *Context) Members(kind Kind) []TagID {
	var set map[TagID]struct{}
	switch kind {
	case KindRegular:
		set = c.regular
	case KindOversize:
		set = c.oversize
	case KindRetired:
		set = c.retired
	default:
		return nil
	}
	out := make([]TagID, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Size returns the number of tags in each set.
func (c *Context) Size() (regular, oversize, retired int) {
	return len(c.regular), len(c.oversize), len(c.retired)
}
