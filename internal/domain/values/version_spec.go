package values

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// SpecKind discriminates the variants of an UnresolvedSpec or ResolvedSpec.
// Grounded on UnresolvedVersionSpec in original_source/crates/version-spec.
type SpecKind string

const (
	KindCanary     SpecKind = "canary"
	KindAlias      SpecKind = "alias"
	KindRequirement SpecKind = "requirement"
	KindRequirementAny SpecKind = "requirement-any"
	KindCalendar   SpecKind = "calendar"
	KindSemantic   SpecKind = "semantic"
)

// UnresolvedSpec is a version specification as written by a user: it may
// still contain ranges, disjunctions, or aliases that require resolution
// against a manifest before becoming a ResolvedSpec.
type UnresolvedSpec struct {
	Kind         SpecKind
	Alias        string
	Requirement  *semver.Constraints
	RequirementAny []*semver.Constraints
	// raw text is retained for each requirement/requirement-any member so
	// Format can round-trip without re-deriving Masterminds' own rendering,
	// which does not always match the input literally.
	requirementText    string
	requirementAnyText []string
	Calendar           CalVer
	Semantic           *semver.Version
}

// ResolvedSpec is a version specification that is fully qualified: it
// denotes exactly one install target (or the canary channel). Resolution
// never produces a Requirement or RequirementAny form (spec.md §3).
type ResolvedSpec struct {
	Kind     SpecKind
	Alias    string
	Calendar CalVer
	Semantic *semver.Version
}

var (
	aliasPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_./*-]*$`)
	calverPattern = regexp.MustCompile(`^\d{1,4}(-\d{1,2}(-\d{1,2})?)?(-[0-9A-Za-z.]+)?(\+[0-9A-Za-z.]+)?$`)
)

// comparatorPrefixes begin a VersionReq per the parsing rules in spec.md §3.
var comparatorPrefixes = []byte{'=', '^', '~', '>', '<', '*'}

// ParseUnresolvedSpec parses a raw version string into an UnresolvedSpec,
// applying the precedence rules of spec.md §3 in order: literal "canary";
// alias; "||" disjunction (requirement-any, sorted highest-first);
// conjunctive "," requirement; leading comparator; calver; semver;
// otherwise a tilde-range of the partial value.
func ParseUnresolvedSpec(raw string) (UnresolvedSpec, error) {
	value := strings.TrimSpace(raw)
	value = strings.TrimPrefix(value, "v")
	value = strings.ReplaceAll(value, ".*", "")

	if value == "canary" {
		return UnresolvedSpec{Kind: KindCanary}, nil
	}

	if isAliasName(value) {
		return UnresolvedSpec{Kind: KindAlias, Alias: value}, nil
	}

	if strings.Contains(value, "||") {
		parts := strings.Split(value, "||")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		// Sort highest-first by the version each part references (a "human"
		// natural-order compare, not a byte-wise one) so RequirementAny
		// evaluation (spec.md §4.4 step 5) returns the first match in
		// priority order.
		sort.SliceStable(parts, func(i, j int) bool {
			return naturalCompare(parts[i], parts[j]) > 0
		})

		reqs := make([]*semver.Constraints, 0, len(parts))
		for _, p := range parts {
			c, err := semver.NewConstraint(p)
			if err != nil {
				return UnresolvedSpec{}, fmt.Errorf("parsing requirement %q: %w", p, err)
			}
			reqs = append(reqs, c)
		}
		return UnresolvedSpec{Kind: KindRequirementAny, RequirementAny: reqs, requirementAnyText: parts}, nil
	}

	if strings.Contains(value, ",") {
		c, err := semver.NewConstraint(value)
		if err != nil {
			return UnresolvedSpec{}, fmt.Errorf("parsing requirement %q: %w", value, err)
		}
		return UnresolvedSpec{Kind: KindRequirement, Requirement: c, requirementText: value}, nil
	}

	if len(value) > 0 && hasComparatorPrefix(value[0]) {
		c, err := semver.NewConstraint(value)
		if err != nil {
			return UnresolvedSpec{}, fmt.Errorf("parsing requirement %q: %w", value, err)
		}
		return UnresolvedSpec{Kind: KindRequirement, Requirement: c, requirementText: value}, nil
	}

	if calverPattern.MatchString(value) && strings.Contains(value, "-") && looksLikeCalver(value) {
		cv, err := ParseCalVer(value)
		if err != nil {
			return UnresolvedSpec{}, err
		}
		return UnresolvedSpec{Kind: KindCalendar, Calendar: cv}, nil
	}

	if v, err := semver.NewVersion(value); err == nil && dotCount(value) >= 2 {
		return UnresolvedSpec{Kind: KindSemantic, Semantic: v}, nil
	}

	tilde := "~" + value
	c, err := semver.NewConstraint(tilde)
	if err != nil {
		return UnresolvedSpec{}, fmt.Errorf("parsing %q as partial requirement: %w", raw, err)
	}
	return UnresolvedSpec{Kind: KindRequirement, Requirement: c, requirementText: tilde}, nil
}

func dotCount(s string) int {
	return strings.Count(s, ".")
}

// naturalCompare compares two version-like strings (possibly prefixed with
// a comparator such as "^", "~", "=") by splitting each into runs of digits
// and non-digits and comparing digit runs numerically. This mirrors the
// "human sort" used to order a requirement-any disjunction highest-first.
// The leading comparator token is stripped from each side first: it marks
// how the version is matched, not what version it is, and left in place it
// would decide the whole comparison by comparator character (e.g. "=" <
// "^" < "~") before the actual version digits are ever reached.
func naturalCompare(a, b string) int {
	at, bt := tokenize(stripComparatorPrefix(a)), tokenize(stripComparatorPrefix(b))
	for i := 0; i < len(at) || i < len(bt); i++ {
		var ta, tb string
		if i < len(at) {
			ta = at[i]
		}
		if i < len(bt) {
			tb = bt[i]
		}
		if ta == tb {
			continue
		}
		na, aIsNum := parseNum(ta)
		nb, bIsNum := parseNum(tb)
		if aIsNum && bIsNum {
			if na != nb {
				return na - nb
			}
			continue
		}
		if ta < tb {
			return -1
		}
		return 1
	}
	return 0
}

func tokenize(s string) []string {
	var tokens []string
	var cur strings.Builder
	var curIsDigit bool
	for i, r := range s {
		isDigit := r >= '0' && r <= '9'
		if i > 0 && isDigit != curIsDigit {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
		cur.WriteRune(r)
		curIsDigit = isDigit
	}
	if cur.Len() > 0 {
		tokens = append(tokens, cur.String())
	}
	return tokens
}

func parseNum(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

func hasComparatorPrefix(b byte) bool {
	for _, p := range comparatorPrefixes {
		if b == p {
			return true
		}
	}
	return false
}

// stripComparatorPrefix removes a leading run of comparator characters
// (and any whitespace immediately after) from a requirement string, e.g.
// "^1" -> "1", ">=2.0" -> "2.0", leaving the version it actually refers to.
func stripComparatorPrefix(s string) string {
	i := 0
	for i < len(s) && hasComparatorPrefix(s[i]) {
		i++
	}
	return strings.TrimSpace(s[i:])
}

// isAliasName reports whether value looks like an alias rather than a
// version expression: alphanumeric-leading, containing only word
// characters plus "- _ / . *".
func isAliasName(value string) bool {
	if value == "" {
		return false
	}
	if hasComparatorPrefix(value[0]) {
		return false
	}
	if value[0] >= '0' && value[0] <= '9' {
		return false
	}
	return aliasPattern.MatchString(value)
}

// looksLikeCalver disambiguates "2024-01-15" (calver) from a dotted semver
// with a prerelease tag; calver's top-level separator is '-', not '.'.
func looksLikeCalver(value string) bool {
	head := value
	if i := strings.IndexAny(value, "+"); i >= 0 {
		head = value[:i]
	}
	segments := strings.Split(head, "-")
	if len(segments) == 0 {
		return false
	}
	_, err := strconv.Atoi(segments[0])
	return err == nil && len(segments[0]) >= 1 && len(segments[0]) <= 4
}

// Format renders the UnresolvedSpec back to its canonical string form. For
// all variants, ParseUnresolvedSpec(spec.Format()) == spec (spec.md §8,
// invariant 1).
func (s UnresolvedSpec) Format() string {
	switch s.Kind {
	case KindCanary:
		return "canary"
	case KindAlias:
		return s.Alias
	case KindRequirement:
		return s.requirementText
	case KindRequirementAny:
		return strings.Join(s.requirementAnyText, " || ")
	case KindCalendar:
		return s.Calendar.String()
	case KindSemantic:
		return s.Semantic.String()
	default:
		return ""
	}
}

// IsCanary reports whether this spec denotes the canary channel, either
// directly or via the "canary" alias.
func (s UnresolvedSpec) IsCanary() bool {
	return s.Kind == KindCanary || (s.Kind == KindAlias && s.Alias == "canary")
}

// IsLatest reports whether this spec is the "latest" alias.
func (s UnresolvedSpec) IsLatest() bool {
	return s.Kind == KindAlias && s.Alias == "latest"
}

// Format renders a ResolvedSpec back to its canonical string form.
func (s ResolvedSpec) Format() string {
	switch s.Kind {
	case KindCanary:
		return "canary"
	case KindAlias:
		return s.Alias
	case KindCalendar:
		return s.Calendar.String()
	case KindSemantic:
		return s.Semantic.String()
	default:
		return ""
	}
}

// ToUnresolved lifts a ResolvedSpec back into the UnresolvedSpec space,
// used when persisting a resolved pin back into a `.prototools` file.
func (s ResolvedSpec) ToUnresolved() UnresolvedSpec {
	return UnresolvedSpec{
		Kind:     s.Kind,
		Alias:    s.Alias,
		Calendar: s.Calendar,
		Semantic: s.Semantic,
	}
}

// Equal reports value equality between two resolved specs.
func (s ResolvedSpec) Equal(o ResolvedSpec) bool {
	if s.Kind != o.Kind {
		return false
	}
	switch s.Kind {
	case KindAlias:
		return s.Alias == o.Alias
	case KindCalendar:
		return s.Calendar.String() == o.Calendar.String()
	case KindSemantic:
		return s.Semantic != nil && o.Semantic != nil && s.Semantic.Equal(o.Semantic)
	default:
		return true
	}
}
