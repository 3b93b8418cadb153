package reconcile

import (
	"sort"
	"strings"
	"unicode"

	"magistodl/pkg/config"
)

// Policy holds the matching heuristics. The defaults were tuned against the
// hosting service's file naming and are configuration, not law.
type Policy struct {
	Extensions      []string
	QualitySuffixes []string
	// GenericTitles are compared case-insensitively.
	GenericTitles    []string
	GenericMaxLength int
	TruncateLength   int
	FlexibleMin      int
	FlexibleMax      int
	Boilerplate      []string
}

// PolicyFromConfig builds a Policy; the brand name always counts as
// boilerplate.
func PolicyFromConfig(rc config.ReconcileConfig, brand string) Policy {
	p := Policy{
		GenericMaxLength: rc.GenericMaxLength,
		TruncateLength:   rc.TruncateLength,
		FlexibleMin:      rc.FlexibleMin,
		FlexibleMax:      rc.FlexibleMax,
		QualitySuffixes:  append([]string(nil), rc.QualitySuffixes...),
		Boilerplate:      append([]string(nil), rc.Boilerplate...),
	}
	for _, ext := range rc.Extensions {
		p.Extensions = append(p.Extensions, strings.ToLower(strings.TrimPrefix(ext, ".")))
	}
	for _, g := range rc.GenericTitles {
		p.GenericTitles = append(p.GenericTitles, strings.ToLower(strings.TrimSpace(g)))
	}
	if brand != "" && !contains(p.Boilerplate, brand) {
		p.Boilerplate = append(p.Boilerplate, brand)
	}
	return p
}

// DefaultPolicy is the policy of the default configuration
func DefaultPolicy() Policy {
	cfg := config.DefaultConfig()
	return PolicyFromConfig(cfg.Reconcile, cfg.Site.Brand)
}

// IsBoilerplate reports whether text read from a title element is page
// chrome rather than a title: the brand, the download label, an error page
// marker, a bare number or a time code.
func (p Policy) IsBoilerplate(text string) bool {
	for _, marker := range p.Boilerplate {
		if marker != "" && strings.Contains(text, marker) {
			return true
		}
	}
	if strings.Contains(text, ":") {
		return true
	}
	return isNumeric(text)
}

// IsGeneric reports whether title is a placeholder that cannot tell two
// resources apart.
func (p Policy) IsGeneric(title string) bool {
	t := strings.TrimSpace(title)
	if runeLen(t) <= p.GenericMaxLength {
		return true
	}
	return contains(p.GenericTitles, strings.ToLower(t))
}

// StripQualitySuffixes removes every known quality marker from a file stem,
// longest marker first so _FULL_HD is not left as _FULL.
func (p Policy) StripQualitySuffixes(stem string) string {
	suffixes := make([]string, 0, len(p.QualitySuffixes))
	for _, s := range p.QualitySuffixes {
		if s != "" {
			suffixes = append(suffixes, s)
		}
	}
	sort.SliceStable(suffixes, func(i, j int) bool {
		return len(suffixes[i]) > len(suffixes[j])
	})
	for _, s := range suffixes {
		stem = strings.ReplaceAll(stem, s, "")
	}
	return stem
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func runeLen(s string) int {
	return len([]rune(s))
}

// truncate cuts s to n runes
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
