package middleware

import (
	"context"
	"fmt"
	"regexp"

	"github.com/aretw0/guidance/pkg/domain"
	"github.com/aretw0/guidance/pkg/ports"
)

// Mask replaces the value of every sensitive key.
const Mask = "***"

type piiArchiver struct {
	next     ports.Archiver
	patterns []*regexp.Regexp
}

// CompilePatterns compiles key patterns, reporting the first invalid one.
func CompilePatterns(patternStrings []string) ([]*regexp.Regexp, error) {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid pii pattern %q: %w", p, err)
		}
		patterns[i] = re
	}
	return patterns, nil
}

// NewPIIMiddleware creates an archive middleware that masks values of keys
// matching the patterns, in both the fields and the audit data.
// The live session handed to Archive is never modified.
func NewPIIMiddleware(patternStrings []string) ArchiveMiddleware {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		patterns[i] = regexp.MustCompile(p)
	}
	return func(next ports.Archiver) ports.Archiver {
		return &piiArchiver{next: next, patterns: patterns}
	}
}

func (m *piiArchiver) Archive(ctx context.Context, s *domain.Session) (string, error) {
	masked := s.Clone()
	maskMap(masked.Fields, m.patterns)
	for i := range masked.Audit {
		maskMap(masked.Audit[i].Data, m.patterns)
	}
	return m.next.Archive(ctx, masked)
}

func maskMap(m map[string]any, patterns []*regexp.Regexp) {
	for k, v := range m {
		if matchesAny(k, patterns) {
			m[k] = Mask
			continue
		}
		switch val := v.(type) {
		case map[string]any:
			maskMap(val, patterns)
		case []any:
			for _, item := range val {
				if sub, ok := item.(map[string]any); ok {
					maskMap(sub, patterns)
				}
			}
		}
	}
}

func matchesAny(key string, patterns []*regexp.Regexp) bool {
	for _, p := range patterns {
		if p.MatchString(key) {
			return true
		}
	}
	return false
}
