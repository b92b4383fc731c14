// Package matcher provides a deterministic substring Resolver.
//
// It stands in for a real language-understanding collaborator: good enough
// for menus and demos, and honest about ambiguity instead of guessing.
package matcher

import (
	"context"
	"regexp"
	"strings"

	"github.com/aretw0/guidance/pkg/ports"
)

// rank orders how strongly an option matches the input.
type rank int

const (
	none rank = iota
	contained // input is a fragment of the option
	mentioned // option appears inside the input
	prefix    // option starts with the input
	exact
)

var (
	separators    = regexp.MustCompile(`\s*(?:,|;|\band\b|&)\s*`)
	parenthetical = regexp.MustCompile(`\s*\([^)]*\)`)
)

// Resolver matches free text against a closed option set.
type Resolver struct{}

// New creates a matcher Resolver.
func New() *Resolver {
	return &Resolver{}
}

var _ ports.Resolver = (*Resolver)(nil)

// Resolve implements ports.Resolver.
//
// Single-choice queries match the whole text. Multiple-choice queries split
// the text on commas, semicolons, "&" and "and"; fragments that match nothing
// are ignored, and any ambiguous fragment makes the whole query ambiguous.
func (r *Resolver) Resolve(_ context.Context, q ports.Query) (ports.Resolution, error) {
	if !q.Multiple {
		return resolveOne(q.Text, q.Options), nil
	}

	var values []string
	seen := make(map[string]bool)
	for _, part := range separators.Split(q.Text, -1) {
		res := resolveOne(part, q.Options)
		switch res.Match {
		case ports.Ambiguous:
			return res, nil
		case ports.Matched:
			v := res.Values[0]
			if !seen[v] {
				seen[v] = true
				values = append(values, v)
			}
		}
	}

	if len(values) == 0 {
		return ports.Resolution{Match: ports.NoMatch}, nil
	}
	return ports.Resolution{Match: ports.Matched, Values: values}, nil
}

type hit struct {
	option string
	form   string
}

func resolveOne(text string, options []string) ports.Resolution {
	input := normalize(text)
	if input == "" {
		return ports.Resolution{Match: ports.NoMatch}
	}

	best := none
	var hits []hit
	for _, opt := range options {
		rk, form := bestForm(input, opt)
		switch {
		case rk == none:
		case rk > best:
			best = rk
			hits = []hit{{opt, form}}
		case rk == best:
			hits = append(hits, hit{opt, form})
		}
	}

	if best == mentioned {
		hits = dropShadowed(hits)
	}

	switch {
	case best == none:
		return ports.Resolution{Match: ports.NoMatch}
	case len(hits) > 1:
		candidates := make([]string, len(hits))
		for i, h := range hits {
			candidates[i] = h.option
		}
		return ports.Resolution{Match: ports.Ambiguous, Candidates: candidates}
	}
	return ports.Resolution{Match: ports.Matched, Values: []string{hits[0].option}}
}

// bestForm scores the option as written and without its parenthetical
// detail, so `Large (14")` also answers to "large".
func bestForm(input, option string) (rank, string) {
	full := normalize(option)
	rk, form := score(input, full), full
	if bare := normalize(parenthetical.ReplaceAllString(option, "")); bare != full {
		if brk := score(input, bare); brk > rk {
			rk, form = brk, bare
		}
	}
	return rk, form
}

// dropShadowed removes mentions that are part of a longer mention,
// so "extra large" does not also count as "large".
func dropShadowed(hits []hit) []hit {
	var out []hit
	for i, h := range hits {
		shadowed := false
		for j, other := range hits {
			if i != j && len(other.form) > len(h.form) && strings.Contains(other.form, h.form) {
				shadowed = true
				break
			}
		}
		if !shadowed {
			out = append(out, h)
		}
	}
	return out
}

func score(input, option string) rank {
	switch {
	case option == "":
		return none
	case input == option:
		return exact
	case strings.HasPrefix(option, input):
		return prefix
	case containsWords(input, option):
		return mentioned
	case strings.Contains(option, input):
		return contained
	}
	return none
}

// containsWords reports whether option appears in input on word boundaries,
// so "thin" matches "a thin crust" but not "thinking".
func containsWords(input, option string) bool {
	idx := strings.Index(input, option)
	for idx >= 0 {
		end := idx + len(option)
		before := idx == 0 || !isWordByte(input[idx-1])
		after := end == len(input) || !isWordByte(input[end])
		if before && after {
			return true
		}
		next := strings.Index(input[idx+1:], option)
		if next < 0 {
			break
		}
		idx += next + 1
	}
	return false
}

func isWordByte(b byte) bool {
	return ('a' <= b && b <= 'z') || ('0' <= b && b <= '9')
}

var punctuation = strings.NewReplacer("-", " ", "_", " ", ".", " ", "!", " ", "?", " ")

func normalize(s string) string {
	return strings.Join(strings.Fields(punctuation.Replace(strings.ToLower(s))), " ")
}
