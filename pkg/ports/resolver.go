package ports

import "context"

// Match classifies the outcome of a resolution.
type Match string

const (
	Matched   Match = "matched"
	NoMatch   Match = "no_match"
	Ambiguous Match = "ambiguous"
)

// Query asks the resolver to map free text onto a known option set.
type Query struct {
	// Field names the answer being collected (e.g. "crust").
	Field string
	// Text is the caller's free-text input.
	Text string
	// Options is the closed set of acceptable values.
	Options []string
	// Multiple allows more than one option to be selected.
	Multiple bool
}

// Resolution is the structured result of a Query.
type Resolution struct {
	Match Match
	// Values holds the resolved options when Match == Matched.
	Values []string
	// Candidates holds the competing options when Match == Ambiguous.
	Candidates []string
}

// Resolver is the external collaborator that interprets free text.
// The engine never guesses: anything other than Matched keeps the session in place.
type Resolver interface {
	Resolve(ctx context.Context, q Query) (Resolution, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(ctx context.Context, q Query) (Resolution, error)

// Resolve calls f(ctx, q).
func (f ResolverFunc) Resolve(ctx context.Context, q Query) (Resolution, error) {
	return f(ctx, q)
}
