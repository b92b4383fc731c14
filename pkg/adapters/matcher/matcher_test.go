package matcher_test

import (
	"context"
	"testing"

	"github.com/aretw0/guidance/pkg/adapters/matcher"
	"github.com/aretw0/guidance/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	crusts = []string{"Thin", "Regular", "Thick", "Gluten-free"}
	sizes  = []string{`Small (10")`, `Medium (12")`, `Large (14")`, `Extra Large (16")`}
	veg    = []string{"Mushrooms", "Olives", "Bell Peppers", "Onions", "Tomatoes", "Spinach", "Artichokes", "Pineapple"}
)

func TestResolve_Single(t *testing.T) {
	r := matcher.New()
	ctx := context.Background()

	tests := []struct {
		name    string
		text    string
		options []string
		match   ports.Match
		values  []string
	}{
		{"exact, case-insensitive", "THIN", crusts, ports.Matched, []string{"Thin"}},
		{"mentioned in a sentence", "I'd like a thin crust please", crusts, ports.Matched, []string{"Thin"}},
		{"prefix", "gluten", crusts, ports.Matched, []string{"Gluten-free"}},
		{"prefix beats mention", "large", sizes, ports.Matched, []string{`Large (14")`}},
		{"longer mention", "extra large please", sizes, ports.Matched, []string{`Extra Large (16")`}},
		{"nothing", "pineapple", crusts, ports.NoMatch, nil},
		{"empty", "   ", crusts, ports.NoMatch, nil},
		{"word boundary", "thinking", crusts, ports.NoMatch, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := r.Resolve(ctx, ports.Query{Text: tt.text, Options: tt.options})
			require.NoError(t, err)
			assert.Equal(t, tt.match, res.Match)
			assert.Equal(t, tt.values, res.Values)
		})
	}
}

func TestResolve_Ambiguous(t *testing.T) {
	res, err := matcher.New().Resolve(context.Background(), ports.Query{Text: "th", Options: crusts})
	require.NoError(t, err)
	assert.Equal(t, ports.Ambiguous, res.Match)
	assert.Equal(t, []string{"Thin", "Thick"}, res.Candidates)
	assert.Empty(t, res.Values)

	res, err = matcher.New().Resolve(context.Background(), ports.Query{Text: "thin or thick", Options: crusts})
	require.NoError(t, err)
	assert.Equal(t, ports.Ambiguous, res.Match)
}

func TestResolve_Multiple(t *testing.T) {
	r := matcher.New()
	ctx := context.Background()

	res, err := r.Resolve(ctx, ports.Query{Text: "mushrooms, olives and bell peppers, mushrooms, ham", Options: veg, Multiple: true})
	require.NoError(t, err)
	assert.Equal(t, ports.Matched, res.Match)
	assert.Equal(t, []string{"Mushrooms", "Olives", "Bell Peppers"}, res.Values)

	res, err = r.Resolve(ctx, ports.Query{Text: "ham and salami", Options: veg, Multiple: true})
	require.NoError(t, err)
	assert.Equal(t, ports.NoMatch, res.Match)

	res, err = r.Resolve(ctx, ports.Query{Text: "olives, o", Options: veg, Multiple: true})
	require.NoError(t, err)
	assert.Equal(t, ports.Ambiguous, res.Match)
	assert.Equal(t, []string{"Olives", "Onions"}, res.Candidates)
}
