//go:build property

package preview

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestKeyphraseProperties validates keyphrase commit and focus properties
func TestKeyphraseProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(1357)
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("repeated value never emits a change", prop.ForAll(
		func(values []string) bool {
			var emitted int
			w := New(&fakeCapability{}, Options{Actions: Actions{
				OnKeyphraseChange: func(KeyphraseChange) { emitted++ },
			}})
			expected := 0
			last := ""
			for _, v := range values {
				if v != last {
					expected++
					last = v
				}
				w.KeyUp(v)
				w.KeyUp(v)
			}
			return emitted == expected
		},
		gen.SliceOf(gen.OneConstOf("", "p", "pr", "proxy", "gateway")),
	))

	properties.Property("focus with keyphrase resets to the default panel", prop.ForAll(
		func(keyphrase string, pick int) bool {
			if keyphrase == "" {
				return true
			}
			w := typed(&fakeCapability{}, keyphrase, Options{})
			groups := w.Groups()
			if len(groups) == 0 {
				return false
			}
			keys := groups[0].Keys()
			w.Hover(keys[pick%len(keys)])
			w.Focus()
			return w.Active() == DefaultPanelKey
		},
		gen.AlphaString(),
		gen.IntRange(0, 10),
	))

	properties.TestingRun(t)
}

// TestPresenterProperties validates active-item and loading overlay properties
func TestPresenterProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(2468)
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("at most one panel is active", prop.ForAll(
		func(hovers []int) bool {
			w := typed(&fakeCapability{}, "proxy", Options{})
			keys := append([]string{DefaultPanelKey}, w.Groups()[0].Keys()...)
			for _, h := range hovers {
				if ticket, ok := w.Hover(keys[h%len(keys)]); ok {
					settleGroup(w, ticket)
				}
				active := 0
				for _, p := range w.Menu().Panels {
					if p.Active {
						active++
					}
				}
				if active != 1 {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 5)),
	))

	properties.Property("busy widget renders no result list", prop.ForAll(
		func(keyphrases []string) bool {
			w := New(&fakeCapability{}, Options{})
			w.Init()
			for _, k := range keyphrases {
				w.KeyUp(k)
			}
			m := w.Menu()
			for _, p := range m.Panels {
				if p.Items != nil {
					return false
				}
			}
			return m.Loading
		},
		gen.SliceOf(gen.AlphaString()),
	))

	properties.Property("stale completions never change the result", prop.ForAll(
		func(keyphrases []string) bool {
			if len(keyphrases) < 2 {
				return true
			}
			ctx := context.Background()
			w := New(&fakeCapability{}, Options{})
			var tickets []Ticket
			for _, k := range keyphrases {
				tickets = append(tickets, w.resolver.Begin(k))
			}
			latest := tickets[len(tickets)-1]
			w.Complete(w.Fetch(ctx, latest))
			want := w.Result()
			for _, ticket := range tickets[:len(tickets)-1] {
				if w.Complete(w.Fetch(ctx, ticket)) {
					return false
				}
			}
			got := w.Result()
			return got.Status == want.Status && len(got.Articles()) == len(want.Articles()) &&
				(len(got.Articles()) == 0 || got.Articles()[0].ID == want.Articles()[0].ID)
		},
		gen.SliceOf(gen.AlphaString()),
	))

	properties.TestingRun(t)
}

// TestTruncateProperties validates the description budget
func TestTruncateProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(9753)
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("output never exceeds the budget", prop.ForAll(
		func(words []string, limit int) bool {
			s := strings.Join(words, " ")
			return utf8.RuneCountInString(Truncate(s, limit, true)) <= limit
		},
		gen.SliceOf(gen.AlphaString()),
		gen.IntRange(1, 400),
	))

	properties.Property("text within budget is untouched", prop.ForAll(
		func(s string) bool {
			if utf8.RuneCountInString(s) > DescriptionLimit {
				return true
			}
			return TruncateDescription(s) == s
		},
		gen.AnyString(),
	))

	properties.Property("word-boundary cut keeps a prefix of whole words", prop.ForAll(
		func(words []string) bool {
			s := strings.Join(words, " ")
			out := Truncate(s, 40, true)
			if out == s {
				return true
			}
			body := strings.TrimSuffix(out, ellipsis)
			if !strings.HasPrefix(s, body) {
				return false
			}
			rest := s[len(body):]
			return !strings.Contains(body, " ") || rest == "" || rest[0] == ' '
		},
		gen.SliceOf(gen.AlphaString().SuchThat(func(v string) bool { return v != "" && len(v) < 12 })),
	))

	properties.TestingRun(t)
}
