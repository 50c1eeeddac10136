//go:build property

package harvest

import (
	"context"
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestHydrationFidelityProperties checks that planting a harvested snapshot
// reproduces the harvested markup.
func TestHydrationFidelityProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(1357)
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("plant after harvest reproduces markup", prop.ForAll(
		func(keys []string) bool {
			h := New()
			res, err := h.Run(context.Background(), list(keys, nil))
			if err != nil {
				return false
			}

			encoded, err := EncodeSeeds(res.Seeds)
			if err != nil {
				return false
			}
			seeds, err := DecodeSeeds(encoded)
			if err != nil {
				return false
			}

			planted, err := h.Plant(context.Background(), list(keys, nil), seeds)
			return err == nil && planted == res.HTML
		},
		gen.SliceOf(gen.AlphaString()),
	))

	properties.Property("seeds follow first-request order", prop.ForAll(
		func(n int) bool {
			keys := make([]string, n)
			for i := range keys {
				keys[i] = fmt.Sprintf("key-%02d", n-i)
			}

			res, err := New().Run(context.Background(), list(keys, nil))
			if err != nil {
				return false
			}
			got := res.Seeds.Keys()
			if len(got) != len(keys) {
				return false
			}
			for i := range keys {
				if got[i] != keys[i] {
					return false
				}
			}
			return true
		},
		gen.IntRange(0, 40),
	))

	properties.TestingRun(t)
}
