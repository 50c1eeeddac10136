//go:build property

package watcher

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestDebouncerProperties checks that a burst of events comes out as one
// sorted batch holding the last event per path.
func TestDebouncerProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(9876)
	parameters.MinSuccessfulTests = 30

	properties := gopter.NewProperties(parameters)

	properties.Property("burst collapses to one event per path", prop.ForAll(
		func(ids []int) bool {
			if len(ids) == 0 {
				return true
			}

			d := newDebouncer(10 * time.Millisecond)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			go d.start(ctx)

			last := make(map[string]int)
			for i, id := range ids {
				path := fmt.Sprintf("ssr/%02d.html", id)
				last[path] = i
				d.events <- ChangeEvent{Path: path, Size: int64(i)}
			}

			select {
			case events := <-d.output:
				if len(events) != len(last) {
					return false
				}
				if !sort.SliceIsSorted(events, func(i, j int) bool { return events[i].Path < events[j].Path }) {
					return false
				}
				for _, event := range events {
					if int64(last[event.Path]) != event.Size {
						return false
					}
				}
				return true
			case <-time.After(time.Second):
				return false
			}
		},
		gen.SliceOfN(20, gen.IntRange(0, 9)),
	))

	properties.Property("filters compose as a conjunction", prop.ForAll(
		func(name string, hidden bool) bool {
			path := "ssr/" + name + ".html"
			if hidden {
				path = "ssr/." + name + ".html"
			}
			filters := []FileFilter{ExtFilter(".html"), NoHiddenFilter}
			accepted := true
			for _, f := range filters {
				accepted = accepted && f(path)
			}
			return accepted == !hidden
		},
		gen.Identifier(),
		gen.Bool(),
	))

	properties.TestingRun(t)
}
