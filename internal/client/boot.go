// Package client replays the browser side of a server render: it reads the
// payload the server embedded in the page, plants the harvested seeds into
// the content tree and checks that the planted markup matches the markup
// the server sent before handing over to a plain client render.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"

	"github.com/conneroisu/seedling/internal/compositor"
	"github.com/conneroisu/seedling/internal/datasource"
	"github.com/conneroisu/seedling/internal/harvest"
	"github.com/conneroisu/seedling/internal/page"
)

// ErrHydrationMismatch is returned when the planted render differs from the
// server's markup.
var ErrHydrationMismatch = errors.New("hydration mismatch")

// Result describes one boot.
type Result struct {
	// Booted is false when the page carried no payload.
	Booted bool

	// Hydrated is false when the server reported a render failure and
	// hydration was skipped.
	Hydrated bool

	Options page.Options
	Seeds   harvest.Seeds

	// HTML is the markup of the final client render.
	HTML string
}

// Booter boots pages rendered by a pipeline with the same content tree.
type Booter struct {
	Content   page.Tree
	Harvester *harvest.Harvester

	// AnchorID overrides the hydration container id.
	AnchorID string

	// Token authenticates the final render's data source requests; the
	// server never forwards its own.
	Token string
}

// Boot runs the client sequence against document.
func (b *Booter) Boot(ctx context.Context, document string) (*Result, error) {
	payload, ok, err := ReadPayload(document)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &Result{}, nil
	}

	res := &Result{Booted: true, Options: payload.Options}

	var data *datasource.Client
	if payload.Options.DataSourceBaseURL != "" {
		data, err = datasource.New(payload.Options.DataSourceBaseURL, b.Token, 0)
		if err != nil {
			return nil, err
		}
	}
	props := payload.Options.Props(data)
	h := b.harvester()

	if !HasErrorBlock(document) {
		seeds, err := harvest.DecodeSeeds(payload.Seeds)
		if err != nil {
			return nil, fmt.Errorf("decoding seeds: %w", err)
		}
		res.Seeds = seeds

		planted, err := h.Plant(ctx, b.Content(props), seeds)
		if err != nil {
			return nil, fmt.Errorf("planting seeds: %w", err)
		}

		existing, ok := compositor.Contents(document, b.anchorID())
		if !ok {
			return nil, fmt.Errorf("%w: container #%s not found", ErrHydrationMismatch, b.anchorID())
		}
		if planted != existing {
			return nil, fmt.Errorf("%w: planted %d bytes, server sent %d", ErrHydrationMismatch, len(planted), len(existing))
		}
		res.Hydrated = true
	}

	final, err := h.Harvest(ctx, b.Content(props.WithoutSSR()))
	if err != nil {
		return res, err
	}
	res.HTML = final
	return res, nil
}

func (b *Booter) harvester() *harvest.Harvester {
	if b.Harvester == nil {
		return harvest.New()
	}
	return b.Harvester
}

func (b *Booter) anchorID() string {
	if b.AnchorID == "" {
		return compositor.DefaultAnchorID
	}
	return b.AnchorID
}

// ReadPayload returns the payload embedded in document, if any.
func ReadPayload(document string) (page.Payload, bool, error) {
	var payload page.Payload

	z := html.NewTokenizer(strings.NewReader(document))
	inside := false
	for {
		switch z.Next() {
		case html.ErrorToken:
			if errors.Is(z.Err(), io.EOF) {
				return payload, false, nil
			}
			return payload, false, z.Err()

		case html.StartTagToken:
			name, more := z.TagName()
			if string(name) != "script" {
				continue
			}
			for more {
				var key, val []byte
				key, val, more = z.TagAttr()
				if string(key) == "id" && string(val) == page.OptionsScriptID {
					inside = true
				}
			}

		case html.TextToken:
			if !inside {
				continue
			}
			if err := json.Unmarshal(z.Text(), &payload); err != nil {
				return payload, false, fmt.Errorf("decoding options: %w", err)
			}
			return payload, true, nil

		case html.EndTagToken:
			if inside {
				return payload, false, fmt.Errorf("decoding options: empty payload")
			}
		}
	}
}

// HasErrorBlock reports whether the server rendered a diagnostic block.
func HasErrorBlock(document string) bool {
	return compositor.HasElement(document, compositor.ErrorBlockID)
}
