package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/a-h/templ"

	"github.com/conneroisu/seedling/internal/harvest"
	"github.com/conneroisu/seedling/internal/page"
)

// PackageOptions renders the inline script that carries the render options
// and the encoded seeds to the client. The secret data source token is not
// forwarded.
func PackageOptions(opts page.Options, seeds harvest.Seeds) (string, error) {
	encoded, err := harvest.EncodeSeeds(seeds)
	if err != nil {
		return "", fmt.Errorf("encoding seeds: %w", err)
	}

	// json.Marshal escapes <, > and &, so the payload cannot close the
	// script element early.
	payload, err := json.Marshal(page.Payload{Options: opts, Seeds: encoded})
	if err != nil {
		return "", fmt.Errorf("encoding options: %w", err)
	}

	return `<script id="` + page.OptionsScriptID + `" type="application/json">` + string(payload) + `</script>`, nil
}

// FallbackPage is the document served when no shell is available. It does
// not depend on the shell, so it always references the client bundle.
func FallbackPage(msg, bundleScript string) string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n")
	b.WriteString("<html>\n")
	b.WriteString("  <body>\n")
	b.WriteString("    <pre>" + templ.EscapeString(msg) + "</pre>\n")
	b.WriteString(`    <script type="text/javascript" src="` + templ.EscapeString(bundleScript) + `"></script>` + "\n")
	b.WriteString("  </body>\n")
	b.WriteString("</html>\n")
	return b.String()
}
