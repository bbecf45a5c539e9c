package reasoning

import (
	"apimatch/internal/shared/util"
	"fmt"
	"strings"
)

const maxDetailLen = 150

// BuildPrompt renders a request as a numbered list with the expected answer
// format. Candidates are numbered from 1.
func BuildPrompt(req Request) string {
	var b strings.Builder
	noun, plural := "class", "CLASSES"
	if req.Kind == KindMethod {
		noun, plural = "method", "METHODS"
	}

	fmt.Fprintf(&b, "SUBJECT:\n%s\n", strings.TrimSpace(req.Subject))
	if req.Context != "" {
		fmt.Fprintf(&b, "\nCONTEXT:\n%s\n", req.Context)
	}
	fmt.Fprintf(&b, "\nCANDIDATE %s (search level %d):\n", plural, req.Level)
	for i, c := range req.Candidates {
		fmt.Fprintf(&b, "%d. %s\n", i+1, c.Label)
		if c.Description != "" {
			fmt.Fprintf(&b, "   Description: %s\n", util.Truncate(c.Description, maxDetailLen))
		}
		for _, d := range c.Details {
			fmt.Fprintf(&b, "   %s\n", util.Truncate(d, maxDetailLen))
		}
	}

	fmt.Fprintf(&b, "\nRate each %s from 0.0 to 1.0 by how directly it accomplishes the subject.\n", noun)
	b.WriteString("Use up to four decimals. Answer one line per candidate:\n")
	b.WriteString("Candidate 1: 0.9287 - reasoning\n")
	b.WriteString("Candidate 2: 0.1500 - reasoning\n")
	return b.String()
}
