package stage

import (
	"fmt"
	"strings"

	"github.com/phrazzld/qagen/internal/domain"
)

// Context describes where a paragraph sits in its article, e.g.
// "In an article about 'Go', section 'History', subsection 'Origins'".
func Context(p *domain.Paragraph) string {
	var b strings.Builder
	fmt.Fprintf(&b, "In an article about '%s', section '%s'", p.PageName, p.SectionName)
	if p.SubsectionName != "" {
		fmt.Fprintf(&b, ", subsection '%s'", p.SubsectionName)
		if p.SubsubsectionName != "" {
			fmt.Fprintf(&b, ", paragraph '%s'", p.SubsubsectionName)
		}
	}
	return b.String()
}

// Fact returns the paragraph's context together with the fact built from it.
func Fact(p *domain.Paragraph) (context, fact string) {
	context = Context(p)
	return context, context + " mentioned: \n " + p.Body()
}
