// Package markdown renders task descriptions for the terminal.
package markdown

import (
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/styles"
	"github.com/muesli/reflow/indent"
	"github.com/muesli/reflow/wordwrap"

	internalstrings "github.com/amonks/taskmirror/internal/strings"
)

type renderer interface {
	Render(string) (string, error)
}

var (
	rendererMu sync.Mutex
	renderers  = map[int]renderer{}
)

// Render formats markdown text for terminal output, indented by indent
// spaces and wrapped to width. Plain wrapped text is returned if the
// markdown renderer fails.
func Render(width, indentBy int, input []byte) []byte {
	value, ok := prepare(input)
	if !ok {
		return nil
	}
	renderWidth := contentWidth(width, indentBy)

	rendered := value
	if r := markdownRenderer(renderWidth); r != nil {
		if formatted, err := r.Render(value); err == nil {
			rendered = formatted
		} else {
			rendered = Wrap(value, renderWidth)
		}
	}
	return finish(rendered, indentBy)
}

// SafeRender is Render that falls back to the input text if the renderer
// panics.
func SafeRender(width, indentBy int, input []byte) (out []byte) {
	defer func() {
		if recover() != nil {
			value, ok := prepare(input)
			if !ok {
				out = nil
				return
			}
			out = finish(value, indentBy)
		}
	}()
	return Render(width, indentBy, input)
}

// Wrap word-wraps plain text paragraphs to width, collapsing whitespace
// within each paragraph.
func Wrap(value string, width int) string {
	value = strings.TrimSpace(internalstrings.NormalizeNewlines(value))
	if value == "" {
		return ""
	}
	if width < 1 {
		width = 1
	}
	var wrapped []string
	for _, paragraph := range strings.Split(value, "\n\n") {
		normalized := internalstrings.NormalizeWhitespace(paragraph)
		if normalized == "" {
			continue
		}
		wrapped = append(wrapped, wordwrap.String(normalized, width))
	}
	return strings.Join(wrapped, "\n\n")
}

func prepare(input []byte) (string, bool) {
	if len(input) == 0 {
		return "", false
	}
	value := internalstrings.NormalizeNewlines(string(input))
	value = internalstrings.TrimTrailingNewlines(value)
	if strings.TrimSpace(value) == "" {
		return "", false
	}
	return value, true
}

func finish(rendered string, indentBy int) []byte {
	rendered = internalstrings.TrimTrailingNewlines(rendered)
	if strings.TrimSpace(rendered) == "" {
		return nil
	}
	if indentBy <= 0 {
		return []byte(rendered)
	}
	return []byte(indent.String(rendered, uint(indentBy)))
}

func contentWidth(width, indentBy int) int {
	if indentBy < 0 {
		indentBy = 0
	}
	if w := width - indentBy; w > 1 {
		return w
	}
	return 1
}

func markdownRenderer(width int) renderer {
	rendererMu.Lock()
	defer rendererMu.Unlock()
	if cached, ok := renderers[width]; ok {
		return cached
	}
	style := styles.ASCIIStyleConfig
	style.Item.BlockPrefix = "- "
	style.ImageText.Format = "Image: {{.text}} ->"
	created, err := glamour.NewTermRenderer(
		glamour.WithStyles(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil
	}
	renderers[width] = created
	return created
}
