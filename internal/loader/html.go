package loader

import (
	"fmt"
	"strings"

	gohtml "golang.org/x/net/html"
)

// extractScripts returns the text of every inline JavaScript <script>
// element in document order. External (src=) and non-JS scripts are
// skipped.
func extractScripts(doc string) (string, error) {
	root, err := gohtml.Parse(strings.NewReader(doc))
	if err != nil {
		return "", fmt.Errorf("parsing html: %w", err)
	}

	var parts []string
	var walk func(n *gohtml.Node)
	walk = func(n *gohtml.Node) {
		if n.Type == gohtml.ElementNode && n.Data == "script" && isInlineJS(n) {
			var sb strings.Builder
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == gohtml.TextNode {
					sb.WriteString(c.Data)
				}
			}
			parts = append(parts, sb.String())
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return strings.Join(parts, "\n;\n"), nil
}

func isInlineJS(n *gohtml.Node) bool {
	for _, a := range n.Attr {
		switch strings.ToLower(a.Key) {
		case "src":
			return false
		case "type":
			switch strings.ToLower(strings.TrimSpace(a.Val)) {
			case "", "text/javascript", "application/javascript", "module":
			default:
				return false
			}
		}
	}
	return true
}
