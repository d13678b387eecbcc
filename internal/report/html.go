package report

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/net/html"
)

var blankLines = regexp.MustCompile(`\n{3,}`)

// HTMLToText converts a rule description to plain text. Text inside pre
// elements keeps its layout; list items get a leading dash. Input that does
// not parse is returned unchanged.
func HTMLToText(htmlContent string) string {
	if strings.TrimSpace(htmlContent) == "" {
		return ""
	}
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return htmlContent
	}

	var (
		sb          strings.Builder
		last        byte
		pendingGap  bool
		extractText func(n *html.Node, pre bool)
	)
	write := func(s string) {
		if s == "" {
			return
		}
		sb.WriteString(s)
		last = s[len(s)-1]
	}

	extractText = func(n *html.Node, pre bool) {
		if n.Type == html.TextNode {
			switch {
			case pre:
				write(n.Data)
			default:
				text := strings.Join(strings.Fields(n.Data), " ")
				if text == "" {
					pendingGap = pendingGap || n.Data != ""
					break
				}
				gap := pendingGap || startsWithSpace(n.Data)
				if gap && sb.Len() > 0 && last != ' ' && last != '\n' {
					write(" ")
				}
				write(text)
				pendingGap = endsWithSpace(n.Data)
			}
		}

		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style":
				return
			case "pre":
				pre = true
				write("\n")
			case "li":
				write("\n- ")
			case "br":
				write("\n")
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extractText(c, pre)
		}

		if n.Type == html.ElementNode {
			switch n.Data {
			case "p", "div", "h1", "h2", "h3", "h4", "h5", "h6", "pre", "ul", "ol", "table", "tr":
				write("\n\n")
				pendingGap = false
			}
		}
	}

	extractText(doc, false)
	text := blankLines.ReplaceAllString(sb.String(), "\n\n")
	lines := strings.Split(strings.TrimSpace(text), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t")
	}
	return strings.Join(lines, "\n")
}

func startsWithSpace(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return unicode.IsSpace(r)
}

func endsWithSpace(s string) bool {
	r, _ := utf8.DecodeLastRuneInString(s)
	return unicode.IsSpace(r)
}
