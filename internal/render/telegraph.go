package render

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark/ast"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

// Node is a Telegraph DOM element. Children hold either strings or *Node.
type Node struct {
	Tag      string            `json:"tag"`
	Attrs    map[string]string `json:"attrs,omitempty"`
	Children []any             `json:"children,omitempty"`
}

// TelegraphNodes converts markdown into the node array the Telegraph
// createPage call expects. Telegraph only knows h3 and h4, so level 1 and 2
// headings become h3 and deeper ones h4. Raw HTML is dropped.
func TelegraphNodes(markdown string) []any {
	src := []byte(markdown)
	doc := markdownEngine.Parser().Parse(text.NewReader(src))
	return telegraphChildren(doc, src)
}

func telegraphChildren(parent ast.Node, src []byte) []any {
	var out []any
	for child := parent.FirstChild(); child != nil; child = child.NextSibling() {
		out = append(out, telegraphNode(child, src)...)
	}
	return mergeStrings(out)
}

func element(tag string, children []any) []any {
	return []any{&Node{Tag: tag, Children: children}}
}

func telegraphNode(n ast.Node, src []byte) []any {
	switch n := n.(type) {
	case *ast.Heading:
		tag := "h4"
		if n.Level <= 2 {
			tag = "h3"
		}
		return element(tag, telegraphChildren(n, src))
	case *ast.Paragraph:
		return element("p", telegraphChildren(n, src))
	case *ast.TextBlock:
		return telegraphChildren(n, src)
	case *ast.Blockquote:
		return element("blockquote", telegraphChildren(n, src))
	case *ast.List:
		tag := "ul"
		if n.IsOrdered() {
			tag = "ol"
		}
		return element(tag, telegraphChildren(n, src))
	case *ast.ListItem:
		return element("li", telegraphChildren(n, src))
	case *ast.FencedCodeBlock, *ast.CodeBlock:
		code := &Node{Tag: "code", Children: []any{blockLines(n, src)}}
		return []any{&Node{Tag: "pre", Children: []any{code}}}
	case *ast.ThematicBreak:
		return []any{&Node{Tag: "hr"}}
	case *ast.HTMLBlock, *ast.RawHTML:
		return nil
	case *ast.Text:
		out := []any{string(n.Segment.Value(src))}
		switch {
		case n.HardLineBreak():
			out = append(out, &Node{Tag: "br"})
		case n.SoftLineBreak():
			out = append(out, " ")
		}
		return out
	case *ast.String:
		return []any{string(n.Value)}
	case *ast.CodeSpan:
		return element("code", []any{inlineText(n, src)})
	case *ast.Emphasis:
		tag := "em"
		if n.Level >= 2 {
			tag = "strong"
		}
		return element(tag, telegraphChildren(n, src))
	case *east.Strikethrough:
		return element("s", telegraphChildren(n, src))
	case *ast.Link:
		return []any{&Node{
			Tag:      "a",
			Attrs:    map[string]string{"href": string(n.Destination)},
			Children: telegraphChildren(n, src),
		}}
	case *ast.AutoLink:
		return []any{&Node{
			Tag:      "a",
			Attrs:    map[string]string{"href": string(n.URL(src))},
			Children: []any{string(n.Label(src))},
		}}
	case *ast.Image:
		return []any{&Node{Tag: "img", Attrs: map[string]string{"src": string(n.Destination)}}}
	default:
		return telegraphChildren(n, src)
	}
}

func blockLines(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		buf.Write(seg.Value(src))
	}
	return strings.TrimRight(buf.String(), "\n")
}

func inlineText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	for child := n.FirstChild(); child != nil; child = child.NextSibling() {
		switch c := child.(type) {
		case *ast.Text:
			buf.Write(c.Segment.Value(src))
		case *ast.String:
			buf.Write(c.Value)
		}
	}
	return buf.String()
}

// mergeStrings joins adjacent string children so payloads stay compact.
func mergeStrings(in []any) []any {
	var out []any
	for _, v := range in {
		s, ok := v.(string)
		if ok && len(out) > 0 {
			if prev, prevOK := out[len(out)-1].(string); prevOK {
				out[len(out)-1] = prev + s
				continue
			}
		}
		out = append(out, v)
	}
	return out
}
