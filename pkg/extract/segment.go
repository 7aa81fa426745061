package extract

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// BlockKind distinguishes the two content block shapes
type BlockKind int

const (
	BlockText BlockKind = iota
	BlockLink
)

// Block is one segment of article content in document order
type Block struct {
	Kind  BlockKind
	Value string // Collapsed text for BlockText
	Href  string // Raw href for BlockLink
}

// HostResolver reports the provider id of a URL, "" when unknown
type HostResolver interface {
	Identify(href string) string
}

// minTrailingText is the length a text remainder must exceed to become a block
const minTrailingText = 2

// Segment walks the direct children of body and splits their content into text
// and link blocks. Only anchors on recognized hosts split the text; the anchor's
// own text is not emitted, and text inside other anchors stays in the flow.
// Text is further split at line breaks and block boundaries, one block per line.
func Segment(body *html.Node, hosts HostResolver) []Block {
	var blocks []Block
	for child := body.FirstChild; child != nil; child = child.NextSibling {
		switch child.Type {
		case html.TextNode:
			if t := collapse(child.Data); len(t) > minTrailingText {
				blocks = append(blocks, Block{Kind: BlockText, Value: t})
			}
		case html.ElementNode:
			if skipElement(child) {
				continue
			}
			blocks = segmentChild(child, hosts, blocks)
		}
	}
	return blocks
}

func segmentChild(n *html.Node, hosts HostResolver, blocks []Block) []Block {
	var buf strings.Builder

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			// source newlines are plain whitespace
			buf.WriteString(strings.ReplaceAll(n.Data, "\n", " "))
			return
		case html.ElementNode:
			if skipElement(n) {
				return
			}
			if n.DataAtom == atom.A {
				if href := strings.TrimSpace(attr(n, "href")); href != "" && hosts.Identify(href) != "" {
					blocks = appendLines(blocks, buf.String(), 0)
					buf.Reset()
					blocks = append(blocks, Block{Kind: BlockLink, Href: href})
					return
				}
			}
			if breaksText(n) {
				buf.WriteByte('\n')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && breaksText(n) {
			buf.WriteByte('\n')
		}
	}
	walk(n)

	return appendLines(blocks, buf.String(), minTrailingText)
}

// appendLines emits one text block per non-empty line of raw. The last line must
// be longer than minLast to count.
func appendLines(blocks []Block, raw string, minLast int) []Block {
	var lines []string
	for _, l := range strings.Split(raw, "\n") {
		if t := collapse(l); t != "" {
			lines = append(lines, t)
		}
	}
	for i, l := range lines {
		if i == len(lines)-1 && len(l) <= minLast {
			break
		}
		blocks = append(blocks, Block{Kind: BlockText, Value: l})
	}
	return blocks
}

func skipElement(n *html.Node) bool {
	switch n.DataAtom {
	case atom.Script, atom.Style, atom.Noscript, atom.Iframe:
		return true
	}
	return false
}

// breaksText is true for elements whose boundaries separate words
func breaksText(n *html.Node) bool {
	switch n.DataAtom {
	case atom.Br, atom.P, atom.Div, atom.Li, atom.Ul, atom.Ol, atom.Td, atom.Tr, atom.Table,
		atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6, atom.Blockquote, atom.Hr:
		return true
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
