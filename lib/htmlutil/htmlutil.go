package htmlutil

import (
	"bytes"
	"strings"

	"nomadscout/lib/textutil"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// GetText collects the text content of a node and all its descendants,
// without goquery's selection machinery.
func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
}

// Text is the cleaned-up text of a selection.
func Text(sel *goquery.Selection) string {
	var b strings.Builder
	for _, node := range sel.Nodes {
		b.WriteString(GetText(node))
	}
	return textutil.CleanText(b.String())
}

// Href returns the href of the first anchor under sel, "" when absent.
func Href(sel *goquery.Selection) string {
	href, ok := sel.Find("a").First().Attr("href")
	if !ok {
		return ""
	}
	return textutil.CleanText(href)
}
