package fetch

import (
	"io"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/net/html"

	"github.com/archivelab/bookhaven/internal/records"
)

// parseSearchResults walks the OpenLibrary search result markup and builds
// one record per result item. Items missing a title are skipped; items
// missing a work key get a generated id so two scrapes of the same broken
// item never collide in storage.
func parseSearchResults(body io.Reader, fetchedAt int64, fetchedByUser, sourceURL string) ([]*records.Record, error) {
	document, err := html.Parse(body)
	if err != nil {
		return nil, err
	}

	var results []*records.Record
	for _, item := range collectByClass(document, "li", "searchResultItem") {
		title, workKey := titleAndKey(item)
		if title == "" {
			continue
		}
		id := idFromWorkKey(workKey)
		if id == "" {
			id = uuid.NewString()
		}
		record, err := records.NewRecord(id, title, authorOf(item), "", sourceURL, fetchedAt, fetchedByUser)
		if err != nil {
			continue
		}
		results = append(results, record)
	}
	return results, nil
}

// titleAndKey extracts the book title and the /works/... href from the
// result item's title link.
func titleAndKey(item *html.Node) (string, string) {
	for _, heading := range collectByClass(item, "h3", "booktitle") {
		for _, link := range collectByTag(heading, "a") {
			return strings.TrimSpace(textOf(link)), attrValue(link, "href")
		}
	}
	return "", ""
}

// authorOf joins the author links of a result item with ", ".
func authorOf(item *html.Node) string {
	var names []string
	for _, span := range collectByClass(item, "span", "bookauthor") {
		for _, link := range collectByTag(span, "a") {
			if name := strings.TrimSpace(textOf(link)); name != "" {
				names = append(names, name)
			}
		}
	}
	return strings.Join(names, ", ")
}

// idFromWorkKey turns "/works/OL45883W?edition=..." into "OL45883W".
func idFromWorkKey(href string) string {
	href = strings.TrimSpace(href)
	const prefix = "/works/"
	if !strings.HasPrefix(href, prefix) {
		return ""
	}
	key := href[len(prefix):]
	if cut := strings.IndexAny(key, "?/#"); cut >= 0 {
		key = key[:cut]
	}
	return key
}

func collectByClass(root *html.Node, tag, class string) []*html.Node {
	var matches []*html.Node
	walk(root, func(node *html.Node) {
		if node.Type == html.ElementNode && node.Data == tag && hasClass(node, class) {
			matches = append(matches, node)
		}
	})
	return matches
}

func collectByTag(root *html.Node, tag string) []*html.Node {
	var matches []*html.Node
	walk(root, func(node *html.Node) {
		if node.Type == html.ElementNode && node.Data == tag {
			matches = append(matches, node)
		}
	})
	return matches
}

func walk(node *html.Node, visit func(*html.Node)) {
	visit(node)
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		walk(child, visit)
	}
}

func hasClass(node *html.Node, class string) bool {
	for _, field := range strings.Fields(attrValue(node, "class")) {
		if field == class {
			return true
		}
	}
	return false
}

func attrValue(node *html.Node, key string) string {
	for _, attr := range node.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

func textOf(node *html.Node) string {
	var builder strings.Builder
	walk(node, func(n *html.Node) {
		if n.Type == html.TextNode {
			builder.WriteString(n.Data)
		}
	})
	return builder.String()
}
