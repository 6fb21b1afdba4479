package browser

import (
	"strings"
	"sync"

	"github.com/antchfx/htmlquery"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ContainerAttr tags containers created by the injection engine so they can
// be recognized in dumps and traversals.
const ContainerAttr = "data-astrobridge-container"

const emptyPage = "<!DOCTYPE html><html><head></head><body></body></html>"

// Document is the in-memory DOM shared between the Go side (injection,
// polling, locators) and the JavaScript side (document/window bindings).
// All node access goes through the document mutex; the html.Node tree
// itself has no synchronization of its own.
type Document struct {
	mu     sync.RWMutex
	root   *html.Node
	body   *html.Node
	logger *zap.Logger
}

// NewDocument creates an empty page with head and body.
func NewDocument(logger *zap.Logger) (*Document, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	root, err := html.Parse(strings.NewReader(emptyPage))
	if err != nil {
		return nil, err
	}
	d := &Document{root: root, logger: logger.Named("document")}
	d.body = findFirst(root, atom.Body)
	return d, nil
}

// Body returns the document body, the default root for containers.
func (d *Document) Body() *Element {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return &Element{doc: d, node: d.body}
}

// CreateContainer appends a fresh generic container element under parent
// and returns it. Each container carries a unique identifying attribute.
func (d *Document) CreateContainer(parent *Element) *Element {
	d.mu.Lock()
	defer d.mu.Unlock()
	node := &html.Node{
		Type:     html.ElementNode,
		Data:     "div",
		DataAtom: atom.Div,
		Attr: []html.Attribute{
			{Key: ContainerAttr, Val: uuid.NewString()},
		},
	}
	parent.node.AppendChild(node)
	return &Element{doc: d, node: node}
}

// GetElementByID returns the first element with the given id, or nil.
func (d *Document) GetElementByID(id string) *Element {
	d.mu.RLock()
	defer d.mu.RUnlock()
	node := htmlquery.FindOne(d.root, "//*[@id="+xpathLiteral(id)+"]")
	if node == nil {
		return nil
	}
	return &Element{doc: d, node: node}
}

// Evaluate runs an XPath expression against the whole document.
func (d *Document) Evaluate(expr string) ([]*Element, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.evaluateLocked(d.root, expr)
}

func (d *Document) evaluateLocked(scope *html.Node, expr string) ([]*Element, error) {
	nodes, err := htmlquery.QueryAll(scope, expr)
	if err != nil {
		return nil, err
	}
	out := make([]*Element, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, &Element{doc: d, node: n})
	}
	return out, nil
}

// OuterHTML serializes the whole document.
func (d *Document) OuterHTML() (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return renderNode(d.root)
}

func findFirst(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, a); found != nil {
			return found
		}
	}
	return nil
}

func renderNode(n *html.Node) (string, error) {
	var sb strings.Builder
	if err := html.Render(&sb, n); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// xpathLiteral quotes s as an XPath string literal, handling embedded
// quotes with the concat() form.
func xpathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	var sb strings.Builder
	sb.WriteString("concat(")
	for i, p := range parts {
		if i > 0 {
			sb.WriteString(`, "'", `)
		}
		sb.WriteString("'" + p + "'")
	}
	sb.WriteString(")")
	return sb.String()
}
