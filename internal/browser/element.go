package browser

import (
	"strings"

	"golang.org/x/net/html"
)

// Element is a handle to one node of a Document. Handles are cheap views;
// two handles to the same node compare equal via Same.
type Element struct {
	doc  *Document
	node *html.Node
}

// HydrationScope lets an element act as the scope of a hydration wait.
func (e *Element) HydrationScope() *Element { return e }

// Same reports whether both handles reference the same underlying node.
func (e *Element) Same(other *Element) bool {
	return other != nil && e.node == other.node
}

// TagName returns the lowercase tag name.
func (e *Element) TagName() string {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	return e.node.Data
}

// GetAttr returns the attribute value and whether it is present.
func (e *Element) GetAttr(name string) (string, bool) {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	for _, a := range e.node.Attr {
		if a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

// HasAttr reports attribute presence.
func (e *Element) HasAttr(name string) bool {
	_, ok := e.GetAttr(name)
	return ok
}

// SetAttr sets or replaces an attribute.
func (e *Element) SetAttr(name, value string) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	for i, a := range e.node.Attr {
		if a.Key == name {
			e.node.Attr[i].Val = value
			return
		}
	}
	e.node.Attr = append(e.node.Attr, html.Attribute{Key: name, Val: value})
}

// RemoveAttr removes an attribute if present.
func (e *Element) RemoveAttr(name string) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	attrs := e.node.Attr[:0]
	for _, a := range e.node.Attr {
		if a.Key != name {
			attrs = append(attrs, a)
		}
	}
	e.node.Attr = attrs
}

// TextContent returns the concatenated text of the subtree.
func (e *Element) TextContent() string {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	var sb strings.Builder
	collectText(e.node, &sb)
	return sb.String()
}

func collectText(n *html.Node, sb *strings.Builder) {
	if n.Type == html.TextNode {
		sb.WriteString(n.Data)
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, sb)
	}
}

// OuterHTML serializes the element and its subtree.
func (e *Element) OuterHTML() (string, error) {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	return renderNode(e.node)
}

// InnerHTML serializes only the element's children.
func (e *Element) InnerHTML() (string, error) {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	var sb strings.Builder
	for c := e.node.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&sb, c); err != nil {
			return "", err
		}
	}
	return sb.String(), nil
}

// Parent returns the parent element handle, or nil at the tree root.
func (e *Element) Parent() *Element {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	if e.node.Parent == nil {
		return nil
	}
	return &Element{doc: e.doc, node: e.node.Parent}
}

// IsAttached reports whether the element is reachable from the document
// root.
func (e *Element) IsAttached() bool {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	for n := e.node; n != nil; n = n.Parent {
		if n == e.doc.root {
			return true
		}
	}
	return false
}

// RemoveChildren clears the element's contents.
func (e *Element) RemoveChildren() {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	for e.node.FirstChild != nil {
		e.node.RemoveChild(e.node.FirstChild)
	}
}

// Detach removes the element from its parent, if any.
func (e *Element) Detach() {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	if e.node.Parent != nil {
		e.node.Parent.RemoveChild(e.node)
	}
}

// Evaluate runs an XPath expression scoped to this element's subtree.
func (e *Element) Evaluate(expr string) ([]*Element, error) {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	return e.doc.evaluateLocked(e.node, expr)
}

// appendChildren attaches parsed fragment nodes under the element.
func (e *Element) appendChildren(nodes []*html.Node) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	for _, n := range nodes {
		e.node.AppendChild(n)
	}
}
