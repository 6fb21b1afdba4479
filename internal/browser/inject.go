package browser

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// InjectOptions configures one injection.
type InjectOptions struct {
	// Container receives the markup. Default: a fresh container element
	// appended under BaseElement.
	Container *Element

	// BaseElement scopes later queries and is where default containers are
	// attached. Default: the document body.
	BaseElement *Element
}

// bustSeq disambiguates cache-bust values minted within the same timestamp.
var bustSeq atomic.Uint64

// Inject parses html into the container's document context, appends it with
// correct script semantics, and registers the resulting mount.
//
// A naive innerHTML-style assignment would silently skip script execution,
// so scripts are extracted from the parsed fragment, the remaining subtree
// is appended, and fresh script elements are re-created and executed in
// their original order. External src attributes get a timestamp-derived
// query parameter so module scripts re-execute per mount instead of
// reusing a cached instance.
func (env *Environment) Inject(markup string, opts InjectOptions) (*Mount, error) {
	base := opts.BaseElement
	if base == nil {
		base = env.doc.Body()
	}
	container := opts.Container
	if container == nil {
		container = env.doc.CreateContainer(base)
	} else if container.Parent() == nil {
		// Keep the registry invariant: every registered container is
		// attached under the document.
		base.appendChildren([]*html.Node{container.node})
	}

	env.doc.mu.RLock()
	nodes, err := html.ParseFragment(strings.NewReader(markup), container.node)
	env.doc.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("parsing rendered markup: %w", err)
	}

	nodes, scripts := extractScripts(nodes)
	container.appendChildren(nodes)

	for _, s := range scripts {
		container.appendChildren([]*html.Node{scriptNode(s)})
		if err := env.runner.Run(s); err != nil {
			env.logger.Warn("script execution failed",
				zap.String("src", s.src),
				zap.Error(err))
		}
	}

	mount := &Mount{
		env:       env,
		id:        uuid.NewString(),
		container: container,
		base:      base,
	}
	env.registry.add(mount)
	return mount, nil
}

// extractScripts removes every script element from the fragment, returning
// the surviving top-level nodes and the scripts in document order, with
// external srcs cache-busted.
func extractScripts(nodes []*html.Node) ([]*html.Node, []scriptSpec) {
	var specs []scriptSpec
	var doomed []*html.Node
	var keep []*html.Node

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if isScript(n) {
			specs = append(specs, specFromNode(n))
			doomed = append(doomed, n)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	for _, n := range nodes {
		if isScript(n) {
			specs = append(specs, specFromNode(n))
			continue
		}
		walk(n)
		keep = append(keep, n)
	}
	for _, n := range doomed {
		if n.Parent != nil {
			n.Parent.RemoveChild(n)
		}
	}
	return keep, specs
}

func isScript(n *html.Node) bool {
	return n.Type == html.ElementNode && n.DataAtom == atom.Script
}

func specFromNode(n *html.Node) scriptSpec {
	var s scriptSpec
	for _, a := range n.Attr {
		switch a.Key {
		case "src":
			s.src = a.Val
		case "type":
			s.typ = a.Val
		}
	}
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
	}
	s.inline = sb.String()
	if s.src != "" {
		s.src = cacheBust(s.src)
	}
	return s
}

// cacheBust appends a timestamp-derived query parameter to src.
func cacheBust(src string) string {
	sep := "?"
	if strings.Contains(src, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%st=%d-%d", src, sep, time.Now().UnixNano(), bustSeq.Add(1))
}

// scriptNode re-creates a fresh script element for a spec so the container
// DOM reflects what actually executed.
func scriptNode(s scriptSpec) *html.Node {
	n := &html.Node{
		Type:     html.ElementNode,
		Data:     "script",
		DataAtom: atom.Script,
	}
	if s.typ != "" {
		n.Attr = append(n.Attr, html.Attribute{Key: "type", Val: s.typ})
	}
	if s.src != "" {
		n.Attr = append(n.Attr, html.Attribute{Key: "src", Val: s.src})
	} else if s.inline != "" {
		n.AppendChild(&html.Node{Type: html.TextNode, Data: s.inline})
	}
	return n
}
