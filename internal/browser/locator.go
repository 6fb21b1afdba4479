package browser

import (
	"fmt"
	"strings"
)

// Queries binds the XPath query capability to a scope element, exposing
// the fixed finder set tests expect. The matching itself is delegated to
// the XPath engine; this type only builds expressions and enforces
// single-match semantics.
type Queries struct {
	base *Element
}

// NewQueries binds the finder set to base.
func NewQueries(base *Element) Queries {
	return Queries{base: base}
}

// implicitRoles maps ARIA roles to the tags that carry them implicitly.
var implicitRoles = map[string][]string{
	"button":   {"button"},
	"link":     {"a"},
	"heading":  {"h1", "h2", "h3", "h4", "h5", "h6"},
	"list":     {"ul", "ol"},
	"listitem": {"li"},
	"img":      {"img"},
	"textbox":  {"input", "textarea"},
	"table":    {"table"},
	"form":     {"form"},
}

// GetByText finds the single element whose own text equals text (after
// whitespace normalization). Zero or multiple matches are errors.
func (q Queries) GetByText(text string) (*Element, error) {
	return q.one("text "+fmt.Sprintf("%q", text),
		".//*[normalize-space(text()) = "+xpathLiteral(text)+"]")
}

// QueryAllByText returns every element whose own text equals text.
func (q Queries) QueryAllByText(text string) ([]*Element, error) {
	return q.base.Evaluate(".//*[normalize-space(text()) = " + xpathLiteral(text) + "]")
}

// GetByTestId finds the single element with the given data-testid.
func (q Queries) GetByTestId(id string) (*Element, error) {
	return q.one("test id "+fmt.Sprintf("%q", id),
		".//*[@data-testid = "+xpathLiteral(id)+"]")
}

// GetByRole finds the single element with the given ARIA role, explicit or
// implicit.
func (q Queries) GetByRole(role string) (*Element, error) {
	parts := []string{".//*[@role = " + xpathLiteral(role) + "]"}
	for _, tag := range implicitRoles[role] {
		parts = append(parts, ".//"+tag+"[not(@role)]")
	}
	return q.one("role "+fmt.Sprintf("%q", role), strings.Join(parts, " | "))
}

// GetByAltText finds the single element with the given alt text.
func (q Queries) GetByAltText(alt string) (*Element, error) {
	return q.one("alt text "+fmt.Sprintf("%q", alt),
		".//*[@alt = "+xpathLiteral(alt)+"]")
}

// GetByTitle finds the single element with the given title attribute.
func (q Queries) GetByTitle(title string) (*Element, error) {
	return q.one("title "+fmt.Sprintf("%q", title),
		".//*[@title = "+xpathLiteral(title)+"]")
}

// Query is the escape hatch: evaluate a raw XPath expression within the
// scope.
func (q Queries) Query(expr string) ([]*Element, error) {
	return q.base.Evaluate(expr)
}

func (q Queries) one(what, expr string) (*Element, error) {
	els, err := q.base.Evaluate(expr)
	if err != nil {
		return nil, err
	}
	switch len(els) {
	case 0:
		return nil, fmt.Errorf("unable to find an element with %s", what)
	case 1:
		return els[0], nil
	default:
		return nil, fmt.Errorf("found %d elements with %s, expected exactly one", len(els), what)
	}
}
