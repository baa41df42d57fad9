package memdoc

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"dev/bravebird/pagecheck/pkg/models"
)

// resolvePath evaluates each step inside every match of the previous one.
// Results are deduplicated and kept in document order.
func resolvePath(root *html.Node, path models.Path) []*html.Node {
	order := documentOrder(root)
	scopes := []*html.Node{root}
	for _, step := range path {
		seen := make(map[*html.Node]bool)
		var next []*html.Node
		for _, scope := range scopes {
			for _, n := range matchQuery(root, scope, step.Query) {
				if !seen[n] {
					seen[n] = true
					next = append(next, n)
				}
			}
		}
		sortByOrder(next, order)
		if step.Nth != nil {
			next = pick(next, *step.Nth)
		}
		scopes = next
		if len(scopes) == 0 {
			break
		}
	}
	return scopes
}

func pick(nodes []*html.Node, i int) []*html.Node {
	if i < 0 {
		i += len(nodes)
	}
	if i < 0 || i >= len(nodes) {
		return nil
	}
	return nodes[i : i+1]
}

func documentOrder(root *html.Node) map[*html.Node]int {
	order := make(map[*html.Node]int)
	walk(root, func(n *html.Node) { order[n] = len(order) })
	return order
}

func sortByOrder(nodes []*html.Node, order map[*html.Node]int) {
	// insertion sort; match sets are small
	for i := 1; i < len(nodes); i++ {
		for j := i; j > 0 && order[nodes[j]] < order[nodes[j-1]]; j-- {
			nodes[j], nodes[j-1] = nodes[j-1], nodes[j]
		}
	}
}

func walk(n *html.Node, fn func(*html.Node)) {
	if n.Type == html.ElementNode {
		fn(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

// descendants returns the element descendants of scope, excluding scope
func descendants(scope *html.Node) []*html.Node {
	var out []*html.Node
	for c := scope.FirstChild; c != nil; c = c.NextSibling {
		walk(c, func(n *html.Node) { out = append(out, n) })
	}
	return out
}

func matchQuery(root, scope *html.Node, q models.Query) []*html.Node {
	var found []*html.Node
	switch q.Kind {
	case models.QueryFilter:
		if scope != root {
			found = []*html.Node{scope}
		}
	case models.QueryCSS:
		found = goquery.NewDocumentFromNode(scope).Find(q.Value).Nodes
	case models.QueryTestID:
		for _, n := range descendants(scope) {
			if attr(n, "data-testid") == q.Value {
				found = append(found, n)
			}
		}
	case models.QueryPlaceholder:
		for _, n := range descendants(scope) {
			if v, ok := attrOK(n, "placeholder"); ok && matchText(v, q.Value, q.Exact) {
				found = append(found, n)
			}
		}
	case models.QueryText:
		found = matchByText(scope, q.Value, q.Exact)
	case models.QueryLabel:
		found = matchByLabel(root, scope, q.Value, q.Exact)
	case models.QueryRole:
		for _, n := range descendants(scope) {
			if roleOf(n) != q.Value || !isVisible(n) {
				continue
			}
			if q.Name != "" && !matchText(accessibleName(root, n), q.Name, q.Exact) {
				continue
			}
			found = append(found, n)
		}
	}

	if q.HasText == "" {
		return found
	}
	kept := found[:0:0]
	for _, n := range found {
		if matchText(textContent(n), q.HasText, false) {
			kept = append(kept, n)
		}
	}
	return kept
}

// matchByText returns the innermost elements whose text matches
func matchByText(scope *html.Node, want string, exact bool) []*html.Node {
	var out []*html.Node
	for _, n := range descendants(scope) {
		if skipText(n) || !matchText(textContent(n), want, exact) {
			continue
		}
		inner := false
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && !skipText(c) && matchText(textContent(c), want, exact) {
				inner = true
				break
			}
		}
		if !inner {
			out = append(out, n)
		}
	}
	return out
}

func skipText(n *html.Node) bool {
	switch n.Data {
	case "script", "style", "head", "title", "html", "body":
		return true
	}
	return false
}

// matchByLabel finds controls labelled by aria-label, aria-labelledby or <label>
func matchByLabel(root, scope *html.Node, want string, exact bool) []*html.Node {
	var out []*html.Node
	inScope := make(map[*html.Node]bool)
	for _, n := range descendants(scope) {
		inScope[n] = true
	}
	add := func(n *html.Node) {
		if n != nil && inScope[n] {
			out = append(out, n)
		}
	}

	for _, n := range descendants(root) {
		if v, ok := attrOK(n, "aria-label"); ok && matchText(v, want, exact) {
			add(n)
			continue
		}
		if ids, ok := attrOK(n, "aria-labelledby"); ok && matchText(textOfIDs(root, ids), want, exact) {
			add(n)
			continue
		}
		if n.Data != "label" || !matchText(textContent(n), want, exact) {
			continue
		}
		if id := attr(n, "for"); id != "" {
			add(byID(root, id))
		} else {
			add(firstControl(n))
		}
	}
	return out
}

func firstControl(n *html.Node) *html.Node {
	for _, d := range descendants(n) {
		if isControl(d) {
			return d
		}
	}
	return nil
}

func isControl(n *html.Node) bool {
	switch n.Data {
	case "input", "textarea", "select", "button":
		return true
	}
	return false
}

func byID(root *html.Node, id string) *html.Node {
	var hit *html.Node
	walk(root, func(n *html.Node) {
		if hit == nil && attr(n, "id") == id {
			hit = n
		}
	})
	return hit
}

func textOfIDs(root *html.Node, ids string) string {
	var parts []string
	for _, id := range strings.Fields(ids) {
		if n := byID(root, id); n != nil {
			parts = append(parts, textContent(n))
		}
	}
	return strings.Join(parts, " ")
}

// roleOf returns the explicit or implicit ARIA role of n
func roleOf(n *html.Node) string {
	if r := strings.Fields(attr(n, "role")); len(r) > 0 {
		return r[0]
	}
	switch n.Data {
	case "a", "area":
		if _, ok := attrOK(n, "href"); ok {
			return "link"
		}
	case "button":
		return "button"
	case "input":
		switch strings.ToLower(attr(n, "type")) {
		case "checkbox":
			return "checkbox"
		case "radio":
			return "radio"
		case "button", "submit", "reset", "image":
			return "button"
		case "search":
			return "searchbox"
		case "range":
			return "slider"
		case "hidden":
			return ""
		default:
			return "textbox"
		}
	case "textarea":
		return "textbox"
	case "select":
		return "combobox"
	case "h1", "h2", "h3", "h4", "h5", "h6":
		return "heading"
	case "ul", "ol":
		return "list"
	case "li":
		return "listitem"
	case "nav":
		return "navigation"
	case "main":
		return "main"
	case "header":
		return "banner"
	case "footer":
		return "contentinfo"
	case "img":
		return "img"
	case "dialog":
		return "dialog"
	case "form":
		return "form"
	case "table":
		return "table"
	}
	return ""
}

func accessibleName(root, n *html.Node) string {
	if v := attr(n, "aria-label"); v != "" {
		return v
	}
	if ids := attr(n, "aria-labelledby"); ids != "" {
		if s := textOfIDs(root, ids); s != "" {
			return s
		}
	}
	switch n.Data {
	case "input", "textarea", "select":
		switch strings.ToLower(attr(n, "type")) {
		case "button", "submit", "reset":
			return attr(n, "value")
		}
		if id := attr(n, "id"); id != "" {
			var name string
			walk(root, func(l *html.Node) {
				if name == "" && l.Data == "label" && attr(l, "for") == id {
					name = textContent(l)
				}
			})
			if name != "" {
				return name
			}
		}
		for p := n.Parent; p != nil; p = p.Parent {
			if p.Type == html.ElementNode && p.Data == "label" {
				return textContent(p)
			}
		}
		if v := attr(n, "title"); v != "" {
			return v
		}
		return attr(n, "placeholder")
	case "img":
		return attr(n, "alt")
	}
	if s := normalizeSpace(textContent(n)); s != "" {
		return s
	}
	return attr(n, "title")
}

// isVisible is false when n or an ancestor is hidden or display:none
func isVisible(n *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p.Type != html.ElementNode {
			continue
		}
		if _, ok := attrOK(p, "hidden"); ok {
			return false
		}
		style := strings.ReplaceAll(strings.ToLower(attr(p, "style")), " ", "")
		if strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden") {
			return false
		}
		if p.Data == "input" && strings.EqualFold(attr(p, "type"), "hidden") {
			return false
		}
		if p.Data == "head" || p.Data == "script" || p.Data == "style" {
			return false
		}
	}
	return true
}

func stateOf(n *html.Node) models.ElementState {
	st := models.ElementState{
		Tag:        n.Data,
		Text:       textContent(n),
		Class:      attr(n, "class"),
		Visible:    isVisible(n),
		Attributes: make(map[string]string, len(n.Attr)),
	}
	for _, a := range n.Attr {
		st.Attributes[a.Key] = a.Val
	}
	switch n.Data {
	case "input":
		st.Value = attr(n, "value")
		_, st.Checked = attrOK(n, "checked")
	case "textarea":
		st.Value = st.Text
	}
	if v, ok := attrOK(n, "aria-checked"); ok {
		st.Checked = v == "true"
	}
	return st
}

func targetOf(n *html.Node) Target {
	t := Target{
		Tag:   n.Data,
		Attrs: make(map[string]string, len(n.Attr)),
		Text:  textContent(n),
		Index: -1,
	}
	for _, a := range n.Attr {
		t.Attrs[a.Key] = a.Val
	}
	for p := n; p != nil; p = p.Parent {
		if v, ok := attrOK(p, "data-index"); ok {
			if i, err := strconv.Atoi(v); err == nil {
				t.Index = i
			}
			break
		}
	}
	return t
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var rec func(*html.Node)
	rec = func(c *html.Node) {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
			return
		}
		if c.Type == html.ElementNode && (c.Data == "script" || c.Data == "style") {
			return
		}
		for ch := c.FirstChild; ch != nil; ch = ch.NextSibling {
			rec(ch)
		}
	}
	rec(n)
	return sb.String()
}

func matchText(actual, want string, exact bool) bool {
	a, w := normalizeSpace(actual), normalizeSpace(want)
	if exact {
		return a == w
	}
	return strings.Contains(strings.ToLower(a), strings.ToLower(w))
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func attr(n *html.Node, key string) string {
	v, _ := attrOK(n, key)
	return v
}

func attrOK(n *html.Node, key string) (string, bool) {
	if n == nil || n.Type != html.ElementNode {
		return "", false
	}
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}
