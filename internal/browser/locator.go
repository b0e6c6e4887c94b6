package browser

import (
	"fmt"
	"strings"
)

// selector is a resolved locator: either a CSS selector or an XPath.
type selector struct {
	raw  string
	expr string
	css  bool
}

func (s selector) String() string {
	return s.raw
}

// resolve turns a locator string into a selector.
func resolve(locator string) selector {
	prefix, value, ok := strings.Cut(locator, ":")
	if ok {
		switch prefix {
		case "id":
			return selector{raw: locator, expr: fmt.Sprintf("//*[@id=%s]", xpathLiteral(value))}
		case "name":
			return selector{raw: locator, expr: fmt.Sprintf("//*[@name=%s]", xpathLiteral(value))}
		case "css":
			return selector{raw: locator, expr: value, css: true}
		case "xpath":
			return selector{raw: locator, expr: value}
		case "link":
			return selector{raw: locator, expr: fmt.Sprintf("//a[normalize-space()=%s]", xpathLiteral(value))}
		case "button":
			lit := xpathLiteral(value)
			return selector{raw: locator, expr: fmt.Sprintf(
				"//button[normalize-space()=%s] | //input[(@type='submit' or @type='button') and @value=%s]", lit, lit)}
		}
	}
	return labelSelector(locator)
}

// Button returns the locator of a button by its caption. Strings that
// already carry a locator prefix are returned unchanged.
func Button(s string) string {
	if prefix, _, ok := strings.Cut(s, ":"); ok {
		switch prefix {
		case "id", "name", "css", "xpath", "link", "button":
			return s
		}
	}
	return "button:" + s
}

// labelSelector finds the element a <label> points at through its for
// attribute.
func labelSelector(label string) selector {
	return selector{
		raw:  label,
		expr: fmt.Sprintf("//*[@id=//label[normalize-space()=%s]/@for]", xpathLiteral(label)),
	}
}

// xpathLiteral quotes s for use in an XPath 1.0 expression.
func xpathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	quoted := make([]string, 0, len(parts)*2)
	for i, p := range parts {
		if i > 0 {
			quoted = append(quoted, `"'"`)
		}
		if p != "" {
			quoted = append(quoted, "'"+p+"'")
		}
	}
	return "concat(" + strings.Join(quoted, ", ") + ")"
}
