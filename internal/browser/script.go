package browser

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Scripts run in the page and return JSON.stringify({found, value}) so both
// engines decode results the same way. Each takes (sel, css, arg).
const scriptPrelude = `
function __find(sel, css) {
	if (css) return document.querySelector(sel);
	return document.evaluate(sel, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue;
}
function __labelOf(input) {
	if (input.id) {
		const l = document.querySelector('label[for="' + CSS.escape(input.id) + '"]');
		if (l) return l.textContent.trim();
	}
	const p = input.closest('label');
	return p ? p.textContent.trim() : input.value;
}
function __group(el) {
	return el.name ? Array.from(document.getElementsByName(el.name)) : [el];
}
function __multi(el) {
	return el.closest('.multiselect-control') || el.closest('.multiselect') || el;
}
`

const scriptReadField = `(sel, css) => {
	const el = __find(sel, css);
	if (!el) return {found: false};
	if (el.type === 'radio') {
		const checked = __group(el).find(r => r.checked);
		return {found: true, value: checked ? __labelOf(checked) : ''};
	}
	if (el.type === 'checkbox') return {found: true, value: String(el.checked)};
	if (el.tagName === 'SELECT') {
		const opt = el.options[el.selectedIndex];
		return {found: true, value: opt ? opt.textContent.trim() : ''};
	}
	if (el.tagName === 'Z-SELECT') {
		const li = el.querySelector('li[aria-selected="true"]') || el.querySelector('button');
		return {found: true, value: li ? li.textContent.trim() : ''};
	}
	return {found: true, value: el.value !== undefined ? el.value : el.textContent.trim()};
}`

const scriptSetSelect = `(sel, css, option) => {
	const el = __find(sel, css);
	if (!el) return {found: false};
	if (el.type === 'radio') {
		const target = __group(el).find(r => __labelOf(r) === option);
		if (!target) return {found: true, value: 'no radio labelled ' + option};
		target.click();
		return {found: true, value: ''};
	}
	if (el.tagName === 'SELECT' || el.tagName === 'Z-SELECT') {
		const opts = el.tagName === 'SELECT' ? Array.from(el.options) : Array.from(el.querySelectorAll('li[value]'));
		const opt = opts.find(o => o.textContent.trim() === option);
		if (!opt) return {found: true, value: 'no option ' + option};
		el.value = opt.value !== undefined ? opt.value : opt.getAttribute('value');
		el.dispatchEvent(new Event('change', {bubbles: true}));
		return {found: true, value: ''};
	}
	return {found: true, value: el.tagName + ' is not a dropdown'};
}`

const scriptSetChecked = `(sel, css, on) => {
	const el = __find(sel, css);
	if (!el) return {found: false};
	if (el.checked !== on) el.click();
	return {found: true, value: el.checked === on ? '' : 'state did not change'};
}`

const scriptReadMulti = `(sel, css) => {
	const el = __find(sel, css);
	if (!el) return {found: false};
	const items = Array.from(__multi(el).querySelectorAll('.multiselect-list li'));
	return {found: true, value: items.map(li => (li.dataset.label || li.textContent).trim())};
}`

const scriptClearMulti = `(sel, css) => {
	const el = __find(sel, css);
	if (!el) return {found: false};
	const buttons = Array.from(__multi(el).querySelectorAll('.multiselect-list li button'));
	buttons.forEach(b => b.click());
	return {found: true, value: buttons.length};
}`

const scriptCountRows = `(sel, css) => {
	const el = __find(sel, css);
	if (!el) return {found: false};
	return {found: true, value: el.querySelectorAll('tr.form_row, tr.sortable, tr[data-index]').length};
}`

const scriptOuterHTML = `(sel, css) => {
	const el = __find(sel, css);
	if (!el) return {found: false};
	return {found: true, value: el.outerHTML};
}`

const scriptExists = `(sel, css) => {
	return {found: true, value: !!__find(sel, css)};
}`

// scriptResult is the envelope every script returns.
type scriptResult struct {
	Found bool            `json:"found"`
	Value json.RawMessage `json:"value"`
}

// buildScript wraps fn into a self-contained expression that evaluates to a
// JSON string.
func buildScript(fn string, sel selector, arg any) (string, error) {
	args := []any{sel.expr, sel.css}
	if arg != nil {
		args = append(args, arg)
	}
	encoded := make([]string, len(args))
	for i, a := range args {
		b, err := json.Marshal(a)
		if err != nil {
			return "", fmt.Errorf("encode script argument: %w", err)
		}
		encoded[i] = string(b)
	}
	return fmt.Sprintf("(() => { %s; return JSON.stringify((%s)(%s)); })()",
		scriptPrelude, fn, strings.Join(encoded, ", ")), nil
}

func decodeScript(raw string, out any) (bool, error) {
	var res scriptResult
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		return false, fmt.Errorf("decode script result: %w", err)
	}
	if !res.Found {
		return false, nil
	}
	if out != nil && len(res.Value) > 0 {
		if err := json.Unmarshal(res.Value, out); err != nil {
			return true, fmt.Errorf("decode script value: %w", err)
		}
	}
	return true, nil
}
