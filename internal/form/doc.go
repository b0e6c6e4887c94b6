// Package form models what a test case types into a web form.
//
// A FieldSet is the ordered list of label → value pairs submitted for one
// case. Values form a small tagged union:
//
//   - Text: a text input or a dropdown option label
//   - Bool: a checkbox state
//   - List: the chosen entries of a multiselect
//   - Rows: the rows of a dynamic table (macros, tags, LLD macros,
//     filters, preprocessing steps, custom intervals)
//
// How a value reaches the page depends on the widget kind, not on the value.
// The Layout of a page maps labels to kinds; each kind resolves to a Variant
// through a fixed lookup table, and the Variant drives the browser through
// the Widgets primitives.
package form
