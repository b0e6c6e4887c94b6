// Package browser drives the web console through a real browser.
//
// Browser implements Driver on top of one of two engines: chromedp (the
// default) or rod. Engines only know how to navigate, wait for, click and
// type into elements, run a script and handle JavaScript dialogs. Everything
// else (label lookup, dropdowns, multiselects, dynamic tables, message
// parsing) is shared, so both engines behave the same way.
//
// Locators:
//
//	Host name          an element whose <label> text is "Host name"
//	id:host            element id
//	name:macros[0][macro]
//	css:#tbl_macros .element-table-add
//	xpath://button[@id='enter']
//	link:Calc item     an anchor by its text
//	button:Add         a button by its text
//
// Every blocking call waits for the element to be present and gives up
// after the configured timeout with a *TimeoutError, or an
// *ElementNotFoundError when the element never appeared.
package browser
