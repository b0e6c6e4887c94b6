package testutil

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/roach88/formharness/internal/browser"
	"github.com/roach88/formharness/internal/form"
)

var removeButton = regexp.MustCompile(`@id="([^"]+)".*element-table-remove.*\)\[(\d+)\]$`)

// FakeDriver is a scriptable browser.Driver that keeps form state in maps
// and records every call.
//
// OnClick runs after a click is recorded (open buttons, record links).
// OnSubmit decides the message shown after a submit or an accepted alert.
type FakeDriver struct {
	mu sync.Mutex

	OnClick  func(d *FakeDriver, locator string) error
	OnSubmit func(d *FakeDriver, button string) browser.Message

	// Missing locators fail with *browser.ElementNotFoundError.
	Missing map[string]bool
	// Slow locators fail with *browser.TimeoutError.
	Slow map[string]bool
	// Password, when set, is the only password Login accepts.
	Password string
	// AlertText is returned by AcceptAlert and DismissAlert.
	AlertText string

	calls   []string
	values  map[string]string
	multi   map[string][]string
	rows    map[string]int
	message *browser.Message
	closed  bool
}

var _ browser.Driver = (*FakeDriver)(nil)

// NewFakeDriver returns an empty driver.
func NewFakeDriver() *FakeDriver {
	d := &FakeDriver{Missing: map[string]bool{}, Slow: map[string]bool{}}
	d.reset()
	return d
}

func (d *FakeDriver) reset() {
	d.values = map[string]string{}
	d.multi = map[string][]string{}
	d.rows = map[string]int{}
	d.message = nil
}

func (d *FakeDriver) record(format string, args ...any) {
	d.calls = append(d.calls, fmt.Sprintf(format, args...))
}

func (d *FakeDriver) check(op, locator string) error {
	if d.Missing[locator] {
		return &browser.ElementNotFoundError{Locator: locator, Op: op}
	}
	if d.Slow[locator] {
		return &browser.TimeoutError{Op: op, Locator: locator}
	}
	return nil
}

// Calls returns the recorded calls.
func (d *FakeDriver) Calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

// ResetCalls forgets recorded calls.
func (d *FakeDriver) ResetCalls() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = nil
}

// Value returns the current value of a field. Use from callbacks.
func (d *FakeDriver) Value(locator string) string {
	return d.values[locator]
}

// Values returns a copy of every text, dropdown and checkbox value.
func (d *FakeDriver) Values() map[string]string {
	out := make(map[string]string, len(d.values))
	for k, v := range d.values {
		out[k] = v
	}
	return out
}

// Multi returns the entries of a multiselect. Use from callbacks.
func (d *FakeDriver) Multi(locator string) []string {
	return d.multi[locator]
}

// Preset sets a field as if the page rendered it. Use from callbacks.
func (d *FakeDriver) Preset(locator, value string) {
	d.values[locator] = value
}

// PresetMulti sets multiselect entries. Use from callbacks.
func (d *FakeDriver) PresetMulti(locator string, values []string) {
	d.multi[locator] = append([]string(nil), values...)
}

// PresetRows sets the row count of a table. Use from callbacks.
func (d *FakeDriver) PresetRows(table string, n int) {
	d.rows[table] = n
}

// Closed reports whether Close was called.
func (d *FakeDriver) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

func (d *FakeDriver) Open(ctx context.Context, path string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	d.record("open %s", path)
	d.reset()
	return nil
}

func (d *FakeDriver) Click(ctx context.Context, locator string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check("click", locator); err != nil {
		return err
	}
	d.record("click %s", locator)

	switch {
	case strings.HasPrefix(locator, "css:#") && strings.HasSuffix(locator, " .element-table-add"):
		table := strings.TrimSuffix(strings.TrimPrefix(locator, "css:#"), " .element-table-add")
		d.rows[table]++
	case removeButton.MatchString(locator):
		m := removeButton.FindStringSubmatch(locator)
		if d.rows[m[1]] > 0 {
			d.rows[m[1]]--
		}
	}

	if d.OnClick != nil {
		return d.OnClick(d, locator)
	}
	return nil
}

func (d *FakeDriver) SetText(ctx context.Context, locator, text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check("set text", locator); err != nil {
		return err
	}
	d.record("set %s=%s", locator, text)
	d.values[locator] = text
	return nil
}

func (d *FakeDriver) SetSelect(ctx context.Context, locator, option string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check("select", locator); err != nil {
		return err
	}
	d.record("select %s=%s", locator, option)
	d.values[locator] = option
	return nil
}

func (d *FakeDriver) SetChecked(ctx context.Context, locator string, on bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check("check", locator); err != nil {
		return err
	}
	d.record("check %s=%t", locator, on)
	d.values[locator] = strconv.FormatBool(on)
	return nil
}

func (d *FakeDriver) SetMulti(ctx context.Context, locator string, values []string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check("multiselect", locator); err != nil {
		return err
	}
	d.record("multiselect %s=[%s]", locator, strings.Join(values, ", "))
	d.multi[locator] = append([]string{}, values...)
	return nil
}

func (d *FakeDriver) ReadField(ctx context.Context, locator string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check("read", locator); err != nil {
		return "", err
	}
	return d.values[locator], nil
}

func (d *FakeDriver) ReadMulti(ctx context.Context, locator string) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check("read multiselect", locator); err != nil {
		return nil, err
	}
	return append([]string{}, d.multi[locator]...), nil
}

func (d *FakeDriver) CountRows(ctx context.Context, table string) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check("count rows", "id:"+table); err != nil {
		return 0, err
	}
	return d.rows[table], nil
}

func (d *FakeDriver) FillField(ctx context.Context, label string, value form.Value) error {
	switch v := value.(type) {
	case form.Text:
		return d.SetText(ctx, label, string(v))
	case form.Bool:
		return d.SetChecked(ctx, label, bool(v))
	case form.List:
		return d.SetMulti(ctx, label, v)
	default:
		return fmt.Errorf("fill %q: %T values need a field layout", label, value)
	}
}

func (d *FakeDriver) Submit(ctx context.Context, button string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check("click", "button:"+button); err != nil {
		return err
	}
	d.record("submit %s", button)
	if d.OnSubmit != nil {
		msg := d.OnSubmit(d, button)
		d.message = &msg
	}
	return nil
}

func (d *FakeDriver) ReadMessage(ctx context.Context) (browser.Message, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.message == nil {
		return browser.Message{}, &browser.ElementNotFoundError{Locator: browser.MessageSelector, Op: "read message"}
	}
	return *d.message, nil
}

func (d *FakeDriver) Exists(ctx context.Context, locator string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return !d.Missing[locator], nil
}

func (d *FakeDriver) CloseDialog(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("close dialog")
	d.reset()
	return nil
}

func (d *FakeDriver) AcceptAlert(ctx context.Context, locator string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check("alert", locator); err != nil {
		return "", err
	}
	d.record("accept %s", locator)
	if d.OnSubmit != nil {
		msg := d.OnSubmit(d, strings.TrimPrefix(locator, "button:"))
		d.message = &msg
	}
	return d.AlertText, nil
}

func (d *FakeDriver) DismissAlert(ctx context.Context, locator string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check("alert", locator); err != nil {
		return "", err
	}
	d.record("dismiss %s", locator)
	return d.AlertText, nil
}

func (d *FakeDriver) Login(ctx context.Context, user, password string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("login %s", user)
	if d.Password != "" && password != d.Password {
		return &browser.LoginError{User: user}
	}
	return nil
}

func (d *FakeDriver) Screenshot(ctx context.Context, name string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("screenshot %s", name)
	return "", nil
}

func (d *FakeDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}
