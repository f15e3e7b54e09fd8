package dom

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"testing"

	"github.com/chromedp/chromedp"
	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/IRandonation/AutoTikTokSendComment/internal/config"
	"github.com/IRandonation/AutoTikTokSendComment/internal/delivery"
)

//go:embed testdata/fakedom.js
var fakeDOM string

// gojaPage evaluates page scripts against the fake DOM.
type gojaPage struct {
	t  *testing.T
	vm *goja.Runtime
}

func newPage(t *testing.T) *gojaPage {
	vm := goja.New()
	_, err := vm.RunString(fakeDOM)
	require.NoError(t, err, "fake DOM prelude must load")
	return &gojaPage{t: t, vm: vm}
}

func (p *gojaPage) Evaluate(_ context.Context, expression string, res interface{}) error {
	v, err := p.vm.RunString("JSON.stringify(" + expression + ")")
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(v.String()), res)
}

// js runs setup or inspection code in the page.
func (p *gojaPage) js(code string) goja.Value {
	v, err := p.vm.RunString(code)
	require.NoError(p.t, err, code)
	return v
}

func (p *gojaPage) str(code string) string   { return p.js(code).String() }
func (p *gojaPage) boolean(code string) bool { return p.js(code).ToBoolean() }
func (p *gojaPage) integer(code string) int64 {
	return p.js(code).ToInteger()
}

func (p *gojaPage) strings(code string) []string {
	var out []string
	require.NoError(p.t, json.Unmarshal([]byte(p.str("JSON.stringify("+code+")")), &out))
	return out
}

func defaultSelectors() Selectors {
	return Selectors{
		Input:       config.DefaultInputSelectors,
		Button:      config.DefaultButtonSelectors,
		ButtonTexts: config.DefaultButtonTexts,
	}
}

func newTestLocator(t *testing.T, page *gojaPage) *Locator {
	return NewLocator(page, defaultSelectors(), zaptest.NewLogger(t))
}

// -- Locator --

func TestFindChatInputPriority(t *testing.T) {
	page := newPage(t)
	page.js(`
		var hidden = document.register('textarea.webcast-room__chat_input_editor', new TextArea({hidden: true}));
		var second = document.register('textarea[placeholder*="说点什么"]', new TextArea());
		document.register('textarea', second);
	`)
	loc := newTestLocator(t, page)

	field, err := loc.FindChatInput(context.Background())
	require.NoError(t, err)

	assert.IsType(t, &valueField{}, field)
	assert.False(t, field.Editable())
	assert.Equal(t, `[data-autosend-id="chat-input"]`, field.Selector())
	assert.Equal(t, "chat-input", page.str(`second.getAttribute('data-autosend-id')`))
	assert.True(t, page.boolean(`hidden.getAttribute('data-autosend-id') === null`))
}

func TestFindChatInputSkipsDisabledAndBadSelectors(t *testing.T) {
	page := newPage(t)
	page.js(`
		document.register('textarea.webcast-room__chat_input_editor', new TextArea({disabled: true}));
		document.register('.chat-input-container textarea', new TextArea({aria: 'true'}));
		var fallback = document.register('textarea', new TextArea({fixed: true, hidden: true}));
	`)
	sel := defaultSelectors()
	sel.Input = append([]string{"!!broken"}, sel.Input...)
	loc := NewLocator(page, sel, zaptest.NewLogger(t))

	_, err := loc.FindChatInput(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "chat-input", page.str(`fallback.getAttribute('data-autosend-id')`),
		"fixed-position element without offsetParent still counts as laid out")
}

func TestFindChatInputContentEditable(t *testing.T) {
	page := newPage(t)
	page.js(`var rich = document.register('div[contenteditable="true"]', new Element('div'));`)
	loc := newTestLocator(t, page)

	field, err := loc.FindChatInput(context.Background())
	require.NoError(t, err)
	assert.IsType(t, &editableField{}, field)
	assert.True(t, field.Editable())
}

func TestFindChatInputNotFound(t *testing.T) {
	page := newPage(t)
	page.js(`document.register('textarea', new TextArea({hidden: true}));`)
	loc := newTestLocator(t, page)

	_, err := loc.FindChatInput(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTargetNotFound))
	assert.True(t, errors.Is(err, delivery.ErrTargetNotFound))

	_, err = loc.FindInput(context.Background())
	assert.ErrorIs(t, err, ErrTargetNotFound)
}

func TestFindChatInputMovesTag(t *testing.T) {
	page := newPage(t)
	page.js(`
		var first = document.register('textarea.webcast-room__chat_input_editor', new TextArea());
		var next = document.register('textarea', new TextArea());
	`)
	loc := newTestLocator(t, page)

	_, err := loc.FindChatInput(context.Background())
	require.NoError(t, err)
	require.Equal(t, "chat-input", page.str(`first.getAttribute('data-autosend-id')`))

	page.js(`first.offsetParent = null;`)
	_, err = loc.FindChatInput(context.Background())
	require.NoError(t, err)

	assert.True(t, page.boolean(`first.getAttribute('data-autosend-id') === null`), "stale tag must be removed")
	assert.Equal(t, "chat-input", page.str(`next.getAttribute('data-autosend-id')`))
}

// -- Controlled fields --

func TestValueFieldWriteBypassesInstanceSetter(t *testing.T) {
	page := newPage(t)
	page.js(`var ta = track(document.register('textarea', new TextArea()));`)
	loc := newTestLocator(t, page)
	ctx := context.Background()

	field, err := loc.FindChatInput(ctx)
	require.NoError(t, err)
	require.NoError(t, field.Write(ctx, "喜欢主播"))

	assert.Equal(t, "喜欢主播", page.str(`ta._value`))
	assert.Equal(t, "", page.str(`ta.trackedValue`), "instance setter must not see the write")
	assert.Equal(t, int64(1), page.integer(`ta.protoSets`))
	assert.True(t, page.boolean(`ta.focused`))
	assert.Equal(t, []string{"click", "input", "change"}, page.strings(`ta.events`))

	value, err := field.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, "喜欢主播", value)
}

func TestValueFieldWriteWithoutInstanceSetter(t *testing.T) {
	page := newPage(t)
	page.js(`var ta = document.register('textarea', new TextArea());`)
	loc := newTestLocator(t, page)
	ctx := context.Background()

	field, err := loc.FindChatInput(ctx)
	require.NoError(t, err)
	require.NoError(t, field.Write(ctx, "来了"))
	require.NoError(t, field.Write(ctx, ""))

	assert.Equal(t, "", page.str(`ta.value`))
	assert.Equal(t, int64(2), page.integer(`ta.protoSets`))
}

func TestEditableFieldWriteAndRead(t *testing.T) {
	page := newPage(t)
	page.js(`var rich = document.register('div[contenteditable="true"]', new Element('div'));`)
	loc := newTestLocator(t, page)
	ctx := context.Background()

	field, err := loc.FindChatInput(ctx)
	require.NoError(t, err)
	require.NoError(t, field.Write(ctx, "hello"))

	assert.Equal(t, "hello", page.str(`rich.textContent`))
	assert.Equal(t, []string{"click", "input", "change"}, page.strings(`rich.events`))

	value, err := field.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, "hello", value)
}

func TestReadRelocatesDetachedInput(t *testing.T) {
	page := newPage(t)
	page.js(`
		var old = document.register('textarea.webcast-room__chat_input_editor', new TextArea());
		var replacement = document.register('textarea', new TextArea());
	`)
	loc := newTestLocator(t, page)
	ctx := context.Background()

	field, err := loc.FindChatInput(ctx)
	require.NoError(t, err)
	require.NoError(t, field.Write(ctx, "hi"))

	page.js(`old.detached = true; replacement._value = 'left over';`)

	value, err := field.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, "left over", value)
}

func TestReadFailsWhenInputGone(t *testing.T) {
	page := newPage(t)
	page.js(`var only = document.register('textarea', new TextArea());`)
	loc := newTestLocator(t, page)
	ctx := context.Background()

	field, err := loc.FindChatInput(ctx)
	require.NoError(t, err)

	page.js(`only.detached = true;`)
	_, err = field.Read(ctx)
	assert.ErrorIs(t, err, ErrTargetNotFound)

	err = field.Write(ctx, "x")
	assert.ErrorIs(t, err, ErrTargetNotFound)
}

func TestPressEnterAndNudge(t *testing.T) {
	page := newPage(t)
	page.js(`var ta = document.register('textarea', new TextArea());`)
	loc := newTestLocator(t, page)
	ctx := context.Background()

	field, err := loc.FindChatInput(ctx)
	require.NoError(t, err)
	require.NoError(t, field.PressEnter(ctx))
	require.NoError(t, field.Nudge(ctx))

	assert.Equal(t, []string{
		"keydown:Enter:Enter:13",
		"keypress:Enter:Enter:13",
		"keyup:Enter:Enter:13",
	}, page.strings(`ta.keys`))
	assert.Equal(t, []string{"keydown", "keypress", "keyup", "input"}, page.strings(`ta.events`))
}

// -- Send button --

func TestFindSendButtonByClass(t *testing.T) {
	page := newPage(t)
	page.js(`var btn = document.register('.webcast-room__chat_send_btn', new Element('button', {disabled: true}));`)
	loc := newTestLocator(t, page)
	ctx := context.Background()

	button, err := loc.FindSendButton(ctx)
	require.NoError(t, err, "disabled buttons are still returned")

	enabled, err := button.Enabled(ctx)
	require.NoError(t, err)
	assert.False(t, enabled)

	page.js(`btn.disabled = false;`)
	enabled, err = button.Enabled(ctx)
	require.NoError(t, err)
	assert.True(t, enabled)

	require.NoError(t, button.Press(ctx))
	assert.Equal(t, []string{"mousedown", "mouseup", "click"}, page.strings(`btn.events`))
}

func TestSendButtonHiddenIsNotEnabled(t *testing.T) {
	page := newPage(t)
	page.js(`var btn = document.register('button[class*="send-btn"]', new Element('button', {hidden: true}));`)
	loc := newTestLocator(t, page)
	ctx := context.Background()

	button, err := loc.FindSendButton(ctx)
	require.NoError(t, err)
	enabled, err := button.Enabled(ctx)
	require.NoError(t, err)
	assert.False(t, enabled)

	page.js(`btn.detached = true;`)
	err = button.Press(ctx)
	assert.ErrorIs(t, err, ErrTargetNotFound)
}

func TestFindSendButtonByText(t *testing.T) {
	page := newPage(t)
	page.js(`
		document.register('button, div[role="button"]', new Element('button', {text: '表情'}));
		var send = document.register('button, div[role="button"]', new Element('div', {text: '  发送  '}));
	`)
	loc := newTestLocator(t, page)

	button, err := loc.FindSendButton(context.Background())
	require.NoError(t, err)
	assert.Equal(t, `[data-autosend-id="send-button"]`, button.(*SendButton).Selector())
	assert.Equal(t, "send-button", page.str(`send.getAttribute('data-autosend-id')`))
}

func TestFindSendButtonNotFound(t *testing.T) {
	page := newPage(t)
	page.js(`document.register('button, div[role="button"]', new Element('button', {text: 'Like'}));`)
	loc := newTestLocator(t, page)

	_, err := loc.FindSendButton(context.Background())
	assert.ErrorIs(t, err, ErrTargetNotFound)
}

// -- Key pressers --

func TestSyntheticPresserTargets(t *testing.T) {
	page := newPage(t)
	like := Key{Key: "z", Code: "KeyZ", KeyCode: 90}
	presser := NewSyntheticPresser(page, config.DefaultLikeTargets)
	ctx := context.Background()

	require.NoError(t, presser.Press(ctx, like))
	assert.Equal(t, []string{"keydown:z:KeyZ:90", "keypress:z:KeyZ:90", "keyup:z:KeyZ:90"},
		page.strings(`document.body.keys`), "body is the last resort")

	page.js(`var player = document.register('.xgplayer-container', new Element('div'));`)
	require.NoError(t, presser.Press(ctx, like))
	assert.Len(t, page.strings(`player.keys`), 3)
	assert.Len(t, page.strings(`document.body.keys`), 3, "body must not receive the second press")
}

func TestScriptErrorsPropagate(t *testing.T) {
	page := newPage(t)
	page.js(`document.querySelectorAll = function () { throw new Error('boom'); };`)
	loc := newTestLocator(t, page)

	_, err := loc.FindChatInput(context.Background())
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrTargetNotFound))
	assert.Contains(t, err.Error(), "boom")
}

type countingExecutor struct {
	calls   int
	actions int
}

func (c *countingExecutor) RunActions(_ context.Context, actions ...chromedp.Action) error {
	c.calls++
	c.actions += len(actions)
	return nil
}

func TestNativePresserRunsSingleAction(t *testing.T) {
	exec := &countingExecutor{}
	presser := NewNativePresser(exec)

	require.NoError(t, presser.Press(context.Background(), EnterKey))
	assert.Equal(t, 1, exec.calls)
	assert.Equal(t, 1, exec.actions)
}
