package dom

import (
	"context"
	"errors"
	"fmt"

	"github.com/IRandonation/AutoTikTokSendComment/internal/delivery"
)

// ControlledField is a chat input whose visible value is owned by the page's
// UI framework.
type ControlledField interface {
	delivery.Field
	// Nudge re-fires the input event so the framework re-evaluates the value.
	Nudge(ctx context.Context) error
	Selector() string
	Editable() bool
}

func newControlledField(loc *Locator, res locateResult) ControlledField {
	base := fieldBase{loc: loc, selector: res.Selector}
	switch res.Tag {
	case "textarea", "input":
		return &valueField{fieldBase: base}
	default:
		return &editableField{fieldBase: base}
	}
}

// fieldBase holds what both variants share.
type fieldBase struct {
	loc      *Locator
	selector string
}

func (f *fieldBase) Selector() string { return f.selector }

func (f *fieldBase) write(ctx context.Context, script, text string) error {
	var res foundResult
	if err := runScript(ctx, f.loc.eval, script, selectorArgs{Selector: f.selector, Text: text}, &res); err != nil {
		return fmt.Errorf("failed to write input: %w", err)
	}
	if !res.Found {
		return fmt.Errorf("chat input detached: %w", ErrTargetNotFound)
	}
	return nil
}

type readResult struct {
	Found bool   `json:"found"`
	Value string `json:"value"`
}

func (f *fieldBase) readOnce(ctx context.Context, editable bool) (readResult, error) {
	var res readResult
	if err := runScript(ctx, f.loc.eval, readScript, selectorArgs{Selector: f.selector, Editable: editable}, &res); err != nil {
		return res, fmt.Errorf("failed to read input: %w", err)
	}
	return res, nil
}

// read falls back to a freshly located input when the tagged node was
// replaced by a rerender.
func (f *fieldBase) read(ctx context.Context, editable bool) (string, error) {
	res, err := f.readOnce(ctx, editable)
	if err != nil {
		return "", err
	}
	if res.Found {
		return res.Value, nil
	}

	fresh, err := f.loc.FindChatInput(ctx)
	if err != nil {
		return "", fmt.Errorf("chat input detached: %w", err)
	}
	res, err = f.readOnce(ctx, fresh.Editable())
	if err != nil {
		return "", err
	}
	if !res.Found {
		return "", errors.New("chat input detached during read")
	}
	return res.Value, nil
}

func (f *fieldBase) PressEnter(ctx context.Context) error {
	var res foundResult
	args := keyArgs{Key: EnterKey, Targets: []string{f.selector}}
	if err := runScript(ctx, f.loc.eval, keyScript, args, &res); err != nil {
		return fmt.Errorf("failed to press enter: %w", err)
	}
	return nil
}

func (f *fieldBase) Nudge(ctx context.Context) error {
	var res foundResult
	if err := runScript(ctx, f.loc.eval, nudgeScript, selectorArgs{Selector: f.selector}, &res); err != nil {
		return fmt.Errorf("failed to nudge input: %w", err)
	}
	if !res.Found {
		return fmt.Errorf("chat input detached: %w", ErrTargetNotFound)
	}
	return nil
}

// valueField is a textarea or input element.
type valueField struct {
	fieldBase
}

func (f *valueField) Write(ctx context.Context, text string) error {
	return f.write(ctx, writeValueScript, text)
}

func (f *valueField) Read(ctx context.Context) (string, error) {
	return f.read(ctx, false)
}

func (f *valueField) Editable() bool { return false }

// editableField is a contenteditable element.
type editableField struct {
	fieldBase
}

func (f *editableField) Write(ctx context.Context, text string) error {
	return f.write(ctx, writeEditableScript, text)
}

func (f *editableField) Read(ctx context.Context) (string, error) {
	return f.read(ctx, true)
}

func (f *editableField) Editable() bool { return true }
