package dom

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
)

// KeyPresser delivers one full key press to the page.
type KeyPresser interface {
	Press(ctx context.Context, key Key) error
}

type keyArgs struct {
	Key
	Targets []string `json:"targets"`
}

// SyntheticPresser dispatches KeyboardEvents from page script onto the first
// existing target, or the document body.
type SyntheticPresser struct {
	eval    Evaluator
	targets []string
}

// NewSyntheticPresser creates a SyntheticPresser.
func NewSyntheticPresser(eval Evaluator, targets []string) *SyntheticPresser {
	return &SyntheticPresser{eval: eval, targets: targets}
}

func (p *SyntheticPresser) Press(ctx context.Context, key Key) error {
	var res foundResult
	if err := runScript(ctx, p.eval, keyScript, keyArgs{Key: key, Targets: p.targets}, &res); err != nil {
		return fmt.Errorf("failed to dispatch key %q: %w", key.Key, err)
	}
	if !res.Found {
		return fmt.Errorf("key target: %w", ErrTargetNotFound)
	}
	return nil
}

// NativePresser sends trusted key events through the DevTools input domain.
// They reach whatever element has focus.
type NativePresser struct {
	exec Executor
}

// NewNativePresser creates a NativePresser.
func NewNativePresser(exec Executor) *NativePresser {
	return &NativePresser{exec: exec}
}

func (p *NativePresser) Press(ctx context.Context, key Key) error {
	text := key.Key
	if key == EnterKey {
		text = "\r"
	}
	down := input.DispatchKeyEvent(input.KeyDown).
		WithKey(key.Key).
		WithCode(key.Code).
		WithWindowsVirtualKeyCode(int64(key.KeyCode)).
		WithNativeVirtualKeyCode(int64(key.KeyCode))
	if len([]rune(text)) == 1 {
		down = down.WithText(text)
	}
	up := input.DispatchKeyEvent(input.KeyUp).
		WithKey(key.Key).
		WithCode(key.Code).
		WithWindowsVirtualKeyCode(int64(key.KeyCode)).
		WithNativeVirtualKeyCode(int64(key.KeyCode))

	err := p.exec.RunActions(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		if err := down.Do(ctx); err != nil {
			return err
		}
		return up.Do(ctx)
	}))
	if err != nil {
		return fmt.Errorf("failed to dispatch native key %q: %w", key.Key, err)
	}
	return nil
}
