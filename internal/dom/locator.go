package dom

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/IRandonation/AutoTikTokSendComment/internal/delivery"
)

// buttonTextScope bounds the text scan for the send control.
const buttonTextScope = `button, div[role="button"]`

// Selectors configures the locator. Each list is tried in order.
type Selectors struct {
	Input       []string
	Button      []string
	ButtonTexts []string
}

// Locator finds page elements by trying selectors in priority order.
// It implements delivery.Surface.
type Locator struct {
	eval      Evaluator
	selectors Selectors
	logger    *zap.Logger
}

var _ delivery.Surface = (*Locator)(nil)

// NewLocator creates a Locator.
func NewLocator(eval Evaluator, selectors Selectors, logger *zap.Logger) *Locator {
	return &Locator{
		eval:      eval,
		selectors: selectors,
		logger:    logger.Named("locator"),
	}
}

type locateArgs struct {
	Attr          string   `json:"attr"`
	Token         string   `json:"token"`
	Selectors     []string `json:"selectors"`
	RequireUsable bool     `json:"requireUsable"`
	Texts         []string `json:"texts,omitempty"`
	TextScope     string   `json:"textScope,omitempty"`
}

type locateResult struct {
	Found    bool   `json:"found"`
	Selector string `json:"selector"`
	Tag      string `json:"tag"`
	Strategy string `json:"strategy"`
}

func (l *Locator) locate(ctx context.Context, args locateArgs) (locateResult, error) {
	var res locateResult
	if err := runScript(ctx, l.eval, locateScript, args, &res); err != nil {
		return res, fmt.Errorf("failed to run locator script: %w", err)
	}
	return res, nil
}

// FindChatInput returns the first enabled, visible chat input.
func (l *Locator) FindChatInput(ctx context.Context) (ControlledField, error) {
	res, err := l.locate(ctx, locateArgs{
		Attr:          tagAttribute,
		Token:         tokenChatInput,
		Selectors:     l.selectors.Input,
		RequireUsable: true,
	})
	if err != nil {
		return nil, err
	}
	if !res.Found {
		return nil, fmt.Errorf("chat input: %w", ErrTargetNotFound)
	}
	l.logger.Debug("Chat input located", zap.String("strategy", res.Strategy), zap.String("tag", res.Tag))
	return newControlledField(l, res), nil
}

// FindSendButton returns the send control. Class selectors win over the text scan.
// The button is returned even when disabled; callers check Enabled.
func (l *Locator) FindSendButton(ctx context.Context) (delivery.Button, error) {
	res, err := l.locate(ctx, locateArgs{
		Attr:      tagAttribute,
		Token:     tokenSendButton,
		Selectors: l.selectors.Button,
		Texts:     l.selectors.ButtonTexts,
		TextScope: buttonTextScope,
	})
	if err != nil {
		return nil, err
	}
	if !res.Found {
		return nil, fmt.Errorf("send button: %w", ErrTargetNotFound)
	}
	l.logger.Debug("Send button located", zap.String("strategy", res.Strategy))
	return &SendButton{eval: l.eval, selector: res.Selector}, nil
}

// FindInput implements delivery.Surface.
func (l *Locator) FindInput(ctx context.Context) (delivery.Field, error) {
	field, err := l.FindChatInput(ctx)
	if err != nil {
		return nil, err
	}
	return field, nil
}

// SendButton is a tagged send control.
type SendButton struct {
	eval     Evaluator
	selector string
}

type buttonState struct {
	Found   bool `json:"found"`
	Enabled bool `json:"enabled"`
}

// Enabled reports whether the button is present, not disabled and laid out.
func (b *SendButton) Enabled(ctx context.Context) (bool, error) {
	var res buttonState
	if err := runScript(ctx, b.eval, buttonStateScript, selectorArgs{Selector: b.selector}, &res); err != nil {
		return false, fmt.Errorf("failed to read button state: %w", err)
	}
	return res.Found && res.Enabled, nil
}

// Press sends mousedown, mouseup and click.
func (b *SendButton) Press(ctx context.Context) error {
	var res foundResult
	if err := runScript(ctx, b.eval, pressButtonScript, selectorArgs{Selector: b.selector}, &res); err != nil {
		return fmt.Errorf("failed to press button: %w", err)
	}
	if !res.Found {
		return fmt.Errorf("send button detached: %w", ErrTargetNotFound)
	}
	return nil
}

// Selector addresses the tagged node.
func (b *SendButton) Selector() string { return b.selector }

type selectorArgs struct {
	Selector string `json:"selector"`
	Editable bool   `json:"editable,omitempty"`
	Text     string `json:"text"`
}
