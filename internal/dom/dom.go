// Package dom reaches into the live page: it finds the chat input and send
// control, writes into framework-controlled inputs, and synthesizes the key
// and mouse events the page listens for.
package dom

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/IRandonation/AutoTikTokSendComment/internal/delivery"
)

// ErrTargetNotFound is returned when no element matches.
var ErrTargetNotFound = delivery.ErrTargetNotFound

// tagAttribute marks located elements so later calls address the same node.
const tagAttribute = "data-autosend-id"

// Tokens written into tagAttribute, one per role.
const (
	tokenChatInput  = "chat-input"
	tokenSendButton = "send-button"
)

// Executor runs chromedp actions against the page.
type Executor interface {
	RunActions(ctx context.Context, actions ...chromedp.Action) error
}

// Evaluator runs a JavaScript expression in the page and decodes its result into res.
type Evaluator interface {
	Evaluate(ctx context.Context, expression string, res interface{}) error
}

// EvaluatorFunc adapts a function to Evaluator.
type EvaluatorFunc func(ctx context.Context, expression string, res interface{}) error

func (f EvaluatorFunc) Evaluate(ctx context.Context, expression string, res interface{}) error {
	return f(ctx, expression, res)
}

// NewEvaluator evaluates expressions through the executor's page.
func NewEvaluator(exec Executor) Evaluator {
	return EvaluatorFunc(func(ctx context.Context, expression string, res interface{}) error {
		return exec.RunActions(ctx, chromedp.Evaluate(expression, res, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
			return p.WithReturnByValue(true).WithSilent(true)
		}))
	})
}

// Key identifies a keyboard key the way KeyboardEvent does.
type Key struct {
	Key     string `json:"key"`
	Code    string `json:"code"`
	KeyCode int    `json:"keyCode"`
}

// EnterKey submits most chat inputs.
var EnterKey = Key{Key: "Enter", Code: "Enter", KeyCode: 13}

// runScript splices arg into script as JSON and evaluates it.
func runScript(ctx context.Context, eval Evaluator, script string, arg interface{}, res interface{}) error {
	encoded, err := json.Marshal(arg)
	if err != nil {
		return fmt.Errorf("failed to encode script argument: %w", err)
	}
	return eval.Evaluate(ctx, fmt.Sprintf(script, encoded), res)
}

// foundResult is the minimal shape every page script returns.
type foundResult struct {
	Found bool `json:"found"`
}
