// Package actions defines the one-way UI action interface relayed to the
// browser-extension bridge. Dispatch is fire-and-forget: no reply is
// trusted, success is only ever confirmed by re-observing the screen.
package actions

import "context"

// Kind identifies an action type understood by the bridge.
type Kind string

const (
	// KindClick clicks at a normalized screen coordinate.
	KindClick Kind = "click"
	// KindTextClick locates an element by visible text and clicks it.
	KindTextClick Kind = "text_click"
	// KindNextClick locates a next/continue control by keyword heuristic.
	KindNextClick Kind = "next_click"
)

// Action is one UI command. X/Y are normalized to [0,1] and only used by
// KindClick; Text only by KindTextClick.
type Action struct {
	Kind Kind    `json:"kind"`
	X    float64 `json:"x,omitempty"`
	Y    float64 `json:"y,omitempty"`
	Text string  `json:"text,omitempty"`
}

// ClickAt builds a coordinate click.
func ClickAt(x, y float64) Action {
	return Action{Kind: KindClick, X: x, Y: y}
}

// ClickText builds a text-match click.
func ClickText(text string) Action {
	return Action{Kind: KindTextClick, Text: text}
}

// ClickNext builds a next-button click.
func ClickNext() Action {
	return Action{Kind: KindNextClick}
}

// Executor accepts an ordered action sequence for execution in the remote
// browsing context. Implementations provide no success guarantee; an error
// return only means the sequence could not be handed to the bridge at all.
type Executor interface {
	Dispatch(ctx context.Context, sequence []Action) error
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, sequence []Action) error

// Dispatch implements Executor.
func (f ExecutorFunc) Dispatch(ctx context.Context, sequence []Action) error {
	return f(ctx, sequence)
}
