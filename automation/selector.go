package automation

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/screenwise/screenwise/actions"
	"github.com/screenwise/screenwise/types"
)

// selectAnswer drives the observe-act-reobserve protocol for one question.
// The bridge gives no synchronous confirmation, so each attempt dispatches,
// waits for the UI to settle, recaptures, and asks the verifier whether the
// option now looks selected. Attempts are strictly sequential.
func (c *Controller) selectAnswer(ctx context.Context, session *Session, q *types.QuestionRecord) Report {
	opt := q.CorrectOption()
	if opt == nil {
		return Report{
			Kind:         ReportNoAnswer,
			QuestionText: q.QuestionText,
			Detail:       "no option marked correct",
		}
	}

	if opt.Confidence < c.cfg.ConfidenceThreshold {
		// Safety valve: never act on an answer the model itself doubts.
		return Report{
			Kind:         ReportLowConfidence,
			QuestionText: q.QuestionText,
			OptionText:   opt.Text,
			Confidence:   opt.Confidence,
			Detail: fmt.Sprintf("confidence %.2f below gate %.2f",
				opt.Confidence, c.cfg.ConfidenceThreshold),
		}
	}

	for attempt := 1; attempt <= c.cfg.MaxSelectAttempts; attempt++ {
		sequence := selectSequence(opt)
		if err := c.deps.Executor.Dispatch(ctx, sequence); err != nil {
			// Handoff failure looks the same as a missed click from here:
			// verification below decides either way.
			c.logger.Warn("action dispatch failed", zap.Int("attempt", attempt), zap.Error(err))
		}
		c.deps.Metrics.DispatchSent(len(sequence))

		if err := c.deps.Clock.Sleep(ctx, c.cfg.SettleDelay); err != nil {
			return Report{
				Kind:         ReportVerifyFailed,
				QuestionText: q.QuestionText,
				OptionText:   opt.Text,
				Attempts:     attempt,
				Detail:       "canceled during settle delay",
			}
		}

		verified := c.verifySelection(ctx, opt.Text)
		c.deps.Metrics.VerificationObserved(verified)
		if !verified {
			c.logger.Debug("selection not verified yet",
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", c.cfg.MaxSelectAttempts),
			)
			continue
		}

		c.logger.Info("selection verified",
			zap.String("option", opt.Text),
			zap.Int("attempt", attempt),
		)
		if c.cfg.AutoAdvance {
			c.advance(ctx, q)
		}
		return Report{
			Kind:         ReportSelected,
			QuestionText: q.QuestionText,
			OptionText:   opt.Text,
			Confidence:   opt.Confidence,
			Attempts:     attempt,
		}
	}

	return Report{
		Kind:         ReportVerifyFailed,
		QuestionText: q.QuestionText,
		OptionText:   opt.Text,
		Confidence:   opt.Confidence,
		Attempts:     c.cfg.MaxSelectAttempts,
		Detail:       "option never appeared selected",
	}
}

// selectSequence builds one attempt's action sequence: a coordinate click
// when the option has a box, always followed by a text-match click as the
// fallback locator against bounding-box drift.
func selectSequence(opt *types.OptionRecord) []actions.Action {
	var sequence []actions.Action
	if opt.Box != nil {
		x, y := opt.Box.Center()
		sequence = append(sequence, actions.ClickAt(x, y))
	}
	sequence = append(sequence, actions.ClickText(opt.Text))
	return sequence
}

// verifySelection recaptures the screen and asks the verifier. Any failure
// along the way counts as "not selected"; the retry loop absorbs it.
func (c *Controller) verifySelection(ctx context.Context, optionText string) bool {
	frame, err := c.deps.Source.Capture(ctx)
	if err != nil {
		c.logger.Warn("verification capture failed", zap.Error(err))
		return false
	}
	selected, err := c.deps.Verifier.Confirm(ctx, frame, optionText)
	if err != nil {
		c.logger.Warn("verification call failed", zap.Error(err))
		return false
	}
	return selected
}

// advance fires the next/continue click once a selection verified. This is
// fire-and-forget: no verification follows.
func (c *Controller) advance(ctx context.Context, q *types.QuestionRecord) {
	var sequence []actions.Action
	if q.NextButtonBox != nil {
		x, y := q.NextButtonBox.Center()
		sequence = append(sequence, actions.ClickAt(x, y))
	} else {
		sequence = append(sequence, actions.ClickNext())
	}

	if err := c.deps.Executor.Dispatch(ctx, sequence); err != nil {
		c.logger.Warn("advance dispatch failed", zap.Error(err))
		return
	}
	c.deps.Metrics.DispatchSent(len(sequence))
	c.logger.Info("advanced to next question")
}
