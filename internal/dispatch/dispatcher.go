// Package dispatch authenticates inbound mail notifications and forwards the
// valid ones to the draft-generation service, one outcome per notification.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/replyflow/mailhook/internal/clientstate"
	"github.com/replyflow/mailhook/internal/observability"
)

const defaultConcurrency = 8

// DraftGenerator is the downstream collaborator that turns a validated
// notification into a reply draft.
type DraftGenerator interface {
	Configured() bool
	Generate(ctx context.Context, subjectID, messageID string) (string, error)
}

// Dispatcher processes notification batches statelessly. Safe for concurrent
// use across deliveries.
type Dispatcher struct {
	codec       *clientstate.Codec
	drafts      DraftGenerator
	concurrency int
	log         *slog.Logger
}

// NewDispatcher wires the dispatcher to its codec and draft collaborator.
func NewDispatcher(codec *clientstate.Codec, drafts DraftGenerator, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{
		codec:       codec,
		drafts:      drafts,
		concurrency: defaultConcurrency,
		log:         log,
	}
}

type itemResult struct {
	processed *ProcessedItem
	rejected  *RejectedItem
}

// Dispatch applies per-item validation and forwarding to one delivery batch.
// Items run under a bounded worker pool; one item's failure never aborts its
// siblings. Every notification lands in exactly one of Processed or Rejected.
func (d *Dispatcher) Dispatch(ctx context.Context, notifications []Notification) Outcome {
	outcome := Outcome{
		Received:  len(notifications),
		Processed: []ProcessedItem{},
		Rejected:  []RejectedItem{},
	}
	if len(notifications) == 0 {
		return outcome
	}

	if d.drafts == nil || !d.drafts.Configured() {
		d.log.Error("draft service not configured, rejecting whole batch", "received", len(notifications))
		for range notifications {
			outcome.Rejected = append(outcome.Rejected, RejectedItem{
				Reason: ReasonMissingConfiguration,
				Detail: "draft service endpoint or internal secret not configured",
			})
		}
		return outcome
	}

	results := make([]itemResult, len(notifications))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(d.concurrency)
	for i, notification := range notifications {
		group.Go(func() error {
			results[i] = d.processOne(groupCtx, notification)
			return nil
		})
	}
	// Workers only report through their result slot.
	_ = group.Wait()

	for _, result := range results {
		switch {
		case result.processed != nil:
			outcome.Processed = append(outcome.Processed, *result.processed)
		case result.rejected != nil:
			outcome.Rejected = append(outcome.Rejected, *result.rejected)
		}
	}
	outcome.Drafted = len(outcome.Processed)
	return outcome
}

func (d *Dispatcher) processOne(ctx context.Context, notification Notification) (result itemResult) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("panic while forwarding notification", "subscription_id", notification.SubscriptionID, "panic", r)
			result = rejected(ReasonProcessingFailed, fmt.Sprintf("internal error: %v", r))
		}
	}()

	subjectID, ok := d.codec.Decode(notification.ClientState)
	if !ok || subjectID == "" {
		d.log.Warn("rejected notification with invalid client state", "subscription_id", notification.SubscriptionID)
		return rejected(ReasonInvalidClientState, "client state verification failed")
	}
	// Downstream spans and log lines carry the verified subject from here on.
	ctx = observability.WithSubjectIdentity(ctx, subjectID)

	messageID := notification.MessageID()
	if messageID == "" {
		d.log.Warn("rejected notification without message id", "subscription_id", notification.SubscriptionID, "subject_id", subjectID)
		return rejected(ReasonMissingMessageID, "no resource data id or parsable resource path")
	}

	draftID, err := d.drafts.Generate(ctx, subjectID, messageID)
	if err != nil {
		d.log.Warn("draft generation failed", "subject_id", subjectID, "message_id", messageID, "error", err)
		return rejected(ReasonProcessingFailed, err.Error())
	}

	return itemResult{processed: &ProcessedItem{
		SubjectID:      subjectID,
		MessageID:      messageID,
		SubscriptionID: notification.SubscriptionID,
		DraftID:        draftID,
	}}
}

func rejected(reason, detail string) itemResult {
	return itemResult{rejected: &RejectedItem{Reason: reason, Detail: detail}}
}
