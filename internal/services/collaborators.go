package services

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"budget/internal/amqp"
	"budget/internal/cache"
	"budget/internal/storage"
)

// ChangePublisher announces record changes to other processes.
type ChangePublisher interface {
	PublishChange(ctx context.Context, msg *amqp.ChangeMessage) error
}

// publishChange never fails the caller: the change is already stored.
func publishChange(ctx context.Context, p ChangePublisher, msg *amqp.ChangeMessage) {
	if p == nil {
		slog.DebugContext(ctx, "AMQP publisher not configured, skipping change message",
			"kind", msg.Kind, "record_id", msg.RecordID)
		return
	}
	if err := p.PublishChange(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "Failed to publish change message",
			"kind", msg.Kind,
			"action", msg.Action,
			"record_id", msg.RecordID,
			"error", err)
	}
}

// CollaboratorResolver returns a user's accepted collaborators, caching the
// set per user when a cache is supplied.
type CollaboratorResolver struct {
	store storage.CollaborationStore
	cache cache.Cache[[]string]
}

func NewCollaboratorResolver(store storage.CollaborationStore, c cache.Cache[[]string]) *CollaboratorResolver {
	return &CollaboratorResolver{store: store, cache: c}
}

func (r *CollaboratorResolver) Collaborators(ctx context.Context, userID string) ([]string, error) {
	if r.cache != nil {
		if set, ok := r.cache.Get(userID); ok {
			return slices.Clone(set), nil
		}
	}
	edges, err := r.store.ListCollaborations(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list collaborations for %s: %w", userID, err)
	}
	set := CollaboratorSet(userID, edges)
	if r.cache != nil {
		r.cache.Set(userID, set)
	}
	return slices.Clone(set), nil
}

// Owners returns userID followed by their collaborators: every owner whose
// records may be visible to userID.
func (r *CollaboratorResolver) Owners(ctx context.Context, userID string) (owners, collaborators []string, err error) {
	collaborators, err = r.Collaborators(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	return append([]string{userID}, collaborators...), collaborators, nil
}

// Invalidate drops the cached sets of userIDs.
func (r *CollaboratorResolver) Invalidate(userIDs ...string) {
	if r.cache == nil {
		return
	}
	for _, id := range userIDs {
		r.cache.Delete(id)
	}
}
