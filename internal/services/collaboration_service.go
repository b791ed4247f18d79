package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"budget/internal/amqp"
	"budget/internal/core"
	"budget/internal/storage"
)

// CollaborationService runs the invitation lifecycle:
// pending -> accepted | rejected, removable by either party.
type CollaborationService struct {
	store         storage.CollaborationStore
	collaborators *CollaboratorResolver
	publisher     ChangePublisher
}

func NewCollaborationService(store storage.CollaborationStore, collaborators *CollaboratorResolver, publisher ChangePublisher) *CollaborationService {
	return &CollaborationService{store: store, collaborators: collaborators, publisher: publisher}
}

// Invite creates a pending collaboration from inviterID to inviteeID. An
// earlier rejected invitation between the pair is replaced; any other
// existing edge in either direction is a duplicate.
func (s *CollaborationService) Invite(ctx context.Context, inviterID, inviteeID string) (core.Collaboration, error) {
	inviteeID = strings.TrimSpace(inviteeID)
	if inviterID == "" || inviteeID == "" {
		return core.Collaboration{}, core.ErrEmptyOwner
	}
	if inviterID == inviteeID {
		return core.Collaboration{}, core.ErrSelfCollaboration
	}

	existing, err := s.store.ListCollaborations(ctx, inviterID)
	if err != nil {
		return core.Collaboration{}, fmt.Errorf("list collaborations: %w", err)
	}
	for _, c := range existing {
		if c.Counterpart(inviterID) != inviteeID {
			continue
		}
		if c.Status != core.CollaborationRejected {
			return core.Collaboration{}, fmt.Errorf("collaboration %s: %w", c.ID, core.ErrDuplicateInvite)
		}
		if err := s.store.DeleteCollaboration(ctx, c.ID); err != nil && !errors.Is(err, core.ErrNotFound) {
			return core.Collaboration{}, fmt.Errorf("replace rejected collaboration: %w", err)
		}
	}

	c, err := s.store.CreateCollaboration(ctx, core.Collaboration{
		InviterID: inviterID,
		InviteeID: inviteeID,
		Status:    core.CollaborationPending,
	})
	if err != nil {
		return core.Collaboration{}, err
	}
	slog.InfoContext(ctx, "Collaboration invitation sent", "collaboration_id", c.ID, "inviter_id", inviterID, "invitee_id", inviteeID)
	return c, nil
}

// Respond lets the invitee accept or reject a pending invitation.
func (s *CollaborationService) Respond(ctx context.Context, id, userID string, accept bool) (core.Collaboration, error) {
	c, err := s.store.GetCollaboration(ctx, id)
	if err != nil {
		return core.Collaboration{}, err
	}
	if c.InviteeID != userID {
		return core.Collaboration{}, fmt.Errorf("collaboration %s: only the invitee may respond: %w", id, core.ErrForbidden)
	}
	if c.Status != core.CollaborationPending {
		return core.Collaboration{}, fmt.Errorf("collaboration %s is %s: %w", id, c.Status, core.ErrInvalidTransition)
	}

	c.Status = core.CollaborationRejected
	if accept {
		c.Status = core.CollaborationAccepted
	}
	if err := s.store.UpdateCollaborationStatus(ctx, id, c.Status); err != nil {
		return core.Collaboration{}, fmt.Errorf("update collaboration: %w", err)
	}
	s.changed(ctx, c, amqp.ActionUpdated)
	return c, nil
}

// Remove deletes a collaboration; either party may do it.
func (s *CollaborationService) Remove(ctx context.Context, id, userID string) error {
	c, err := s.store.GetCollaboration(ctx, id)
	if err != nil {
		return err
	}
	if !c.Involves(userID) {
		return fmt.Errorf("collaboration %s: %w", id, core.ErrForbidden)
	}
	if err := s.store.DeleteCollaboration(ctx, id); err != nil {
		return fmt.Errorf("delete collaboration: %w", err)
	}
	s.changed(ctx, c, amqp.ActionDeleted)
	return nil
}

// List returns every collaboration involving userID, in any status.
func (s *CollaborationService) List(ctx context.Context, userID string) ([]core.Collaboration, error) {
	list, err := s.store.ListCollaborations(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list collaborations: %w", err)
	}
	return list, nil
}

func (s *CollaborationService) changed(ctx context.Context, c core.Collaboration, action string) {
	s.collaborators.Invalidate(c.InviterID, c.InviteeID)
	slog.InfoContext(ctx, "Collaboration changed", "collaboration_id", c.ID, "status", c.Status, "action", action)

	msg := amqp.NewChangeMessage(amqp.KindCollaboration, action, c.ID, c.InviterID)
	msg.CounterpartID = c.InviteeID
	publishChange(ctx, s.publisher, msg)
}
