package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/tgienger/depplan/internal/models"
)

// InvitationResponse is the answer to an invitation.
type InvitationResponse string

const (
	Accept  InvitationResponse = "accept"
	Decline InvitationResponse = "decline"
)

// Invite is the payload of InviteUser.
type Invite struct {
	Email           string      `json:"email"`
	Role            models.Role `json:"role"`
	ExpirationHours int         `json:"expirationHours"`
}

// NewInvite builds an Invite expiring after d (rounded down to hours).
func NewInvite(email string, role models.Role, d time.Duration) Invite {
	return Invite{Email: email, Role: role, ExpirationHours: int(d / time.Hour)}
}

// ListCollaborators returns a project's members.
func (c *Client) ListCollaborators(ctx context.Context, projectID int64) ([]models.Collaborator, error) {
	var out []models.Collaborator
	if err := c.do(ctx, http.MethodGet, idPath("/projects/%d/collaboration/collaborators", projectID), nil, nil, &out); err != nil {
		return nil, fmt.Errorf("api.ListCollaborators: %w", err)
	}
	return out, nil
}

// ListInvitations returns the invitations issued for a project.
func (c *Client) ListInvitations(ctx context.Context, projectID int64) ([]models.Invitation, error) {
	var out []models.Invitation
	if err := c.do(ctx, http.MethodGet, idPath("/projects/%d/collaboration/invitations", projectID), nil, nil, &out); err != nil {
		return nil, fmt.Errorf("api.ListInvitations: %w", err)
	}
	return out, nil
}

// InviteUser invites an email address to a project.
func (c *Client) InviteUser(ctx context.Context, projectID int64, inv Invite) (*models.Invitation, error) {
	var out models.Invitation
	if err := c.do(ctx, http.MethodPost, idPath("/projects/%d/collaboration/invite", projectID), nil, inv, &out); err != nil {
		return nil, fmt.Errorf("api.InviteUser: %w", err)
	}
	return &out, nil
}

// RemoveCollaborator removes a user from a project.
func (c *Client) RemoveCollaborator(ctx context.Context, projectID, userID int64) error {
	if err := c.do(ctx, http.MethodDelete, idPath("/projects/%d/collaboration/collaborators/%d", projectID, userID), nil, nil, nil); err != nil {
		return fmt.Errorf("api.RemoveCollaborator: %w", err)
	}
	return nil
}

// CheckAccess reports whether the caller may open a project.
func (c *Client) CheckAccess(ctx context.Context, projectID int64) (bool, error) {
	var ok bool
	if err := c.do(ctx, http.MethodGet, idPath("/projects/%d/collaboration/check-access", projectID), nil, nil, &ok); err != nil {
		return false, fmt.Errorf("api.CheckAccess: %w", err)
	}
	return ok, nil
}

// MyInvitations returns invitations addressed to the caller.
func (c *Client) MyInvitations(ctx context.Context) ([]models.Invitation, error) {
	var out []models.Invitation
	if err := c.do(ctx, http.MethodGet, "/invitations/my-invitations", nil, nil, &out); err != nil {
		return nil, fmt.Errorf("api.MyInvitations: %w", err)
	}
	return out, nil
}

// RespondToInvitation answers an invitation identified by its mailed token.
func (c *Client) RespondToInvitation(ctx context.Context, token string, resp InvitationResponse) error {
	body := map[string]string{"token": token, "response": string(resp)}
	if err := c.do(ctx, http.MethodPost, "/invitations/respond", nil, body, nil); err != nil {
		return fmt.Errorf("api.RespondToInvitation: %w", err)
	}
	return nil
}

// RespondToInvitationByID answers an invitation identified by its id.
func (c *Client) RespondToInvitationByID(ctx context.Context, id int64, resp InvitationResponse) error {
	body := struct {
		ID       int64              `json:"id"`
		Response InvitationResponse `json:"response"`
	}{ID: id, Response: resp}
	if err := c.do(ctx, http.MethodPost, "/invitations/respond-by-id", nil, body, nil); err != nil {
		return fmt.Errorf("api.RespondToInvitationByID: %w", err)
	}
	return nil
}
