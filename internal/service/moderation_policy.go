package service

import (
	"fmt"

	"github.com/noah-isme/rootle-api/internal/models"
	appErrors "github.com/noah-isme/rootle-api/pkg/errors"
)

// ModerationAction names a lifecycle edge of a resource.
type ModerationAction string

const (
	ActionApprove         ModerationAction = "approve"
	ActionReject          ModerationAction = "reject"
	ActionRequestDeletion ModerationAction = "request_deletion"
	ActionConfirmPurge    ModerationAction = "confirm_purge"
	ActionRejectDeletion  ModerationAction = "reject_deletion"
)

// ModerationActions lists every action the policy knows about.
var ModerationActions = []ModerationAction{
	ActionApprove,
	ActionReject,
	ActionRequestDeletion,
	ActionConfirmPurge,
	ActionRejectDeletion,
}

type transitionKey struct {
	from   models.ResourceStatus
	action ModerationAction
}

// transitions is the only source of truth for resource lifecycle edges.
var transitions = map[transitionKey]models.ResourceStatus{
	{models.StatusPending, ActionApprove}:                  models.StatusApproved,
	{models.StatusPending, ActionReject}:                   models.StatusPurged,
	{models.StatusApproved, ActionRequestDeletion}:         models.StatusDeletionRequested,
	{models.StatusDeletionRequested, ActionConfirmPurge}:   models.StatusPurged,
	{models.StatusDeletionRequested, ActionRejectDeletion}: models.StatusApproved,
}

func init() {
	if err := validateTransitions(); err != nil {
		panic(err)
	}
}

func validateTransitions() error {
	covered := make(map[ModerationAction]bool, len(ModerationActions))
	for key, to := range transitions {
		if !key.from.Persisted() {
			return fmt.Errorf("transition %s from non-persisted status %q", key.action, key.from)
		}
		if !to.Valid() {
			return fmt.Errorf("transition %s targets unknown status %q", key.action, to)
		}
		if !key.action.known() {
			return fmt.Errorf("transition uses unknown action %q", key.action)
		}
		covered[key.action] = true
	}
	for _, action := range ModerationActions {
		if !covered[action] {
			return fmt.Errorf("moderation action %q has no transition", action)
		}
	}
	return nil
}

func (a ModerationAction) known() bool {
	for _, action := range ModerationActions {
		if a == action {
			return true
		}
	}
	return false
}

// StaffOnly reports whether the action requires a lecturer or admin of the resource's department.
func (a ModerationAction) StaffOnly() bool {
	return a != ActionRequestDeletion
}

// AuditAction maps the action to its audit log name.
func (a ModerationAction) AuditAction() string {
	switch a {
	case ActionApprove:
		return models.AuditActionResourceApprove
	case ActionReject:
		return models.AuditActionResourceReject
	case ActionRequestDeletion:
		return models.AuditActionDeletionRequest
	case ActionConfirmPurge:
		return models.AuditActionResourcePurge
	case ActionRejectDeletion:
		return models.AuditActionDeletionReject
	}
	return string(a)
}

// NextStatus returns the status reached by applying action from status.
func NextStatus(from models.ResourceStatus, action ModerationAction) (models.ResourceStatus, bool) {
	to, ok := transitions[transitionKey{from: from, action: action}]
	return to, ok
}

// Authorize decides whether actor may apply action to resource. Checks run in
// a fixed order: authentication, role, jurisdiction or ownership, then state.
func Authorize(actor *models.JWTClaims, resource *models.Resource, action ModerationAction) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if resource == nil {
		return appErrors.ErrNotFound
	}
	if !action.known() {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown moderation action %q", action))
	}

	if action.StaffOnly() {
		if !actor.Role.IsStaff() {
			return appErrors.Clone(appErrors.ErrForbidden, "only lecturers and admins can moderate resources")
		}
		if actor.DepartmentID != resource.DepartmentID {
			return appErrors.ErrJurisdiction
		}
	} else if actor.UserID != resource.UploaderID {
		return appErrors.Clone(appErrors.ErrForbidden, "only the uploader can request deletion")
	}

	if _, ok := NextStatus(resource.Status, action); !ok {
		return appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("cannot %s a resource that is %s", action, resource.Status))
	}
	return nil
}

// CanTransition is the boolean form of Authorize.
func CanTransition(actor *models.JWTClaims, resource *models.Resource, action ModerationAction) bool {
	return Authorize(actor, resource, action) == nil
}
