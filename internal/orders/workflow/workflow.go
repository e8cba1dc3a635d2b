// Package workflow defines the order lifecycle state machine. The transition
// table is the single authority on which action moves which state where and
// under which roles; handlers and repositories never encode transitions
// themselves.
package workflow

import "github.com/djiba142/Pharmacie-sub000/pkg/roles"

// Status is an order lifecycle state.
type Status string

const (
	StatusDraft                 Status = "Draft"
	StatusSubmitted             Status = "Submitted"
	StatusValidatedByPrefecture Status = "ValidatedByPrefecture"
	StatusValidatedByRegion     Status = "ValidatedByRegion"
	StatusApprovedCentral       Status = "ApprovedCentral"
	StatusInPreparation         Status = "InPreparation"
	StatusShipped               Status = "Shipped"
	StatusDelivered             Status = "Delivered"
	StatusCancelled             Status = "Cancelled"
)

// Action is a workflow command.
type Action string

const (
	ActionSubmit             Action = "submit"
	ActionValidatePrefecture Action = "validatePrefecture"
	ActionValidateRegion     Action = "validateRegion"
	ActionApproveCentral     Action = "approveCentral"
	ActionPrepare            Action = "prepare"
	ActionShip               Action = "ship"
	ActionDeliver            Action = "deliver"
	ActionCancel             Action = "cancel"
)

// Transition is one row of the transition table. A nil Roles slice means the
// action is open to any staff of the order's requesting entity.
type Transition struct {
	Action Action
	From   []Status
	To     Status
	Roles  []roles.Role
}

// Table is the complete transition table.
//
// approveCentral accepts Submitted directly: an entity reporting straight to
// the central agency skips prefecture and region validation. The skip applies
// only from Submitted; an order that entered prefecture validation must
// finish the regional chain.
var Table = []Transition{
	{Action: ActionSubmit, From: []Status{StatusDraft}, To: StatusSubmitted},
	{Action: ActionValidatePrefecture, From: []Status{StatusSubmitted}, To: StatusValidatedByPrefecture, Roles: roles.PrefectureValidators},
	{Action: ActionValidateRegion, From: []Status{StatusValidatedByPrefecture}, To: StatusValidatedByRegion, Roles: roles.RegionValidators},
	{Action: ActionApproveCentral, From: []Status{StatusValidatedByRegion, StatusSubmitted}, To: StatusApprovedCentral, Roles: roles.CentralApprovers},
	{Action: ActionPrepare, From: []Status{StatusApprovedCentral}, To: StatusInPreparation, Roles: roles.CentralPreparers},
	{Action: ActionShip, From: []Status{StatusInPreparation}, To: StatusShipped, Roles: roles.Shippers},
	{Action: ActionDeliver, From: []Status{StatusShipped}, To: StatusDelivered},
	{Action: ActionCancel, From: []Status{StatusDraft, StatusSubmitted}, To: StatusCancelled},
}

// ValidStatus reports whether s is a known state.
func ValidStatus(s Status) bool {
	switch s {
	case StatusDraft, StatusSubmitted, StatusValidatedByPrefecture,
		StatusValidatedByRegion, StatusApprovedCentral, StatusInPreparation,
		StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no transition leaves s.
func IsTerminal(s Status) bool {
	return s == StatusDelivered || s == StatusCancelled
}

// Lookup finds the table row for an action.
func Lookup(action Action) (Transition, bool) {
	for _, t := range Table {
		if t.Action == action {
			return t, true
		}
	}
	return Transition{}, false
}

// IsValidationStep reports whether to stamps a validation record on the
// order (validated_at plus the approver reference).
func IsValidationStep(to Status) bool {
	return to == StatusValidatedByPrefecture ||
		to == StatusValidatedByRegion ||
		to == StatusApprovedCentral
}

// AllowsFrom reports whether the transition accepts s as a source state.
func (t Transition) AllowsFrom(s Status) bool {
	return containsStatus(t.From, s)
}

func containsStatus(set []Status, s Status) bool {
	for _, member := range set {
		if member == s {
			return true
		}
	}
	return false
}

// roleAllowed checks the transition's role gate. An open row (nil Roles) is
// satisfied by any role; the requesting-entity scope check for open rows
// lives in the service layer, which knows the order.
func roleAllowed(t Transition, role roles.Role) bool {
	if t.Roles == nil {
		return true
	}
	return roles.Contains(t.Roles, role)
}

// Available filters the table to the actions currently legal for the given
// status and actor role. Pure query, used both to render action menus and to
// re-check a command server-side before applying it.
func Available(status Status, role roles.Role) []Action {
	var actions []Action
	for _, t := range Table {
		if containsStatus(t.From, status) && roleAllowed(t, role) {
			actions = append(actions, t.Action)
		}
	}
	return actions
}

// Can reports whether the action is legal for the status and role, and if so
// returns the target state.
func Can(status Status, action Action, role roles.Role) (Status, bool) {
	t, ok := Lookup(action)
	if !ok {
		return "", false
	}
	if !containsStatus(t.From, status) || !roleAllowed(t, role) {
		return "", false
	}
	return t.To, true
}
