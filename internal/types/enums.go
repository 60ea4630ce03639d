package types

import "strings"

// Role is the closed set of roles a user can hold.
type Role string

const (
	RoleMasterAdmin Role = "master_admin"
	RoleAdmin       Role = "admin"
	RoleCoach       Role = "coach"
	RoleParent      Role = "parent"
	RoleAthlete     Role = "athlete"
)

// Invite status values
type InviteStatus string

const (
	InviteStatusPending  InviteStatus = "pending"
	InviteStatusAccepted InviteStatus = "accepted"
	InviteStatusRevoked  InviteStatus = "revoked"
)

// Payment methods recorded on a settled due
type PaymentMethod string

const (
	PaymentManual  PaymentMethod = "manual"
	PaymentGateway PaymentMethod = "gateway"
)

// Payable target kinds
type TargetType string

const (
	TargetDue                TargetType = "due"
	TargetTicket             TargetType = "ticket"
	TargetFundraiserDonation TargetType = "fundraiser_donation"
)

// Checkout session lifecycle
type SessionStatus string

const (
	SessionOpen      SessionStatus = "open"
	SessionCompleted SessionStatus = "completed"
	SessionExpired   SessionStatus = "expired"
)

var ValidRoles = []Role{
	RoleMasterAdmin, RoleAdmin, RoleCoach, RoleParent, RoleAthlete,
}

// InvitableRoles are the roles an invite may carry.
var InvitableRoles = []Role{
	RoleAdmin, RoleCoach, RoleParent, RoleAthlete,
}

// GrantableRoles maps an issuer role to the roles it may hand out via invite.
var GrantableRoles = map[Role][]Role{
	RoleMasterAdmin: {RoleAdmin, RoleCoach, RoleParent, RoleAthlete},
	RoleAdmin:       {RoleAdmin, RoleCoach, RoleParent, RoleAthlete},
	RoleCoach:       {RoleParent, RoleAthlete},
}

// StaffRoles may manage a team's dues, events and fundraisers.
var StaffRoles = []Role{RoleMasterAdmin, RoleAdmin, RoleCoach}

func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	for _, v := range ValidRoles {
		if v == r {
			return r, true
		}
	}
	return "", false
}

func IsInvitableRole(r Role) bool {
	return containsRole(InvitableRoles, r)
}

// CanGrant reports whether a holder of issuer may invite someone as invitee.
func CanGrant(issuer, invitee Role) bool {
	return containsRole(GrantableRoles[issuer], invitee)
}

func HasAnyRole(r Role, allowed ...Role) bool {
	return containsRole(allowed, r)
}

func ParseTargetType(s string) (TargetType, bool) {
	switch t := TargetType(s); t {
	case TargetDue, TargetTicket, TargetFundraiserDonation:
		return t, true
	}
	return "", false
}

func containsRole(list []Role, r Role) bool {
	for _, v := range list {
		if v == r {
			return true
		}
	}
	return false
}
