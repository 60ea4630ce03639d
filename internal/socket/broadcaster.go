package socket

import (
	"github.com/shopspring/decimal"

	"github.com/Marga-Ghale/teamfund-backend/internal/repository"
)

// Broadcaster turns domain events into per-user websocket messages.
type Broadcaster struct {
	hub *Hub
}

// NewBroadcaster creates a new Broadcaster
func NewBroadcaster(hub *Hub) *Broadcaster {
	return &Broadcaster{hub: hub}
}

func amount(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}

// DuePaid tells the athlete and, when linked, their parent.
func (b *Broadcaster) DuePaid(due *repository.Due) {
	payload := map[string]interface{}{
		"dueId":     due.ID,
		"teamId":    due.TeamID,
		"athleteId": due.AthleteID,
		"dueMonth":  due.DueMonth,
		"amount":    amount(due.AmountCents),
	}
	if due.PaymentMethod != nil {
		payload["paymentMethod"] = string(*due.PaymentMethod)
	}

	b.hub.SendToUser(due.AthleteID, MessageDuePaid, payload)
	if due.ParentID != nil && *due.ParentID != due.AthleteID {
		b.hub.SendToUser(*due.ParentID, MessageDuePaid, payload)
	}
}

// InviteAccepted tells the member who sent the invite.
func (b *Broadcaster) InviteAccepted(invite *repository.Invite, user *repository.User) {
	b.hub.SendToUser(invite.SentBy, MessageInviteAccepted, map[string]interface{}{
		"inviteId": invite.ID,
		"teamId":   invite.TeamID,
		"role":     string(invite.Role),
		"userId":   user.ID,
		"name":     user.Name,
		"email":    user.Email,
	})
}

// DonationReceived tells the fundraiser's creator.
func (b *Broadcaster) DonationReceived(f *repository.Fundraiser, d *repository.Donation) {
	b.hub.SendToUser(f.CreatedBy, MessageDonationReceived, map[string]interface{}{
		"fundraiserId": f.ID,
		"donationId":   d.ID,
		"amount":       amount(d.AmountCents),
		"raised":       amount(f.RaisedCents),
		"goal":         amount(f.GoalCents),
	})
}
