package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFormatTrackingID(t *testing.T) {
	require.Equal(t, "ORD0001", FormatTrackingID(1))
	require.Equal(t, "ORD0041", FormatTrackingID(41))
	require.Equal(t, "ORD12345", FormatTrackingID(12345))
}

func TestValidTransition(t *testing.T) {
	require.True(t, ValidTransition(ActionAcceptPickup, StatusPending))
	require.False(t, ValidTransition(ActionAcceptPickup, StatusInTransit))
	require.False(t, ValidTransition(ActionCancel, StatusInTransit))
	require.True(t, ValidTransition(ActionSubmitEvidence, StatusInTransit))
	require.True(t, ValidTransition(ActionConfirmDelivered, StatusAwaitingApproval))
	require.False(t, ValidTransition(ActionConfirmDelivered, StatusInTransit))
	require.True(t, ValidTransition(ActionLiveUpdate, StatusAwaitingApproval))
	require.False(t, ValidTransition(ActionLiveUpdate, StatusDelivered))

	for _, a := range []Action{ActionEdit, ActionCancel, ActionAcceptPickup, ActionSubmitEvidence, ActionConfirmDelivered, ActionLiveUpdate} {
		require.False(t, ValidTransition(a, StatusCancelled), "cancelled is terminal for %s", a)
		require.False(t, ValidTransition(a, StatusDelivered), "delivered is terminal for %s", a)
	}

	require.Equal(t, []string{"in-transit", "awaiting-approval"}, AllowedFrom(ActionLiveUpdate))
	require.Empty(t, AllowedFrom(Action("nope")))
}

func TestParseRoleAndParticipant(t *testing.T) {
	r, ok := ParseRole(" Courier ")
	require.True(t, ok)
	require.Equal(t, RoleCourier, r)
	_, ok = ParseRole("recipient")
	require.False(t, ok)
	require.True(t, RoleSupport.Staff())
	require.False(t, RoleDispatcher.Staff())

	p, ok := ParseParticipant("recipient")
	require.True(t, ok)
	require.Equal(t, ParticipantRecipient, p)
	_, ok = ParseParticipant("admin")
	require.False(t, ok)
}

func TestSocketBindings_All(t *testing.T) {
	c, d := "s1", "s2"
	sess := &TrackingSession{CourierSocketID: &c, DispatcherSocketID: &d}
	b := sess.Bindings()
	require.Equal(t, []string{"s1", "s2"}, b.All())
	require.Equal(t, "", b.Of(ParticipantRecipient))

	same := SocketBindings{Courier: "x", Dispatcher: "x", Recipient: "y"}
	require.Equal(t, []string{"x", "y"}, same.All())
}

func TestOTP_UsableAndRedeemable(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	o := &OTP{IsActive: true, ExpiresAt: now.Add(time.Minute)}
	require.True(t, o.Usable(now))
	require.False(t, o.Redeemable(now))

	tok := "t"
	o.Token = &tok
	require.False(t, o.Usable(now))
	require.True(t, o.Redeemable(now))
	require.False(t, o.Redeemable(now.Add(time.Minute)))

	s := &RecipientSlug{ExpiresAt: now}
	require.True(t, s.Expired(now))
	require.False(t, s.Expired(now.Add(-time.Second)))
}

func TestLiveUpdate_Empty(t *testing.T) {
	require.True(t, LiveUpdate{}.Empty())
	eta := "10 min"
	require.False(t, LiveUpdate{ETA: &eta}.Empty())
}
