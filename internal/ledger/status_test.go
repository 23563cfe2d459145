package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReservationStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to ReservationStatus
		ok       bool
	}{
		{StatusPending, StatusApproved, true},
		{StatusPending, StatusRejected, true},
		{StatusPending, StatusPending, true},
		{StatusApproved, StatusCompleted, true},
		{StatusApproved, StatusRejected, false},
		{StatusApproved, StatusPending, false},
		{StatusRejected, StatusApproved, false},
		{StatusCompleted, StatusPending, false},
		{StatusCompleted, StatusApproved, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.ok, tc.from.CanTransition(tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestTerminalStatuses(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusApproved.Terminal())
	assert.True(t, StatusRejected.Terminal())
	assert.True(t, StatusCompleted.Terminal())
}

func TestDispositionVehicleStatus(t *testing.T) {
	cases := map[Disposition]VehicleStatus{
		DispositionAvailable:   VehicleAvailable,
		DispositionBroken:      VehicleBroken,
		DispositionInRepair:    VehicleNeedsRepair,
		DispositionUnavailable: VehicleUnavailable,
		DispositionLost:        VehicleLost,
	}
	for d, want := range cases {
		assert.True(t, d.Valid(), string(d))
		assert.Equal(t, want, d.VehicleStatus(), string(d))
	}
	assert.False(t, Disposition("Vaporised").Valid())
}

func TestRoleCapabilities(t *testing.T) {
	cases := []struct {
		role                               Role
		reserve, decide, export, manageStf bool
	}{
		{RoleAdmin, true, true, true, true},
		{RoleManager, true, true, true, false},
		{RoleUtilisateur, true, false, true, false},
		{RoleStaff, true, false, true, false},
		{RoleEtudiant, true, false, false, false},
		{Role("ghost"), false, false, false, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.reserve, tc.role.CanReserve(), "%s reserve", tc.role)
		assert.Equal(t, tc.decide, tc.role.CanDecide(), "%s decide", tc.role)
		assert.Equal(t, tc.export, tc.role.CanExport(), "%s export", tc.role)
		assert.Equal(t, tc.manageStf, tc.role.CanManageStaff(), "%s manage staff", tc.role)
	}
}

func TestKnownRole(t *testing.T) {
	for _, r := range []Role{RoleAdmin, RoleManager, RoleUtilisateur, RoleEtudiant, RoleStaff} {
		assert.True(t, KnownRole(r), string(r))
	}
	assert.False(t, KnownRole("ghost"))
	assert.False(t, KnownRole(""))
}

func TestActorOwnership(t *testing.T) {
	res := &Reservation{RequesterEmail: "sam@parc.example"}
	assert.True(t, Actor{Email: "sam@parc.example", Role: RoleEtudiant}.owns(res))
	assert.False(t, Actor{Email: "other@parc.example", Role: RoleEtudiant}.owns(res))
	assert.False(t, Actor{Role: RoleEtudiant}.owns(res))
}
