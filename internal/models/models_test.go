package models

import (
	"testing"
	"time"
)

func TestBaseModelBeforeCreateGeneratesID(t *testing.T) {
	var base BaseModel
	if err := base.BeforeCreate(nil); err != nil {
		t.Fatalf("before create: %v", err)
	}
	if base.ID == "" {
		t.Fatal("expected base model ID to be generated")
	}
}

func TestEmbeddedModelsUseBaseBeforeCreate(t *testing.T) {
	cases := []struct {
		name  string
		model func() *BaseModel
	}{
		{"user", func() *BaseModel {
			u := &User{}
			return &u.BaseModel
		}},
		{"agency", func() *BaseModel {
			a := &Agency{}
			return &a.BaseModel
		}},
		{"event", func() *BaseModel {
			e := &Event{}
			return &e.BaseModel
		}},
		{"submission", func() *BaseModel {
			s := &Submission{}
			return &s.BaseModel
		}},
		{"guest_invite", func() *BaseModel {
			g := &GuestInvite{}
			return &g.BaseModel
		}},
		{"guest_event_permission", func() *BaseModel {
			p := &GuestEventPermission{}
			return &p.BaseModel
		}},
		{"guest_audit_log", func() *BaseModel {
			g := &GuestAuditLog{}
			return &g.BaseModel
		}},
		{"audit_log", func() *BaseModel {
			a := &AuditLog{}
			return &a.BaseModel
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			model := tc.model()
			if err := model.BeforeCreate(nil); err != nil {
				t.Fatalf("before create: %v", err)
			}
			if model.ID == "" {
				t.Fatal("expected ID to be generated")
			}
		})
	}
}

func TestGuestInviteWindowContains(t *testing.T) {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 6, 30, 23, 59, 59, 0, time.UTC)
	invite := &GuestInvite{AccessStartDate: start, AccessEndDate: end}

	cases := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"before window", start.Add(-time.Second), false},
		{"start boundary", start, true},
		{"inside window", start.AddDate(0, 0, 14), true},
		{"end boundary", end, true},
		{"after window", end.Add(time.Second), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := invite.WindowContains(tc.at); got != tc.want {
				t.Fatalf("WindowContains(%s) = %v, want %v", tc.at, got, tc.want)
			}
		})
	}

	var nilInvite *GuestInvite
	if nilInvite.WindowContains(start) {
		t.Fatal("expected nil invite to contain nothing")
	}
}

func TestGuestInviteEffectiveStatus(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	window := func(status string, end time.Time) *GuestInvite {
		return &GuestInvite{
			Status:          status,
			AccessStartDate: now.AddDate(0, 0, -7),
			AccessEndDate:   end,
		}
	}

	cases := []struct {
		name   string
		invite *GuestInvite
		want   string
	}{
		{"pending in window", window(GuestInviteStatusPending, now.AddDate(0, 0, 7)), GuestInviteStatusPending},
		{"accepted in window", window(GuestInviteStatusAccepted, now.AddDate(0, 0, 7)), GuestInviteStatusAccepted},
		{"pending past window", window(GuestInviteStatusPending, now.Add(-time.Hour)), GuestInviteStatusExpired},
		{"accepted past window", window(GuestInviteStatusAccepted, now.Add(-time.Hour)), GuestInviteStatusExpired},
		{"accepted at end boundary", window(GuestInviteStatusAccepted, now), GuestInviteStatusAccepted},
		{"revoked stays revoked", window(GuestInviteStatusRevoked, now.AddDate(0, 0, 7)), GuestInviteStatusRevoked},
		{"expired stays expired", window(GuestInviteStatusExpired, now.AddDate(0, 0, 7)), GuestInviteStatusExpired},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.invite.EffectiveStatus(now); got != tc.want {
				t.Fatalf("EffectiveStatus = %q, want %q", got, tc.want)
			}
		})
	}
}
