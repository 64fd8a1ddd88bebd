package core

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/legendstarrx/scriptsea/internal/models"
)

func TestAdminListUsersPaging(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		env.seed(fmt.Sprintf("u%d", i), fmt.Sprintf("user%d@scriptsea.test", i))
	}
	env.seed("u9", testAdminEmail)

	page, next, err := env.admin.ListUsers(ctx, 4, "")
	if err != nil {
		t.Fatalf("ListUsers() error = %v", err)
	}
	if len(page) != 4 || next != "u3" {
		t.Fatalf("first page = %d users, next %q, want 4 and u3", len(page), next)
	}
	page, next, err = env.admin.ListUsers(ctx, 4, next)
	if err != nil {
		t.Fatalf("ListUsers() error = %v", err)
	}
	if len(page) != 2 || next != "" {
		t.Fatalf("second page = %d users, next %q, want 2 and empty", len(page), next)
	}
	if !page[1].IsAdmin || page[0].IsAdmin {
		t.Errorf("IsAdmin flags = (%v, %v), want (false, true)", page[0].IsAdmin, page[1].IsAdmin)
	}
}

func TestAdminUpdatePlan(t *testing.T) {
	env := newTestEnv(t)
	env.seed("u1", "a@scriptsea.test")

	p, err := env.admin.UpdatePlan(context.Background(), testAdminEmail, "u1", models.PlanPro)
	if err != nil {
		t.Fatalf("UpdatePlan() error = %v", err)
	}
	if p.ScriptsRemaining != 100 || p.ScriptsLimit != 100 {
		t.Errorf("quota = (%d, %d), want (100, 100)", p.ScriptsRemaining, p.ScriptsLimit)
	}
	if got := env.audit.actions(); len(got) != 1 || got[0] != models.AuditActionPlanOverride {
		t.Errorf("audit actions = %v", got)
	}
	if _, err := env.admin.UpdatePlan(context.Background(), testAdminEmail, "missing", models.PlanPro); !errors.Is(err, ErrProfileNotFound) {
		t.Errorf("UpdatePlan(missing) error = %v, want ErrProfileNotFound", err)
	}
}

func TestAdminSetBanned(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seed("u1", "a@scriptsea.test")
	env.source.Load(ctx, "u1")

	p, err := env.admin.SetBanned(ctx, testAdminEmail, "u1", true)
	if err != nil {
		t.Fatalf("SetBanned(true) error = %v", err)
	}
	if !p.IsBanned {
		t.Error("IsBanned = false, want true")
	}
	if env.identity.signedOut("u1") != 1 {
		t.Error("banning must revoke sessions")
	}
	if _, err := env.cache.Get(ctx, ProfileCacheKey("u1")); err == nil {
		t.Error("banning must drop the cached profile")
	}

	p, err = env.admin.SetBanned(ctx, testAdminEmail, "u1", false)
	if err != nil || p.IsBanned {
		t.Fatalf("SetBanned(false) = %v, %v", p, err)
	}
	want := []string{models.AuditActionAccountBan, models.AuditActionAccountUnban}
	got := env.audit.actions()
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("audit actions = %v, want %v", got, want)
	}
}

func TestAdminDeleteUser(t *testing.T) {
	env := newTestEnv(t)
	env.seed("u1", "a@scriptsea.test")

	if err := env.admin.DeleteUser(context.Background(), testAdminEmail, "u1"); err != nil {
		t.Fatalf("DeleteUser() error = %v", err)
	}
	if env.profiles.get("u1") != nil {
		t.Error("profile still stored")
	}
	if len(env.identity.deleted) != 1 || env.identity.deleted[0] != "u1" {
		t.Errorf("identity deletions = %v, want [u1]", env.identity.deleted)
	}
	if err := env.admin.DeleteUser(context.Background(), testAdminEmail, "u1"); !errors.Is(err, ErrProfileNotFound) {
		t.Errorf("second DeleteUser() error = %v, want ErrProfileNotFound", err)
	}
}

func TestAdminBanIPValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.admin.BanIP(ctx, testAdminEmail, "not-an-ip", ""); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("BanIP(invalid) error = %v, want ErrInvalidInput", err)
	}
	entry, err := env.admin.BanIP(ctx, testAdminEmail, "2001:db8::1", "spam")
	if err != nil {
		t.Fatalf("BanIP() error = %v", err)
	}
	if entry.BannedBy != testAdminEmail || entry.Reason != "spam" {
		t.Errorf("entry = %+v", entry)
	}
	list, _ := env.admin.ListBannedIPs(ctx)
	if len(list) != 1 {
		t.Errorf("ListBannedIPs() = %d entries, want 1", len(list))
	}
	if err := env.admin.UnbanIP(ctx, testAdminEmail, "198.51.100.9"); !errors.Is(err, ErrBanNotFound) {
		t.Errorf("UnbanIP(unknown) error = %v, want ErrBanNotFound", err)
	}
}

func TestAdminRevokeSessions(t *testing.T) {
	env := newTestEnv(t)
	if err := env.admin.RevokeSessions(context.Background(), testAdminEmail, "u1"); err != nil {
		t.Fatalf("RevokeSessions() error = %v", err)
	}
	if env.identity.signedOut("u1") != 1 {
		t.Error("sessions not revoked")
	}
}

func TestAdminListPayments(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seed("u1", "a@scriptsea.test")
	env.paymentSvc.Process(ctx, successEvent("ref_1"))

	records, err := env.admin.ListPayments(ctx, 0)
	if err != nil {
		t.Fatalf("ListPayments() error = %v", err)
	}
	if len(records) != 1 || records[0].Reference != "ref_1" || records[0].UserID != "u1" {
		t.Errorf("records = %+v", records)
	}
}
