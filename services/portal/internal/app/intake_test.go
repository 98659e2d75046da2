package app

import (
	"context"
	"errors"
	"testing"
)

func TestSubmitContactValidation(t *testing.T) {
	a, mem, _ := newTestApp(t)

	err := a.SubmitContact(context.Background(), ContactRequest{
		Name:  "Jo",
		Email: "jo@example.com",
		// message missing
	})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, ok := verr.Fields["message"]; !ok {
		t.Fatalf("expected error keyed by message, got %v", verr.Fields)
	}
	if rows := mem.ContactSubmissions(); len(rows) != 0 {
		t.Fatalf("invalid payload must not persist, got %d rows", len(rows))
	}

	err = a.SubmitContact(context.Background(), ContactRequest{
		Name:            "Jo Meridian",
		Email:           "not-an-email",
		Company:         "Acme",
		ServiceInterest: "piracy",
		Message:         "short",
	})
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	for _, field := range []string{"email", "service_interest", "message"} {
		if _, ok := verr.Fields[field]; !ok {
			t.Fatalf("expected %s error, got %v", field, verr.Fields)
		}
	}
}

func TestSubmitContactPersistsOneRow(t *testing.T) {
	a, mem, _ := newTestApp(t)

	err := a.SubmitContact(context.Background(), ContactRequest{
		Name:            "Jo Meridian",
		Email:           "Jo@Example.com",
		Company:         "Acme Holdings",
		ServiceInterest: "advisory",
		Message:         "We need <b>help</b> with a data migration.",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	rows := mem.ContactSubmissions()
	if len(rows) != 1 {
		t.Fatalf("expected exactly one row, got %d", len(rows))
	}
	got := rows[0]
	if got.Email != "jo@example.com" {
		t.Fatalf("email not normalized: %q", got.Email)
	}
	if got.Message != "We need help with a data migration." {
		t.Fatalf("markup not stripped: %q", got.Message)
	}
	if got.Status != "new" {
		t.Fatalf("unexpected status: %q", got.Status)
	}
}

func TestSubmitReferral(t *testing.T) {
	a, mem, _ := newTestApp(t)

	err := a.SubmitReferral(context.Background(), ReferralRequest{
		ReferrerType:    "competitor",
		Name:            "Pat",
		Email:           "pat@example.com",
		ReferredCompany: "Newco",
		ReferredContact: "Lee",
		ServiceType:     "advisory",
	})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, ok := verr.Fields["referrer_type"]; !ok {
		t.Fatalf("expected referrer_type error, got %v", verr.Fields)
	}

	err = a.SubmitReferral(context.Background(), ReferralRequest{
		ReferrerType:    "partner",
		Name:            "Pat",
		Email:           "pat@example.com",
		ReferredCompany: "Newco",
		ReferredContact: "Lee",
		ServiceType:     "capital",
	})
	if err != nil {
		t.Fatalf("submit referral: %v", err)
	}
	rows := mem.Referrals()
	if len(rows) != 1 {
		t.Fatalf("expected one referral, got %d", len(rows))
	}
	if rows[0].Status != "pending" || rows[0].Eligible {
		t.Fatalf("new referral must be pending and not eligible: %+v", rows[0])
	}
}

func TestSubmitReferralRejectsShortNames(t *testing.T) {
	a, mem, _ := newTestApp(t)

	err := a.SubmitReferral(context.Background(), ReferralRequest{
		ReferrerType:    "partner",
		Name:            "P",
		Email:           "pat@example.com",
		ReferredCompany: "Newco",
		ReferredContact: " L ",
		ServiceType:     "advisory",
	})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, ok := verr.Fields["name"]; !ok {
		t.Fatalf("expected name error, got %v", verr.Fields)
	}
	if _, ok := verr.Fields["referred_contact"]; !ok {
		t.Fatalf("expected referred_contact error, got %v", verr.Fields)
	}
	if rows := mem.Referrals(); len(rows) != 0 {
		t.Fatalf("short names must not persist a referral, got %d rows", len(rows))
	}
}

func TestSubmitApplication(t *testing.T) {
	a, mem, _ := newTestApp(t)

	err := a.SubmitApplication(context.Background(), ApplicationRequest{
		FullName:     "Sam Candidate",
		Email:        "sam@example.com",
		RoleInterest: "Data Engineer",
		CVURL:        "not a url",
		CoverNote:    "I have shipped several data platforms.",
	})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, ok := verr.Fields["cv_url"]; !ok {
		t.Fatalf("expected cv_url error, got %v", verr.Fields)
	}

	err = a.SubmitApplication(context.Background(), ApplicationRequest{
		FullName:     "Sam Candidate",
		Email:        "sam@example.com",
		RoleInterest: "Data Engineer",
		CVURL:        "https://cv.example/sam.pdf",
		CoverNote:    "I have shipped several data platforms.",
	})
	if err != nil {
		t.Fatalf("submit application: %v", err)
	}
	if rows := mem.Applications(); len(rows) != 1 || rows[0].Status != "pending" {
		t.Fatalf("expected one pending application, got %+v", rows)
	}
}

func TestStripMarkup(t *testing.T) {
	if got := stripMarkup("plain text"); got != "plain text" {
		t.Fatalf("plain text mangled: %q", got)
	}
	if got := stripMarkup("<script>alert(1)</script>hello"); got != "alert(1)hello" {
		t.Fatalf("tags not stripped: %q", got)
	}
	if got := stripMarkup("<p>Two<br>lines</p>"); got != "Twolines" {
		t.Fatalf("nested tags not stripped: %q", got)
	}
	if got := stripMarkup("  padded  "); got != "padded" {
		t.Fatalf("whitespace not trimmed: %q", got)
	}
}
