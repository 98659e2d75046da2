package app

import (
	"context"
	"log/slog"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"

	"meridian/internal/util"
	"meridian/pkg/domain"
	"meridian/pkg/notify"
)

// Intake request payloads. All three endpoints are unauthenticated and
// validate field by field so the form can highlight individual inputs.

type ContactRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Phone           string `json:"phone"`
	Company         string `json:"company"`
	ServiceInterest string `json:"service_interest"`
	Message         string `json:"message"`
}

type ReferralRequest struct {
	ReferrerType    string `json:"referrer_type"`
	Name            string `json:"name"`
	Email           string `json:"email"`
	ReferredCompany string `json:"referred_company"`
	ReferredContact string `json:"referred_contact"`
	ServiceType     string `json:"service_type"`
}

type ApplicationRequest struct {
	FullName     string `json:"full_name"`
	Email        string `json:"email"`
	RoleInterest string `json:"role_interest"`
	CVURL        string `json:"cv_url"`
	CoverNote    string `json:"cover_note"`
}

var serviceInterests = map[string]struct{}{
	"data_services": {},
	"advisory":      {},
	"capital":       {},
	"other":         {},
}

var referrerTypes = map[string]struct{}{
	"client":   {},
	"partner":  {},
	"employee": {},
}

var referralServiceTypes = map[string]struct{}{
	"data_services": {},
	"advisory":      {},
	"capital":       {},
}

// SubmitContact validates and persists a contact form submission.
func (a *App) SubmitContact(ctx context.Context, req ContactRequest) error {
	fields := map[string]string{}
	name := strings.TrimSpace(req.Name)
	if len(name) < 2 {
		fields["name"] = "name must be at least 2 characters"
	}
	if !validEmail(req.Email) {
		fields["email"] = "a valid email address is required"
	}
	message := stripMarkup(req.Message)
	if len(message) < 10 {
		fields["message"] = "message must be at least 10 characters"
	}
	// Optional in the legacy payload shape; validated when present.
	company := stripMarkup(req.Company)
	if req.Company != "" && len(company) < 2 {
		fields["company"] = "company must be at least 2 characters"
	}
	interest := strings.TrimSpace(req.ServiceInterest)
	if interest != "" {
		if _, ok := serviceInterests[interest]; !ok {
			fields["service_interest"] = "unknown service interest"
		}
	}
	if len(fields) > 0 {
		return NewValidationError(fields)
	}

	submission := domain.ContactSubmission{
		ID:              util.NewID(),
		Name:            stripMarkup(name),
		Email:           strings.TrimSpace(strings.ToLower(req.Email)),
		Phone:           strings.TrimSpace(req.Phone),
		Company:         company,
		ServiceInterest: interest,
		Message:         message,
		Status:          domain.SubmissionNew,
		CreatedAt:       time.Now().UTC(),
	}
	if err := a.store.SaveContactSubmission(submission); err != nil {
		return err
	}
	a.emitLead(ctx, submission.ID, "contact", submission.Name, submission.Email, submission.CreatedAt)
	return nil
}

// SubmitReferral validates and persists a partner referral. New referrals
// start pending and not reward-eligible.
func (a *App) SubmitReferral(ctx context.Context, req ReferralRequest) error {
	fields := map[string]string{}
	if _, ok := referrerTypes[strings.TrimSpace(req.ReferrerType)]; !ok {
		fields["referrer_type"] = "referrer_type must be client, partner or employee"
	}
	if len(strings.TrimSpace(req.Name)) < 2 {
		fields["name"] = "name must be at least 2 characters"
	}
	if !validEmail(req.Email) {
		fields["email"] = "a valid email address is required"
	}
	if strings.TrimSpace(req.ReferredCompany) == "" {
		fields["referred_company"] = "referred_company is required"
	}
	if len(strings.TrimSpace(req.ReferredContact)) < 2 {
		fields["referred_contact"] = "referred_contact must be at least 2 characters"
	}
	if _, ok := referralServiceTypes[strings.TrimSpace(req.ServiceType)]; !ok {
		fields["service_type"] = "service_type must be data_services, advisory or capital"
	}
	if len(fields) > 0 {
		return NewValidationError(fields)
	}

	referral := domain.Referral{
		ID:              util.NewID(),
		ReferrerType:    strings.TrimSpace(req.ReferrerType),
		Name:            stripMarkup(req.Name),
		Email:           strings.TrimSpace(strings.ToLower(req.Email)),
		ReferredCompany: stripMarkup(req.ReferredCompany),
		ReferredContact: stripMarkup(req.ReferredContact),
		ServiceType:     strings.TrimSpace(req.ServiceType),
		Status:          domain.SubmissionPending,
		Eligible:        false,
		CreatedAt:       time.Now().UTC(),
	}
	if err := a.store.SaveReferral(referral); err != nil {
		return err
	}
	a.emitLead(ctx, referral.ID, "referral", referral.Name, referral.Email, referral.CreatedAt)
	return nil
}

// SubmitApplication validates and persists a careers application.
func (a *App) SubmitApplication(ctx context.Context, req ApplicationRequest) error {
	fields := map[string]string{}
	if strings.TrimSpace(req.FullName) == "" {
		fields["full_name"] = "full_name is required"
	}
	if !validEmail(req.Email) {
		fields["email"] = "a valid email address is required"
	}
	if strings.TrimSpace(req.RoleInterest) == "" {
		fields["role_interest"] = "role_interest is required"
	}
	if !validHTTPURL(req.CVURL) {
		fields["cv_url"] = "cv_url must be a valid http(s) URL"
	}
	note := stripMarkup(req.CoverNote)
	if len(note) < 10 {
		fields["cover_note"] = "cover_note must be at least 10 characters"
	}
	if len(fields) > 0 {
		return NewValidationError(fields)
	}

	application := domain.Application{
		ID:           util.NewID(),
		FullName:     stripMarkup(req.FullName),
		Email:        strings.TrimSpace(strings.ToLower(req.Email)),
		RoleInterest: stripMarkup(req.RoleInterest),
		CVURL:        strings.TrimSpace(req.CVURL),
		CoverNote:    note,
		Status:       domain.SubmissionPending,
		CreatedAt:    time.Now().UTC(),
	}
	if err := a.store.SaveApplication(application); err != nil {
		return err
	}
	a.emitLead(ctx, application.ID, "application", application.FullName, application.Email, application.CreatedAt)
	return nil
}

// emitLead queues and publishes a lead event. Both hops are best-effort:
// the submission row is already committed.
func (a *App) emitLead(ctx context.Context, submissionID, kind, name, email string, at time.Time) {
	if a.intakeQueue != nil {
		if _, err := a.intakeQueue.Enqueue(ctx, submissionID, kind); err != nil {
			slog.Warn("enqueue intake job", "kind", kind, "err", err)
		}
	}
	if err := a.leads.PublishLead(ctx, notify.LeadEvent{
		SubmissionID: submissionID,
		Kind:         kind,
		Name:         name,
		Email:        email,
		ReceivedAt:   at,
	}); err != nil {
		slog.Warn("publish lead event", "kind", kind, "err", err)
	}
}

func validEmail(value string) bool {
	value = strings.TrimSpace(value)
	if value == "" {
		return false
	}
	addr, err := mail.ParseAddress(value)
	return err == nil && addr.Address == value
}

func validHTTPURL(value string) bool {
	value = strings.TrimSpace(value)
	if value == "" {
		return false
	}
	u, err := url.Parse(value)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// stripMarkup removes HTML tags from free-text input, keeping text content.
func stripMarkup(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if !strings.ContainsAny(value, "<>") {
		return value
	}
	var b strings.Builder
	tokenizer := html.NewTokenizer(strings.NewReader(value))
	for {
		tt := tokenizer.Next()
		if tt == html.ErrorToken {
			break
		}
		if tt == html.TextToken {
			b.WriteString(tokenizer.Token().Data)
		}
	}
	return strings.TrimSpace(b.String())
}
