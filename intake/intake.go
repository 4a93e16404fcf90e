// Package intake runs lead submissions through validation, duplicate
// detection and persistence.
package intake

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	leadcapture "github.com/phbpx/leadcapture"
)

type Service struct {
	store leadcapture.LeadStore
	now   func() time.Time
	newID func() string
}

func NewService(store leadcapture.LeadStore) *Service {
	return &Service{
		store: store,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// PreCheck validates the first step of the form and, only when it is valid,
// checks whether email or phone are already registered.
func (s *Service) PreCheck(ctx context.Context, c leadcapture.Candidate) error {
	stage1 := leadcapture.Candidate{
		Name:    c.Name,
		Email:   c.Email,
		Phone:   c.Phone,
		Profile: c.Profile,
		Company: c.Company,
		Role:    c.Role,
	}

	if errs := leadcapture.ValidateStage1(stage1); len(errs) > 0 {
		return &leadcapture.ValidationError{Errors: errs}
	}

	errs, err := s.CheckDuplicates(ctx, c.Email, c.Phone)
	if err != nil {
		return fmt.Errorf("checking duplicates: %w", err)
	}
	if len(errs) > 0 {
		return &leadcapture.ValidationError{Errors: errs}
	}

	return nil
}

// CreateLead validates a complete submission and stores it. The store is
// not touched when validation fails and a failed write is not retried.
func (s *Service) CreateLead(ctx context.Context, c leadcapture.Candidate) (leadcapture.Lead, error) {
	if errs := leadcapture.ValidateFull(c); len(errs) > 0 {
		return leadcapture.Lead{}, &leadcapture.ValidationError{Errors: errs}
	}

	profile := leadcapture.Profile(strings.TrimSpace(c.Profile))
	lead := leadcapture.Lead{
		ID:                s.newID(),
		Name:              strings.TrimSpace(c.Name),
		Profile:           profile,
		Email:             leadcapture.NormalizeEmail(c.Email),
		Phone:             leadcapture.NormalizePhone(c.Phone),
		CheckQuestion:     strings.TrimSpace(c.CheckQuestion),
		GeneralQuestion:   strings.TrimSpace(c.GeneralQuestion),
		MembershipConsent: c.MembershipConsent,
		DataConsent:       c.DataConsent,
		RegisteredAt:      s.now().UTC(),
	}
	if profile.Business() {
		lead.Company = strings.TrimSpace(c.Company)
		lead.Role = strings.TrimSpace(c.Role)
	}

	if err := s.store.Create(ctx, lead); err != nil {
		return leadcapture.Lead{}, fmt.Errorf("storing lead: %w", err)
	}

	return lead, nil
}

// ListLeads returns every lead, newest first.
func (s *Service) ListLeads(ctx context.Context) ([]leadcapture.Lead, error) {
	leads, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing leads: %w", err)
	}
	if leads == nil {
		return []leadcapture.Lead{}, nil
	}

	slices.SortStableFunc(leads, func(a, b leadcapture.Lead) int {
		return b.RegisteredAt.Compare(a.RegisteredAt)
	})

	return leads, nil
}

// DeleteLead removes a lead and returns what was stored. Malformed ids are
// rejected before the store is queried.
func (s *Service) DeleteLead(ctx context.Context, id string) (leadcapture.Lead, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return leadcapture.Lead{}, leadcapture.ErrInvalidID
	}

	lead, err := s.store.Delete(ctx, parsed.String())
	if err != nil {
		return leadcapture.Lead{}, fmt.Errorf("deleting lead: %w", err)
	}

	return lead, nil
}
