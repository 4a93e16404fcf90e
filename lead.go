package leadcapture

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	ErrDuplicatedLead   = errors.New("email or phone already in use")
	ErrLeadNotFound     = errors.New("lead not found")
	ErrInvalidID        = errors.New("lead id is not in its proper form")
	ErrStoreUnavailable = errors.New("lead store unavailable")
)

// Profile is the self-declared audience segment of a lead.
type Profile string

const (
	ProfileStudent      Profile = "Estudante"
	ProfileExecutive    Profile = "Executivo"
	ProfileEntrepreneur Profile = "Empreendedor"
	ProfileInvestor     Profile = "Investidor"
)

// Valid reports whether p is one of the known profiles.
func (p Profile) Valid() bool {
	switch p {
	case ProfileStudent, ProfileExecutive, ProfileEntrepreneur, ProfileInvestor:
		return true
	}
	return false
}

// Business reports whether the profile requires company and role.
func (p Profile) Business() bool {
	switch p {
	case ProfileExecutive, ProfileEntrepreneur, ProfileInvestor:
		return true
	}
	return false
}

type Lead struct {
	ID                string    `json:"id" db:"id"`
	Name              string    `json:"nome" db:"name"`
	Profile           Profile   `json:"perfil" db:"profile"`
	Company           string    `json:"empresa,omitempty" db:"company"`
	Role              string    `json:"cargo,omitempty" db:"role"`
	Email             string    `json:"email" db:"email"`
	Phone             string    `json:"telefone" db:"phone"`
	CheckQuestion     string    `json:"perguntaVerificacao" db:"check_question"`
	GeneralQuestion   string    `json:"perguntaGeral,omitempty" db:"general_question"`
	MembershipConsent bool      `json:"adesao" db:"membership_consent"`
	DataConsent       bool      `json:"lgpd" db:"data_consent"`
	RegisteredAt      time.Time `json:"dataCadastro" db:"registered_at"`
}

// Candidate is an unvalidated lead submission as sent by the landing page.
type Candidate struct {
	Name              string `json:"nome"`
	Profile           string `json:"perfil"`
	Company           string `json:"empresa"`
	Role              string `json:"cargo"`
	Email             string `json:"email"`
	Phone             string `json:"telefone"`
	CheckQuestion     string `json:"perguntaVerificacao"`
	GeneralQuestion   string `json:"perguntaGeral"`
	MembershipConsent bool   `json:"adesao"`
	DataConsent       bool   `json:"lgpd"`
}

// NormalizeEmail returns the form under which an email is stored and looked up.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizePhone returns the form under which a phone is stored and looked up:
// its digits only, so "(11) 99999-8888" and "11999998888" are the same number.
func NormalizePhone(phone string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, phone)
}

// Field names a lead attribute that can be used for lookups.
type Field string

const (
	FieldEmail Field = "email"
	FieldPhone Field = "phone"
)

// LeadStore persists leads. Implementations return ErrLeadNotFound when a
// lookup or delete matches nothing and wrap ErrStoreUnavailable when the
// backing store cannot be reached.
type LeadStore interface {
	Create(ctx context.Context, lead Lead) error
	FindBy(ctx context.Context, field Field, value string) (Lead, error)
	List(ctx context.Context) ([]Lead, error)
	Delete(ctx context.Context, id string) (Lead, error)
}
