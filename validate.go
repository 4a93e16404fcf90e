package leadcapture

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const minTextLen = 3

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern = regexp.MustCompile(`^(\(?\d{2}\)?)?9?\d{4}[-\s]?\d{4}$`)
)

// Validation messages returned to the landing page.
const (
	MsgInvalidProfile     = "Perfil inválido ou ausente."
	MsgCompanyRequired    = "Empresa é obrigatória para o perfil selecionado."
	MsgCompanyTooShort    = "Empresa deve ter pelo menos 3 caracteres."
	MsgRoleRequired       = "Cargo é obrigatório para o perfil selecionado."
	MsgRoleTooShort       = "Cargo deve ter pelo menos 3 caracteres."
	MsgInvalidEmail       = "Email ausente ou em formato inválido."
	MsgInvalidPhone       = "Telefone ausente ou em formato inválido."
	MsgInvalidName        = "Nome ausente ou com menos de 3 caracteres."
	MsgInvalidCheck       = "Pergunta de verificação ausente ou com menos de 3 caracteres."
	MsgMembershipRequired = "É necessário aceitar a adesão."
	MsgDataConsentMissing = "É necessário aceitar os termos de uso de dados (LGPD)."
	MsgEmailRegistered    = "Email já cadastrado."
	MsgPhoneRegistered    = "Telefone já cadastrado."
)

// ValidationError carries every field-level problem found in a submission.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Errors, " ")
}

// ValidateStage1 checks the fields collected by the first step of the form.
// All rules are evaluated; the result is empty when the candidate is valid.
func ValidateStage1(c Candidate) []string {
	errs := []string{}

	profile := Profile(strings.TrimSpace(c.Profile))
	if !profile.Valid() {
		errs = append(errs, MsgInvalidProfile)
	}

	if profile.Business() {
		if msg := checkAffiliation(c.Company, MsgCompanyRequired, MsgCompanyTooShort); msg != "" {
			errs = append(errs, msg)
		}
		if msg := checkAffiliation(c.Role, MsgRoleRequired, MsgRoleTooShort); msg != "" {
			errs = append(errs, msg)
		}
	}

	if email := NormalizeEmail(c.Email); email == "" || !emailPattern.MatchString(email) {
		errs = append(errs, MsgInvalidEmail)
	}

	if phone := stripSpaces(c.Phone); phone == "" || !phonePattern.MatchString(phone) {
		errs = append(errs, MsgInvalidPhone)
	}

	if !longEnough(c.Name) {
		errs = append(errs, MsgInvalidName)
	}

	return errs
}

// ValidateFull checks a complete submission. Its result always contains the
// ValidateStage1 result as a prefix.
func ValidateFull(c Candidate) []string {
	errs := ValidateStage1(c)

	if !longEnough(c.CheckQuestion) {
		errs = append(errs, MsgInvalidCheck)
	}
	if !c.MembershipConsent {
		errs = append(errs, MsgMembershipRequired)
	}
	if !c.DataConsent {
		errs = append(errs, MsgDataConsentMissing)
	}

	return errs
}

func checkAffiliation(value, missing, short string) string {
	switch {
	case value == "":
		return missing
	case !longEnough(value):
		return short
	}
	return ""
}

func longEnough(s string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(s)) >= minTextLen
}

func stripSpaces(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
