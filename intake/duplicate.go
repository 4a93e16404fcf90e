package intake

import (
	"context"
	"errors"
	"fmt"

	leadcapture "github.com/phbpx/leadcapture"
)

// CheckDuplicates looks up email and phone independently and returns one
// message per contact that is already registered. A failed lookup is
// returned as an error, never as a duplicate.
func (s *Service) CheckDuplicates(ctx context.Context, email, phone string) ([]string, error) {
	errs := []string{}

	lookups := []struct {
		field leadcapture.Field
		value string
		msg   string
	}{
		{leadcapture.FieldEmail, leadcapture.NormalizeEmail(email), leadcapture.MsgEmailRegistered},
		{leadcapture.FieldPhone, leadcapture.NormalizePhone(phone), leadcapture.MsgPhoneRegistered},
	}

	for _, l := range lookups {
		if l.value == "" {
			continue
		}

		_, err := s.store.FindBy(ctx, l.field, l.value)
		switch {
		case err == nil:
			errs = append(errs, l.msg)
		case errors.Is(err, leadcapture.ErrLeadNotFound):
		default:
			return nil, fmt.Errorf("looking up %s: %w", l.field, err)
		}
	}

	return errs, nil
}
