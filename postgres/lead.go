package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	leadcapture "github.com/phbpx/leadcapture"
)

// lib/pq errorCodeNames
// https://github.com/lib/pq/blob/master/error.go#L178
const uniqueViolation = "23505"

const leadColumns = `
		id,
		name,
		profile,
		company,
		role,
		email,
		phone,
		check_question,
		general_question,
		membership_consent,
		data_consent,
		registered_at`

// Connector hands out the shared database handle.
type Connector interface {
	DB(ctx context.Context) (*sqlx.DB, error)
}

type LeadStore struct {
	conn Connector
}

func NewLeadStore(conn Connector) leadcapture.LeadStore {
	return &LeadStore{
		conn: conn,
	}
}

func (ls LeadStore) Create(ctx context.Context, lead leadcapture.Lead) error {
	db, err := ls.conn.DB(ctx)
	if err != nil {
		return err
	}

	query := `
	INSERT INTO leads (` + leadColumns + `
	) VALUES (
		:id, :name, :profile, :company, :role, :email, :phone,
		:check_question, :general_question, :membership_consent,
		:data_consent, :registered_at
	)`

	if _, err := db.NamedExecContext(ctx, query, lead); err != nil {
		var pqerr *pq.Error
		if errors.As(err, &pqerr) && pqerr.Code == uniqueViolation {
			return leadcapture.ErrDuplicatedLead
		}
		return err
	}

	return nil
}

func (ls LeadStore) FindBy(ctx context.Context, field leadcapture.Field, value string) (leadcapture.Lead, error) {
	var lead leadcapture.Lead

	switch field {
	case leadcapture.FieldEmail, leadcapture.FieldPhone:
	default:
		return lead, fmt.Errorf("unsupported lookup field %q", field)
	}

	db, err := ls.conn.DB(ctx)
	if err != nil {
		return lead, err
	}

	query := `SELECT` + leadColumns + `
	FROM leads
	WHERE ` + string(field) + `=$1
	LIMIT 1`

	if err := db.GetContext(ctx, &lead, query, value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return lead, leadcapture.ErrLeadNotFound
		}
		return lead, err
	}

	return lead, nil
}

func (ls LeadStore) List(ctx context.Context) ([]leadcapture.Lead, error) {
	db, err := ls.conn.DB(ctx)
	if err != nil {
		return nil, err
	}

	query := `SELECT` + leadColumns + `
	FROM leads
	ORDER BY registered_at DESC`

	leads := []leadcapture.Lead{}
	if err := db.SelectContext(ctx, &leads, query); err != nil {
		return nil, err
	}

	return leads, nil
}

func (ls LeadStore) Delete(ctx context.Context, id string) (leadcapture.Lead, error) {
	var lead leadcapture.Lead

	db, err := ls.conn.DB(ctx)
	if err != nil {
		return lead, err
	}

	query := `
	DELETE FROM leads
	WHERE id=$1
	RETURNING` + leadColumns

	if err := db.GetContext(ctx, &lead, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return lead, leadcapture.ErrLeadNotFound
		}
		return lead, err
	}

	return lead, nil
}
