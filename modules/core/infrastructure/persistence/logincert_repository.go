package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/iota-uz/varda/modules/core/domain/entities/logincert"
	"github.com/iota-uz/varda/pkg/composables"
	"github.com/iota-uz/varda/pkg/serrors"
)

const (
	logincertFindQuery = `
		SELECT id, api_path, common_name, kayttaja_id FROM login_certificate
		WHERE api_path = $1 AND common_name = $2`

	logincertInsertQuery = `
		INSERT INTO login_certificate (api_path, common_name, kayttaja_id)
		VALUES ($1, $2, $3)
		RETURNING id`

	logincertDeleteQuery = `DELETE FROM login_certificate WHERE kayttaja_id = $1`
)

type LoginCertificateRepository struct{}

func NewLoginCertificateRepository() logincert.Repository {
	return &LoginCertificateRepository{}
}

func (r *LoginCertificateRepository) Find(ctx context.Context, apiPath, commonName string) (logincert.LoginCertificate, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return logincert.LoginCertificate{}, err
	}

	var cert logincert.LoginCertificate
	err = tx.QueryRow(ctx, logincertFindQuery, strings.TrimSpace(apiPath), strings.TrimSpace(commonName)).
		Scan(&cert.ID, &cert.APIPath, &cert.CommonName, &cert.KayttajaID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return logincert.LoginCertificate{}, serrors.NotFound("login certificate not found")
		}
		return logincert.LoginCertificate{}, fmt.Errorf("find login certificate: %w", err)
	}
	return cert, nil
}

func (r *LoginCertificateRepository) Create(ctx context.Context, cert logincert.LoginCertificate) (logincert.LoginCertificate, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return logincert.LoginCertificate{}, err
	}
	err = tx.QueryRow(ctx, logincertInsertQuery, cert.APIPath, cert.CommonName, cert.KayttajaID).Scan(&cert.ID)
	if err != nil {
		return logincert.LoginCertificate{}, fmt.Errorf("create login certificate: %w", err)
	}
	return cert, nil
}

func (r *LoginCertificateRepository) DeleteByKayttaja(ctx context.Context, kayttajaID int64) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, logincertDeleteQuery, kayttajaID); err != nil {
		return fmt.Errorf("delete login certificates: %w", err)
	}
	return nil
}
