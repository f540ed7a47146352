package logincert

import "context"

// LoginCertificate binds one client-certificate common name to one
// machine principal and one reporting endpoint. A certificate login is
// accepted only when an exact (api_path, common_name) row exists.
type LoginCertificate struct {
	ID         int64
	APIPath    string
	CommonName string
	KayttajaID int64
}

type Repository interface {
	Find(ctx context.Context, apiPath, commonName string) (LoginCertificate, error)
	Create(ctx context.Context, cert LoginCertificate) (LoginCertificate, error)
	DeleteByKayttaja(ctx context.Context, kayttajaID int64) error
}
