package commerce

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/IDLEcreative/Omniops-sub014/pkg/crypto"
)

// ErrNoCredentials is returned when a tenant has no commerce credential row.
var ErrNoCredentials = errors.New("no commerce credentials for tenant")

// CredentialSource loads decrypted commerce credentials for a tenant.
type CredentialSource interface {
	Load(ctx context.Context, tenantID string) (Credentials, error)
}

// CredentialStore reads encrypted credential rows from Postgres and decrypts
// them with the field encryptor. Plaintext only exists in memory during
// provider construction.
type CredentialStore struct {
	db        *sql.DB
	encryptor *crypto.FieldEncryptor
}

func NewCredentialStore(db *sql.DB, encryptor *crypto.FieldEncryptor) *CredentialStore {
	return &CredentialStore{db: db, encryptor: encryptor}
}

func (s *CredentialStore) Load(ctx context.Context, tenantID string) (Credentials, error) {
	if tenantID == "" {
		return Credentials{}, errors.New("tenant id is required")
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT tenant_id,
			COALESCE(shopify_domain, ''),
			COALESCE(shopify_access_token, ''),
			COALESCE(woocommerce_url, ''),
			COALESCE(woo_consumer_key, ''),
			COALESCE(woo_consumer_secret, '')
		FROM omniops.commerce_credentials
		WHERE tenant_id = $1
	`, tenantID)

	var creds Credentials
	err := row.Scan(
		&creds.TenantID,
		&creds.ShopifyDomain,
		&creds.ShopifyAccessToken,
		&creds.WooCommerceURL,
		&creds.WooConsumerKey,
		&creds.WooConsumerSecret,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Credentials{}, ErrNoCredentials
	}
	if err != nil {
		return Credentials{}, fmt.Errorf("load commerce credentials: %w", err)
	}

	if s.encryptor != nil {
		for _, field := range []*string{
			&creds.ShopifyAccessToken,
			&creds.WooConsumerKey,
			&creds.WooConsumerSecret,
		} {
			if *field == "" {
				continue
			}
			plain, derr := s.encryptor.Decrypt(*field)
			if derr != nil {
				return Credentials{}, fmt.Errorf("decrypt commerce credential: %w", derr)
			}
			*field = plain
		}
	}
	return creds, nil
}
