package repositories

import (
	"context"

	"loyalty/internal/models"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// NonceRepository records consumed QR token ids.
type NonceRepository interface {
	// Insert stores the nonce and reports whether this call consumed it.
	// A false result means the jti had already been consumed.
	Insert(ctx context.Context, nonce *models.QrNonce) (bool, error)
	Get(ctx context.Context, jti string) (*models.QrNonce, error)
}

type nonceRepository struct {
	db *gorm.DB
}

func NewNonceRepository(db *gorm.DB) NonceRepository {
	if db == nil {
		panic("db is required")
	}
	return &nonceRepository{db: db}
}

func (r *nonceRepository) Insert(ctx context.Context, nonce *models.QrNonce) (bool, error) {
	jti := nonce.Jti
	created, err := InsertOrGetExisting(ctx, r.db, nonce, func(tx *gorm.DB, dest *models.QrNonce) error {
		return tx.First(dest, "jti = ?", jti).Error
	})
	return created, errors.Wrap(err, "insert qr nonce")
}

func (r *nonceRepository) Get(ctx context.Context, jti string) (*models.QrNonce, error) {
	var nonce models.QrNonce
	if err := r.db.WithContext(ctx).First(&nonce, "jti = ?", jti).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "get qr nonce")
	}
	return &nonce, nil
}
