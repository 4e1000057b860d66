package repo

import (
	"context"
	"strings"

	"github.com/stockledger/inventory/internal/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ContactInput registers a customer, supplier or user.
type ContactInput struct {
	Username string
	Name     string
	Email    string
	Phone    string
	Address  string
}

func (in *ContactInput) normalize() error {
	in.Username = strings.TrimSpace(in.Username)
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	return requireFields(map[string]string{"username": in.Username, "name": in.Name})
}

// DirectoryRepository resolves the people and companies ledger rows point at.
type DirectoryRepository struct {
	db  *db.DB
	log *zap.Logger
}

func NewDirectoryRepository(database *db.DB, logger *zap.Logger) *DirectoryRepository {
	return &DirectoryRepository{db: database, log: logger}
}

func (r *DirectoryRepository) RegisterCustomer(ctx context.Context, in ContactInput) (*db.Customer, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	c := &db.Customer{Username: in.Username, Name: in.Name, Email: in.Email, Phone: in.Phone, Address: in.Address}
	if err := r.createUnique(ctx, &db.Customer{}, c.Username, c); err != nil {
		return nil, err
	}
	r.log.Info("Customer registered", zap.Uint("customer_id", c.ID), zap.String("username", c.Username))
	return c, nil
}

func (r *DirectoryRepository) GetCustomer(ctx context.Context, id uint) (*db.Customer, error) {
	return findCustomer(r.db.WithContext(ctx), id)
}

func (r *DirectoryRepository) ListCustomers(ctx context.Context) ([]*db.Customer, error) {
	return list[db.Customer](ctx, r)
}

func (r *DirectoryRepository) RegisterSupplier(ctx context.Context, in ContactInput) (*db.Supplier, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	s := &db.Supplier{Username: in.Username, Name: in.Name, Email: in.Email, Phone: in.Phone, Address: in.Address}
	if err := r.createUnique(ctx, &db.Supplier{}, s.Username, s); err != nil {
		return nil, err
	}
	r.log.Info("Supplier registered", zap.Uint("supplier_id", s.ID), zap.String("username", s.Username))
	return s, nil
}

func (r *DirectoryRepository) GetSupplier(ctx context.Context, id uint) (*db.Supplier, error) {
	return findSupplier(r.db.WithContext(ctx), id)
}

func (r *DirectoryRepository) ListSuppliers(ctx context.Context) ([]*db.Supplier, error) {
	return list[db.Supplier](ctx, r)
}

func (r *DirectoryRepository) RegisterUser(ctx context.Context, in ContactInput) (*db.User, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	u := &db.User{Username: in.Username, Name: in.Name, Email: in.Email}
	if err := r.createUnique(ctx, &db.User{}, u.Username, u); err != nil {
		return nil, err
	}
	r.log.Info("User registered", zap.Uint("user_id", u.ID), zap.String("username", u.Username))
	return u, nil
}

func (r *DirectoryRepository) GetUser(ctx context.Context, id uint) (*db.User, error) {
	return findUser(r.db.WithContext(ctx), id)
}

func (r *DirectoryRepository) ListUsers(ctx context.Context) ([]*db.User, error) {
	return list[db.User](ctx, r)
}

// createUnique inserts row unless model's table already has username.
func (r *DirectoryRepository) createUnique(ctx context.Context, model interface{}, username string, row interface{}) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(model).Where("username = ?", username).Count(&count).Error; err != nil {
			r.log.Error("Failed to check username", zap.String("username", username), zap.Error(err))
			return err
		}
		if count > 0 {
			return ErrDuplicateUsername
		}
		if err := tx.Create(row).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicateUsername
			}
			r.log.Error("Failed to create directory entry", zap.String("username", username), zap.Error(err))
			return err
		}
		return nil
	})
}

func list[T any](ctx context.Context, r *DirectoryRepository) ([]*T, error) {
	var rows []*T
	if err := r.db.WithContext(ctx).Order("name ASC").Order("id ASC").Find(&rows).Error; err != nil {
		r.log.Error("Failed to list directory entries", zap.Error(err))
		return nil, err
	}
	return rows, nil
}
