package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"xmlcustomizer/syndicator/internal/database"
	"xmlcustomizer/syndicator/internal/models"
)

// CustomerRepository reads and writes rows of the 'customers' table.
type CustomerRepository struct {
	db *database.DB
}

// NewCustomerRepository creates a new repository instance.
func NewCustomerRepository(db *database.DB) *CustomerRepository {
	return &CustomerRepository{db: db}
}

// Create inserts customer and sets its ID. The token must already be set.
func (r *CustomerRepository) Create(ctx context.Context, customer *models.Customer) error {
	now := time.Now().UTC()
	customer.CreatedAt = now
	customer.UpdatedAt = now

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO customers (name, email, token, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		customer.Name, customer.Email, customer.Token, customer.CreatedAt, customer.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert customer: %w", err)
	}
	customer.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read customer id: %w", err)
	}
	return nil
}

// Get returns the customer with id or ErrNotFound.
func (r *CustomerRepository) Get(ctx context.Context, id int64) (*models.Customer, error) {
	return r.getOne(ctx, "SELECT * FROM customers WHERE id = ?", id)
}

// GetByToken resolves a public token to its customer or ErrNotFound.
func (r *CustomerRepository) GetByToken(ctx context.Context, token string) (*models.Customer, error) {
	return r.getOne(ctx, "SELECT * FROM customers WHERE token = ?", token)
}

func (r *CustomerRepository) getOne(ctx context.Context, query string, arg any) (*models.Customer, error) {
	var c models.Customer
	err := r.db.GetContext(ctx, &c, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("customer: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("database query failed: %w", err)
	}
	return &c, nil
}

// List returns up to limit customers in creation order, starting after cursor.
func (r *CustomerRepository) List(ctx context.Context, limit int, after *Cursor) ([]models.Customer, error) {
	where, args := after.keyset()
	customers := []models.Customer{}
	err := r.db.SelectContext(ctx, &customers,
		"SELECT * FROM customers WHERE "+where+" ORDER BY created_at ASC, id ASC LIMIT ?",
		append(args, limit)...)
	if err != nil {
		return nil, fmt.Errorf("database query failed: %w", err)
	}
	return customers, nil
}

// Update writes the customer's name and email. The token never changes.
func (r *CustomerRepository) Update(ctx context.Context, id int64, name string, email sql.NullString) error {
	out, err := r.db.ExecContext(ctx,
		"UPDATE customers SET name = ?, email = ?, updated_at = ? WHERE id = ?",
		name, email, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update customer %d: %w", id, err)
	}
	return requireRow(out, "customer", id)
}

// Delete removes the customer; its selections go with it.
func (r *CustomerRepository) Delete(ctx context.Context, id int64) error {
	out, err := r.db.ExecContext(ctx, "DELETE FROM customers WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete customer %d: %w", id, err)
	}
	return requireRow(out, "customer", id)
}
