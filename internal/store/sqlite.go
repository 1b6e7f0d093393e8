// Package store persists panel entities in SQLite.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"evopanel/internal/domain"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements domain.Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	// Set connection pool (single connection for SQLite)
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db, logger: logger}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		name        TEXT NOT NULL,
		email       TEXT NOT NULL UNIQUE,
		password    TEXT NOT NULL DEFAULT '',
		balance     INTEGER NOT NULL DEFAULT 0,
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS groups (
		id   INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS contacts (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		name        TEXT NOT NULL,
		phone       TEXT NOT NULL,
		group_id    INTEGER REFERENCES groups(id) ON DELETE SET NULL,
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_contacts_group ON contacts(group_id);

	CREATE TABLE IF NOT EXISTS categories (
		id   INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS products (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		name        TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		price       REAL NOT NULL DEFAULT 0,
		category_id INTEGER REFERENCES categories(id) ON DELETE SET NULL
	);
	CREATE INDEX IF NOT EXISTS idx_products_cat ON products(category_id);

	CREATE TABLE IF NOT EXISTS gifts (
		id   INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		cost INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS texts (
		id      INTEGER PRIMARY KEY AUTOINCREMENT,
		name    TEXT NOT NULL,
		content TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- users ---

func (s *SQLiteStore) CreateUser(ctx context.Context, u domain.User) (int64, error) {
	now := time.Now()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (name, email, password, balance, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		u.Name, u.Email, u.Password, u.Balance, now, now,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *SQLiteStore) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	var u domain.User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, email, password, balance, created_at, updated_at FROM users WHERE id = ?`, id,
	).Scan(&u.ID, &u.Name, &u.Email, &u.Password, &u.Balance, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	var u domain.User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, email, password, balance, created_at, updated_at FROM users WHERE email = ?`, email,
	).Scan(&u.ID, &u.Name, &u.Email, &u.Password, &u.Balance, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *SQLiteStore) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, email, balance, created_at, updated_at FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Balance, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *SQLiteStore) UpdateUser(ctx context.Context, u domain.User) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET name=?, email=?, password=?, updated_at=? WHERE id=?`,
		u.Name, u.Email, u.Password, time.Now(), u.ID,
	)
	return err
}

// UpdateUserBalance overwrites the balance. Concurrent writes race and the
// last one wins.
func (s *SQLiteStore) UpdateUserBalance(ctx context.Context, id int64, balance int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET balance=?, updated_at=? WHERE id=?`, balance, time.Now(), id,
	)
	return err
}

func (s *SQLiteStore) DeleteUser(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id=?`, id)
	return err
}

// --- contacts ---

func (s *SQLiteStore) CreateContact(ctx context.Context, c domain.Contact) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO contacts (name, phone, group_id, created_at) VALUES (?, ?, ?, ?)`,
		c.Name, c.Phone, nullableID(c.GroupID), time.Now(),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *SQLiteStore) GetContact(ctx context.Context, id int64) (*domain.Contact, error) {
	var c domain.Contact
	var groupID sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, phone, group_id, created_at FROM contacts WHERE id = ?`, id,
	).Scan(&c.ID, &c.Name, &c.Phone, &groupID, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c.GroupID = groupID.Int64
	return &c, nil
}

func (s *SQLiteStore) ListContacts(ctx context.Context) ([]domain.Contact, error) {
	return s.queryContacts(ctx,
		`SELECT id, name, phone, group_id, created_at FROM contacts ORDER BY id`)
}

func (s *SQLiteStore) ListContactsByGroup(ctx context.Context, groupID int64) ([]domain.Contact, error) {
	return s.queryContacts(ctx,
		`SELECT id, name, phone, group_id, created_at FROM contacts WHERE group_id = ? ORDER BY id`, groupID)
}

func (s *SQLiteStore) queryContacts(ctx context.Context, query string, args ...any) ([]domain.Contact, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var contacts []domain.Contact
	for rows.Next() {
		var c domain.Contact
		var gid sql.NullInt64
		if err := rows.Scan(&c.ID, &c.Name, &c.Phone, &gid, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.GroupID = gid.Int64
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

func (s *SQLiteStore) UpdateContact(ctx context.Context, c domain.Contact) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE contacts SET name=?, phone=?, group_id=? WHERE id=?`,
		c.Name, c.Phone, nullableID(c.GroupID), c.ID,
	)
	return err
}

func (s *SQLiteStore) DeleteContact(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM contacts WHERE id=?`, id)
	return err
}

// --- groups ---

func (s *SQLiteStore) CreateGroup(ctx context.Context, g domain.Group) (int64, error) {
	res, err := s.db.ExecContext(ctx, `INSERT INTO groups (name) VALUES (?)`, g.Name)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *SQLiteStore) ListGroups(ctx context.Context) ([]domain.Group, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM groups ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []domain.Group
	for rows.Next() {
		var g domain.Group
		if err := rows.Scan(&g.ID, &g.Name); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

func (s *SQLiteStore) UpdateGroup(ctx context.Context, g domain.Group) error {
	_, err := s.db.ExecContext(ctx, `UPDATE groups SET name=? WHERE id=?`, g.Name, g.ID)
	return err
}

func (s *SQLiteStore) DeleteGroup(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM groups WHERE id=?`, id)
	return err
}

// --- categories ---

func (s *SQLiteStore) CreateCategory(ctx context.Context, c domain.Category) (int64, error) {
	res, err := s.db.ExecContext(ctx, `INSERT INTO categories (name) VALUES (?)`, c.Name)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *SQLiteStore) ListCategories(ctx context.Context) ([]domain.Category, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM categories ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cats []domain.Category
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, err
		}
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

func (s *SQLiteStore) UpdateCategory(ctx context.Context, c domain.Category) error {
	_, err := s.db.ExecContext(ctx, `UPDATE categories SET name=? WHERE id=?`, c.Name, c.ID)
	return err
}

func (s *SQLiteStore) DeleteCategory(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM categories WHERE id=?`, id)
	return err
}

// --- products ---

func (s *SQLiteStore) CreateProduct(ctx context.Context, p domain.Product) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO products (name, description, price, category_id) VALUES (?, ?, ?, ?)`,
		p.Name, p.Description, p.Price, nullableID(p.CategoryID),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *SQLiteStore) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	var p domain.Product
	var catID sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, description, price, category_id FROM products WHERE id = ?`, id,
	).Scan(&p.ID, &p.Name, &p.Description, &p.Price, &catID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.CategoryID = catID.Int64
	return &p, nil
}

func (s *SQLiteStore) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description, price, category_id FROM products ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		var p domain.Product
		var catID sql.NullInt64
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &catID); err != nil {
			return nil, err
		}
		p.CategoryID = catID.Int64
		products = append(products, p)
	}
	return products, rows.Err()
}

func (s *SQLiteStore) UpdateProduct(ctx context.Context, p domain.Product) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE products SET name=?, description=?, price=?, category_id=? WHERE id=?`,
		p.Name, p.Description, p.Price, nullableID(p.CategoryID), p.ID,
	)
	return err
}

func (s *SQLiteStore) DeleteProduct(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id=?`, id)
	return err
}

// --- gifts ---

func (s *SQLiteStore) CreateGift(ctx context.Context, g domain.Gift) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO gifts (name, cost) VALUES (?, ?)`, g.Name, g.Cost)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *SQLiteStore) ListGifts(ctx context.Context) ([]domain.Gift, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, cost FROM gifts ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var gifts []domain.Gift
	for rows.Next() {
		var g domain.Gift
		if err := rows.Scan(&g.ID, &g.Name, &g.Cost); err != nil {
			return nil, err
		}
		gifts = append(gifts, g)
	}
	return gifts, rows.Err()
}

func (s *SQLiteStore) UpdateGift(ctx context.Context, g domain.Gift) error {
	_, err := s.db.ExecContext(ctx, `UPDATE gifts SET name=?, cost=? WHERE id=?`, g.Name, g.Cost, g.ID)
	return err
}

func (s *SQLiteStore) DeleteGift(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM gifts WHERE id=?`, id)
	return err
}

// --- texts ---

func (s *SQLiteStore) CreateText(ctx context.Context, t domain.TextTemplate) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO texts (name, content) VALUES (?, ?)`, t.Name, t.Content)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *SQLiteStore) GetText(ctx context.Context, id int64) (*domain.TextTemplate, error) {
	var t domain.TextTemplate
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, content FROM texts WHERE id = ?`, id,
	).Scan(&t.ID, &t.Name, &t.Content)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *SQLiteStore) ListTexts(ctx context.Context) ([]domain.TextTemplate, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, content FROM texts ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var texts []domain.TextTemplate
	for rows.Next() {
		var t domain.TextTemplate
		if err := rows.Scan(&t.ID, &t.Name, &t.Content); err != nil {
			return nil, err
		}
		texts = append(texts, t)
	}
	return texts, rows.Err()
}

func (s *SQLiteStore) UpdateText(ctx context.Context, t domain.TextTemplate) error {
	_, err := s.db.ExecContext(ctx, `UPDATE texts SET name=?, content=? WHERE id=?`, t.Name, t.Content, t.ID)
	return err
}

func (s *SQLiteStore) DeleteText(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM texts WHERE id=?`, id)
	return err
}

// nullableID maps a zero ID to NULL so optional foreign keys stay unset.
func nullableID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}
