package domain

import (
	"context"
	"time"
)

// User is a panel operator account. Balance is message credit; concurrent
// balance updates are last-write-wins, matching the panel's behavior.
type User struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Password  string    `json:"password,omitempty"`
	Balance   int64     `json:"balance"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Contact is a WhatsApp recipient. Phone is the remote identifier used by
// the gateway (digits, no jid suffix).
type Contact struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	GroupID   int64     `json:"group_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Group is a named set of contacts used by the mass-send screens.
type Group struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Product struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Price       float64 `json:"price"`
	CategoryID  int64   `json:"category_id,omitempty"`
}

type Gift struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Cost int64  `json:"cost"`
}

// TextTemplate is a stored message body reused by the send screens.
type TextTemplate struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Content string `json:"content"`
}

// Store is the relational persistence surface of the panel. Each method maps
// to one parameterized statement; there are no cross-statement transactions.
type Store interface {
	CreateUser(ctx context.Context, u User) (int64, error)
	GetUser(ctx context.Context, id int64) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	ListUsers(ctx context.Context) ([]User, error)
	UpdateUser(ctx context.Context, u User) error
	UpdateUserBalance(ctx context.Context, id int64, balance int64) error
	DeleteUser(ctx context.Context, id int64) error

	CreateContact(ctx context.Context, c Contact) (int64, error)
	GetContact(ctx context.Context, id int64) (*Contact, error)
	ListContacts(ctx context.Context) ([]Contact, error)
	ListContactsByGroup(ctx context.Context, groupID int64) ([]Contact, error)
	UpdateContact(ctx context.Context, c Contact) error
	DeleteContact(ctx context.Context, id int64) error

	CreateGroup(ctx context.Context, g Group) (int64, error)
	ListGroups(ctx context.Context) ([]Group, error)
	UpdateGroup(ctx context.Context, g Group) error
	DeleteGroup(ctx context.Context, id int64) error

	CreateCategory(ctx context.Context, c Category) (int64, error)
	ListCategories(ctx context.Context) ([]Category, error)
	UpdateCategory(ctx context.Context, c Category) error
	DeleteCategory(ctx context.Context, id int64) error

	CreateProduct(ctx context.Context, p Product) (int64, error)
	GetProduct(ctx context.Context, id int64) (*Product, error)
	ListProducts(ctx context.Context) ([]Product, error)
	UpdateProduct(ctx context.Context, p Product) error
	DeleteProduct(ctx context.Context, id int64) error

	CreateGift(ctx context.Context, g Gift) (int64, error)
	ListGifts(ctx context.Context) ([]Gift, error)
	UpdateGift(ctx context.Context, g Gift) error
	DeleteGift(ctx context.Context, id int64) error

	CreateText(ctx context.Context, t TextTemplate) (int64, error)
	GetText(ctx context.Context, id int64) (*TextTemplate, error)
	ListTexts(ctx context.Context) ([]TextTemplate, error)
	UpdateText(ctx context.Context, t TextTemplate) error
	DeleteText(ctx context.Context, id int64) error

	Close() error
}
