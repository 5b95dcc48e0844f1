package domain

import "time"

// User is the authenticated profile returned by /api/auth.
type User struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone,omitempty"`
	IsAdmin bool   `json:"isAdmin"`
}

// AdminUser is a row of the admin user listing.
type AdminUser struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	IsAdmin   bool      `json:"is_admin"`
	CreatedAt time.Time `json:"created_at"`
}

type UserStats struct {
	TotalUsers int `json:"totalUsers"`
	AdminCount int `json:"adminCount"`
}

type Address struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Phone     string `json:"phone"`
	Street    string `json:"street"`
	City      string `json:"city"`
	ZipCode   string `json:"zip_code"`
	IsDefault bool   `json:"is_default"`
}

// AddressInput is the create/update payload; the backend takes camelCase here.
type AddressInput struct {
	Name      string `json:"name"`
	Street    string `json:"street"`
	City      string `json:"city"`
	ZipCode   string `json:"zipCode"`
	Phone     string `json:"phone"`
	IsDefault bool   `json:"isDefault"`
}

// Profile aggregates what the storefront shows on the account page.
type Profile struct {
	User      User      `json:"user"`
	Addresses []Address `json:"addresses"`
	Orders    []Order   `json:"orders"`
}
