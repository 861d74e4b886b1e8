package domain

import "time"

// User mirrors the authenticated identity returned by the catalog service.
// Field tags follow the service's snake_case wire format.
type User struct {
	ID          int64  `json:"id"`
	Email       string `json:"email"`
	Username    string `json:"username"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	FullName    string `json:"full_name,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`
	IsVerified  bool   `json:"is_verified,omitempty"`
}

// Product is a catalog entry. Price is the service's decimal string and is
// never parsed client-side.
type Product struct {
	ID            int64     `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Price         string    `json:"price"`
	CategoryID    int64     `json:"category"`
	Category      *Category `json:"category_detail,omitempty"`
	ImageURL      string    `json:"image_url,omitempty"`
	StockQuantity int       `json:"stock_quantity"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at,omitempty"`
}

type Category struct {
	ID           int64  `json:"id"`
	Title        string `json:"title"`
	Description  string `json:"description,omitempty"`
	IsActive     bool   `json:"is_active"`
	ProductCount int    `json:"product_count,omitempty"`
}

// CartLine is one (product, quantity) entry of the locally owned cart.
// The cart holds at most one line per product.
type CartLine struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}
