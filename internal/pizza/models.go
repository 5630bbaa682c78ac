package pizza

import (
	"strings"
	"time"
)

// Collections used by the pizza service.
const (
	UsersCollection     = "users"
	CartsCollection     = "carts"
	PurchasesCollection = "purchases"
)

type User struct {
	Email          string    `json:"email"`
	FirstName      string    `json:"firstName"`
	LastName       string    `json:"lastName"`
	HashedPassword string    `json:"hashedPassword,omitempty"`
	Address        string    `json:"address"`
	StreetAddress  string    `json:"streetAddress"`
	Carts          []string  `json:"carts"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Public strips the password hash.
func (u User) Public() User {
	u.HashedPassword = ""
	if u.Carts == nil {
		u.Carts = []string{}
	}
	return u
}

type NewUser struct {
	Email         string `json:"email" validate:"required,email"`
	FirstName     string `json:"firstName" validate:"required"`
	LastName      string `json:"lastName" validate:"required"`
	Password      string `json:"password" validate:"required"`
	Address       string `json:"address" validate:"required"`
	StreetAddress string `json:"streetAddress" validate:"required"`
}

func (n *NewUser) normalize() {
	n.Email = strings.ToLower(strings.TrimSpace(n.Email))
	n.FirstName = strings.TrimSpace(n.FirstName)
	n.LastName = strings.TrimSpace(n.LastName)
	n.Password = strings.TrimSpace(n.Password)
	n.Address = strings.TrimSpace(n.Address)
	n.StreetAddress = strings.TrimSpace(n.StreetAddress)
}

type UserUpdate struct {
	Email         string `json:"email" validate:"required,email"`
	FirstName     string `json:"firstName,omitempty"`
	LastName      string `json:"lastName,omitempty"`
	Password      string `json:"password,omitempty"`
	Address       string `json:"address,omitempty"`
	StreetAddress string `json:"streetAddress,omitempty"`
}

func (u *UserUpdate) normalize() {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	u.FirstName = strings.TrimSpace(u.FirstName)
	u.LastName = strings.TrimSpace(u.LastName)
	u.Password = strings.TrimSpace(u.Password)
	u.Address = strings.TrimSpace(u.Address)
	u.StreetAddress = strings.TrimSpace(u.StreetAddress)
}

func (u *UserUpdate) empty() bool {
	return u.FirstName == "" && u.LastName == "" && u.Password == "" && u.Address == "" && u.StreetAddress == ""
}

type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type TokenExtension struct {
	ID     string `json:"id"`
	Extend bool   `json:"extend"`
}

// CartItem is one line of a cart: a menu item and how many of it.
type CartItem struct {
	ID     int `json:"id" validate:"gt=0"`
	Amount int `json:"amount" validate:"gt=0,max=100"`
}

// Cart is stored under CartKey(CartID, Email).
type Cart struct {
	CartID    string     `json:"cartId"`
	Email     string     `json:"email"`
	Items     []CartItem `json:"items"`
	CreatedAt time.Time  `json:"createdAt"`
}

const (
	cartKeyPrefix    = "cart_"
	cartKeySeparator = "_of_"
)

// CartKey is the record id of a cart. cartID is the decimal creation stamp,
// so the first separator after the prefix always ends the id.
func CartKey(cartID, email string) string {
	return cartKeyPrefix + cartID + cartKeySeparator + email
}

// ParseCartKey splits a record id built by CartKey. Ids whose cart part is
// not a decimal number are rejected.
func ParseCartKey(key string) (cartID, email string, ok bool) {
	rest, found := strings.CutPrefix(key, cartKeyPrefix)
	if !found {
		return "", "", false
	}
	cartID, email, found = strings.Cut(rest, cartKeySeparator)
	if !found || !IsCartID(cartID) || email == "" {
		return "", "", false
	}

	return cartID, email, true
}

// IsCartID reports whether id looks like a cart id.
func IsCartID(id string) bool {
	if id == "" {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < '0' || id[i] > '9' {
			return false
		}
	}
	return true
}

// ownsCartKey reports whether key addresses a cart of email and nobody else.
func ownsCartKey(key, email string) bool {
	_, owner, ok := ParseCartKey(key)
	return ok && owner == email
}

func cartsOfSuffix(email string) string {
	return cartKeySeparator + email
}

// PurchaseLine is a priced cart line.
type PurchaseLine struct {
	ID       int     `json:"id"`
	Name     string  `json:"name"`
	Amount   int     `json:"amount"`
	Price    float64 `json:"price"`
	Subtotal float64 `json:"subtotal"`
}

type Purchase struct {
	PurchaseID  string         `json:"purchaseId"`
	CartID      string         `json:"cartId"`
	Email       string         `json:"email"`
	Items       []PurchaseLine `json:"items"`
	Total       float64        `json:"total"`
	AmountCents int64          `json:"amountCents"`
	ChargeID    string         `json:"chargeId"`
	CreatedAt   time.Time      `json:"createdAt"`
}
