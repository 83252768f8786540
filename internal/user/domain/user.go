package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// UserType is the marketplace side an account belongs to.
type UserType string

const (
	TypeVendor   UserType = "vendor"
	TypeSupplier UserType = "supplier"
)

func (t UserType) Valid() bool {
	return t == TypeVendor || t == TypeSupplier
}

var ErrInvalidUser = errors.New("invalid user")

type User struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Email           string    `json:"email"`
	PasswordHash    string    `json:"-"`
	UserType        UserType  `json:"user_type"`
	Phone           string    `json:"phone,omitempty"`
	Location        string    `json:"location,omitempty"`
	BusinessName    string    `json:"business_name,omitempty"`
	BusinessAddress string    `json:"business_address,omitempty"`
	Verified        bool      `json:"verified"`
	Rating          float64   `json:"rating"`
	CreatedAt       time.Time `json:"created_at"`
}

// NewUser validates registration input and returns a user with a hashed
// password, ready to be stored. Business fields only apply to suppliers.
func NewUser(id, name, email, password string, userType UserType, phone, location, businessName, businessAddress string) (*User, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))

	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidUser)
	}
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: valid email is required", ErrInvalidUser)
	}
	if len(password) < 6 {
		return nil, fmt.Errorf("%w: password must be at least 6 characters", ErrInvalidUser)
	}
	if !userType.Valid() {
		return nil, fmt.Errorf("%w: user type must be vendor or supplier", ErrInvalidUser)
	}
	if userType != TypeSupplier {
		businessName = ""
		businessAddress = ""
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	return &User{
		ID:              id,
		Name:            name,
		Email:           email,
		PasswordHash:    string(hash),
		UserType:        userType,
		Phone:           phone,
		Location:        location,
		BusinessName:    businessName,
		BusinessAddress: businessAddress,
		Rating:          4.5,
		CreatedAt:       time.Now(),
	}, nil
}

// CheckPassword compares a login attempt against the stored hash.
func (u *User) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

// DisplayName prefers the business name for suppliers.
func (u *User) DisplayName() string {
	if u.BusinessName != "" {
		return u.BusinessName
	}
	return u.Name
}
