package uptime

import (
	"strings"
	"time"
)

// Collections used by the uptime monitor.
const (
	UsersCollection  = "users"
	ChecksCollection = "checks"
)

// Check states.
const (
	StateUp   = "up"
	StateDown = "down"
)

// User is keyed by its phone number.
type User struct {
	Phone          string    `json:"phone"`
	FirstName      string    `json:"firstName"`
	LastName       string    `json:"lastName"`
	HashedPassword string    `json:"hashedPassword,omitempty"`
	TOSAgreement   bool      `json:"tosAgreement"`
	Checks         []string  `json:"checks"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Public strips the password hash.
func (u User) Public() User {
	u.HashedPassword = ""
	if u.Checks == nil {
		u.Checks = []string{}
	}
	return u
}

type NewUser struct {
	FirstName    string `json:"firstName" validate:"required"`
	LastName     string `json:"lastName" validate:"required"`
	Phone        string `json:"phone" validate:"phone"`
	Password     string `json:"password" validate:"required"`
	TOSAgreement bool   `json:"tosAgreement" validate:"required"`
}

func (n *NewUser) normalize() {
	n.FirstName = strings.TrimSpace(n.FirstName)
	n.LastName = strings.TrimSpace(n.LastName)
	n.Phone = strings.TrimSpace(n.Phone)
	n.Password = strings.TrimSpace(n.Password)
}

// UserUpdate carries the optional fields of a user update. Empty fields are
// left untouched.
type UserUpdate struct {
	Phone     string `json:"phone" validate:"phone"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Password  string `json:"password,omitempty"`
}

func (u *UserUpdate) normalize() {
	u.Phone = strings.TrimSpace(u.Phone)
	u.FirstName = strings.TrimSpace(u.FirstName)
	u.LastName = strings.TrimSpace(u.LastName)
	u.Password = strings.TrimSpace(u.Password)
}

func (u *UserUpdate) empty() bool {
	return u.FirstName == "" && u.LastName == "" && u.Password == ""
}

type Credentials struct {
	Phone    string `json:"phone" validate:"phone"`
	Password string `json:"password" validate:"required"`
}

type TokenExtension struct {
	ID     string `json:"id"`
	Extend bool   `json:"extend"`
}

// Check is a periodic probe of a URL owned by one user.
type Check struct {
	ID             string     `json:"id"`
	UserPhone      string     `json:"userPhone"`
	Protocol       string     `json:"protocol"`
	URL            string     `json:"url"`
	Method         string     `json:"method"`
	SuccessCodes   []int      `json:"successCodes"`
	TimeoutSeconds int        `json:"timeoutSeconds"`
	State          string     `json:"state,omitempty"`
	LastChecked    *time.Time `json:"lastChecked,omitempty"`
}

// Target is the full URL the check probes.
func (c *Check) Target() string {
	return c.Protocol + "://" + c.URL
}

type NewCheck struct {
	Protocol       string `json:"protocol" validate:"oneof=http https"`
	URL            string `json:"url" validate:"required"`
	Method         string `json:"method" validate:"oneof=post get put delete"`
	SuccessCodes   []int  `json:"successCodes" validate:"required,min=1,dive,min=100,max=599"`
	TimeoutSeconds int    `json:"timeoutSeconds" validate:"min=1,max=5"`
}

func (n *NewCheck) normalize() {
	n.Protocol = strings.ToLower(strings.TrimSpace(n.Protocol))
	n.URL = strings.TrimSpace(n.URL)
	n.Method = strings.ToLower(strings.TrimSpace(n.Method))
}

type CheckUpdate struct {
	ID             string  `json:"id"`
	Protocol       *string `json:"protocol,omitempty" validate:"omitempty,oneof=http https"`
	URL            *string `json:"url,omitempty" validate:"omitempty,min=1"`
	Method         *string `json:"method,omitempty" validate:"omitempty,oneof=post get put delete"`
	SuccessCodes   []int   `json:"successCodes,omitempty" validate:"omitempty,min=1,dive,min=100,max=599"`
	TimeoutSeconds *int    `json:"timeoutSeconds,omitempty" validate:"omitempty,min=1,max=5"`
}

func (u *CheckUpdate) normalize() {
	u.ID = strings.TrimSpace(u.ID)
	if u.Protocol != nil {
		protocol := strings.ToLower(strings.TrimSpace(*u.Protocol))
		u.Protocol = &protocol
	}
	if u.URL != nil {
		url := strings.TrimSpace(*u.URL)
		u.URL = &url
	}
	if u.Method != nil {
		method := strings.ToLower(strings.TrimSpace(*u.Method))
		u.Method = &method
	}
}

func (u *CheckUpdate) empty() bool {
	return u.Protocol == nil && u.URL == nil && u.Method == nil && u.SuccessCodes == nil && u.TimeoutSeconds == nil
}

func (u *CheckUpdate) apply(check *Check) {
	if u.Protocol != nil {
		check.Protocol = *u.Protocol
	}
	if u.URL != nil {
		check.URL = *u.URL
	}
	if u.Method != nil {
		check.Method = *u.Method
	}
	if u.SuccessCodes != nil {
		check.SuccessCodes = u.SuccessCodes
	}
	if u.TimeoutSeconds != nil {
		check.TimeoutSeconds = *u.TimeoutSeconds
	}
}
