package models

import (
	"github.com/golang-jwt/jwt/v4"
	"gorm.io/gorm"
)

// Role determines which side of a donation a user acts on.
type Role string

const (
	RoleDonor        Role = "donor"
	RoleVolunteer    Role = "volunteer"
	RoleOrganization Role = "organization"
	RoleAdmin        Role = "admin"
)

type User struct {
	gorm.Model  `json:"-"`
	ID          uint   `json:"id" gorm:"primaryKey"`
	Name        string `json:"name"`
	Email       string `json:"email" gorm:"uniqueIndex"` // Ensure email is unique across all users
	Role        Role   `json:"role" gorm:"size:20;index"`
	Phone       string `json:"phone,omitempty"`
	Address     string `json:"address,omitempty"`
	Password    string `json:"-"`                                         // Store hashed password, ignore for JSON serialization
	FirebaseUID string `json:"firebase_uid,omitempty" gorm:"uniqueIndex"` // Link to Firebase User UID
	DeviceToken string `json:"-"`                                         // FCM registration token for push delivery
}

// UserCompact is the minimal public projection of a user.
type UserCompact struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
	Role Role   `json:"role"`
}

// ToCompact strips a user down to its public fields.
func (u *User) ToCompact() UserCompact {
	return UserCompact{ID: u.ID, Name: u.Name, Role: u.Role}
}

type SignupRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Role     string `json:"role" validate:"required,oneof=donor volunteer organization"`
	Phone    string `json:"phone,omitempty" validate:"omitempty,min=6,max=20"`
	Address  string `json:"address,omitempty" validate:"omitempty,max=200"`
}

type UpdateProfileRequest struct {
	Name        string `json:"name,omitempty" validate:"omitempty,min=2,max=50"`
	Phone       string `json:"phone,omitempty" validate:"omitempty,min=6,max=20"`
	Address     string `json:"address,omitempty" validate:"omitempty,max=200"`
	DeviceToken string `json:"device_token,omitempty"`
}

// JwtCustomClaims are custom claims extending standard jwt.RegisteredClaims
type JwtCustomClaims struct {
	UserID uint   `json:"user_id"`
	Email  string `json:"email"`
	Role   Role   `json:"role"`
	jwt.RegisteredClaims
}
