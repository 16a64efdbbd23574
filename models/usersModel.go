package models

import (
	"time"

	"gorm.io/gorm"
)

type Role string

const (
	RolePatient    Role = "patient"
	RoleDoctor     Role = "doctor"
	RoleAdmin      Role = "admin"
	RoleTechnician Role = "technician"
)

func (r Role) Valid() bool {
	switch r {
	case RolePatient, RoleDoctor, RoleAdmin, RoleTechnician:
		return true
	}
	return false
}

type UserStatus string

const (
	UserActive    UserStatus = "active"
	UserInactive  UserStatus = "inactive"
	UserSuspended UserStatus = "suspended"
)

// StaffRole is the technician specialty.
type StaffRole string

const (
	StaffScan StaffRole = "Scan Staff"
	StaffLab  StaffRole = "Lab Staff"
)

// User represents a directory entry. The table belongs to the identity
// service; this service only reads it.
type User struct {
	ID        string     `gorm:"primaryKey;type:varchar(36);column:id" json:"id"`
	Name      string     `gorm:"size:150;not null;column:name" json:"name"`
	Email     string     `gorm:"size:255;not null;unique;index;column:email" json:"email"`
	Role      Role       `gorm:"size:20;not null;index:idx_role_staff;column:role" json:"role"`
	Status    UserStatus `gorm:"size:20;not null;default:'active';column:status" json:"status"`
	StaffRole StaffRole  `gorm:"size:20;index:idx_role_staff;column:staff_role" json:"staff_role,omitempty"`
	CreatedAt time.Time  `gorm:"autoCreateTime;column:created_at" json:"created_at"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) IsActive() bool {
	return u.Status == UserActive
}

// SeedDevelopmentUsers inserts a small directory for local runs.
func SeedDevelopmentUsers(db *gorm.DB) error {
	initialUsers := []User{
		{ID: "00000000-0000-0000-0000-000000000001", Name: "Admin", Email: "admin@carechain.local", Role: RoleAdmin, Status: UserActive},
		{ID: "00000000-0000-0000-0000-000000000002", Name: "Dr. Amina Odhiambo", Email: "doctor@carechain.local", Role: RoleDoctor, Status: UserActive},
		{ID: "00000000-0000-0000-0000-000000000003", Name: "Jamie Patient", Email: "patient@carechain.local", Role: RolePatient, Status: UserActive},
		{ID: "00000000-0000-0000-0000-000000000004", Name: "Scan Tech", Email: "scan@carechain.local", Role: RoleTechnician, Status: UserActive, StaffRole: StaffScan},
		{ID: "00000000-0000-0000-0000-000000000005", Name: "Lab Tech", Email: "lab@carechain.local", Role: RoleTechnician, Status: UserActive, StaffRole: StaffLab},
	}
	return db.Transaction(func(tx *gorm.DB) error {
		for _, user := range initialUsers {
			if err := tx.FirstOrCreate(&user, User{ID: user.ID}).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
