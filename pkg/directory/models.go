// Package directory stores principals: the users and groups folder
// permissions refer to, with their account-level capabilities. It backs
// the group and capability resolvers consumed by the folder core.
package directory

import (
	"errors"
	"time"

	"github.com/arborhq/arbor/pkg/folder"
)

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrGroupNotFound  = errors.New("group not found")
	ErrDuplicateUser  = errors.New("user already exists")
	ErrDuplicateGroup = errors.New("group already exists")
	ErrNoTenantAdmin  = errors.New("tenant has no designated admin")
)

// User is a principal that can act on folders.
type User struct {
	ID     int64  `gorm:"primaryKey;autoIncrement"`
	UUID   string `gorm:"uniqueIndex;size:36"`
	Tenant int64  `gorm:"uniqueIndex:idx_users_tenant_name;not null"`
	Name   string `gorm:"uniqueIndex:idx_users_tenant_name;size:255;not null"`

	// ModuleMask is the account-level capability mask clamping every
	// folder permission resolution for this user.
	ModuleMask folder.ModuleSet `gorm:"not null"`

	// FullSharedFolderAccess permits sharing private folders with other
	// subjects.
	FullSharedFolderAccess bool `gorm:"not null;default:false"`

	// TenantAdmin marks the tenant's designated super-admin subject.
	TenantAdmin bool `gorm:"not null;default:false"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName sets the users table name, pinning the tenant-scoped unique
// index on (tenant, name).
func (User) TableName() string { return "users" }

// Group is a set of users that permission entries may target.
type Group struct {
	ID     int64  `gorm:"primaryKey;autoIncrement"`
	UUID   string `gorm:"uniqueIndex;size:36"`
	Tenant int64  `gorm:"index;not null"`
	Name   string `gorm:"size:255;not null"`

	Members []GroupMember `gorm:"constraint:OnDelete:CASCADE"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Group) TableName() string { return "groups" }

// GroupMember links one user into one group.
type GroupMember struct {
	GroupID int64 `gorm:"primaryKey"`
	UserID  int64 `gorm:"primaryKey"`
}

func (GroupMember) TableName() string { return "group_members" }
