package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/arborhq/arbor/pkg/folder"
)

// DatabaseType defines the supported database backends.
type DatabaseType string

const (
	// DatabaseTypeSQLite uses SQLite (single-node, default).
	DatabaseTypeSQLite DatabaseType = "sqlite"

	// DatabaseTypePostgres uses PostgreSQL.
	DatabaseTypePostgres DatabaseType = "postgres"
)

// Config contains directory database configuration.
type Config struct {
	Type DatabaseType `mapstructure:"type" validate:"omitempty,oneof=sqlite postgres"`

	// SQLitePath is the SQLite database file. ":memory:" works for tests.
	SQLitePath string `mapstructure:"sqlite_path"`

	PostgresDSN string `mapstructure:"postgres_dsn"`
}

// ApplyDefaults fills in missing configuration with default values.
func (c *Config) ApplyDefaults() {
	if c.Type == "" {
		c.Type = DatabaseTypeSQLite
	}
	if c.Type == DatabaseTypeSQLite && c.SQLitePath == "" {
		c.SQLitePath = "directory.db"
	}
}

// Store is the GORM-backed principal directory. It satisfies the folder
// core's group and capability resolver interfaces.
type Store struct {
	db *gorm.DB
}

// NewStore opens the directory database and migrates its schema.
func NewStore(config Config) (*Store, error) {
	config.ApplyDefaults()

	var dialector gorm.Dialector
	switch config.Type {
	case DatabaseTypeSQLite:
		dialector = sqlite.Open(config.SQLitePath)
	case DatabaseTypePostgres:
		dialector = postgres.Open(config.PostgresDSN)
	default:
		return nil, fmt.Errorf("unsupported directory database type: %s", config.Type)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open directory database: %w", err)
	}

	if err := db.AutoMigrate(&User{}, &Group{}, &GroupMember{}); err != nil {
		return nil, fmt.Errorf("migrate directory schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	db, err := s.db.DB()
	if err != nil {
		return err
	}
	return db.Close()
}

// CreateUser inserts a user, assigning a UUID when absent.
func (s *Store) CreateUser(ctx context.Context, user *User) error {
	if user.UUID == "" {
		user.UUID = uuid.New().String()
	}
	user.CreatedAt = time.Now()

	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return ErrDuplicateUser
		}
		return err
	}
	return nil
}

// GetUser loads a user by id.
func (s *Store) GetUser(ctx context.Context, id int64) (*User, error) {
	var user User
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if err != nil {
		return nil, convertNotFoundError(err, ErrUserNotFound)
	}
	return &user, nil
}

// UpdateUser rewrites a user's capability fields.
func (s *Store) UpdateUser(ctx context.Context, user *User) error {
	var existing User
	if err := s.db.WithContext(ctx).Where("id = ?", user.ID).First(&existing).Error; err != nil {
		return convertNotFoundError(err, ErrUserNotFound)
	}
	return s.db.WithContext(ctx).
		Model(&existing).
		Select("Name", "ModuleMask", "FullSharedFolderAccess", "TenantAdmin").
		Updates(user).Error
}

// CreateGroup inserts a group, assigning a UUID when absent.
func (s *Store) CreateGroup(ctx context.Context, group *Group) error {
	if group.UUID == "" {
		group.UUID = uuid.New().String()
	}
	group.CreatedAt = time.Now()

	if err := s.db.WithContext(ctx).Create(group).Error; err != nil {
		if isUniqueConstraintError(err) {
			return ErrDuplicateGroup
		}
		return err
	}
	return nil
}

// AddMember links a user into a group.
func (s *Store) AddMember(ctx context.Context, groupID, userID int64) error {
	return s.db.WithContext(ctx).Create(&GroupMember{GroupID: groupID, UserID: userID}).Error
}

// RemoveMember unlinks a user from a group.
func (s *Store) RemoveMember(ctx context.Context, groupID, userID int64) error {
	return s.db.WithContext(ctx).
		Delete(&GroupMember{GroupID: groupID, UserID: userID}).Error
}

// UserExists implements folder.SubjectResolver.
func (s *Store) UserExists(ctx context.Context, userID int64) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&User{}).
		Where("id = ?", userID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// GroupExists implements folder.SubjectResolver.
func (s *Store) GroupExists(ctx context.Context, groupID int64) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&Group{}).
		Where("id = ?", groupID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Members implements folder.GroupResolver.
func (s *Store) Members(ctx context.Context, groupID int64) ([]int64, error) {
	var group Group
	if err := s.db.WithContext(ctx).Where("id = ?", groupID).First(&group).Error; err != nil {
		return nil, convertNotFoundError(err, ErrGroupNotFound)
	}

	var userIDs []int64
	err := s.db.WithContext(ctx).
		Model(&GroupMember{}).
		Where("group_id = ?", groupID).
		Pluck("user_id", &userIDs).Error
	if err != nil {
		return nil, err
	}
	return userIDs, nil
}

// AccessibleModules implements folder.CapabilityResolver.
func (s *Store) AccessibleModules(ctx context.Context, userID int64) (folder.ModuleSet, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	return user.ModuleMask, nil
}

// FullSharedFolderAccess implements folder.CapabilityResolver.
func (s *Store) FullSharedFolderAccess(ctx context.Context, userID int64) (bool, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return false, err
	}
	return user.FullSharedFolderAccess, nil
}

// TenantAdmin implements folder.CapabilityResolver.
func (s *Store) TenantAdmin(ctx context.Context, tenant int64) (int64, error) {
	var user User
	err := s.db.WithContext(ctx).
		Where("tenant = ? AND tenant_admin", tenant).
		Order("id").
		First(&user).Error
	if err != nil {
		return 0, convertNotFoundError(err, ErrNoTenantAdmin)
	}
	return user.ID, nil
}

var (
	_ folder.GroupResolver      = (*Store)(nil)
	_ folder.CapabilityResolver = (*Store)(nil)
)

// convertNotFoundError maps gorm.ErrRecordNotFound to a domain error.
func convertNotFoundError(err, notFoundErr error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFoundErr
	}
	return err
}

// isUniqueConstraintError detects unique violations across SQLite and
// PostgreSQL drivers.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "constraint failed")
}
