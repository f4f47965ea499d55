package users

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultAdminUsername = "admin"
	defaultAdminPassword = "admin"

	credentialsFieldCount = 3
)

var (
	// ErrMissingDatabase indicates the service was built without a database.
	ErrMissingDatabase = errors.New("users: database connection required")
	// ErrInvalidUsername indicates an empty username.
	ErrInvalidUsername = errors.New("users: username is required")
	// ErrInvalidPassword indicates an empty password.
	ErrInvalidPassword = errors.New("users: password is required")
	// ErrUsernameTaken indicates a registration collision.
	ErrUsernameTaken = errors.New("users: username already exists")
	// ErrInvalidCredentials indicates a failed login; callers must not be
	// able to tell a missing account from a wrong password.
	ErrInvalidCredentials = errors.New("users: invalid credentials")
)

// ServiceConfig describes the dependencies of the account service.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Service manages accounts: registration, authentication, and import/export
// of the pipe-delimited credentials file.
type Service struct {
	db     *gorm.DB
	clock  func() time.Time
	logger *zap.Logger
}

// NewService constructs the account service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, ErrMissingDatabase
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: cfg.Database, clock: clock, logger: logger}, nil
}

// EnsureDefaultAdmin creates the admin/admin account when no admin exists.
func (s *Service) EnsureDefaultAdmin() error {
	var count int64
	if err := s.db.Model(&Account{}).Where("role = ?", RoleAdmin).Count(&count).Error; err != nil {
		return fmt.Errorf("users: count admins: %w", err)
	}
	if count > 0 {
		return nil
	}
	s.logger.Warn("no admin account found, creating default admin",
		zap.String("username", defaultAdminUsername))
	admin := Account{
		Username:     defaultAdminUsername,
		PasswordHash: HashPassword(defaultAdminPassword),
		Role:         RoleAdmin,
	}
	if err := s.db.Create(&admin).Error; err != nil {
		return fmt.Errorf("users: create default admin: %w", err)
	}
	return nil
}

// Register creates a USER account. Admins are never created this way.
func (s *Service) Register(username, password string) (Account, error) {
	trimmed := strings.TrimSpace(username)
	if trimmed == "" {
		return Account{}, ErrInvalidUsername
	}
	if password == "" {
		return Account{}, ErrInvalidPassword
	}

	taken, err := s.Exists(trimmed)
	if err != nil {
		return Account{}, fmt.Errorf("users: lookup username: %w", err)
	}
	if taken {
		return Account{}, ErrUsernameTaken
	}

	account := Account{
		Username:     trimmed,
		PasswordHash: HashPassword(password),
		Role:         RoleUser,
	}
	if err := s.db.Create(&account).Error; err != nil {
		return Account{}, fmt.Errorf("users: create account: %w", err)
	}
	return account, nil
}

// Authenticate verifies a username/password pair and returns the account.
func (s *Service) Authenticate(username, password string) (Account, error) {
	trimmed := strings.TrimSpace(username)
	if trimmed == "" || password == "" {
		return Account{}, ErrInvalidCredentials
	}

	var account Account
	err := s.db.Where("username = ?", trimmed).Take(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Account{}, ErrInvalidCredentials
	}
	if err != nil {
		return Account{}, fmt.Errorf("users: lookup account: %w", err)
	}
	if account.PasswordHash != HashPassword(password) {
		return Account{}, ErrInvalidCredentials
	}
	return account, nil
}

// Get returns the account for a username, or gorm.ErrRecordNotFound.
func (s *Service) Get(username string) (Account, error) {
	var account Account
	err := s.db.Where("username = ?", strings.TrimSpace(username)).Take(&account).Error
	return account, err
}

// Exists reports whether the username is taken.
func (s *Service) Exists(username string) (bool, error) {
	_, err := s.Get(username)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// All returns every account, for admin display.
func (s *Service) All() ([]Account, error) {
	var accounts []Account
	if err := s.db.Order("username").Find(&accounts).Error; err != nil {
		return nil, fmt.Errorf("users: list accounts: %w", err)
	}
	return accounts, nil
}

// ImportCredentialsFile upserts accounts from a file of
// username|passwordHashHex|ROLE lines. Blank lines and '#' comments are
// skipped, malformed lines are logged and skipped, and an unknown role
// degrades to USER. Returns the number of accounts imported.
func (s *Service) ImportCredentialsFile(path string) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("users: open credentials file: %w", err)
	}
	defer file.Close()

	imported := 0
	lineNumber := 0
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lineNumber++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}

		parts := strings.Split(raw, "|")
		if len(parts) != credentialsFieldCount {
			s.logger.Warn("invalid credentials line", zap.Int("line", lineNumber))
			continue
		}
		username := strings.TrimSpace(parts[0])
		passwordHash := strings.TrimSpace(parts[1])
		if username == "" {
			s.logger.Warn("empty username in credentials line", zap.Int("line", lineNumber))
			continue
		}

		err := s.db.Where(Account{Username: username}).
			Assign(map[string]interface{}{
				"password_hash": passwordHash,
				"role":          ParseRole(parts[2]),
			}).
			FirstOrCreate(&Account{}).Error
		if err != nil {
			s.logger.Warn("credentials import failed for line",
				zap.Int("line", lineNumber), zap.Error(err))
			continue
		}
		imported++
	}
	if err := scanner.Err(); err != nil {
		return imported, fmt.Errorf("users: read credentials file: %w", err)
	}
	return imported, nil
}

// ExportCredentialsFile writes every account back out in the same
// pipe-delimited format the importer reads.
func (s *Service) ExportCredentialsFile(path string) error {
	accounts, err := s.All()
	if err != nil {
		return err
	}

	var builder strings.Builder
	for _, account := range accounts {
		builder.WriteString(account.Username)
		builder.WriteByte('|')
		builder.WriteString(account.PasswordHash)
		builder.WriteByte('|')
		builder.WriteString(string(account.Role))
		builder.WriteByte('\n')
	}

	if err := os.WriteFile(path, []byte(builder.String()), 0o600); err != nil {
		return fmt.Errorf("users: write credentials file: %w", err)
	}
	return nil
}
