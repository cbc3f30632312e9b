package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	sqlite3 "modernc.org/sqlite"

	"micropost-be/internal/geoip"
	"micropost-be/internal/models"
)

var (
	// ErrDuplicateIdentity means the username or email is already taken.
	ErrDuplicateIdentity = errors.New("username or email already taken")
	// ErrInvalidCredentials covers both unknown username and wrong
	// password, so login failures don't leak which usernames exist.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrUserNotFound means no user exists for the given ID.
	ErrUserNotFound = errors.New("user not found")
)

// SQLite extended result codes for constraint violations.
const (
	sqliteConstraintUnique     = 2067
	sqliteConstraintPrimaryKey = 1555
	sqliteConstraintForeignKey = 787
)

// UserServiceProvider defines the interface for user services.
type UserServiceProvider interface {
	Signup(ctx context.Context, username, email, password, clientIP string) (models.User, error)
	Authenticate(username, password string) (models.User, error)
	GetUserByID(id string) (models.User, error)
	GetOrCreateProfile(userID string) (models.UserProfile, error)
	ProfilesMissingLocation(limit int) ([]models.UserProfile, error)
	SetProfileLocation(userID string, loc geoip.Location) error
}

// UserService provides business logic for accounts and profiles.
type UserService struct {
	db           *sql.DB
	geo          geoip.LookupProvider
	eventService EventServiceProvider
}

// NewUserService creates a new UserService.
func NewUserService(db *sql.DB, geo geoip.LookupProvider, eventService EventServiceProvider) *UserService {
	return &UserService{db: db, geo: geo, eventService: eventService}
}

// Signup creates a user and their geolocation-enriched profile. The
// lookup runs before the transaction so the write lock is never held
// across network I/O; a failed lookup aborts the signup before any row
// is written, and user plus profile land in one short transaction, so
// no user row can exist without its profile.
func (s *UserService) Signup(ctx context.Context, username, email, password, clientIP string) (models.User, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, fmt.Errorf("failed to hash password: %w", err)
	}

	loc, err := s.geo.Lookup(ctx, clientIP)
	if err != nil {
		return models.User{}, err
	}

	user := models.User{
		ID:           uuid.New().String(),
		Username:     username,
		Email:        email,
		PasswordHash: string(hashedPassword),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.User{}, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO users(id, username, email, password_hash) VALUES(?, ?, ?, ?)",
		user.ID, user.Username, user.Email, user.PasswordHash)
	if err != nil {
		if isConstraintErr(err, sqliteConstraintUnique) {
			return models.User{}, ErrDuplicateIdentity
		}
		return models.User{}, err
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO user_profiles(user_id, city, region, country, last_ip) VALUES(?, ?, ?, ?, ?)",
		user.ID, loc.City, loc.Region, loc.Country, clientIP)
	if err != nil {
		return models.User{}, err
	}

	if err := tx.Commit(); err != nil {
		return models.User{}, err
	}

	s.eventService.CreateEvent("user.register", "info",
		fmt.Sprintf("User '%s' registered.", user.Username), nil)

	// Return user without password hash
	user.PasswordHash = ""
	return user, nil
}

// Authenticate verifies a user's credentials.
func (s *UserService) Authenticate(username, password string) (models.User, error) {
	var user models.User
	row := s.db.QueryRow(
		"SELECT id, username, email, password_hash, created_at FROM users WHERE username = ?", username)
	err := row.Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return models.User{}, ErrInvalidCredentials
		}
		return models.User{}, err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return models.User{}, ErrInvalidCredentials
	}

	// Don't send the password hash to the client
	user.PasswordHash = ""
	return user, nil
}

// GetUserByID retrieves a single user by their ID.
func (s *UserService) GetUserByID(id string) (models.User, error) {
	var user models.User
	row := s.db.QueryRow("SELECT id, username, email, created_at FROM users WHERE id = ?", id)
	err := row.Scan(&user.ID, &user.Username, &user.Email, &user.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return models.User{}, ErrUserNotFound
		}
		return models.User{}, err
	}
	return user, nil
}

// GetOrCreateProfile fetches a user's profile, creating an empty one if
// it doesn't exist yet. Always an explicit call, never an ambient
// property of the user.
func (s *UserService) GetOrCreateProfile(userID string) (models.UserProfile, error) {
	_, err := s.db.Exec("INSERT OR IGNORE INTO user_profiles(user_id) VALUES(?)", userID)
	if err != nil {
		return models.UserProfile{}, err
	}

	var profile models.UserProfile
	var city, region, country sql.NullString
	row := s.db.QueryRow(
		"SELECT user_id, city, region, country, created_at FROM user_profiles WHERE user_id = ?", userID)
	if err := row.Scan(&profile.UserID, &city, &region, &country, &profile.CreatedAt); err != nil {
		return models.UserProfile{}, err
	}
	profile.City = city.String
	profile.Region = region.String
	profile.Country = country.String
	return profile, nil
}

// ProfilesMissingLocation lists profiles with at least one blank
// geolocation field, for the background enrichment sweep.
func (s *UserService) ProfilesMissingLocation(limit int) ([]models.UserProfile, error) {
	rows, err := s.db.Query(`
		SELECT user_id, city, region, country, last_ip, created_at FROM user_profiles
		WHERE city IS NULL OR city = '' OR region IS NULL OR region = '' OR country IS NULL OR country = ''
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []models.UserProfile
	for rows.Next() {
		var profile models.UserProfile
		var city, region, country, lastIP sql.NullString
		if err := rows.Scan(&profile.UserID, &city, &region, &country, &lastIP, &profile.CreatedAt); err != nil {
			return nil, err
		}
		profile.City = city.String
		profile.Region = region.String
		profile.Country = country.String
		profile.LastIP = lastIP.String
		profiles = append(profiles, profile)
	}
	return profiles, rows.Err()
}

// SetProfileLocation overwrites a profile's geolocation fields.
func (s *UserService) SetProfileLocation(userID string, loc geoip.Location) error {
	res, err := s.db.Exec(
		"UPDATE user_profiles SET city = ?, region = ?, country = ? WHERE user_id = ?",
		loc.City, loc.Region, loc.Country, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// isConstraintErr reports whether err is the given SQLite extended
// constraint result code.
func isConstraintErr(err error, code int) bool {
	var serr *sqlite3.Error
	if errors.As(err, &serr) {
		return serr.Code() == code
	}
	return false
}
