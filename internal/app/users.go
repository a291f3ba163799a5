package app

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"cinechat/pkg/domain"
	"cinechat/pkg/store"
)

// ReservedAgentUsername is the single well-known identity that authors all
// AI-generated messages.
const ReservedAgentUsername = "ai_assistant"

var (
	usernameRe = regexp.MustCompile(`^[a-z0-9_-]{2,50}$`)
	emailRe    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

// Users resolves opaque client-supplied identities to persisted user records.
type Users struct {
	store store.Store
}

// NewUsers constructs the identity resolver on the given store.
func NewUsers(s store.Store) *Users {
	return &Users{store: s}
}

// EnsureUser returns the user with the normalized name, creating it on first
// contact. Expected failures (bad input, duplicate email) come back as
// domain.ValidationErrors.
func (s *Users) EnsureUser(candidateName, email string) (domain.User, error) {
	name := normalizeName(candidateName)
	if user, ok, err := s.store.GetUserByUsername(name); err != nil {
		return domain.User{}, fmt.Errorf("lookup user: %w", err)
	} else if ok {
		return user, nil
	}
	user, err := s.createUser(name, email)
	if err == nil {
		return user, nil
	}
	if errors.Is(err, store.ErrDuplicate) {
		// Lost a creation race; the row exists now.
		if existing, ok, lookupErr := s.store.GetUserByUsername(name); lookupErr == nil && ok {
			return existing, nil
		}
	}
	return domain.User{}, err
}

// RegisterUser creates a user and reports duplicates as field errors, unlike
// EnsureUser which treats an existing name as success.
func (s *Users) RegisterUser(candidateName, email string) (domain.User, error) {
	name := normalizeName(candidateName)
	if _, ok, err := s.store.GetUserByUsername(name); err != nil {
		return domain.User{}, fmt.Errorf("lookup user: %w", err)
	} else if ok {
		return domain.User{}, domain.ValidationErrors{{Field: "username", Message: "Username already exists"}}
	}
	user, err := s.createUser(name, email)
	if errors.Is(err, store.ErrDuplicate) {
		return domain.User{}, domain.ValidationErrors{{Field: "username", Message: "Username already exists"}}
	}
	return user, err
}

// EnsureReservedAgent guarantees the AI assistant identity exists and
// returns it. Safe under concurrent first calls: the store's uniqueness
// constraint arbitrates, losers re-read the winner's row.
func (s *Users) EnsureReservedAgent() (domain.User, error) {
	if agent, ok, err := s.store.GetUserByUsername(ReservedAgentUsername); err != nil {
		return domain.User{}, fmt.Errorf("lookup reserved agent: %w", err)
	} else if ok {
		return agent, nil
	}
	now := time.Now().UTC()
	agent, err := s.store.CreateUser(domain.User{
		Username:  ReservedAgentUsername,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err == nil {
		return agent, nil
	}
	if errors.Is(err, store.ErrDuplicate) {
		if existing, ok, lookupErr := s.store.GetUserByUsername(ReservedAgentUsername); lookupErr == nil && ok {
			return existing, nil
		}
	}
	return domain.User{}, fmt.Errorf("create reserved agent: %w", err)
}

// GetByID returns a user record, mapping absence to ErrUserNotFound.
func (s *Users) GetByID(id int64) (domain.User, error) {
	user, ok, err := s.store.GetUserByID(id)
	if err != nil {
		return domain.User{}, fmt.Errorf("lookup user: %w", err)
	}
	if !ok {
		return domain.User{}, ErrUserNotFound
	}
	return user, nil
}

func (s *Users) createUser(name, email string) (domain.User, error) {
	email = normalizeEmail(email)
	if verr := validateUserFields(name, email); verr != nil {
		return domain.User{}, verr
	}
	if email != "" {
		exists, err := s.store.HasUserEmail(email)
		if err != nil {
			return domain.User{}, fmt.Errorf("check email: %w", err)
		}
		if exists {
			return domain.User{}, domain.ValidationErrors{{Field: "email", Message: "Email already exists"}}
		}
	}
	now := time.Now().UTC()
	return s.store.CreateUser(domain.User{
		Username:  name,
		Email:     email,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

func validateUserFields(name, email string) domain.ValidationErrors {
	var errs domain.ValidationErrors
	if !usernameRe.MatchString(name) {
		errs = append(errs, domain.FieldError{
			Field:   "username",
			Message: "Username must be 2-50 characters of letters, digits, underscore or dash",
		})
	}
	if email != "" {
		if len(email) > 255 || !emailRe.MatchString(email) {
			errs = append(errs, domain.FieldError{Field: "email", Message: "Email is invalid"})
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
