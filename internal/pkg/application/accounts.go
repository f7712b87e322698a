package application

import (
	"errors"

	"github.com/iot-for-tillgenglighet/iot-sensor-registry/internal/pkg/infrastructure/logging"
	"github.com/iot-for-tillgenglighet/iot-sensor-registry/internal/pkg/infrastructure/repositories/database"
	"github.com/iot-for-tillgenglighet/iot-sensor-registry/internal/pkg/infrastructure/repositories/models"
)

var (
	//ErrEmailNotFound is returned by Login when no account uses the email
	ErrEmailNotFound = errors.New("email not found")
	//ErrIncorrectPassword is returned by Login when the password does not match
	ErrIncorrectPassword = errors.New("incorrect password")
	//ErrProfileNotFound is returned by Profile when no account uses the email
	ErrProfileNotFound = errors.New("profile not found")
)

//Registration holds the values needed to create a new account
type Registration struct {
	Name        string `json:"name"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phoneNumber"`
}

//Profile is the public part of an account
type Profile struct {
	Name        string `json:"name"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phoneNumber"`
}

//AccountService handles registration, login and password changes
type AccountService struct {
	db  database.Datastore
	log logging.Logger
}

//NewAccountService creates an AccountService on top of the given datastore
func NewAccountService(db database.Datastore, log logging.Logger) *AccountService {
	return &AccountService{db: db, log: log}
}

//Register validates the password, checks that email, username and phone number are
//unused (in that order) and stores the new account with a hashed password
func (s *AccountService) Register(reg Registration) error {
	if err := ValidatePassword(reg.Password); err != nil {
		return err
	}

	if reg.Email == "" || reg.Username == "" || reg.PhoneNumber == "" {
		return ErrMissingFields
	}

	uniqueChecks := []struct {
		exists   func(string) (bool, error)
		value    string
		conflict error
	}{
		{s.db.EmailExists, reg.Email, database.ErrEmailTaken},
		{s.db.UsernameExists, reg.Username, database.ErrUsernameTaken},
		{s.db.PhoneNumberExists, reg.PhoneNumber, database.ErrPhoneNumberTaken},
	}

	for _, check := range uniqueChecks {
		taken, err := check.exists(check.value)
		if err != nil {
			return err
		}
		if taken {
			return check.conflict
		}
	}

	hash, err := HashPassword(reg.Password)
	if err != nil {
		return err
	}

	user := &models.User{
		Name:        reg.Name,
		Username:    reg.Username,
		Password:    hash,
		Email:       reg.Email,
		PhoneNumber: reg.PhoneNumber,
	}

	// the unique indexes catch registrations racing past the checks above
	if err = s.db.CreateUser(user); err != nil {
		return err
	}

	s.log.Infof("User %s registered successfully", reg.Username)

	return nil
}

//Login verifies the password of the account registered with email
func (s *AccountService) Login(email, password string) error {
	user, err := s.db.GetUserFromEmail(email)
	if err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			return ErrEmailNotFound
		}
		return err
	}

	match, legacy := VerifyPassword(password, user.Password)
	if !match {
		return ErrIncorrectPassword
	}

	if legacy {
		s.upgradeLegacyPassword(user.Username, password)
	}

	return nil
}

func (s *AccountService) upgradeLegacyPassword(username, password string) {
	hash, err := HashPassword(password)
	if err == nil {
		err = s.db.UpdateUserPassword(username, hash)
	}

	if err != nil {
		s.log.Warnf("Failed to upgrade cleartext password for user %s: %s", username, err.Error())
		return
	}

	s.log.Infof("Upgraded cleartext password for user %s", username)
}

//Profile returns the public profile of the account registered with email
func (s *AccountService) Profile(email string) (*Profile, error) {
	user, err := s.db.GetUserFromEmail(email)
	if err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}

	return &Profile{
		Name:        user.Name,
		Username:    user.Username,
		Email:       user.Email,
		PhoneNumber: user.PhoneNumber,
	}, nil
}

//ChangePassword validates and stores a new password for username
func (s *AccountService) ChangePassword(username, password string) error {
	if err := ValidatePassword(password); err != nil {
		return err
	}

	hash, err := HashPassword(password)
	if err != nil {
		return err
	}

	if err = s.db.UpdateUserPassword(username, hash); err != nil {
		return err
	}

	s.log.Infof("Password changed for user %s", username)

	return nil
}
