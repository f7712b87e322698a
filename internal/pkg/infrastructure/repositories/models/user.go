package models

import (
	"gorm.io/gorm"
)

//User is the database model for a registered account. Password holds a bcrypt hash,
//or the cleartext value for rows written before hashing was introduced.
type User struct {
	gorm.Model
	Name        string `gorm:"size:255"`
	Username    string `gorm:"size:255;not null;uniqueIndex:idx_users_username"`
	Password    string `gorm:"size:255;not null"`
	Email       string `gorm:"size:255;not null;uniqueIndex:idx_users_email"`
	PhoneNumber string `gorm:"column:phoneNumber;size:32;not null;uniqueIndex:idx_users_phone_number"`
}
