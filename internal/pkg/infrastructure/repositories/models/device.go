package models

import (
	"time"
)

//Device is the database model that ties a sensor's MAC address to the user that registered it
type Device struct {
	ID         uint   `gorm:"primaryKey"`
	UserID     uint   `gorm:"not null;uniqueIndex:idx_user_devices_owner_mac"`
	User       User   `gorm:"constraint:OnDelete:CASCADE"`
	DeviceName string `gorm:"size:255"`
	MACAddress string `gorm:"column:mac_address;size:64;not null;uniqueIndex:idx_user_devices_owner_mac;index"`
	CreatedAt  time.Time
}

//TableName keeps the table name used by the existing installations
func (Device) TableName() string {
	return "user_devices"
}

//DeviceReading is a device owned by a user, joined with the most recent reading
//for its MAC address. All reading fields are nil if the device has never reported.
type DeviceReading struct {
	ID          uint       `json:"id"`
	DeviceName  string     `json:"device_name"`
	MACAddress  string     `json:"mac_address" gorm:"column:mac_address"`
	Timestamp   *time.Time `json:"timestamp"`
	Temperature *float64   `json:"temperature"`
	Humidity    *float64   `json:"humidity"`
	Fahrenheit  *float64   `json:"fahrenheit"`
	CO2         *float64   `json:"co2" gorm:"column:co2"`
	ECO2        *float64   `json:"eco2" gorm:"column:eco2"`
	TVOC        *float64   `json:"tvoc" gorm:"column:tvoc"`
	RawH2       *float64   `json:"rawh2" gorm:"column:rawh2"`
	RawEthanol  *float64   `json:"rawethanol" gorm:"column:rawethanol"`
	Dust        *float64   `json:"dust"`
}
