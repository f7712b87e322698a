package models

import (
	"time"
)

//SensorReading stores a single report from a sensor, identified by its MAC address.
//Rows are only ever appended.
type SensorReading struct {
	ID          uint      `gorm:"primaryKey" json:"-"`
	MACAddress  string    `gorm:"column:mac_address;size:64;not null;index:idx_sensor_data_mac_timestamp,priority:1" json:"mac_address"`
	Timestamp   time.Time `gorm:"not null;index:idx_sensor_data_mac_timestamp,priority:2" json:"timestamp"`
	Temperature *float64  `json:"temperature"`
	Humidity    *float64  `json:"humidity"`
	Fahrenheit  *float64  `json:"fahrenheit"`
	CO2         *float64  `gorm:"column:co2" json:"co2"`
	ECO2        *float64  `gorm:"column:eco2" json:"eco2"`
	TVOC        *float64  `gorm:"column:tvoc" json:"tvoc"`
	RawH2       *float64  `gorm:"column:rawh2" json:"rawh2"`
	RawEthanol  *float64  `gorm:"column:rawethanol" json:"rawethanol"`
	Dust        *float64  `json:"dust"`
}

//TableName keeps the table name used by the existing installations
func (SensorReading) TableName() string {
	return "sensor_data"
}
