package database

import (
	"fmt"

	"github.com/iot-for-tillgenglighet/iot-sensor-registry/internal/pkg/infrastructure/repositories/models"
)

//NewUnavailableDatastore returns a Datastore that fails every operation. It lets the
//service keep running when the startup connection attempt did not succeed.
func NewUnavailableDatastore(cause error) Datastore {
	return &unavailableDB{err: fmt.Errorf("%w: %s", ErrStoreUnavailable, cause)}
}

type unavailableDB struct {
	err error
}

func (db *unavailableDB) Ping() error {
	return db.err
}

func (db *unavailableDB) CreateUser(*models.User) error {
	return db.err
}

func (db *unavailableDB) GetUserFromEmail(string) (*models.User, error) {
	return nil, db.err
}

func (db *unavailableDB) EmailExists(string) (bool, error) {
	return false, db.err
}

func (db *unavailableDB) UsernameExists(string) (bool, error) {
	return false, db.err
}

func (db *unavailableDB) PhoneNumberExists(string) (bool, error) {
	return false, db.err
}

func (db *unavailableDB) UpdateUserPassword(string, string) error {
	return db.err
}

func (db *unavailableDB) CreateDevice(uint, string, string) (*models.Device, error) {
	return nil, db.err
}

func (db *unavailableDB) DeleteDevice(uint, string) error {
	return db.err
}

func (db *unavailableDB) GetDevicesWithLatestReading(uint) ([]models.DeviceReading, error) {
	return nil, db.err
}

func (db *unavailableDB) SensorDataExists(string) (bool, error) {
	return false, db.err
}

func (db *unavailableDB) CreateSensorReading(*models.SensorReading) error {
	return db.err
}
