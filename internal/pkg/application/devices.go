package application

import (
	"github.com/iot-for-tillgenglighet/iot-sensor-registry/internal/pkg/infrastructure/logging"
	"github.com/iot-for-tillgenglighet/iot-sensor-registry/internal/pkg/infrastructure/repositories/database"
	"github.com/iot-for-tillgenglighet/iot-sensor-registry/internal/pkg/infrastructure/repositories/models"
)

//DeviceRegistry manages the devices a user has registered
type DeviceRegistry struct {
	db  database.Datastore
	log logging.Logger
}

//NewDeviceRegistry creates a DeviceRegistry on top of the given datastore
func NewDeviceRegistry(db database.Datastore, log logging.Logger) *DeviceRegistry {
	return &DeviceRegistry{db: db, log: log}
}

//AddDevice registers a device with the user that owns userEmail
func (r *DeviceRegistry) AddDevice(userEmail, name, macAddress string) error {
	if macAddress == "" {
		return ErrMissingFields
	}

	user, err := r.db.GetUserFromEmail(userEmail)
	if err != nil {
		return err
	}

	device, err := r.db.CreateDevice(user.ID, name, macAddress)
	if err != nil {
		return err
	}

	r.log.Infof("Device %s (%s) added for user %d", device.DeviceName, device.MACAddress, user.ID)

	return nil
}

//ListDevices returns the user's devices, each with its latest sensor reading if any
func (r *DeviceRegistry) ListDevices(userEmail string) ([]models.DeviceReading, error) {
	user, err := r.db.GetUserFromEmail(userEmail)
	if err != nil {
		return nil, err
	}

	return r.db.GetDevicesWithLatestReading(user.ID)
}

//DeleteDevice removes the user's registration of macAddress
func (r *DeviceRegistry) DeleteDevice(userEmail, macAddress string) error {
	user, err := r.db.GetUserFromEmail(userEmail)
	if err != nil {
		return err
	}

	if err = r.db.DeleteDevice(user.ID, macAddress); err != nil {
		return err
	}

	r.log.Infof("Device %s deleted for user %d", macAddress, user.ID)

	return nil
}

//DeviceExists reports whether any sensor data has been received from macAddress,
//regardless of whether a user has registered it
func (r *DeviceRegistry) DeviceExists(macAddress string) (bool, error) {
	return r.db.SensorDataExists(macAddress)
}
