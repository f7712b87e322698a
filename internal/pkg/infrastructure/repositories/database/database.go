package database

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/iot-for-tillgenglighet/iot-sensor-registry/internal/pkg/infrastructure/logging"
	"github.com/iot-for-tillgenglighet/iot-sensor-registry/internal/pkg/infrastructure/repositories/models"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

//ConnectTimeout bounds the one connection attempt made at startup
const ConnectTimeout = 10 * time.Second

var (
	//ErrUserNotFound is returned when no user matches the lookup
	ErrUserNotFound = errors.New("user not found")
	//ErrEmailTaken is returned when the email is already registered
	ErrEmailTaken = errors.New("email is already registered")
	//ErrUsernameTaken is returned when the username is already taken
	ErrUsernameTaken = errors.New("username is already taken")
	//ErrPhoneNumberTaken is returned when the phone number is already registered
	ErrPhoneNumberTaken = errors.New("phone number is already registered")
	//ErrDeviceNotFound is returned when the user owns no device with the given MAC address
	ErrDeviceNotFound = errors.New("device not found")
	//ErrDeviceExists is returned when the user has already registered the MAC address
	ErrDeviceExists = errors.New("device is already registered")
	//ErrStoreUnavailable is returned by every operation when the startup connection failed
	ErrStoreUnavailable = errors.New("database is unavailable")
)

//Datastore is an interface that is used to inject the database into different handlers to improve testability
type Datastore interface {
	CreateUser(user *models.User) error
	GetUserFromEmail(email string) (*models.User, error)
	EmailExists(email string) (bool, error)
	UsernameExists(username string) (bool, error)
	PhoneNumberExists(phoneNumber string) (bool, error)
	UpdateUserPassword(username, passwordHash string) error

	CreateDevice(userID uint, name, macAddress string) (*models.Device, error)
	DeleteDevice(userID uint, macAddress string) error
	GetDevicesWithLatestReading(userID uint) ([]models.DeviceReading, error)

	SensorDataExists(macAddress string) (bool, error)
	CreateSensorReading(reading *models.SensorReading) error

	Ping() error
}

type myDB struct {
	impl *gorm.DB
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

//ConnectorFunc is used to inject a database connection method into NewDatabaseConnection
type ConnectorFunc func() (*gorm.DB, error)

//NewConnectorFromEnvironment picks a connector based on DB_DRIVER (mysql, postgres or sqlite)
func NewConnectorFromEnvironment(log logging.Logger) ConnectorFunc {
	switch strings.ToLower(getEnv("DB_DRIVER", "mysql")) {
	case "postgres", "postgresql":
		return NewPostgreSQLConnector(log)
	case "sqlite", "sqlite3":
		return NewSQLiteConnector(getEnv("DB_PATH", "sensors.db"))
	default:
		return NewMySQLConnector(log)
	}
}

//NewMySQLConnector opens a connection to a mysql database
func NewMySQLConnector(log logging.Logger) ConnectorFunc {
	dbHost := os.Getenv("DB_HOST")
	dbPort := getEnv("DB_PORT", "3306")
	username := os.Getenv("DB_USER")
	dbName := os.Getenv("DB_NAME")
	password := os.Getenv("DB_PASSWORD")

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC&timeout=%s",
		username, password, dbHost, dbPort, dbName, ConnectTimeout)

	return func() (*gorm.DB, error) {
		log.Infof("Connecting to mysql database host %s:%s ...", dbHost, dbPort)
		return gorm.Open(mysql.Open(dsn), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Warn),
		})
	}
}

//NewPostgreSQLConnector opens a connection to a postgresql database
func NewPostgreSQLConnector(log logging.Logger) ConnectorFunc {
	dbHost := os.Getenv("DB_HOST")
	dbPort := getEnv("DB_PORT", "5432")
	username := os.Getenv("DB_USER")
	dbName := os.Getenv("DB_NAME")
	password := os.Getenv("DB_PASSWORD")
	sslMode := getEnv("DB_SSLMODE", "require")

	dbURI := fmt.Sprintf("host=%s port=%s user=%s dbname=%s sslmode=%s password=%s connect_timeout=%d",
		dbHost, dbPort, username, dbName, sslMode, password, int(ConnectTimeout.Seconds()))

	return func() (*gorm.DB, error) {
		log.Infof("Connecting to postgresql database host %s:%s ...", dbHost, dbPort)
		return gorm.Open(postgres.Open(dbURI), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Warn),
		})
	}
}

//NewSQLiteConnector opens a connection to a local sqlite database
func NewSQLiteConnector(path string) ConnectorFunc {
	return func() (*gorm.DB, error) {
		db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if err != nil {
			return nil, err
		}

		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		// sqlite only supports a single writer
		sqlDB.SetMaxOpenConns(1)

		db.Exec("PRAGMA foreign_keys = ON")

		return db, nil
	}
}

//NewDatabaseConnection initializes a new connection to the database and wraps it in a Datastore
func NewDatabaseConnection(connect ConnectorFunc, log logging.Logger) (Datastore, error) {
	impl, err := connect()
	if err != nil {
		return nil, err
	}

	err = migrate(impl, log, &models.User{}, &models.Device{}, &models.SensorReading{})
	if err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	log.Infof("Connected to database")

	return &myDB{impl: impl}, nil
}

// Tables that already exist are only extended with missing columns and indexes.
// Existing columns are never altered, so installations created by earlier versions
// of the service keep their column types and data.
func migrate(db *gorm.DB, log logging.Logger, tables ...interface{}) error {
	migrator := db.Migrator()

	for _, table := range tables {
		if !migrator.HasTable(table) {
			if err := migrator.CreateTable(table); err != nil {
				return err
			}
			continue
		}

		stmt := &gorm.Statement{DB: db}
		if err := stmt.Parse(table); err != nil {
			return err
		}

		for _, field := range stmt.Schema.Fields {
			if field.DBName == "" || migrator.HasColumn(table, field.DBName) {
				continue
			}

			log.Infof("Adding column %s to table %s", field.DBName, stmt.Schema.Table)
			if err := migrator.AddColumn(table, field.DBName); err != nil {
				return err
			}
		}

		for name := range stmt.Schema.ParseIndexes() {
			if migrator.HasIndex(table, name) {
				continue
			}

			// duplicates in old data must not keep the service from starting
			if err := migrator.CreateIndex(table, name); err != nil {
				log.Warnf("Failed to create index %s on table %s: %s", name, stmt.Schema.Table, err.Error())
			}
		}
	}

	return nil
}

func (db *myDB) Ping() error {
	sqlDB, err := db.impl.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

func (db *myDB) CreateUser(user *models.User) error {
	result := db.impl.Create(user)
	if result.Error != nil {
		if isUniqueViolation(result.Error) {
			return conflictingUserField(result.Error)
		}
		return fmt.Errorf("failed to create user: %w", result.Error)
	}

	return nil
}

func (db *myDB) GetUserFromEmail(email string) (*models.User, error) {
	users := []models.User{}
	result := db.impl.Where("email = ?", email).Limit(1).Find(&users)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to look up user by email: %w", result.Error)
	}

	if len(users) == 0 {
		return nil, ErrUserNotFound
	}

	return &users[0], nil
}

func (db *myDB) EmailExists(email string) (bool, error) {
	return db.userExists("email", email)
}

func (db *myDB) UsernameExists(username string) (bool, error) {
	return db.userExists("username", username)
}

func (db *myDB) PhoneNumberExists(phoneNumber string) (bool, error) {
	return db.userExists("phoneNumber", phoneNumber)
}

func (db *myDB) userExists(column, value string) (bool, error) {
	var count int64
	condition := clause.Eq{Column: clause.Column{Name: column}, Value: value}
	result := db.impl.Model(&models.User{}).Where(condition).Count(&count)
	if result.Error != nil {
		return false, fmt.Errorf("failed to check %s: %w", column, result.Error)
	}

	return count > 0, nil
}

func (db *myDB) UpdateUserPassword(username, passwordHash string) error {
	result := db.impl.Model(&models.User{}).Where("username = ?", username).Update("password", passwordHash)
	if result.Error != nil {
		return fmt.Errorf("failed to update password: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}

	return nil
}

func (db *myDB) CreateDevice(userID uint, name, macAddress string) (*models.Device, error) {
	device := &models.Device{
		UserID:     userID,
		DeviceName: name,
		MACAddress: macAddress,
	}

	result := db.impl.Create(device)
	if result.Error != nil {
		if isUniqueViolation(result.Error) {
			return nil, ErrDeviceExists
		}
		return nil, fmt.Errorf("failed to create device: %w", result.Error)
	}

	return device, nil
}

func (db *myDB) DeleteDevice(userID uint, macAddress string) error {
	result := db.impl.Where("user_id = ? AND mac_address = ?", userID, macAddress).Delete(&models.Device{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete device: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return ErrDeviceNotFound
	}

	return nil
}

// The reduced reading set is built once from a grouped scan of sensor_data and
// then joined onto the user's devices, so there is no per-device query.
const latestReadingQuery = `
SELECT ud.id, ud.device_name, ud.mac_address,
	sd.timestamp, sd.temperature, sd.humidity, sd.fahrenheit, sd.co2, sd.eco2,
	sd.tvoc, sd.rawh2, sd.rawethanol, sd.dust
FROM user_devices ud
LEFT JOIN (
	SELECT s.mac_address, s.timestamp, s.temperature, s.humidity, s.fahrenheit, s.co2,
		s.eco2, s.tvoc, s.rawh2, s.rawethanol, s.dust
	FROM sensor_data s
	INNER JOIN (
		SELECT mac_address, MAX(timestamp) AS latest
		FROM sensor_data
		GROUP BY mac_address
	) m ON s.mac_address = m.mac_address AND s.timestamp = m.latest
) sd ON ud.mac_address = sd.mac_address
WHERE ud.user_id = ?
ORDER BY ud.id`

func (db *myDB) GetDevicesWithLatestReading(userID uint) ([]models.DeviceReading, error) {
	rows := []models.DeviceReading{}
	result := db.impl.Raw(latestReadingQuery, userID).Scan(&rows)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to fetch devices: %w", result.Error)
	}

	return firstReadingPerDevice(rows), nil
}

// Readings sharing a mac_address and timestamp all match the max timestamp,
// so keep only the first row seen for each device.
func firstReadingPerDevice(rows []models.DeviceReading) []models.DeviceReading {
	seen := make(map[uint]bool, len(rows))
	devices := make([]models.DeviceReading, 0, len(rows))

	for _, row := range rows {
		if seen[row.ID] {
			continue
		}
		seen[row.ID] = true
		devices = append(devices, row)
	}

	return devices
}

func (db *myDB) SensorDataExists(macAddress string) (bool, error) {
	var count int64
	result := db.impl.Model(&models.SensorReading{}).Where("mac_address = ?", macAddress).Count(&count)
	if result.Error != nil {
		return false, fmt.Errorf("failed to check sensor data: %w", result.Error)
	}

	return count > 0, nil
}

func (db *myDB) CreateSensorReading(reading *models.SensorReading) error {
	// latest readings are found by MAX(timestamp), which must not see mixed offsets
	reading.Timestamp = reading.Timestamp.UTC()

	result := db.impl.Create(reading)
	if result.Error != nil {
		return fmt.Errorf("failed to store sensor reading: %w", result.Error)
	}

	return nil
}

func isUniqueViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || // sqlite
		strings.Contains(msg, "Duplicate entry") || // mysql
		strings.Contains(msg, "duplicate key value violates unique constraint") // postgres
}

// Constraint violations name either the column (sqlite) or the index (mysql, postgres)
func conflictingUserField(err error) error {
	msg := err.Error()
	violates := func(column, index string) bool {
		return strings.Contains(msg, "users."+column) || strings.Contains(msg, index)
	}

	switch {
	case violates("email", "idx_users_email"):
		return ErrEmailTaken
	case violates("username", "idx_users_username"):
		return ErrUsernameTaken
	case violates("phoneNumber", "idx_users_phone_number"):
		return ErrPhoneNumberTaken
	}

	return fmt.Errorf("failed to create user: %w", err)
}
