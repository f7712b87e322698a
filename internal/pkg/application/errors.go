package application

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/iot-for-tillgenglighet/iot-sensor-registry/internal/pkg/infrastructure/logging"
	"github.com/iot-for-tillgenglighet/iot-sensor-registry/internal/pkg/infrastructure/repositories/database"
)

var (
	//ErrMalformedRequest is returned when a request body can not be decoded
	ErrMalformedRequest = errors.New("malformed request body")
	//ErrMissingFields is returned when a required request field is empty
	ErrMissingFields = errors.New("missing required fields")
)

const internalServerError = "Internal Server Error"

var clientErrors = []struct {
	err     error
	status  int
	message string
}{
	{ErrWeakPassword, http.StatusBadRequest, ErrWeakPassword.Error()},
	{ErrMalformedRequest, http.StatusBadRequest, "Invalid request body"},
	{ErrMissingFields, http.StatusBadRequest, "Missing required fields"},
	{database.ErrEmailTaken, http.StatusBadRequest, "Email is already registered"},
	{database.ErrUsernameTaken, http.StatusBadRequest, "Username is already taken"},
	{database.ErrPhoneNumberTaken, http.StatusBadRequest, "Phone number is already registered"},
	{ErrEmailNotFound, http.StatusBadRequest, "Email not found"},
	{ErrIncorrectPassword, http.StatusBadRequest, "Incorrect password"},
	{database.ErrDeviceExists, http.StatusBadRequest, "Device is already registered"},
	{database.ErrUserNotFound, http.StatusNotFound, "User not found"},
	{ErrProfileNotFound, http.StatusNotFound, "Profile not found"},
	{database.ErrDeviceNotFound, http.StatusNotFound, "Device not found"},
}

func statusAndMessage(err error) (int, string) {
	for _, ce := range clientErrors {
		if errors.Is(err, ce.err) {
			return ce.status, ce.message
		}
	}

	return http.StatusInternalServerError, internalServerError
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusOK, map[string]string{"message": message})
}

//writeError maps err to a status code and writes it as {"error": message}. Store faults
//are only described in the log.
func writeError(w http.ResponseWriter, log logging.Logger, operation string, err error) {
	status, message := statusAndMessage(err)
	if status == http.StatusInternalServerError {
		log.Errorf("Failed to %s: %s", operation, err.Error())
	}

	writeJSON(w, status, map[string]string{"error": message})
}
