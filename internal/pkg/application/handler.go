package application

import (
	"compress/flate"
	"encoding/json"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/iot-for-tillgenglighet/iot-sensor-registry/internal/pkg/infrastructure/logging"
	"github.com/iot-for-tillgenglighet/iot-sensor-registry/internal/pkg/infrastructure/repositories/database"
	"github.com/iot-for-tillgenglighet/iot-sensor-registry/internal/pkg/infrastructure/repositories/models"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rs/cors"
)

type RequestRouter struct {
	impl *chi.Mux
}

func (router *RequestRouter) addAccountHandlers(log logging.Logger, accounts *AccountService) {
	router.Post("/register", NewRegisterHandler(log, accounts))
	router.Post("/login", NewLoginHandler(log, accounts))
	router.Get("/profile-data", NewProfileHandler(log, accounts))
	router.Post("/changepassword", NewChangePasswordHandler(log, accounts))
}

func (router *RequestRouter) addDeviceHandlers(log logging.Logger, devices *DeviceRegistry) {
	router.Post("/add-device", NewAddDeviceHandler(log, devices))
	router.Get("/get-devices", NewGetDevicesHandler(log, devices))
	router.Get("/check-device", NewCheckDeviceHandler(log, devices))
	router.Delete("/delete-device", NewDeleteDeviceHandler(log, devices))
}

func (router *RequestRouter) addOperationalHandlers(db database.Datastore) {
	router.Get("/health", NewHealthHandler(db))
	router.impl.Handle("/metrics", promhttp.Handler())
}

//Get accepts a pattern that should be routed to the handlerFn on a GET request
func (router *RequestRouter) Get(pattern string, handlerFn http.HandlerFunc) {
	router.impl.Get(pattern, handlerFn)
}

//Post accepts a pattern that should be routed to the handlerFn on a POST request
func (router *RequestRouter) Post(pattern string, handlerFn http.HandlerFunc) {
	router.impl.Post(pattern, handlerFn)
}

//Delete accepts a pattern that should be routed to the handlerFn on a DELETE request
func (router *RequestRouter) Delete(pattern string, handlerFn http.HandlerFunc) {
	router.impl.Delete(pattern, handlerFn)
}

func allowedOrigins() []string {
	origins := os.Getenv("CORS_ALLOWED_ORIGINS")
	if origins == "" {
		return []string{"*"}
	}

	return strings.Split(origins, ",")
}

func newRequestRouter() *RequestRouter {
	router := &RequestRouter{impl: chi.NewRouter()}

	router.impl.Use(cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins(),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowCredentials: true,
		Debug:            false,
	}).Handler)

	compressor := middleware.NewCompressor(flate.DefaultCompression, "application/json")
	router.impl.Use(compressor.Handler)
	router.impl.Use(middleware.Logger)
	router.impl.Use(middleware.Recoverer)
	router.impl.Use(metricsMiddleware)

	return router
}

func createRequestRouter(log logging.Logger, db database.Datastore) *RequestRouter {
	router := newRequestRouter()

	router.addAccountHandlers(log, NewAccountService(db, log))
	router.addDeviceHandlers(log, NewDeviceRegistry(db, log))
	router.addOperationalHandlers(db)

	return router
}

//CreateRouterAndStartServing sets up the router and starts serving incoming requests
func CreateRouterAndStartServing(log logging.Logger, db database.Datastore) {
	router := createRequestRouter(log, db)

	port := os.Getenv("SERVICE_PORT")
	if port == "" {
		port = "3000"
	}

	log.Infof("Starting iot-sensor-registry on port %s.", port)
	log.Fatal(http.ListenAndServe(":"+port, router.impl))
}

func decodeBody(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return ErrMalformedRequest
	}
	return nil
}

//NewRegisterHandler creates a new account
func NewRegisterHandler(log logging.Logger, accounts *AccountService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reg := Registration{}
		if err := decodeBody(r, &reg); err != nil {
			writeError(w, log, "decode registration", err)
			return
		}

		if err := accounts.Register(reg); err != nil {
			writeError(w, log, "register user", err)
			return
		}

		writeMessage(w, "Registration successful")
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

//NewLoginHandler verifies an email and password pair
func NewLoginHandler(log logging.Logger, accounts *AccountService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := loginRequest{}
		if err := decodeBody(r, &req); err != nil {
			writeError(w, log, "decode login", err)
			return
		}

		if err := accounts.Login(req.Email, req.Password); err != nil {
			writeError(w, log, "log in", err)
			return
		}

		writeMessage(w, "Login successful")
	}
}

//NewProfileHandler returns the profile of the account given by the email query parameter
func NewProfileHandler(log logging.Logger, accounts *AccountService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		profile, err := accounts.Profile(r.URL.Query().Get("email"))
		if err != nil {
			writeError(w, log, "fetch profile data", err)
			return
		}

		writeJSON(w, http.StatusOK, profile)
	}
}

type changePasswordRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

//NewChangePasswordHandler replaces the password of an account
func NewChangePasswordHandler(log logging.Logger, accounts *AccountService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := changePasswordRequest{}
		if err := decodeBody(r, &req); err != nil {
			writeError(w, log, "decode password change", err)
			return
		}

		if err := accounts.ChangePassword(req.Username, req.Password); err != nil {
			writeError(w, log, "change password", err)
			return
		}

		writeMessage(w, "Password has been changed successfully")
	}
}

type addDeviceRequest struct {
	UserEmail  string `json:"userEmail"`
	Name       string `json:"name"`
	MACAddress string `json:"mac_address"`
}

//NewAddDeviceHandler registers a device with a user
func NewAddDeviceHandler(log logging.Logger, devices *DeviceRegistry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := addDeviceRequest{}
		if err := decodeBody(r, &req); err != nil {
			writeError(w, log, "decode device", err)
			return
		}

		if err := devices.AddDevice(req.UserEmail, req.Name, req.MACAddress); err != nil {
			writeError(w, log, "add device", err)
			return
		}

		writeMessage(w, "Device added successfully")
	}
}

//NewGetDevicesHandler lists a user's devices together with their latest readings
func NewGetDevicesHandler(log logging.Logger, devices *DeviceRegistry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := devices.ListDevices(r.URL.Query().Get("userEmail"))
		if err != nil {
			writeError(w, log, "fetch devices", err)
			return
		}

		if result == nil {
			result = []models.DeviceReading{}
		}

		writeJSON(w, http.StatusOK, result)
	}
}

//NewCheckDeviceHandler reports whether a MAC address has ever sent sensor data
func NewCheckDeviceHandler(log logging.Logger, devices *DeviceRegistry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		exists, err := devices.DeviceExists(r.URL.Query().Get("mac_address"))
		if err != nil {
			writeError(w, log, "check device", err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]bool{"exists": exists})
	}
}

type deleteDeviceRequest struct {
	UserEmail  string `json:"userEmail"`
	MACAddress string `json:"mac_address"`
}

//NewDeleteDeviceHandler removes a device from a user
func NewDeleteDeviceHandler(log logging.Logger, devices *DeviceRegistry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := deleteDeviceRequest{}
		if err := decodeBody(r, &req); err != nil {
			writeError(w, log, "decode device", err)
			return
		}

		if err := devices.DeleteDevice(req.UserEmail, req.MACAddress); err != nil {
			writeError(w, log, "delete device", err)
			return
		}

		writeMessage(w, "Device deleted successfully")
	}
}

//NewHealthHandler reports whether the database answers
func NewHealthHandler(db database.Datastore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
