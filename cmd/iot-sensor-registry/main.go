package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/iot-for-tillgenglighet/iot-sensor-registry/internal/pkg/application"
	"github.com/iot-for-tillgenglighet/iot-sensor-registry/internal/pkg/infrastructure/logging"
	"github.com/iot-for-tillgenglighet/iot-sensor-registry/internal/pkg/infrastructure/messaging"
	"github.com/iot-for-tillgenglighet/iot-sensor-registry/internal/pkg/infrastructure/repositories/database"
	"github.com/joho/godotenv"
)

func main() {

	serviceName := "iot-sensor-registry"

	// values already present in the environment take precedence over the files
	loaded := []string{}
	for _, file := range []string{"host.env", ".env"} {
		if godotenv.Load(file) == nil {
			loaded = append(loaded, file)
		}
	}

	log := logging.NewLogger()
	log.Infof("Starting up %s ...", serviceName)

	for _, file := range loaded {
		log.Infof("Loaded environment from %s", file)
	}

	db, err := database.NewDatabaseConnection(database.NewConnectorFromEnvironment(log), log)
	if err != nil {
		log.Errorf("Error connecting to database: %s", err.Error())
		db = database.NewUnavailableDatastore(err)
	}

	if config, enabled := messaging.LoadConfiguration(serviceName); enabled {
		subscriber := messaging.NewSensorSubscriber(config, db, log)
		if err := subscriber.Start(); err != nil {
			log.Errorf("Sensor ingestion disabled: %s", err.Error())
		}

		// serving only returns through log.Fatal, so deferred calls would never run
		signals := make(chan os.Signal, 1)
		signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
		go shutdownOnSignal(signals, log, subscriber.Close, os.Exit)
	}

	application.CreateRouterAndStartServing(log, db)
}

func shutdownOnSignal(signals <-chan os.Signal, log logging.Logger, cleanup func(), exit func(int)) {
	sig := <-signals
	log.Infof("Received %s, shutting down ...", sig.String())
	cleanup()
	exit(0)
}
