// lutronbond bridges Lutron lighting keypads to Bond, Tuya, MQTT and other
// Lutron outputs.
//
// It holds a telnet integration session to each configured Lutron bridge,
// decodes the button and output events they report and dispatches them to
// the listeners built from the device mapping in the config file.
//
// Usage:
//
//	lutronbond                          run the bridge
//	lutronbond token [-ttl 24h] <sub>   print an API bearer token
//
// The config file is read from LUTRONBOND_CONFIG, or configs/config.yaml.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nerrad567/lutronbond/internal/api"
	"github.com/nerrad567/lutronbond/internal/bridges/lutron"
	"github.com/nerrad567/lutronbond/internal/controller"
	"github.com/nerrad567/lutronbond/internal/eventbus"
	"github.com/nerrad567/lutronbond/internal/infrastructure/config"
	"github.com/nerrad567/lutronbond/internal/infrastructure/database"
	"github.com/nerrad567/lutronbond/internal/infrastructure/influxdb"
	"github.com/nerrad567/lutronbond/internal/infrastructure/logging"
	"github.com/nerrad567/lutronbond/internal/infrastructure/metrics"
	"github.com/nerrad567/lutronbond/internal/infrastructure/mqtt"
	"github.com/nerrad567/lutronbond/internal/integrations/bond"
	"github.com/nerrad567/lutronbond/internal/integrations/mqttaction"
	"github.com/nerrad567/lutronbond/internal/journal"
	"github.com/nerrad567/lutronbond/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// sessionSampleInterval is how often session states are checked for the
// InfluxDB session_state series.
const sessionSampleInterval = 10 * time.Second

func main() {
	if len(os.Args) > 1 && os.Args[1] == "token" {
		if err := issueToken(os.Args[2:], config.Path(), os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
// It returns nil once ctx is cancelled and every in-flight handler has
// finished or the shutdown grace period has elapsed.
func run(ctx context.Context) error { //nolint:gocognit,gocyclo // linear startup sequence
	log := logging.Default()
	log.Info("starting lutronbond",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := config.Path()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Handlers keep running after ctx is cancelled until the bus drains.
	handlerCtx, cancelHandlers := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelHandlers()

	bus := eventbus.New[lutron.Event](eventbus.Options{
		Context: handlerCtx,
		Logger:  log.Component("eventbus"),
	})

	// Lutron sessions, primary first
	registry := lutron.NewRegistry(lutron.SessionConfig{
		Username:       cfg.Lutron.Username,
		Password:       cfg.Lutron.Password,
		LoginAttempts:  cfg.Lutron.LoginAttempts,
		ConnectTimeout: cfg.Lutron.ConnectTimeout,
		WriteTimeout:   cfg.Lutron.WriteTimeout,
		Logger:         log.Component("lutron"),
	})
	for _, b := range cfg.Lutron.Bridges {
		registry.GetWithPort(b.Address, b.Port)
	}
	sessions := make([]controller.Session, 0, len(cfg.Lutron.Bridges))
	for _, s := range registry.Sessions() {
		sessions = append(sessions, s)
	}
	defer func() {
		if closeErr := registry.CloseAll(); closeErr != nil {
			log.Error("error closing lutron sessions", "error", closeErr)
		}
	}()

	// Bond (optional)
	var bondClient *bond.Client
	if cfg.Bond.Address != "" {
		bondClient, err = bond.NewClient(bond.Config{
			Host:       cfg.Bond.Address,
			Token:      cfg.Bond.Token,
			Timeout:    cfg.Bond.Timeout,
			RetryCount: cfg.Bond.RetryCount,
			RetryDelay: cfg.Bond.RetryDelay,
			Logger:     log.Component("bond"),
		})
		if err != nil {
			return fmt.Errorf("creating bond client: %w", err)
		}
		log.Info("bond client ready", "host", cfg.Bond.Address)
	} else {
		log.Info("bond disabled")
	}

	// MQTT (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log.Component("mqtt"))
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		)
	} else {
		log.Info("MQTT disabled")
	}

	// InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Journal (optional)
	var (
		db       *database.DB
		schema   database.Schema
		store    *journal.Store
		recorder *journal.Recorder
	)
	if cfg.Database.Enabled {
		db, err = database.Open(cfg.Database)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
		if migrateErr := db.Migrate(ctx, migrations.Source()); migrateErr != nil {
			return fmt.Errorf("running migrations: %w", migrateErr)
		}
		schema, err = db.SchemaStatus(ctx, migrations.Source())
		if err != nil {
			return fmt.Errorf("reading schema status: %w", err)
		}
		log.Info("journal database ready", "path", cfg.Database.Path, "schema", schema.Version)

		store = journal.NewStore(db.DB)
		recorder = journal.NewRecorder(store, journal.RecorderConfig{
			Retention: time.Duration(cfg.Database.RetentionDays) * 24 * time.Hour,
			Logger:    log.Component("journal"),
		})
		// Close drains the queue, so the recorder outlives ctx.
		go recorder.Run(context.WithoutCancel(ctx))
		defer func() {
			log.Info("flushing journal")
			recorder.Close()
		}()
	} else {
		log.Info("journal disabled")
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	// Listeners
	in := controller.Integrations{
		Lutron:  registry,
		Tuya:    controller.NewTuyaFactory(cfg),
		MQTTQoS: byte(cfg.MQTT.QoS), //nolint:gosec // validated to 0-2
		Logger:  log.Component("handler"),
	}
	if bondClient != nil {
		in.Bond = bondClient
	}
	if mqttClient != nil {
		in.MQTT = mqttClient
	}
	listeners, err := controller.BuildListeners(cfg, in)
	if err != nil {
		return fmt.Errorf("building listeners: %w", err)
	}
	summary := controller.Summary(listeners)
	log.Info("listeners built", "total", len(listeners), "by_integration", summary)

	stats := sessionStats(registry)
	m := metrics.New(metrics.Sources{Sessions: stats, Bus: bus.Stats})

	opts := controller.Options{
		Sessions:          sessions,
		Bus:               bus,
		Listeners:         listeners,
		ReconnectDelay:    cfg.Lutron.ReconnectDelay,
		ReconnectMaxDelay: cfg.Lutron.ReconnectMaxDelay,
		Metrics:           m,
		Logger:            log.Component("supervisor"),
	}
	if bondClient != nil {
		if cfg.Bond.VerifyOnStart {
			opts.Verifier = bondClient
		}
		if cfg.Bond.KeepaliveInterval > 0 {
			opts.Keepalive = bondClient
			opts.KeepaliveInterval = cfg.Bond.KeepaliveInterval
		}
	}
	sup := controller.New(opts)

	var mirror *mqttaction.Mirror
	if mqttClient != nil {
		if cfg.MQTT.MirrorEvents {
			mirror = mqttaction.NewMirror(mqttClient, byte(cfg.MQTT.QoS), log.Component("mirror")) //nolint:gosec // validated to 0-2
			sup.AddObserver(mirror.Observe)
		}
		bridges := cfg.BridgeAddresses()
		simulate := simulateHandler(sup, bridges, m, log.Component("simulate"))
		if subErr := mqttClient.Subscribe(mqtt.Topics{}.AllSimulate(), byte(cfg.MQTT.QoS), simulate); subErr != nil { //nolint:gosec // validated to 0-2
			return fmt.Errorf("subscribing to simulate topic: %w", subErr)
		}
	}
	if influxClient != nil {
		sup.AddObserver(influxClient.WriteEvent)
		sup.AddDispatchObserver(func(d controller.Dispatch) {
			influxClient.WriteDispatch(influxDispatch(d))
		})
		go sampleSessions(ctx, registry, influxClient, sessionSampleInterval)
	}
	if recorder != nil {
		sup.AddObserver(func(evt lutron.Event) {
			_ = recorder.RecordEvent(evt, time.Now()) //nolint:errcheck // drops are counted by the recorder
		})
		sup.AddDispatchObserver(func(d controller.Dispatch) {
			_ = recorder.RecordDispatch(journalDispatch(d)) //nolint:errcheck // drops are counted by the recorder
		})
	}

	// API (optional)
	if cfg.API.Enabled {
		sources := api.Sources{
			Sessions:   stats,
			Supervisor: sup.State,
			Listeners:  func() map[string]int { return summary },
			Bus:        bus.Stats,
		}
		deps := api.Deps{
			Config:   cfg.API,
			Security: cfg.Security,
			Logger:   log.Component("api"),
			Metrics:  m,
			Version:  version,
		}
		if recorder != nil {
			sources.Recorder = recorder.Stats
			sources.Database = db.Stats
			sources.Schema = func() database.Schema { return schema }
			deps.Journal = store
		}
		if mqttClient != nil {
			sources.MQTT = mqttClient.IsConnected
		}
		if mirror != nil {
			sources.Mirror = mirror.Stats
		}
		deps.Sources = sources

		srv, apiErr := api.New(deps)
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		sup.AddObserver(srv.Hub().ObserveEvent)
		sup.AddDispatchObserver(srv.Hub().ObserveDispatch)

		if startErr := srv.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			log.Info("stopping API server")
			if closeErr := srv.Close(); closeErr != nil {
				log.Error("error stopping API server", "error", closeErr)
			}
		}()
		log.Info("API server listening", "addr", srv.Addr())
	} else {
		log.Info("API disabled")
	}

	log.Info("initialisation complete, starting supervisor",
		"bridges", cfg.BridgeAddresses(),
	)

	runErr := sup.Start(ctx)
	if runErr != nil {
		log.Error("supervisor stopped", "error", runErr)
	} else {
		log.Info("shutdown signal received, cleaning up")
	}

	drainCtx, cancelDrain := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer cancelDrain()
	if drainErr := bus.Drain(drainCtx); drainErr != nil {
		log.Warn("handlers still running after grace period",
			"grace_period", cfg.ShutdownGracePeriod,
			"in_flight", bus.Stats().InFlight,
		)
	}
	cancelHandlers()

	// Deferred Close() calls run in reverse order: API, journal,
	// database, InfluxDB, MQTT and finally the Lutron sessions.

	if runErr != nil {
		return fmt.Errorf("supervisor: %w", runErr)
	}
	log.Info("lutronbond stopped")
	return nil
}

// healthCheck verifies every enabled infrastructure connection.
// Nil clients are skipped.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if db != nil {
		if err := db.HealthCheck(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}
	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}
