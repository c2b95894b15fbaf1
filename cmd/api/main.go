package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/AaronLay10/SentientStudio/internal/api"
	"github.com/AaronLay10/SentientStudio/internal/codegen"
	"github.com/AaronLay10/SentientStudio/internal/condition"
	"github.com/AaronLay10/SentientStudio/internal/config"
	"github.com/AaronLay10/SentientStudio/internal/engine"
	"github.com/AaronLay10/SentientStudio/internal/events"
	"github.com/AaronLay10/SentientStudio/internal/logging"
	"github.com/AaronLay10/SentientStudio/internal/mqtt"
	"github.com/AaronLay10/SentientStudio/internal/storage/postgres"
	"github.com/AaronLay10/SentientStudio/internal/store"
	"github.com/AaronLay10/SentientStudio/internal/testrun"
	"github.com/AaronLay10/SentientStudio/internal/version"
)

const healthInterval = 5 * time.Second

func main() {
	cfg, env, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load configuration")
	}

	log, closer, err := logging.New("studio-api", logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
		Dir:    cfg.LogDir(),
	})
	if err != nil {
		logrus.WithError(err).Fatal("failed to set up logging")
	}
	defer closer.Close()
	events.SetLogger(log)

	studioID := cfg.StudioID()
	hostname, _ := os.Hostname()
	events.Emit("info", "system.startup", "studio api starting", map[string]interface{}{
		"service":  "studio-api",
		"studio":   studioID,
		"hostname": hostname,
		"pid":      os.Getpid(),
		"version":  version.Version,
	})

	if err := config.EnsureDirectories(cfg); err != nil {
		log.WithError(err).Fatal("failed to create directories")
	}
	if err := api.InitAuth(); err != nil {
		log.WithError(err).Fatal("failed to initialize auth")
	}
	if !api.IsAuthEnabled() {
		log.Warn("no STUDIO_<ROLE>_USER/PASS set; API is unauthenticated")
	}
	api.InitTLS(cfg.Server.TLSCert, cfg.Server.TLSKey)
	api.InitMetrics(studioID)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, pg := openStore(ctx, cfg, studioID, log)
	if pg != nil {
		defer pg.Close()
	}

	eval := condition.NewEvaluator(cfg.Engine.ConditionCacheSize)
	eng := engine.New(engine.Options{
		AllowStartFallback: cfg.StartFallback(),
		RequireEndState:    cfg.Engine.RequireEndState,
		StopAtEnd:          cfg.Engine.StopAtEnd,
	}, eval)
	scripts := engine.NewScriptEngine(eval)
	gen := codegen.NewService(st, codegen.ServiceConfig{
		DefaultLanguage: codegen.Language(cfg.DefaultLanguage()),
		ExportDir:       cfg.ExportDir(),
	})

	var pub testrun.StatusPublisher
	broker := startDevices(ctx, cfg, env.DevicesPath, st, log)
	if broker != nil {
		defer broker.Disconnect()
		p := mqtt.NewPublisher(broker, mqtt.Topics{Prefix: cfg.TopicPrefix()}, log)
		go p.ForwardEvents(ctx)
		pub = p
	}

	runs := testrun.NewOrchestrator(st, eng, pub, log)
	srv := api.NewServer(api.Deps{
		Store:    st,
		Engine:   eng,
		Scripts:  scripts,
		CodeGen:  gen,
		TestRuns: runs,
		Log:      log,
	})

	alerter := api.NewAlerter(api.AlertConfig{
		WebhookURL:              cfg.Alerts.WebhookURL,
		StudioID:                studioID,
		MQTTDisconnectDelay:     cfg.Alerts.MQTTDelay,
		PostgresDisconnectDelay: cfg.Alerts.PostgresDelay,
	}, log)
	alerter.Start(ctx, healthInterval)
	go watchDependencies(ctx, broker, pg)

	api.SetServicesReady(true)
	log.WithField("port", cfg.Port()).Info("studio api listening")
	if err := srv.ListenAndServe(ctx, cfg.Port()); err != nil {
		log.WithError(err).Error("api server failed")
	}

	events.Emit("info", "system.shutdown", "studio api stopped", nil)
	alerter.Wait()
}

// openStore connects to Postgres when a host is configured and falls back to
// the in-memory store otherwise. A database reachable at startup is
// required from then on.
func openStore(ctx context.Context, cfg *config.StudioConfig, studioID string, log logrus.FieldLogger) (*store.Store, *postgres.Client) {
	if cfg.Postgres.Host == "" {
		api.SetPostgresStatus(false, true)
		log.Info("no postgres host configured; using in-memory store")
		return store.NewMemory(), nil
	}

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	pg, err := postgres.New(dialCtx, postgres.Config{
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		Database: cfg.Postgres.Database,
		SSLMode:  cfg.Postgres.SSLMode,
	}, studioID)
	if err != nil {
		api.SetPostgresStatus(false, true)
		log.WithError(err).Warn("postgres unavailable; using in-memory store")
		return store.NewMemory(), nil
	}

	events.SetPostgresClient(pg)
	api.SetPostgresStatus(true, false)
	log.WithField("host", cfg.Postgres.Host).Info("postgres connected")
	return store.NewPostgres(pg), pg
}

// startDevices seeds devices.yaml into the store and, when a broker is
// reachable, listens for agent registrations and device traffic. It returns
// nil when MQTT is unavailable at startup.
func startDevices(ctx context.Context, cfg *config.StudioConfig, devicesPath string, st *store.Store, log logrus.FieldLogger) *mqtt.Client {
	specs := make(map[string]mqtt.DeviceSpec)
	devCfg, err := config.LoadDevicesConfig(devicesPath)
	if err != nil {
		log.WithError(err).WithField("path", devicesPath).Warn("no device list loaded")
	} else {
		for _, d := range devCfg.Devices {
			specs[d.ID] = mqtt.DeviceSpecFromConfig(d.Type, d.Required, d.Capabilities)
			seedDevice(ctx, st, d, log)
		}
	}

	client := mqtt.NewClient(cfg.MQTT.Broker, orDefault(cfg.MQTT.ClientID, "sentient-studio"))
	registry := mqtt.NewDeviceRegistry()
	monitor := mqtt.NewMonitor(registry, st, specs, 2.0, log)

	// any traffic on a device topic counts as a heartbeat for its agent
	sub := mqtt.NewDeviceSubscriber(client, registry, func(dev *mqtt.RegisteredDevice, _ interface{}) {
		monitor.Heartbeat(dev.AgentID)
	})
	monitor.OnRegistered = func(devs []*mqtt.RegisteredDevice) {
		for _, d := range devs {
			if err := sub.SubscribeDevice(d); err != nil {
				log.WithError(err).WithField("device", d.LogicalID).Warn("device subscribe failed")
			}
		}
	}

	topics := mqtt.Topics{Prefix: cfg.TopicPrefix()}
	connected := client.StartWithRetry(log, topics.Register(), monitor.Handler())
	api.SetMQTTStatus(connected, !cfg.MQTT.Required)
	if !connected {
		if cfg.MQTT.Required {
			log.Warn("required mqtt broker unreachable; /ready will report not ready")
		}
		client.Disconnect()
		return nil
	}

	monitor.Start(healthInterval)
	go func() {
		<-ctx.Done()
		monitor.Stop()
	}()
	return client
}

func seedDevice(ctx context.Context, st *store.Store, d config.DeviceEntry, log logrus.FieldLogger) {
	if _, err := st.GetDevice(ctx, d.ID); err == nil {
		return
	}
	dev := testrun.NewDevice(orDefault(d.Name, d.ID), testrun.DeviceType(d.Type))
	dev.ID = d.ID
	dev.Manufacturer = d.Manufacturer
	dev.Model = d.Model
	dev.Capabilities = d.Capabilities
	if !dev.Type.Valid() {
		log.WithField("device", d.ID).Warnf("unknown device type %q", d.Type)
		return
	}
	if err := st.PutDevice(ctx, dev); err != nil {
		log.WithError(err).WithField("device", d.ID).Warn("failed to seed device")
	}
}

// watchDependencies refreshes broker and database readiness.
func watchDependencies(ctx context.Context, broker *mqtt.Client, pg *postgres.Client) {
	ticker := time.NewTicker(healthInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if broker != nil {
			api.SetMQTTConnected(broker.IsConnected())
		}
		if pg != nil {
			pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			api.SetPostgresStatus(pg.Ping(pingCtx) == nil, false)
			cancel()
		}
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
