package main

import (
	"context"
	"crypto/tls"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"turbo-slide/internal/config"
	"turbo-slide/internal/db"
	"turbo-slide/internal/emitter"
	"turbo-slide/internal/handlers"
	"turbo-slide/internal/services"
)

func main() {
	// Load configuration
	cfg := config.LoadConfig()

	// Initialize database
	if err := db.InitDatabase(cfg.Database.Path); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	// Initialize services
	metadata := services.NewMetadataStore()
	resolver, err := services.NewSlideResolver(cfg.Slides.DecksDir, cfg.Slides.Mount, metadata)
	if err != nil {
		log.Fatalf("Failed to initialize slide resolver: %v", err)
	}
	defer resolver.Close()

	registry := services.NewDeckRegistry(resolver, cfg.Slides.DefaultDeck, services.DeckDefaults{
		Title:        cfg.Slides.Title,
		Author:       cfg.Slides.Author,
		TimerSeconds: cfg.Slides.TimerSeconds,
	})
	nav := services.NewNavigationRenderer()
	broadcaster := services.NewBroadcaster()
	importLog := services.NewImportLog(db.DB)
	importer := services.NewPdfImporter(cfg.Slides.DecksDir, cfg.Slides.ImportDir, services.FitzRasterizer{}, metadata, importLog)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Convert PDFs before serving so the first request sees every deck
	if _, err := importer.RunImports(ctx); err != nil {
		log.Printf("Warning: startup import skipped: %v", err)
	}
	if cfg.Slides.WatchImports {
		go func() {
			if err := importer.Watch(ctx); err != nil {
				log.Printf("Warning: import watcher stopped: %v", err)
			}
		}()
	}

	var mqttEmitter *emitter.MQTTEmitter
	if cfg.MQTT.Enabled {
		mqttEmitter = emitter.NewMQTTEmitter(cfg.MQTT)
		if err := mqttEmitter.Connect(ctx); err != nil {
			log.Printf("Warning: MQTT unavailable, slide changes will not be mirrored: %v", err)
		}
		broadcaster.AddListener(mqttEmitter)
		defer mqttEmitter.Disconnect()
	}

	// Initialize handlers
	slideHandler := handlers.NewSlideHandler(resolver, registry, nav, broadcaster, cfg.Slides.Title, cfg.Slides.LegacyHome)
	apiHandler := handlers.NewAPIHandler(resolver, registry, broadcaster)
	eventsHandler := handlers.NewEventsHandler(broadcaster, registry, cfg.Events.WriteTimeout, cfg.Events.Keepalive)
	importHandler := handlers.NewImportHandler(importer, importLog)
	staticHandler := handlers.NewStaticHandler(cfg.Slides.DecksDir, cfg.Slides.Mount, cfg.Slides.PublicDir, cfg.Slides.ImagesDir)
	healthHandler := handlers.NewHealthHandler(registry, broadcaster, mqttEmitter)

	// Setup routes
	router := handlers.SetupRoutes(slideHandler, apiHandler, eventsHandler, importHandler, staticHandler, healthHandler)

	// Configure server
	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	printBanner(cfg, registry)

	errCh := make(chan error, 1)
	go func() {
		// Configure TLS if enabled
		if cfg.TLS.Enabled {
			server.TLSConfig = &tls.Config{
				MinVersion: getTLSVersion(cfg.TLS.MinVersion),
			}

			log.Printf("Starting HTTPS server on %s:%s", cfg.Server.Host, cfg.Server.Port)
			log.Printf("TLS Certificate: %s", cfg.TLS.CertFile)
			log.Printf("TLS Key: %s", cfg.TLS.KeyFile)
			log.Printf("TLS Min Version: %s", cfg.TLS.MinVersion)

			errCh <- server.ListenAndServeTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile)
		} else {
			log.Printf("Starting HTTP server on %s:%s", cfg.Server.Host, cfg.Server.Port)
			log.Printf("Warning: HTTP mode is not recommended for production")

			errCh <- server.ListenAndServe()
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("Received %s, shutting down", sig)
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Server error: %v", err)
		}
	}

	stop()

	// Event streams never go idle on their own; drain them before Shutdown
	broadcaster.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
	log.Printf("Server stopped")
}

// printBanner lists the available decks and their entry points
func printBanner(cfg *config.Config, registry *services.DeckRegistry) {
	scheme := "http"
	if cfg.TLS.Enabled {
		scheme = "https"
	}
	host := cfg.Server.Host
	if host == "" || host == "0.0.0.0" {
		host = "localhost"
	}
	base := scheme + "://" + host + ":" + cfg.Server.Port

	log.Printf("%s", cfg.Slides.Title)
	log.Printf("Home:      %s/", base)
	log.Printf("Presenter: %s/presenter", base)
	log.Printf("Viewer:    %s/viewer", base)

	decks := registry.ListDecks()
	if len(decks) == 0 {
		log.Printf("No decks found in %s", cfg.Slides.DecksDir)
		return
	}
	for _, deck := range decks {
		log.Printf("Deck %-20s %3d slides  %s%s", deck.Name, deck.SlideCount, base, deck.URL)
	}
}

// getTLSVersion converts string version to tls.Version constant
func getTLSVersion(version string) uint16 {
	switch version {
	case "1.0":
		return tls.VersionTLS10
	case "1.1":
		return tls.VersionTLS11
	case "1.2":
		return tls.VersionTLS12
	case "1.3":
		return tls.VersionTLS13
	default:
		return tls.VersionTLS12
	}
}
