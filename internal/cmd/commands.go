// Package cmd implements the envlink command entry points: connection
// creation, reconnect, listing, deletion, forget, and the management
// service.
package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/envlink/envlink/internal/api"
	"github.com/envlink/envlink/internal/auth"
	"github.com/envlink/envlink/internal/browser"
	"github.com/envlink/envlink/internal/config"
	"github.com/envlink/envlink/internal/connection"
	"github.com/envlink/envlink/internal/manager"
	"github.com/envlink/envlink/internal/platform"
	"github.com/envlink/envlink/internal/util"
	"github.com/envlink/envlink/internal/watcher"
	log "github.com/sirupsen/logrus"
)

// Options carries flag-derived settings shared across commands.
type Options struct {
	ConfigPath string
	NoBrowser  bool
}

// App bundles the wired-up components a command operates on.
type App struct {
	Cfg        *config.Config
	Registry   *connection.Registry
	Overlay    *connection.Overlay
	Dispatcher *auth.Dispatcher
	Manager    *manager.Manager
	Client     *platform.Client
}

// NewApp wires stores, dispatcher, manager and platform client from config.
func NewApp(cfg *config.Config, options *Options) *App {
	if options == nil {
		options = &Options{}
	}

	var secrets connection.SecretStore
	if cfg.UseKeyring {
		secrets = connection.NewKeyringStore()
	}
	registry := connection.NewRegistry(connection.NewBoltKV(filepath.Join(cfg.StateDir, "registry.db")), secrets)
	overlay := connection.NewOverlay(connection.NewFileKV(filepath.Join(cfg.StateDir, "session.json")))

	var opener auth.BrowserOpener
	if !options.NoBrowser && browser.IsAvailable() {
		opener = browser.OpenURL
	}
	dispatcher := auth.NewDispatcher(cfg, overlay, &auth.Options{OpenURL: opener})
	mgr := manager.New(registry, overlay, dispatcher, manager.NewTerminalPrompter(), nil)

	session := platform.NewOverlaySession(overlay, dispatcher)
	client := platform.NewClient(util.SetProxy(cfg, &http.Client{Timeout: 30 * time.Second}), session)

	return &App{
		Cfg:        cfg,
		Registry:   registry,
		Overlay:    overlay,
		Dispatcher: dispatcher,
		Manager:    mgr,
		Client:     client,
	}
}

// DoCreate runs the connection creation wizard.
func DoCreate(app *App) {
	rec, err := app.Manager.CreateConnection(context.Background())
	if err != nil {
		log.Fatalf("Failed to create connection: %v", err)
		return
	}
	log.Infof("Connection %q created and active.", rec.Name)
}

// DoConnect reconnects to an existing named connection.
func DoConnect(app *App, name string) {
	rec, err := app.Manager.Connect(context.Background(), name)
	if err != nil {
		log.Fatalf("Failed to connect to %q: %v", name, err)
		return
	}
	if rec.UserPrincipalName != "" {
		log.Infof("Connected to %q as %s.", rec.Name, rec.UserPrincipalName)
	} else {
		log.Infof("Connected to %q.", rec.Name)
	}
}

// DoList prints all known connections in insertion order.
func DoList(app *App) {
	records, err := app.Manager.ListConnections()
	if err != nil {
		log.Fatalf("Failed to list connections: %v", err)
		return
	}
	if len(records) == 0 {
		fmt.Println("No connections.")
		return
	}
	active, _ := app.Manager.CurrentConnection()
	for _, rec := range records {
		marker := " "
		if active != nil && active.Name == rec.Name {
			marker = "*"
		}
		fmt.Printf("%s %-24s %-20s %s\n", marker, rec.Name, rec.LoginType, rec.EndpointURL)
	}
}

// DoDelete removes one named connection after confirmation.
func DoDelete(app *App, name string) {
	if err := app.Manager.DeleteConnection(name); err != nil {
		if err == connection.ErrDeclined {
			log.Info("Delete cancelled.")
			return
		}
		log.Fatalf("Failed to delete connection %q: %v", name, err)
	}
}

// DoDeleteAll removes every connection after confirmation.
func DoDeleteAll(app *App) {
	if err := app.Manager.DeleteAllConnections(); err != nil {
		if err == connection.ErrDeclined {
			log.Info("Delete cancelled.")
			return
		}
		log.Fatalf("Failed to delete connections: %v", err)
	}
}

// DoForget clears the active connection.
func DoForget(app *App) {
	if err := app.Manager.Forget(); err != nil {
		log.Fatalf("Failed to forget active connection: %v", err)
	}
}

// DoWhoAmI asks the platform who the active connection's token belongs to.
func DoWhoAmI(app *App) {
	info, err := app.Client.WhoAmI(context.Background())
	if err != nil {
		log.Fatalf("WhoAmI failed: %v", err)
		return
	}
	fmt.Printf("User ID:       %s\n", info.UserID)
	fmt.Printf("Organization:  %s\n", info.OrganizationID)
	if info.PrincipalName != "" {
		fmt.Printf("Principal:     %s\n", info.PrincipalName)
	}
}

// StartService runs the management API with config hot-reload until
// interrupted.
func StartService(app *App, options *Options) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Infof("received signal %s, shutting down", sig)
		cancel()
	}()

	handler := api.NewHandler(app.Cfg, app.Manager, app.Client)

	if options != nil && options.ConfigPath != "" {
		configWatcher, err := watcher.NewWatcher(options.ConfigPath, func(cfg *config.Config) {
			handler.SetConfig(cfg)
		})
		if err != nil {
			log.Warnf("config watcher unavailable: %v", err)
		} else if err = configWatcher.Start(ctx); err == nil {
			defer func() {
				_ = configWatcher.Stop()
			}()
		}
	}

	if err := api.Run(ctx, app.Cfg, handler); err != nil {
		log.Fatalf("management API failed: %v", err)
	}
}
