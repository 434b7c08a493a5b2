package main

import (
	"errors"
	"flag"
	"os"
	"path"

	"github.com/envlink/envlink/internal/cmd"
	"github.com/envlink/envlink/internal/config"
	"github.com/envlink/envlink/internal/logging"
	log "github.com/sirupsen/logrus"
)

func main() {
	var (
		create     bool
		connectTo  string
		list       bool
		deleteName string
		deleteAll  bool
		forget     bool
		whoami     bool
		serve      bool
		noBrowser  bool
		configPath string
	)

	flag.BoolVar(&create, "create", false, "Create a new connection")
	flag.StringVar(&connectTo, "connect", "", "Connect to an existing named connection")
	flag.BoolVar(&list, "list", false, "List known connections")
	flag.StringVar(&deleteName, "delete", "", "Delete a named connection")
	flag.BoolVar(&deleteAll, "delete-all", false, "Delete all connections")
	flag.BoolVar(&forget, "forget", false, "Forget the active connection")
	flag.BoolVar(&whoami, "whoami", false, "Show who the active connection is authenticated as")
	flag.BoolVar(&serve, "serve", false, "Run the management API service")
	flag.BoolVar(&noBrowser, "no-browser", false, "Do not open a browser for interactive login")
	flag.StringVar(&configPath, "config", "", "Configuration file path")

	flag.Parse()

	logging.SetupBaseLogger()

	var err error
	var cfg *config.Config

	if configPath == "" {
		wd, errWd := os.Getwd()
		if errWd != nil {
			log.Fatalf("failed to get working directory: %v", errWd)
		}
		configPath = path.Join(wd, "config.yaml")
	}
	cfg, err = config.LoadConfig(configPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Fatalf("failed to load config: %v", err)
		}
		cfg = &config.Config{}
		cfg.ApplyDefaults()
	}

	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}
	if err = logging.ConfigureLogOutput(cfg.LoggingToFile); err != nil {
		log.Fatalf("failed to configure logging: %v", err)
	}

	options := &cmd.Options{ConfigPath: configPath, NoBrowser: noBrowser}
	app := cmd.NewApp(cfg, options)

	switch {
	case create:
		cmd.DoCreate(app)
	case connectTo != "":
		cmd.DoConnect(app, connectTo)
	case list:
		cmd.DoList(app)
	case deleteName != "":
		cmd.DoDelete(app, deleteName)
	case deleteAll:
		cmd.DoDeleteAll(app)
	case forget:
		cmd.DoForget(app)
	case whoami:
		cmd.DoWhoAmI(app)
	case serve:
		cmd.StartService(app, options)
	default:
		flag.Usage()
	}
}
