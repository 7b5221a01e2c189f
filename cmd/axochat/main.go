package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/namsral/flag"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"axochat.org/axochat/pkg/auth"
	"axochat.org/axochat/pkg/config"
	sockets "axochat.org/axochat/pkg/hub"
	"axochat.org/axochat/pkg/moderation"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	switch os.Args[1] {
	case "start":
		runStart(os.Args[2:])
	case "generate":
		runGenerate(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage:
  axochat start [-config path] [-debug]
  axochat generate <name> [uuid]`)
}

func runStart(args []string) {
	fs := flag.NewFlagSet("axochat-start", flag.ExitOnError)
	var (
		configPath string
		debug      bool
	)
	fs.StringVar(&configPath, "config", config.Path(), "path of the TOML config file")
	fs.BoolVar(&debug, "debug", false, "debug logging on")
	fs.Parse(args)

	log.Logger = zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.Stamp,
	}).With().Timestamp().Logger()
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	cfg, err := config.Read(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("reading-config")
	}
	log.Debug().Interface("config", cfg).Msg("read-configuration")

	mod, err := moderation.New(cfg.Moderation.Moderators, cfg.Moderation.Banned)
	if err != nil {
		log.Fatal().Err(err).Msg("loading-moderation-files")
	}

	var authn *auth.Authenticator
	if cfg.Auth != nil {
		authn, err = auth.NewAuthenticator(cfg.Auth)
		if err != nil {
			log.Fatal().Err(err).Msg("loading-jwt-authenticator")
		}
	}

	hub, err := sockets.NewHub(cfg, authn, auth.NewMojangClient(), mod)
	if err != nil {
		log.Fatal().Err(err).Msg("creating-hub")
	}
	go hub.Run()

	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		sockets.ServeWS(hub, w, r)
	})

	log.Info().Str("address", cfg.Net.Address).Msg("started-server")
	if cfg.Net.CertFile != "" && cfg.Net.KeyFile != "" {
		err = http.ListenAndServeTLS(cfg.Net.Address, cfg.Net.CertFile, cfg.Net.KeyFile, nil)
	} else {
		err = http.ListenAndServe(cfg.Net.Address, nil)
	}
	log.Fatal().Err(err).Msg("server-stopped")
}

// runGenerate prints a new bearer token for the given player to stdout.
func runGenerate(args []string) {
	if len(args) < 1 || len(args) > 2 {
		usage()
		os.Exit(2)
	}
	name := args[0]
	id := uuid.New()
	if len(args) == 2 {
		var err error
		id, err = uuid.Parse(args[1])
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid uuid %q: %v\n", args[1], err)
			os.Exit(1)
		}
	}

	cfg, err := config.Read(config.Path())
	if err != nil {
		fmt.Fprintln(os.Stderr, "reading config:", err)
		os.Exit(1)
	}
	if cfg.Auth == nil {
		fmt.Fprintln(os.Stderr, "no [auth] section in the configuration")
		os.Exit(1)
	}
	authn, err := auth.NewAuthenticator(cfg.Auth)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	token, err := authn.NewToken(auth.User{Name: name, UUID: id})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println(token)
}
