// Command admin is the score-entry and draft console. Every edit loads the
// current tournament, applies one change and saves it back; a save that
// races another editor is refused and nothing is written.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/cpacia/classic-server/client"
	"github.com/cpacia/classic-server/session"
	"github.com/cpacia/classic-server/tournament"
	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

type Options struct {
	Server   string `short:"s" long:"server" env:"CLASSIC_SERVER" default:"http://localhost:8080" description:"Tournament server URL"`
	Password string `short:"p" long:"password" env:"CLASSIC_PASSWORD" description:"Admin password"`
	Rules    string `long:"rules" env:"CLASSIC_RULES" description:"YAML file with the tournament rules"`
	Verbose  bool   `short:"v" long:"verbose" description:"Debug logging"`
}

var (
	opts   Options
	parser = flags.NewParser(&opts, flags.Default)
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "reading .env:", err)
	}

	parser.CommandHandler = func(cmd flags.Commander, args []string) error {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
		if opts.Verbose {
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		}
		return cmd.Execute(args)
	}

	if _, err := parser.Parse(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		if errors.Is(err, session.ErrConflict) {
			fmt.Fprintln(os.Stderr, "Someone else saved first. Run the command again to apply it to their version.")
		}
		os.Exit(1)
	}
}

// loadRules reads rules from path, starting from the defaults.
func loadRules(path string) (tournament.Rules, error) {
	rules := tournament.DefaultRules()
	if path == "" {
		return rules, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return rules, err
	}
	var cfg struct {
		Rules *tournament.Rules `yaml:"rules"`
	}
	cfg.Rules = &rules
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return rules, fmt.Errorf("parsing %s: %w", path, err)
	}
	return rules, rules.Validate()
}

// connect returns a loaded session against the configured server.
func connect(ctx context.Context) (*session.Session, error) {
	rules, err := loadRules(opts.Rules)
	if err != nil {
		return nil, err
	}
	s := session.New(client.New(opts.Server, opts.Password, rules), rules, nil)
	if err := s.Load(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}
