// Command modelctl picks the default model backend and configures bring-your-own-key
// vendors and local inference servers against a providerd instance.
package main

import (
	"context"
	"io"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"model_settings/internal/config"
	"model_settings/internal/discovery"
	"model_settings/internal/engine"
	"model_settings/internal/logging"
	"model_settings/internal/store"
	"model_settings/internal/validation"
)

// app holds what every command needs. newEngine is replaced in tests.
type app struct {
	cfg       config.ClientConfig
	out       io.Writer
	errOut    io.Writer
	newEngine func(cfg config.ClientConfig, n engine.Notifier) *engine.Engine
}

func newApp() *app {
	return &app{
		cfg:       config.LoadClient(),
		out:       os.Stdout,
		errOut:    os.Stderr,
		newEngine: remoteEngine,
	}
}

// remoteEngine talks to providerd over HTTP and to local servers directly.
func remoteEngine(cfg config.ClientConfig, n engine.Notifier) *engine.Engine {
	httpClient := &http.Client{Timeout: cfg.Timeout}
	providerStore := store.NewRESTStore(store.RESTConfig{
		BaseURL:    cfg.Server,
		Token:      cfg.Token,
		HTTPClient: httpClient,
	})
	validator := validation.NewClient(cfg.Server, cfg.Token, httpClient)

	return engine.New(providerStore, validator, discovery.NewClient(nil), engine.Options{
		CloudAvailable: cfg.Cloud,
		Notifier:       n,
	})
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "modelctl",
		Short:         "Configure model backends and choose the default one",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(a.out)
	root.SetErr(a.errOut)

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfg.Server, "server", a.cfg.Server, "provider API base URL (MODELCTL_SERVER)")
	flags.StringVar(&a.cfg.Token, "token", a.cfg.Token, "bearer token (MODELCTL_TOKEN)")
	flags.StringVar(&a.cfg.StatePath, "state", a.cfg.StatePath, "state file (MODELCTL_STATE)")
	flags.BoolVar(&a.cfg.Cloud, "cloud", a.cfg.Cloud, "the managed cloud backend is available (MODELCTL_CLOUD)")
	flags.DurationVar(&a.cfg.Timeout, "timeout", a.cfg.Timeout, "timeout of each command (MODELCTL_TIMEOUT)")

	root.AddCommand(
		a.statusCommand(),
		a.saveCommand(),
		a.defaultCommand(),
		a.unsetCommand(),
		a.resetCommand(),
		a.modelsCommand(),
	)
	return root
}

func main() {
	a := newApp()
	if err := a.rootCommand().ExecuteContext(context.Background()); err != nil {
		logging.Debugf("modelctl failed: %v", err)
		a.printError(err)
		os.Exit(1)
	}
}
