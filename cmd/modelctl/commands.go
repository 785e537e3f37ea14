package main

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"model_settings/internal/catalog"
	"model_settings/internal/engine"
	"model_settings/internal/logging"
)

// session loads the engine, replays the state of earlier invocations, runs fn and
// persists the resulting state whether fn failed or not.
func (a *app) session(ctx context.Context, fn func(ctx context.Context, eng *engine.Engine, st *State) error) error {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	st, err := LoadState(a.cfg.StatePath)
	if err != nil {
		return err
	}

	notifier := &printNotifier{w: a.errOut, muted: true}
	eng := a.newEngine(a.cfg, notifier)
	eng.RestoreSuppressed(st.Suppressed)
	if err := eng.Load(ctx, engine.Category(st.Mode)); err != nil {
		return err
	}

	eng.RestorePending(st.pending())
	if eng.CloudPrefer() && st.CloudModel != "" {
		if err := eng.SetDefault(ctx, engine.CategoryCloud, st.CloudModel); err != nil {
			logging.Warningf("failed to restore cloud model %s: %v", st.CloudModel, err)
		}
	}
	notifier.muted = false

	runErr := fn(ctx, eng, st)

	st.capture(eng)
	if err := st.Save(a.cfg.StatePath); err != nil {
		logging.Errorf("failed to save state: %v", err)
		if runErr == nil {
			runErr = err
		}
	}
	return runErr
}

func (a *app) printError(err error) {
	var fields engine.FieldErrors
	if errors.As(err, &fields) {
		names := make([]string, 0, len(fields))
		for name := range fields {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(a.errOut, "%s %s: %s\n", errorStyle.Render("✗"), name, fields[name])
		}
		return
	}
	fmt.Fprintf(a.errOut, "%s %v\n", errorStyle.Render("Error:"), err)
}

func (a *app) statusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the default model and every candidate",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.session(cmd.Context(), func(ctx context.Context, eng *engine.Engine, st *State) error {
				a.printStatus(eng)
				return nil
			})
		},
	}
}

func (a *app) printStatus(eng *engine.Engine) {
	if d, ok := eng.Default(); ok {
		fmt.Fprintf(a.out, "%s %s (%s)", titleStyle.Render("Default:"), d.Name, d.Category)
		if d.ModelType != "" && d.ModelType != d.Name {
			fmt.Fprintf(a.out, " %s", d.ModelType)
		}
		fmt.Fprintln(a.out)
	} else {
		fmt.Fprintf(a.out, "%s none\n", titleStyle.Render("Default:"))
	}
	if p := eng.Pending(); p != nil {
		fmt.Fprintf(a.out, "%s %s %s, waiting to be configured\n", warningStyle.Render("Pending:"), p.Category, p.ID)
	}

	fmt.Fprintln(a.out)
	fmt.Fprintln(a.out, titleStyle.Render("Custom"))
	for _, c := range eng.Candidates() {
		state := dimStyle.Render("not configured")
		if c.ProviderID != 0 {
			state = c.ModelType
			if !c.IsValid {
				state += " " + warningStyle.Render("(unverified)")
			}
		}
		fmt.Fprintf(a.out, "  %s %-24s %-20s %s\n", mark(c.Prefer), c.ID, c.Name, state)
	}

	fmt.Fprintln(a.out)
	fmt.Fprintln(a.out, titleStyle.Render("Local"))
	for _, l := range eng.Locals() {
		state := dimStyle.Render("not configured")
		if l.ProviderID != 0 {
			state = l.ModelType + " @ " + l.Endpoint
		}
		fmt.Fprintf(a.out, "  %s %-24s %s\n", mark(l.Prefer), l.Platform, state)
		if msg := eng.LocalError(l.Platform); msg != "" {
			fmt.Fprintf(a.out, "      %s\n", errorStyle.Render(msg))
		}
	}
}

func mark(prefer bool) string {
	if prefer {
		return successStyle.Render("*")
	}
	return " "
}

func (a *app) saveCommand() *cobra.Command {
	save := &cobra.Command{
		Use:   "save",
		Short: "Validate and store the configuration of a candidate",
	}
	save.AddCommand(a.saveCustomCommand(), a.saveLocalCommand())
	return save
}

func (a *app) saveCustomCommand() *cobra.Command {
	var (
		apiKey, host, model string
		extras              []string
	)

	cmd := &cobra.Command{
		Use:   "custom <vendor>",
		Short: "Save a bring-your-own-key vendor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return a.session(cmd.Context(), func(ctx context.Context, eng *engine.Engine, st *State) error {
				edits := []struct {
					flag, field string
					value       *string
				}{
					{"api-key", engine.FieldAPIKey, &apiKey},
					{"host", engine.FieldAPIHost, &host},
					{"model", engine.FieldModelType, &model},
				}
				for _, e := range edits {
					if !cmd.Flags().Changed(e.flag) {
						continue
					}
					if err := eng.SetCustomField(id, e.field, *e.value); err != nil {
						return err
					}
				}
				for _, kv := range extras {
					k, v, ok := strings.Cut(kv, "=")
					if !ok {
						return fmt.Errorf("--extra expects key=value, got %q", kv)
					}
					if err := eng.SetExternalValue(id, k, v); err != nil {
						return err
					}
				}

				if err := eng.SaveCustom(ctx, id); err != nil {
					return saveError(err, eng.FieldErrors(engine.CategoryCustom, id))
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&apiKey, "api-key", "", "API key")
	cmd.Flags().StringVar(&host, "host", "", "API host")
	cmd.Flags().StringVar(&model, "model", "", "model type")
	cmd.Flags().StringArrayVar(&extras, "extra", nil, "vendor specific setting as key=value, repeatable")
	return cmd
}

func (a *app) saveLocalCommand() *cobra.Command {
	var endpointURL, model string

	cmd := &cobra.Command{
		Use:   "local <platform>",
		Short: "Save a local inference server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			platform := args[0]
			return a.session(cmd.Context(), func(ctx context.Context, eng *engine.Engine, st *State) error {
				if cmd.Flags().Changed("endpoint") {
					if err := eng.SetLocalEndpoint(platform, endpointURL); err != nil {
						return err
					}
					if _, err := eng.BlurLocalEndpoint(platform); err != nil {
						return err
					}
				}
				if cmd.Flags().Changed("model") {
					if err := eng.SetLocalModelType(platform, model); err != nil {
						return err
					}
				}

				if err := eng.SaveLocal(ctx, platform); err != nil {
					return saveError(err, eng.FieldErrors(engine.CategoryLocal, platform))
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&endpointURL, "endpoint", "", "server base URL")
	cmd.Flags().StringVar(&model, "model", "", "model type")
	return cmd
}

// saveError prefers the per-field messages over the wrapped error.
func saveError(err error, fields engine.FieldErrors) error {
	if len(fields) > 0 {
		return fields
	}
	return err
}

func (a *app) defaultCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "default <category> [id]",
		Short: "Make a candidate the default model",
		Long: "Make a candidate the default model. category is cloud, custom or local. For cloud, id " +
			"optionally names the cloud model. An unconfigured candidate becomes the default once it is saved.",
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			category, err := engine.ParseCategory(args[0])
			if err != nil {
				return err
			}
			var id string
			if len(args) == 2 {
				id = args[1]
			}
			if id == "" && category != engine.CategoryCloud {
				return fmt.Errorf("%s needs an id", category)
			}
			if category == engine.CategoryCloud && !a.cfg.Cloud {
				return errors.New("the cloud backend is not available on this deployment")
			}

			return a.session(cmd.Context(), func(ctx context.Context, eng *engine.Engine, st *State) error {
				return eng.SetDefault(ctx, category, id)
			})
		},
	}
}

func (a *app) unsetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "unset <category> [id]",
		Short: "Switch a candidate off as default without deleting it",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			category, err := engine.ParseCategory(args[0])
			if err != nil {
				return err
			}
			var id string
			if len(args) == 2 {
				id = args[1]
			}

			return a.session(cmd.Context(), func(ctx context.Context, eng *engine.Engine, st *State) error {
				if p := eng.Pending(); p != nil && p.Category == category && p.ID == id {
					eng.ClearPending()
					fmt.Fprintf(a.out, "Pending default %s %s cancelled\n", category, id)
				}

				return eng.UnsetDefault(category, id)
			})
		},
	}
}

func (a *app) resetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "reset <category> [id]",
		Short: "Delete the stored configuration of a candidate",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			category, err := engine.ParseCategory(args[0])
			if err != nil {
				return err
			}
			var id string
			if len(args) == 2 {
				id = args[1]
			}
			if id == "" && category != engine.CategoryCloud {
				return fmt.Errorf("%s needs an id", category)
			}

			return a.session(cmd.Context(), func(ctx context.Context, eng *engine.Engine, st *State) error {
				return eng.Reset(ctx, category, id)
			})
		},
	}
}

func (a *app) modelsCommand() *cobra.Command {
	var endpointURL string

	cmd := &cobra.Command{
		Use:   "models <platform>",
		Short: "List the models served by a local platform",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			platform := args[0]
			p, ok := catalog.LocalPlatformByID(platform)
			if !ok {
				return fmt.Errorf("unknown local platform %q", platform)
			}
			if !p.Discoverable() {
				return fmt.Errorf("%s does not list its models", p.Name)
			}

			return a.session(cmd.Context(), func(ctx context.Context, eng *engine.Engine, st *State) error {
				state := eng.Models(platform)
				if cmd.Flags().Changed("endpoint") {
					if err := eng.SetLocalEndpoint(platform, endpointURL); err != nil {
						return err
					}
					if _, err := eng.BlurLocalEndpoint(platform); err != nil {
						return err
					}
					state = eng.RefreshModels(ctx, platform)
				}
				if state.Error != "" {
					return errors.New(state.Error)
				}

				for _, m := range eng.ModelOptions(platform) {
					fmt.Fprintln(a.out, m)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&endpointURL, "endpoint", "", "server base URL, defaults to the saved one")
	return cmd
}
