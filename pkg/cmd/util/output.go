package util

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/mpapenbr/fieldapp-client/pkg/config"
)

// PrintJSON writes v as indented JSON
func PrintJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// PrintYAML writes v as YAML.
// v is converted via its JSON form so that JSON tags and marshalers apply.
func PrintYAML(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(generic); err != nil {
		return err
	}
	return enc.Close()
}

// Print writes v in the format selected by --output
func Print(w io.Writer, v any) error {
	switch config.Output {
	case "", "json":
		return PrintJSON(w, v)
	case "yaml":
		return PrintYAML(w, v)
	default:
		return fmt.Errorf("unsupported output format %q", config.Output)
	}
}

// Run prepares logger and app for a command, calls f and releases the app.
func Run(ctx context.Context, f func(ctx context.Context, app *App) error, opts ...AppOption) error {
	if err := SetupLogger(); err != nil {
		return err
	}
	cfg, err := config.Resolve()
	if err != nil {
		return err
	}
	app, err := NewApp(ctx, cfg, opts...)
	if err != nil {
		return err
	}
	defer app.Close()
	return f(ctx, app)
}
