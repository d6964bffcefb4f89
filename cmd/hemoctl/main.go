// hemoctl is the command-line client for the hemocheck service.
//
// Usage:
//
//	hemoctl predict --panel panel.json
//	hemoctl signup --email a@b.c --password secret
//	hemoctl history --user 1
//	hemoctl models list --model-dir models
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"

	"hemocheck/internal/anemia"
	"hemocheck/internal/client"
	"hemocheck/internal/common"
	"hemocheck/internal/features"
	"hemocheck/internal/ml"
)

var version = "dev"

func main() {
	app := &cli.App{
		Name:    "hemoctl",
		Usage:   "Hemoglobin prediction and anemia screening client",
		Version: version,

		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server",
				Value:   fmt.Sprintf("http://localhost:%d", common.DefaultHTTPPort),
				Usage:   "Base URL of the hemocheck API",
				EnvVars: []string{"HEMOCHECK_SERVER"},
			},
			&cli.DurationFlag{
				Name:    "timeout",
				Value:   10 * time.Second,
				Usage:   "Request timeout",
				EnvVars: []string{"HEMOCHECK_TIMEOUT"},
			},
		},

		Commands: []*cli.Command{
			predictCommand(),
			signupCommand(),
			loginCommand(),
			saveCommand(),
			historyCommand(),
			healthCommand(),
			modelInfoCommand(),
			modelsCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newClient(c *cli.Context) *client.Client {
	return client.New(strings.TrimRight(c.String("server"), "/"), c.Duration("timeout"))
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func credentialFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "email", Aliases: []string{"e"}, Usage: "Account email", Required: true},
		&cli.StringFlag{Name: "password", Aliases: []string{"p"}, Usage: "Account password", EnvVars: []string{"HEMOCHECK_PASSWORD"}, Required: true},
	}
}

func predictCommand() *cli.Command {
	return &cli.Command{
		Name:  "predict",
		Usage: "Predict hemoglobin from a blood panel",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "panel",
				Usage: "Path to a JSON object with the panel fields (- for stdin)",
			},
			&cli.StringSliceFlag{
				Name:    "set",
				Aliases: []string{"s"},
				Usage:   "Panel field as key=value, overrides --panel (e.g. --set wbc=7.2)",
			},
		},
		Action: runPredict,
	}
}

func runPredict(c *cli.Context) error {
	panel, err := readPanel(c.String("panel"), c.StringSlice("set"))
	if err != nil {
		return err
	}

	res, err := newClient(c).Predict(c.Context, panel)
	if err != nil {
		return err
	}
	return printJSON(res)
}

// readPanel merges a JSON panel file with key=value overrides. Values from
// --set are sent as strings; the server parses numeric ones.
func readPanel(path string, sets []string) (map[string]any, error) {
	panel := map[string]any{}

	if path != "" {
		var (
			data []byte
			err  error
		)
		if path == "-" {
			data, err = io.ReadAll(os.Stdin)
		} else {
			data, err = os.ReadFile(path)
		}
		if err != nil {
			return nil, fmt.Errorf("read panel: %w", err)
		}
		if err := json.Unmarshal(data, &panel); err != nil {
			return nil, fmt.Errorf("parse panel: %w", err)
		}
	}

	for _, kv := range sets {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("invalid --set %q, want key=value", kv)
		}
		panel[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}

	var missing []string
	for _, f := range features.RequiredFields {
		if _, ok := panel[f]; !ok {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("panel is missing %s", strings.Join(missing, ", "))
	}
	return panel, nil
}

func signupCommand() *cli.Command {
	return &cli.Command{
		Name:  "signup",
		Usage: "Register a new account",
		Flags: credentialFlags(),
		Action: func(c *cli.Context) error {
			id, err := newClient(c).Signup(c.Context, c.String("email"), c.String("password"))
			if err != nil {
				return err
			}
			return printJSON(map[string]int64{"user_id": id})
		},
	}
}

func loginCommand() *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "Check credentials and print the user id",
		Flags: credentialFlags(),
		Action: func(c *cli.Context) error {
			id, err := newClient(c).Login(c.Context, c.String("email"), c.String("password"))
			if err != nil {
				return err
			}
			return printJSON(map[string]int64{"user_id": id})
		},
	}
}

func saveCommand() *cli.Command {
	return &cli.Command{
		Name:  "save",
		Usage: "Save a prediction to a user's history",
		Flags: []cli.Flag{
			&cli.Int64Flag{Name: "user", Aliases: []string{"u"}, Usage: "User id", Required: true},
			&cli.Float64Flag{Name: "hemoglobin", Usage: "Hemoglobin in g/dL", Required: true},
			&cli.StringFlag{Name: "class", Usage: `Anemia class label (e.g. "Mild Anemia")`, Required: true},
		},
		Action: func(c *cli.Context) error {
			class, err := anemia.ParseClass(c.String("class"))
			if err != nil {
				return err
			}
			res, err := newClient(c).SavePrediction(c.Context, c.Int64("user"), c.Float64("hemoglobin"), class)
			if err != nil {
				return err
			}
			return printJSON(res)
		},
	}
}

func historyCommand() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "List a user's saved predictions",
		Flags: []cli.Flag{
			&cli.Int64Flag{Name: "user", Aliases: []string{"u"}, Usage: "User id", Required: true},
			&cli.BoolFlag{Name: "json", Usage: "Print JSON instead of a table"},
		},
		Action: func(c *cli.Context) error {
			entries, err := newClient(c).History(c.Context, c.Int64("user"))
			if err != nil {
				return err
			}
			if c.Bool("json") {
				return printJSON(entries)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tDATE\tHEMOGLOBIN\tCLASS")
			for _, e := range entries {
				fmt.Fprintf(w, "%d\t%s\t%.2f\t%s\n", e.ID, e.TestDate, e.Hemoglobin, e.AnemiaClass)
			}
			return w.Flush()
		},
	}
}

func healthCommand() *cli.Command {
	return &cli.Command{
		Name:  "health",
		Usage: "Show service health",
		Action: func(c *cli.Context) error {
			health, err := newClient(c).Health(c.Context)
			var apiErr *client.APIError
			if err != nil && !errors.As(err, &apiErr) {
				return err
			}
			if perr := printJSON(health); perr != nil {
				return perr
			}
			return err
		},
	}
}

func modelInfoCommand() *cli.Command {
	return &cli.Command{
		Name:  "model-info",
		Usage: "Show the served model's metadata",
		Action: func(c *cli.Context) error {
			info, err := newClient(c).ModelInfo(c.Context)
			if err != nil {
				return err
			}
			return printJSON(info)
		},
	}
}

// =============================================================================
// MODELS COMMAND
// =============================================================================

func modelsCommand() *cli.Command {
	dirFlag := &cli.StringFlag{
		Name:    "model-dir",
		Value:   common.DefaultModelDir,
		Usage:   "Model root holding model_versions.json",
		EnvVars: []string{common.EnvModelDir},
	}

	return &cli.Command{
		Name:  "models",
		Usage: "Manage local model artifact versions",
		Flags: []cli.Flag{dirFlag},
		Subcommands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List known versions, newest first",
				Action: runModelsList,
			},
			{
				Name:  "add",
				Usage: "Register an artifact directory as a new inactive version",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "path", Usage: "Artifact directory, relative to the model root or absolute", Required: true},
					&cli.Float64Flag{Name: "rmse", Usage: "Validation RMSE"},
					&cli.Float64Flag{Name: "mae", Usage: "Validation MAE"},
					&cli.Float64Flag{Name: "r2", Usage: "Validation R squared"},
					&cli.IntFlag{Name: "samples", Usage: "Training sample count"},
					&cli.BoolFlag{Name: "activate", Usage: "Activate the version after adding it"},
				},
				Action: runModelsAdd,
			},
			{
				Name:      "activate",
				Usage:     "Activate a version",
				ArgsUsage: "<version>",
				Action:    runModelsActivate,
			},
			{
				Name:   "rollback",
				Usage:  "Activate the version before the current one",
				Action: runModelsRollback,
			},
		},
	}
}

func modelManager(c *cli.Context) (*ml.ModelManager, error) {
	return ml.NewModelManager(c.String("model-dir"))
}

func runModelsList(c *cli.Context) error {
	mm, err := modelManager(c)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ACTIVE\tVERSION\tPATH\tRMSE\tR2\tCREATED")
	for _, v := range mm.ListVersions() {
		active := ""
		if v.IsActive {
			active = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%.4f\t%.4f\t%s\n",
			active, v.Version, v.Path, v.Metrics.RMSE, v.Metrics.R2, v.CreatedAt.Format(time.RFC3339))
	}
	return w.Flush()
}

func runModelsAdd(c *cli.Context) error {
	mm, err := modelManager(c)
	if err != nil {
		return err
	}

	v, err := mm.AddVersion(c.String("path"), ml.ModelMetrics{
		RMSE:            c.Float64("rmse"),
		MAE:             c.Float64("mae"),
		R2:              c.Float64("r2"),
		TrainingSamples: c.Int("samples"),
	})
	if err != nil {
		return err
	}

	if c.Bool("activate") {
		// Validate before switching so a broken directory never goes live.
		if _, err := ml.Load(mm.ArtifactDirFor(v)); err != nil {
			return fmt.Errorf("version %s not activated: %w", v.Version, err)
		}
		if err := mm.ActivateVersion(v.Version); err != nil {
			return err
		}
	}
	return printJSON(v)
}

func runModelsActivate(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: hemoctl models activate <version>", 2)
	}
	mm, err := modelManager(c)
	if err != nil {
		return err
	}
	if err := mm.ActivateVersion(c.Args().First()); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "activated %s, restart hemocheckd to serve it\n", c.Args().First())
	return nil
}

func runModelsRollback(c *cli.Context) error {
	mm, err := modelManager(c)
	if err != nil {
		return err
	}
	if err := mm.Rollback(); err != nil {
		return err
	}
	if cur := mm.GetCurrentVersion(); cur != nil {
		fmt.Fprintf(os.Stderr, "rolled back to %s, restart hemocheckd to serve it\n", cur.Version)
	}
	return nil
}
