package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/IlyaGulya/remnawave-modulegen/faults"
	"github.com/IlyaGulya/remnawave-modulegen/panel"
)

const (
	statePresent = "present"
	stateAbsent  = "absent"
)

type applyReport struct {
	Module   string         `yaml:"module"`
	Action   panel.Action   `yaml:"action"`
	Changed  bool           `yaml:"changed"`
	Check    bool           `yaml:"check,omitempty"`
	Diff     []string       `yaml:"diff,omitempty"`
	Resource map[string]any `yaml:"resource,omitempty"`
}

func newApplyCommand() *cobra.Command {
	var (
		modulesPath  string
		moduleName   string
		statePath    string
		state        string
		panelURL     string
		token        string
		forwardedFor string
		timeout      time.Duration
		insecure     bool
		check        bool
	)

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Converge one module's desired state against a live panel",
		Long: `apply reads a desired-state file, locates the matching remote resource, and
issues at most one write to close the gap. Desired-state files use snake_case
keys; apply converts them to the panel's camelCase on the way in and converts
the reported resource back on the way out.`,
		Example: `  # Ensure a node exists as described
  modulegen apply --modules modules.yaml --module node --file node.yaml

  # Report the pending diff without writing
  modulegen apply --modules modules.yaml --module node --file node.yaml --check

  # Remove the resource the file describes
  modulegen apply --modules modules.yaml --module node --file node.yaml --state absent`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if state != statePresent && state != stateAbsent {
				return faults.Newf(faults.ValidationError, "state must be %q or %q", statePresent, stateAbsent)
			}
			if token == "" {
				token = os.Getenv("REMNAWAVE_TOKEN")
			}
			if token == "" {
				return faults.Newf(faults.ValidationError, "an API token is required (--token or REMNAWAVE_TOKEN)")
			}

			modules, err := panel.LoadModules(modulesPath)
			if err != nil {
				return err
			}
			module, err := panel.FindModule(modules, moduleName)
			if err != nil {
				return err
			}

			desired, err := loadDesiredState(statePath)
			if err != nil {
				return err
			}

			logger := log.With().Str("module", module.Name).Logger()
			client, err := panel.NewClient(panel.ClientConfig{
				BaseURL:            panelURL,
				Token:              token,
				Timeout:            timeout,
				ForwardedFor:       forwardedFor,
				InsecureSkipVerify: insecure,
				Logger:             logger,
			})
			if err != nil {
				return err
			}
			converger := &panel.Converger{Client: client, Module: module, Log: logger}

			var result *panel.Result
			if check {
				result, err = converger.Plan(cmd.Context(), desired, state == statePresent)
			} else {
				result, err = converger.Converge(cmd.Context(), desired, state == statePresent)
			}
			if err != nil {
				return err
			}

			return writeReport(cmd, module.Name, result, check)
		},
	}

	cmd.Flags().StringVarP(&modulesPath, "modules", "m", "", "module descriptor file produced by generate")
	cmd.Flags().StringVar(&moduleName, "module", "", "module name within the descriptor file")
	cmd.Flags().StringVarP(&statePath, "file", "f", "", "desired-state YAML file (snake_case keys)")
	cmd.Flags().StringVarP(&state, "state", "", statePresent, "desired disposition (present or absent)")
	cmd.Flags().StringVarP(&panelURL, "url", "u", "", "panel base URL")
	cmd.Flags().StringVarP(&token, "token", "t", "", "panel API token (defaults to REMNAWAVE_TOKEN)")
	cmd.Flags().StringVar(&forwardedFor, "forwarded-for", "", "value for the X-Forwarded-For header")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "per-request timeout")
	cmd.Flags().BoolVarP(&insecure, "insecure", "k", false, "skip TLS certificate verification")
	cmd.Flags().BoolVar(&check, "check", false, "report the pending change without writing")
	_ = cmd.MarkFlagRequired("modules")
	_ = cmd.MarkFlagRequired("module")
	_ = cmd.MarkFlagRequired("file")
	_ = cmd.MarkFlagRequired("url")

	return cmd
}

// loadDesiredState reads a snake_case desired-state file and converts its
// keys to the panel's camelCase.
func loadDesiredState(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, faults.New(faults.ValidationError, "cannot read desired-state file", err)
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, faults.New(faults.ValidationError, "desired-state file is not valid YAML", err)
	}
	desired, ok := panel.CamelKeys(raw).(map[string]any)
	if !ok {
		return nil, faults.Newf(faults.ValidationError, "desired-state file must contain a mapping")
	}
	return desired, nil
}

func writeReport(cmd *cobra.Command, moduleName string, result *panel.Result, check bool) error {
	report := applyReport{
		Module:  moduleName,
		Action:  result.Action,
		Changed: result.Changed,
		Check:   check,
		Diff:    snakeFields(result.Fields),
	}
	if resource, ok := panel.SnakeKeys(result.Resource).(map[string]any); ok {
		report.Resource = resource
	}

	out, err := yaml.Marshal(report)
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(cmd.OutOrStdout(), string(out))
	return err
}

func snakeFields(fields []string) []string {
	if len(fields) == 0 {
		return nil
	}
	converted := make([]string, len(fields))
	for i, name := range fields {
		converted[i] = panel.ToSnakeCase(name)
	}
	return converted
}
