// Package geo implements the geo command group for querying the
// geoservices function from the command line.
package geo

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/australis-energy/leadgate/internal/geoservices"
	"github.com/australis-energy/leadgate/internal/runtime"
)

// Command returns the geo command with its subcommands.
func Command(rt *runtime.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "geo",
		Short: "Query the geoservices function",
	}

	newClient := func() *geoservices.Client {
		return geoservices.NewClient(geoservices.ConfigFromSettings(rt.Settings),
			geoservices.WithLogger(rt.Logger("geoservices")))
	}

	cmd.AddCommand(
		typesCommand(newClient),
		statusCommand(newClient),
		validateCommand(newClient),
		constraintsCommand(newClient),
		healthCommand(newClient),
	)
	return cmd
}

type clientFactory func() *geoservices.Client

func typesCommand(newClient clientFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List available calculation types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newClient()
			defer client.Close()

			types, err := client.CalculationTypes(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), types)
		},
	}
}

func statusCommand(newClient clientFactory) *cobra.Command {
	var wait bool

	cmd := &cobra.Command{
		Use:   "status <execution-id>",
		Short: "Show calculation status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newClient()
			defer client.Close()

			var (
				status *geoservices.CalculationStatus
				err    error
			)
			if wait {
				status, err = client.PollForCompletion(cmd.Context(), args[0], 0, 0)
			} else {
				status, err = client.CalculationStatus(cmd.Context(), args[0])
			}
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), status)
		},
	}

	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Poll until the calculation completes or fails")
	return cmd
}

func validateCommand(newClient clientFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <geojson-file|->",
		Short: "Validate a site geometry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			geometry, err := readGeometry(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}

			client := newClient()
			defer client.Close()

			result, err := client.ValidateGeometry(cmd.Context(), geometry)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}
}

func constraintsCommand(newClient clientFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "constraints <geojson-file|->",
		Short: "List constraint layers intersecting an area",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			geometry, err := readGeometry(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}

			client := newClient()
			defer client.Close()

			result, err := client.Constraints(cmd.Context(), geometry)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}
}

func healthCommand(newClient clientFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check geoservices health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newClient()
			defer client.Close()

			health, err := client.Health(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), health)
		},
	}
}

// readGeometry reads GeoJSON from path, or from stdin when path is "-".
func readGeometry(stdin io.Reader, path string) (json.RawMessage, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read geometry: %w", err)
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("geometry in %s is not valid JSON", path)
	}
	return json.RawMessage(data), nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
