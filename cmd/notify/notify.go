// Package notify implements the notify command, which sends one form
// submission from the command line.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/australis-energy/leadgate/internal/notification"
	"github.com/australis-energy/leadgate/internal/runtime"
)

// Command returns a cobra command that sends a submission through the
// communications function.
func Command(rt *runtime.Context) *cobra.Command {
	var (
		fields     []string
		token      string
		optimistic bool
		dryRun     bool
		wait       time.Duration
	)

	cmd := &cobra.Command{
		Use:   "notify <category>",
		Short: "Send a form submission",
		Long: `Send one form submission through the communications function.

Categories: ` + categoryList() + `

Examples:
  # Contact form
  leadgate notify contact --field name="Ada" --field email=ada@example.com \
    --field subject=Hello --field message="Testing the gateway"

  # Render the request without sending it
  leadgate notify newsletter --field email=ada@example.com --dry-run

  # Background delivery with retries, waiting up to 30s for it to finish
  leadgate notify support --optimistic --wait=30s --field ...`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			category, err := notification.ParseCategory(args[0])
			if err != nil {
				return err
			}
			parsed, err := parseFields(fields)
			if err != nil {
				return err
			}

			opts := []notification.Option{notification.WithLogger(rt.Logger("notification"))}
			if token != "" {
				opts = append(opts, notification.WithChallengeProvider(notification.StaticChallenge(token)))
			}
			client := notification.NewClient(notification.ConfigFromSettings(rt.Settings), opts...)

			out := cmd.OutOrStdout()

			if dryRun {
				_ = client.Close(context.Background())
				req, err := client.Build(category, parsed)
				if err != nil {
					return err
				}
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(req)
			}

			var result notification.Result
			if optimistic {
				result = client.SendOptimistic(cmd.Context(), category, parsed)
			} else {
				result = client.Send(cmd.Context(), category, parsed)
			}

			ctx, cancel := context.WithTimeout(context.WithoutCancel(cmd.Context()), wait)
			defer cancel()
			closeErr := client.Close(ctx)

			if !result.Success {
				return fmt.Errorf("notification failed: %s", result.Error)
			}
			fmt.Fprintln(out, result.Message)
			if closeErr != nil {
				return fmt.Errorf("background delivery did not finish: %w", closeErr)
			}
			if optimistic {
				fmt.Fprintf(out, "Delivered: %d\n", client.Delivered())
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&fields, "field", "f", nil, "Form field in key=value form, repeatable")
	cmd.Flags().StringVar(&token, "challenge-token", "", "Challenge token sent with the submission when no recaptchaToken field is given")
	cmd.Flags().BoolVar(&optimistic, "optimistic", false, "Accept immediately and deliver in the background with retries")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the rendered request instead of sending it")
	cmd.Flags().DurationVar(&wait, "wait", 30*time.Second, "How long to wait for background delivery before exiting")

	return cmd
}

func categoryList() string {
	names := make([]string, 0, len(notification.Categories()))
	for _, c := range notification.Categories() {
		names = append(names, string(c))
	}
	return strings.Join(names, ", ")
}

func parseFields(pairs []string) (notification.Fields, error) {
	fields := make(notification.Fields, len(pairs))
	for _, kv := range pairs {
		key, value, ok := strings.Cut(kv, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid field format: %s (expected key=value)", kv)
		}
		fields[key] = value
	}
	return fields, nil
}
