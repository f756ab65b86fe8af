package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/carelinkhq/telecall/internal/appointment"
	"github.com/carelinkhq/telecall/internal/config"
	"github.com/carelinkhq/telecall/internal/ui"
)

var (
	flagApptAPIURL string
	flagApptToken  string
)

var appointmentsCmd = &cobra.Command{
	Use:     "appointments",
	Aliases: []string{"appts", "ls"},
	Short:   "List your booked consultations and their room IDs",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAppointments()
	},
}

func runAppointments() error {
	cfg, err := config.Load(config.Options{
		APIBaseURL: flagApptAPIURL,
		Token:      flagApptToken,
	})
	if err != nil {
		return err
	}
	if cfg.Token == "" {
		return fmt.Errorf("a session token is required: pass --token or set CARELINK_TOKEN")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	api := appointment.NewHTTPClient(cfg.APIBaseURL, cfg.Token)
	appts, err := api.List(ctx)
	if err != nil {
		return err
	}

	ui.PrintTitle("Your appointments")
	fmt.Println(ui.AppointmentTable(appts))
	return nil
}

func init() {
	appointmentsCmd.Flags().StringVar(&flagApptAPIURL, "api", "", "booking API base URL")
	appointmentsCmd.Flags().StringVar(&flagApptToken, "token", "", "CareLink session token")

	rootCmd.AddCommand(appointmentsCmd)
}
