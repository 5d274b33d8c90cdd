package main

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/iliyamo/showtime-booking/internal/app"
	"github.com/iliyamo/showtime-booking/internal/config"
)

// opener builds the dependencies for a command.  Tests replace it.
var opener = func(cmd *cobra.Command) (*app.App, error) {
	_ = godotenv.Load()
	return app.Open(cmd.Context(), config.LoadBackend())
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "bookingctl",
		Short:         "Operate the showtime booking service",
		Long:          `Inspect seats, bookings and leases, and run the reclamation sweep by hand.`,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(newSweepCmd(), newSeatsCmd(), newBookingsCmd(), newHistoryCmd(), newLeasesCmd(), newTokenCmd())
	return root
}

// withApp opens the dependencies, runs fn and closes them again.
func withApp(cmd *cobra.Command, fn func(a *app.App) error) error {
	a, err := opener(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}
