package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/iliyamo/showtime-booking/internal/app"
	"github.com/iliyamo/showtime-booking/internal/lease"
	"github.com/iliyamo/showtime-booking/internal/middleware"
	"github.com/iliyamo/showtime-booking/internal/model"
	"github.com/iliyamo/showtime-booking/internal/repository"
)

func newSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run one reclamation pass",
		Long:  `Release seats whose hold expired and expire bookings whose payment window lapsed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app.App) error {
				r, err := a.Sweeper.SweepOnce(cmd.Context())
				renderReport(cmd.OutOrStdout(), r)
				return err
			})
		},
	}
}

func newSeatsCmd() *cobra.Command {
	var showtimeID uint64
	var status string
	cmd := &cobra.Command{
		Use:   "seats",
		Short: "List the seats of a showtime",
		RunE: func(cmd *cobra.Command, args []string) error {
			f := repository.SeatFilter{ShowtimeID: showtimeID}
			if status != "" {
				for _, s := range strings.Split(status, ",") {
					st := model.SeatStatus(strings.TrimSpace(s))
					if !st.Valid() {
						return errors.New("unknown seat status " + s)
					}
					f.Statuses = append(f.Statuses, st)
				}
			}
			return withApp(cmd, func(a *app.App) error {
				seats, err := a.Store.FindSeats(cmd.Context(), f)
				if err != nil {
					return err
				}
				renderSeats(cmd.OutOrStdout(), seats)
				return nil
			})
		},
	}
	cmd.Flags().Uint64Var(&showtimeID, "showtime", 0, "showtime id")
	cmd.Flags().StringVar(&status, "status", "", "comma separated seat statuses to keep")
	_ = cmd.MarkFlagRequired("showtime")
	return cmd
}

func newBookingsCmd() *cobra.Command {
	var showtimeID uint64
	cmd := &cobra.Command{
		Use:   "bookings",
		Short: "List the bookings of a showtime",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app.App) error {
				list, err := a.Engine.ListBookingsByShowtime(cmd.Context(), showtimeID)
				if err != nil {
					return err
				}
				renderBookings(cmd.OutOrStdout(), list)
				return nil
			})
		},
	}
	cmd.Flags().Uint64Var(&showtimeID, "showtime", 0, "showtime id")
	_ = cmd.MarkFlagRequired("showtime")
	return cmd
}

func newHistoryCmd() *cobra.Command {
	var userID uint64
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show a user's bookings grouped by payment status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app.App) error {
				h, err := a.Engine.ListBookingHistory(cmd.Context(), userID)
				if err != nil {
					return err
				}
				renderHistory(cmd.OutOrStdout(), h)
				return nil
			})
		},
	}
	cmd.Flags().Uint64Var(&userID, "user", 0, "user id")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newLeasesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "leases",
		Short: "List outstanding hold and payment leases",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app.App) error {
				rows, err := collectLeases(cmd.Context(), a.Leases)
				if err != nil {
					return err
				}
				renderLeases(cmd.OutOrStdout(), rows, time.Now())
				return nil
			})
		},
	}
}

type leaseRow struct {
	Key   string
	Lease model.Lease
	Err   error
}

func collectLeases(ctx context.Context, store lease.Store) ([]leaseRow, error) {
	var rows []leaseRow
	for _, prefix := range []string{lease.HoldPrefix, lease.PaymentPrefix} {
		keys, err := store.ScanKeys(ctx, prefix)
		if err != nil {
			return nil, err
		}
		sort.Strings(keys)
		for _, k := range keys {
			raw, ok, err := store.Get(ctx, k)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			l, err := lease.Decode(k, raw)
			rows = append(rows, leaseRow{Key: k, Lease: l, Err: err})
		}
	}
	return rows, nil
}

func newTokenCmd() *cobra.Command {
	var userID uint64
	var role string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an access token signed with JWT_SECRET",
		Long:  `Mint an access token for smoke tests and operator calls such as confirm.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()
			secret := os.Getenv("JWT_SECRET")
			if secret == "" {
				return errors.New("JWT_SECRET is not set")
			}
			role = strings.ToUpper(role)
			if role != middleware.RoleAdmin && role != middleware.RoleCustomer {
				return errors.New("role must be ADMIN or CUSTOMER")
			}
			tok, exp, err := middleware.NewAccessToken(secret, userID, role, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n# expires %s\n", tok, exp.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().Uint64Var(&userID, "user", 0, "user id placed in the sub claim")
	cmd.Flags().StringVar(&role, "role", middleware.RoleCustomer, "ADMIN or CUSTOMER")
	cmd.Flags().DurationVar(&ttl, "ttl", 15*time.Minute, "token lifetime")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
