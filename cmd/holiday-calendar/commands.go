package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/username/holiday-calendar/internal/calendar"
	"github.com/username/holiday-calendar/internal/server"
)

func isHolidayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "is-holiday [date]",
		Short: "Print true if the date (default today) is a day off",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBoolQuery(cmd, args, func(e *calendar.Engine) func(context.Context, string) (bool, error) {
				return e.IsHoliday
			})
		},
	}
}

func isWorkdayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "is-workday [date]",
		Short: "Print true if the date (default today) is a working day",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBoolQuery(cmd, args, func(e *calendar.Engine) func(context.Context, string) (bool, error) {
				return e.IsWorkday
			})
		},
	}
}

func runBoolQuery(cmd *cobra.Command, args []string, pick func(*calendar.Engine) func(context.Context, string) (bool, error)) error {
	a, err := initializeApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := pick(a.engine)(cmd.Context(), dateArg(args))
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), result)
	return nil
}

func infoCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "info [date]",
		Short: "Show holiday details for the date (default today)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := initializeApp(false)
			if err != nil {
				return err
			}
			defer a.Close()

			info, err := a.engine.GetInfo(cmd.Context(), dateArg(args))
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetEscapeHTML(false)
				return enc.Encode(info)
			}
			printInfo(cmd.OutOrStdout(), info)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")

	return cmd
}

func printInfo(w io.Writer, info *calendar.DayInfo) {
	fmt.Fprintf(w, "Date:     %s (%s)\n", info.Date, info.WeekdayName)
	fmt.Fprintf(w, "Holiday:  %t\n", info.IsHoliday)
	fmt.Fprintf(w, "Workday:  %t\n", info.IsWorkday)
	if info.Name != "" {
		fmt.Fprintf(w, "Name:     %s\n", info.Name)
	}
}

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve queries over HTTP until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := initializeApp(true)
			if err != nil {
				return err
			}
			defer a.Close()

			if addr == "" {
				addr = a.cfg.Server.Addr
			}

			srv := server.New(a.engine, addr, a.cfg.Server.GetShutdownTimeout(), logger)
			return srv.Start()
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides server.addr)")

	return cmd
}

func refreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh [year]",
		Short: "Refetch a year (default current year) and update the cache",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := initializeApp(false)
			if err != nil {
				return err
			}
			defer a.Close()

			now := time.Now().In(a.cfg.Calendar.GetLocation())
			year := now.Year()
			if len(args) == 1 {
				year, err = strconv.Atoi(args[0])
				if err != nil || year <= 0 {
					return fmt.Errorf("invalid year %q", args[0])
				}
			}

			record, err := a.manager.Refresh(cmd.Context(), year, now)
			if err != nil {
				return err
			}

			holidays, workdays := record.Counts()
			logger.Info("Year refreshed",
				zap.Int("year", year),
				zap.Int("holidays", holidays),
				zap.Int("adjusted_workdays", workdays))

			fmt.Fprintf(cmd.OutOrStdout(), "Refreshed %d: %d holidays, %d adjusted workdays\n", year, holidays, workdays)
			return nil
		},
	}
}

func cacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect the holiday cache",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "List cached years",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := initializeApp(false)
			if err != nil {
				return err
			}
			defer a.Close()

			printCache(cmd.OutOrStdout(), a.cfg.Cache.Backend, a.manager.Snapshot(cmd.Context()))
			return nil
		},
	})

	return cmd
}

func printCache(w io.Writer, backend string, cf *calendar.CacheFile) {
	fmt.Fprintf(w, "Backend: %s\n", backend)
	years := cf.SortedYears()
	if len(years) == 0 {
		fmt.Fprintln(w, "No cached years")
		return
	}

	fmt.Fprintln(w, "  Year | Holidays | Workdays | Fetched at           | Stale")
	fmt.Fprintln(w, "-------+----------+----------+----------------------+------")
	for _, year := range years {
		record, _ := cf.GetYear(year)
		holidays, workdays := record.Counts()
		fmt.Fprintf(w, "  %4d | %8d | %8d | %s | %t\n",
			year,
			holidays,
			workdays,
			record.FetchedAt.UTC().Format("2006-01-02 15:04:05Z"),
			record.Stale)
	}
}

func dateArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
