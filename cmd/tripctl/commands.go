package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"

	"github.com/Sternrassler/tripcost/internal/app"
	"github.com/Sternrassler/tripcost/pkg/ledger"
	"github.com/Sternrassler/tripcost/pkg/trip"
)

const moneyFormat = "#,###.##"

// opener builds the wired application for a single command.
type opener func(ctx context.Context) (*app.App, error)

func newApp(out io.Writer, open opener) *cli.Command {
	root := &cli.Command{
		Name:      "tripctl",
		Usage:     "Matchday trip cost administration",
		Writer:    out,
		ErrWriter: out,
	}

	root.Commands = []*cli.Command{
		{
			Name:  "stats",
			Usage: "show request ledger totals and the cache hit rate",
			Action: withApp(open, func(ctx context.Context, _ *cli.Command, a *app.App) error {
				stats, err := a.Ledger.Stats(ctx)
				if err != nil {
					return fmt.Errorf("ledger stats: %w", err)
				}
				fmt.Fprintf(out, "Requests:  %s\n", humanize.Comma(stats.Total))
				fmt.Fprintf(out, "Hits:      %s\n", humanize.Comma(stats.Hits))
				fmt.Fprintf(out, "Misses:    %s\n", humanize.Comma(stats.Misses))
				fmt.Fprintf(out, "Hit rate:  %s%%\n", humanize.FormatFloat(moneyFormat, stats.HitRate))
				return nil
			}),
		},
		{
			Name:  "clear-cache",
			Usage: "delete every cached response",
			Action: withApp(open, func(ctx context.Context, _ *cli.Command, a *app.App) error {
				n, err := a.Store.ClearAll(ctx)
				if err != nil {
					return fmt.Errorf("clear cache: %w", err)
				}
				fmt.Fprintf(out, "Cleared %s cache entries\n", humanize.Comma(n))
				return nil
			}),
		},
		{
			Name:  "clear-expired",
			Usage: "delete cached responses past their expiry",
			Action: withApp(open, func(ctx context.Context, _ *cli.Command, a *app.App) error {
				n, err := a.Store.ClearExpired(ctx)
				if err != nil {
					return fmt.Errorf("clear expired: %w", err)
				}
				fmt.Fprintf(out, "Cleared %s expired entries\n", humanize.Comma(n))
				return nil
			}),
		},
		{
			Name:  "ticket",
			Usage: "estimate a ticket price for a league and pairing",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "league", Usage: "league name, e.g. \"Premier League\"", Required: true},
				&cli.StringFlag{Name: "home", Usage: "home team", Required: true},
				&cli.StringFlag{Name: "away", Usage: "away team", Required: true},
				&cli.FloatFlag{Name: "flight", Usage: "flight cost to add"},
				&cli.FloatFlag{Name: "hotel", Usage: "hotel cost to add"},
			},
			Action: withApp(open, func(_ context.Context, cmd *cli.Command, a *app.App) error {
				ticket, total := a.Calculator.TicketTotal(
					cmd.String("league"), cmd.String("home"), cmd.String("away"),
					cmd.Float("flight"), cmd.Float("hotel"),
				)
				fmt.Fprintf(out, "Ticket:  €%s\n", humanize.FormatFloat(moneyFormat, ticket))
				fmt.Fprintf(out, "Total:   €%s\n", humanize.FormatFloat(moneyFormat, total))
				return nil
			}),
		},
		{
			Name:  "trip",
			Usage: "estimate the full cost of travelling to a fixture",
			Flags: []cli.Flag{
				&cli.IntFlag{Name: "fixture", Usage: "api-sports fixture id", Required: true},
				&cli.StringFlag{Name: "origin", Usage: "departure city", Required: true},
				&cli.StringFlag{Name: "actor", Usage: "actor recorded in the ledger", Value: "tripctl"},
				&cli.BoolFlag{Name: "json", Usage: "print the raw result"},
			},
			Action: withApp(open, func(ctx context.Context, cmd *cli.Command, a *app.App) error {
				ctx = ledger.WithActor(ctx, cmd.String("actor"))
				res, err := a.Calculator.Calculate(ctx, int(cmd.Int("fixture")), cmd.String("origin"))
				if err != nil {
					return err
				}
				if cmd.Bool("json") {
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					return enc.Encode(res)
				}
				printTrip(out, res)
				return nil
			}),
		},
	}

	sort.Slice(root.Commands, func(i, j int) bool {
		return root.Commands[i].Name < root.Commands[j].Name
	})
	return root
}

// withApp opens the application around action and drains it afterwards so
// ledger records written by the action are persisted.
func withApp(open opener, action func(context.Context, *cli.Command, *app.App) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		a, err := open(ctx)
		if err != nil {
			return err
		}
		defer a.Close()
		return action(ctx, cmd, a)
	}
}

func printTrip(out io.Writer, res *trip.Result) {
	f := res.Fixture
	fmt.Fprintf(out, "%s vs %s (%s)\n", f.HomeTeam, f.AwayTeam, f.League)
	fmt.Fprintf(out, "%s, %s, %s\n", f.Venue, f.City, f.Date.Format("Mon 2 Jan 2006 15:04 MST"))
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Flight:  €%s%s\n", humanize.FormatFloat(moneyFormat, res.Costs.Flight), link(res.Links.Flight))
	fmt.Fprintf(out, "Hotel:   €%s%s\n", humanize.FormatFloat(moneyFormat, res.Costs.Hotel), link(res.Links.Hotel))
	fmt.Fprintf(out, "Ticket:  €%s\n", humanize.FormatFloat(moneyFormat, res.Costs.Ticket))
	fmt.Fprintf(out, "Total:   €%s\n", humanize.FormatFloat(moneyFormat, res.Costs.Total))
	if len(res.Warnings) > 0 {
		fmt.Fprintf(out, "\nWarnings: %s\n", strings.Join(res.Warnings, "; "))
	}
}

func link(url string) string {
	if url == "" {
		return ""
	}
	return "  " + url
}
