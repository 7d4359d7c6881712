package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jason-s-yu/moviematch/internal/backend"
	"github.com/jason-s-yu/moviematch/internal/config"
	"github.com/jason-s-yu/moviematch/internal/models"
	"github.com/jason-s-yu/moviematch/internal/room"
)

// commandContext opens the engine lazily so --help works without a backend.
type commandContext struct {
	open   func(ctx context.Context) (*room.Engine, func(), error)
	asJSON bool
}

func newCommandContext() *commandContext {
	return &commandContext{open: openEngine}
}

func openEngine(ctx context.Context) (*room.Engine, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	be, err := backend.Open(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return room.NewEngine(be.Store, room.WithLogger(logger)), be.Close, nil
}

func (c *commandContext) withEngine(cmd *cobra.Command, fn func(*room.Engine) error) error {
	engine, closeFn, err := c.open(cmd.Context())
	if err != nil {
		return err
	}
	defer closeFn()
	return fn(engine)
}

func newRootCommand(ctx *commandContext) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "roomctl",
		Short:         "Inspect MovieMatch rooms",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	rootCmd.PersistentFlags().BoolVar(&ctx.asJSON, "json", false, "Print raw JSON")

	rootCmd.AddCommand(newShowCommand(ctx))
	rootCmd.AddCommand(newResultsCommand(ctx))
	rootCmd.AddCommand(newCheckTimeoutCommand(ctx))
	return rootCmd
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show CODE",
		Short: "Show a room's state and members",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEngine(cmd, func(e *room.Engine) error {
				r, err := e.GetRoom(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if ctx.asJSON {
					return writeJSON(out, r)
				}
				printRoom(out, r)
				return nil
			})
		},
	}
}

func newResultsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "results CODE",
		Short: "Rank a room's movies by yes votes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEngine(cmd, func(e *room.Engine) error {
				res, err := e.ComputeResults(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if ctx.asJSON {
					return writeJSON(out, res)
				}
				rows := make([][]string, 0, len(res.Results))
				for i, r := range res.Results {
					rows = append(rows, []string{
						strconv.Itoa(i + 1),
						r.ID,
						strconv.Itoa(r.YesVotes),
						strconv.Itoa(r.NoVotes),
						strconv.Itoa(r.TotalVotes),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"#", "Movie", "Yes", "No", "Total"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignRight, alignRight, alignRight},
				))
				fmt.Fprintf(out, "%d movies, %d votes\n", res.TotalMovies, res.TotalVotes)
				return nil
			})
		},
	}
}

func newCheckTimeoutCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check-timeout CODE...",
		Short: "Reveal rooms whose voting window has run out",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEngine(cmd, func(e *room.Engine) error {
				out := cmd.OutOrStdout()
				for _, code := range args {
					fired, err := e.CheckTimeout(cmd.Context(), code)
					if err != nil {
						return fmt.Errorf("%s: %w", code, err)
					}
					status := "still voting or idle"
					if fired {
						status = "revealed"
					}
					fmt.Fprintf(out, "%s: %s\n", strings.ToUpper(code), status)
				}
				return nil
			})
		},
	}
}

func printRoom(out io.Writer, r *models.Room) {
	gs := r.GameState
	state := "active"
	if !r.Active {
		state = "closed"
	}
	fmt.Fprintf(out, "Room %s (%s), created by %s at %s\n", r.Code, state, r.Creator, r.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(out, "Phase: %s", gs.Phase)
	if gs.CurrentMovieID != "" {
		fmt.Fprintf(out, ", round %d on movie %s", gs.Round, gs.CurrentMovieID)
	}
	fmt.Fprintln(out)
	if r.SelectedMovie != nil {
		fmt.Fprintf(out, "Selected: %s by %s\n", r.SelectedMovie.MovieID, r.SelectedMovie.Method)
	}

	users := make([]models.User, 0, len(r.Users))
	for _, u := range r.Users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].JoinedAt.Before(users[j].JoinedAt) })
	rows := make([][]string, 0, len(users))
	for _, u := range users {
		host := ""
		if u.IsHost {
			host = "yes"
		}
		rows = append(rows, []string{u.Name, u.ID, host})
	}
	fmt.Fprintln(out, renderTable([]string{"Name", "User", "Host"}, rows, nil))
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
