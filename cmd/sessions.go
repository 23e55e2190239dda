package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/lectern-ai/lectern/db"
	"github.com/lectern-ai/lectern/internal/config"
	"github.com/lectern-ai/lectern/internal/log"
	"github.com/lectern-ai/lectern/internal/session"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect and manage stored conversations",
}

func init() {
	sessionsCmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List conversations, most recently active first",
			Args:  cobra.NoArgs,
			RunE:  runSessionsList,
		},
		&cobra.Command{
			Use:   "show <session-id>",
			Short: "Show a conversation's exchanges",
			Args:  cobra.ExactArgs(1),
			RunE:  runSessionsShow,
		},
		&cobra.Command{
			Use:   "current",
			Short: "Show which session ask and chat continue",
			Args:  cobra.NoArgs,
			RunE:  runSessionsCurrent,
		},
		&cobra.Command{
			Use:   "clear <session-id>",
			Short: "Delete a conversation's exchanges but keep the session",
			Args:  cobra.ExactArgs(1),
			RunE:  runSessionsClear,
		},
		&cobra.Command{
			Use:   "delete <session-id>",
			Short: "Delete a conversation",
			Args:  cobra.ExactArgs(1),
			RunE:  runSessionsDelete,
		},
	)
	rootCmd.AddCommand(sessionsCmd)
}

// withSessionStore opens the session store against the configured database
// and hands it to fn. Session commands never need a model provider, so they
// skip the full application setup.
func withSessionStore(fn func(ctx context.Context, store *session.Store) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger := newLogger()

	if err := db.Migrate(cfg.PostgresURL(), logger); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	pool, err := pgxpool.New(ctx, cfg.PostgresConnectionString())
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	store, err := session.New(pool, logger)
	if err != nil {
		return fmt.Errorf("creating session store: %w", err)
	}

	return fn(ctx, store)
}

func runSessionsList(cmd *cobra.Command, args []string) error {
	return withSessionStore(func(ctx context.Context, store *session.Store) error {
		sessions, err := store.List(ctx, session.DefaultListLimit)
		if err != nil {
			return fmt.Errorf("listing sessions: %w", err)
		}

		if len(sessions) == 0 {
			fmt.Println("No sessions.")
			return nil
		}

		for _, s := range sessions {
			fmt.Printf("%s  created %-16s last active %s\n",
				s.ID, formatAge(s.CreatedAt), formatAge(s.UpdatedAt))
		}
		return nil
	})
}

func runSessionsShow(cmd *cobra.Command, args []string) error {
	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid session ID %q", args[0])
	}

	return withSessionStore(func(ctx context.Context, store *session.Store) error {
		sess, err := store.Get(ctx, id)
		if errors.Is(err, session.ErrSessionNotFound) {
			return fmt.Errorf("session %s not found", id)
		}
		if err != nil {
			return fmt.Errorf("loading session: %w", err)
		}

		exchanges, err := store.Exchanges(ctx, id)
		if err != nil {
			return fmt.Errorf("loading exchanges: %w", err)
		}

		fmt.Printf("Session:     %s\n", sess.ID)
		fmt.Printf("Created:     %s\n", formatAge(sess.CreatedAt))
		fmt.Printf("Last active: %s\n", formatAge(sess.UpdatedAt))
		fmt.Printf("Exchanges:   %d\n", len(exchanges))
		fmt.Println()

		for _, ex := range exchanges {
			fmt.Printf("You> %s\n", ex.Query)
			fmt.Printf("Lectern> %s\n", ex.Answer)
			fmt.Println()
		}
		return nil
	})
}

func runSessionsCurrent(cmd *cobra.Command, args []string) error {
	dir, err := config.Dir()
	if err != nil {
		return fmt.Errorf("locating config directory: %w", err)
	}

	id, err := session.LoadCurrent(dir)
	if err != nil {
		return fmt.Errorf("loading current session: %w", err)
	}
	if id == nil {
		fmt.Println("No current session.")
		return nil
	}
	fmt.Println(id)
	return nil
}

func runSessionsClear(cmd *cobra.Command, args []string) error {
	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid session ID %q", args[0])
	}

	return withSessionStore(func(ctx context.Context, store *session.Store) error {
		if err := store.Clear(ctx, id); err != nil {
			if errors.Is(err, session.ErrSessionNotFound) {
				return fmt.Errorf("session %s not found", id)
			}
			return fmt.Errorf("clearing session: %w", err)
		}
		fmt.Printf("Session %s cleared\n", id)
		return nil
	})
}

func runSessionsDelete(cmd *cobra.Command, args []string) error {
	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid session ID %q", args[0])
	}

	return withSessionStore(func(ctx context.Context, store *session.Store) error {
		if err := store.Delete(ctx, id); err != nil {
			if errors.Is(err, session.ErrSessionNotFound) {
				return fmt.Errorf("session %s not found", id)
			}
			return fmt.Errorf("deleting session: %w", err)
		}

		forgetIfCurrent(id, newLogger())

		fmt.Printf("Session %s deleted\n", id)
		return nil
	})
}

// forgetIfCurrent drops the CLI's current-session state when it points at
// the session that was just deleted.
func forgetIfCurrent(id uuid.UUID, logger log.Logger) {
	dir, err := config.Dir()
	if err != nil {
		return
	}
	current, err := session.LoadCurrent(dir)
	if err != nil || current == nil || *current != id {
		return
	}
	if err := session.ClearCurrent(dir); err != nil {
		logger.Warn("clearing current session state failed", "error", err)
	}
}

// formatAge renders a timestamp relative to now for listings, falling back
// to the date for anything older than a week.
func formatAge(t time.Time) string {
	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return fmt.Sprintf("%d minutes ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%d hours ago", int(diff.Hours()))
	case diff < 7*24*time.Hour:
		return fmt.Sprintf("%d days ago", int(diff.Hours()/24))
	default:
		return t.Format("2006-01-02 15:04")
	}
}
