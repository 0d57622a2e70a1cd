// Package cli implements the chatlog command line.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/codewandler/chatlog-go/core/actor"
	"github.com/codewandler/chatlog-go/core/chatlog"
	"github.com/codewandler/chatlog-go/internal/backend"
	"github.com/codewandler/chatlog-go/internal/config"
	"github.com/codewandler/chatlog-go/ports/kv"
)

// session is what every subcommand runs against.
type session struct {
	cfg    *config.Config
	log    *slog.Logger
	store  kv.Store
	close  backend.CloseFunc
	router *chatlog.Router
	client *chatlog.Client
}

func (s *session) shutdown() error {
	if s.router != nil {
		s.router.Stop()
		s.router = nil
	}
	if s.close != nil {
		closeFn := s.close
		s.close = nil
		return closeFn()
	}
	return nil
}

// Execute runs the command line with args and releases the store afterwards,
// whether or not the command failed.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	s := &session{}
	root := newRootCmd(s)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	return errors.Join(err, s.shutdown())
}

func newRootCmd(s *session) *cobra.Command {
	var (
		configFile string
		envFile    string
	)

	root := &cobra.Command{
		Use:           "chatlog",
		Short:         "Append to and read persistent chat logs",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(config.LoadOptions{ConfigFile: configFile, EnvFile: envFile})
			if err != nil {
				return err
			}
			s.cfg = cfg
			s.log = cfg.Logger(cmd.ErrOrStderr())

			s.store, s.close, err = backend.Open(cmd.Context(), cfg, s.log)
			if err != nil {
				return err
			}
			s.router = chatlog.NewRouter(s.store, chatlog.Options{
				Logger:      s.log,
				MailboxSize: cfg.MailboxSize,
				OnError: func(f actor.Failure) {
					s.log.Error("message failed", slog.String("actor", f.ActorID), slog.String("msg_type", f.MsgType), slog.Any("error", f.Err))
				},
			})
			s.client = chatlog.NewClient(s.router, chatlog.ClientOptions{
				Logger:         s.log,
				RequestTimeout: cfg.RequestTimeout,
			})
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (yaml, json or toml)")
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the environment is read")

	root.AddCommand(
		newAppendCmd(s),
		newLogCmd(s),
		newResetCmd(s),
		newSchemaCmd(),
	)
	return root
}

func newAppendCmd(s *session) *cobra.Command {
	var sender string
	cmd := &cobra.Command{
		Use:   "append <key> <text...>",
		Short: "Append a chat line to the log at key",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := chatlog.Key(args[0])
			if sender == "" {
				sender = args[0]
			}
			var failed error
			c := chatlog.NewClient(s.router, chatlog.ClientOptions{
				Logger:         s.log,
				RequestTimeout: s.cfg.RequestTimeout,
				OnAppendError:  func(_ chatlog.Key, _ chatlog.Entry, err error) { failed = err },
			})

			entry := chatlog.Entry{Sender: sender, Text: strings.Join(args[1:], " ")}
			if err := c.Append(cmd.Context(), key, entry); err != nil {
				return err
			}
			// the read is queued behind the append, so it observes it
			log, err := c.ReadLog(cmd.Context(), key)
			if err != nil {
				return err
			}
			if failed != nil {
				return failed
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s: %d entries\n", key, log.Len())
			return err
		},
	}
	cmd.Flags().StringVarP(&sender, "sender", "s", "", "sender name (defaults to the key)")
	return cmd
}

func newLogCmd(s *session) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "log <key>",
		Short: "Print the log at key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := s.client.ReadLog(cmd.Context(), chatlog.Key(args[0]))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(log)
			}

			// plain text unless out is a terminal
			r := lipgloss.NewRenderer(out)
			timeStyle := r.NewStyle().Faint(true)
			senderStyle := r.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
			for _, e := range log.Entries {
				line := fmt.Sprintf("%s  %s: %s\n",
					timeStyle.Render(e.At.Format(time.RFC3339)),
					senderStyle.Render(e.Sender),
					e.Text,
				)
				if _, err := io.WriteString(out, line); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the log as JSON")
	return cmd
}

var errNotConfirmed = errors.New("reset deletes every chat log; pass --yes to confirm")

func newResetCmd(s *session) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete every chat log in the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errNotConfirmed
			}
			if err := s.store.Reset(cmd.Context()); err != nil {
				return err
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), "store reset")
			return err
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the reset")
	return cmd
}

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON schema of the config file",
		Args:  cobra.NoArgs,
		// no store needed
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(config.JSONSchema())
		},
	}
}
