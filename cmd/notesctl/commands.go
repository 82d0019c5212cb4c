package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"notes-api/config"
	"notes-api/domain"
	"notes-api/storage"
)

var (
	successText = color.New(color.FgGreen).SprintFunc()
	errorText   = color.New(color.FgRed).SprintFunc()
	faintText   = color.New(color.Faint).SprintFunc()
)

var errNoMigrations = errors.New("store does not support migrations")

// session holds the repository opened for a single invocation.
type session struct {
	lookup func(string) (string, bool)
	cfg    config.Config
	repo   storage.NoteRepository
	close  func()
}

// run executes args against a fresh command tree and releases the store
// afterwards, whether or not the command succeeded.
func run(ctx context.Context, lookup func(string) (string, bool), args []string, out io.Writer) error {
	s := &session{lookup: lookup, close: func() {}}
	defer func() { s.close() }()

	root := s.rootCmd()
	root.SetOut(out)
	root.SetErr(out)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

func (s *session) rootCmd() *cobra.Command {

	root := &cobra.Command{
		Use:           "notesctl",
		Short:         "Manage notes directly in the configured store",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !needsStore(cmd) {
				return nil
			}
			cfg, err := config.Load(s.lookup)
			if err != nil {
				return err
			}
			repo, closeRepo, err := storage.Open(cmd.Context(), cfg.StorageOptions())
			if err != nil {
				return err
			}
			s.cfg, s.repo, s.close = cfg, repo, closeRepo
			return nil
		},
	}

	root.AddCommand(
		s.migrateCmd(),
		s.createCmd(),
		s.getCmd(),
		s.deleteCmd(),
	)
	return root
}

// needsStore reports whether cmd works on notes. cobra's help and
// completion commands run without any configuration.
func needsStore(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		switch name := c.Name(); {
		case name == "help", name == "completion", strings.HasPrefix(name, "__complete"):
			return false
		}
	}
	return true
}

func (s *session) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the notes schema if it does not exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, ok := s.repo.(storage.Migrator)
			if !ok {
				return errNoMigrations
			}
			if err := m.Migrate(cmd.Context()); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), successText("Schema is up to date ("+s.cfg.Store+")"))
			return nil
		},
	}
}

func (s *session) createCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create <content>",
		Short: "Create a note and print its id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			confidential, _ := cmd.Flags().GetBool("confidential")
			note, err := s.repo.Create(cmd.Context(), domain.CreateNoteInput{
				Content:      args[0],
				Confidential: confidential,
			})
			if err != nil {
				return fmt.Errorf("create note: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), note.ID.String())
			return nil
		},
	}
	cmd.Flags().BoolP("confidential", "c", false, "mark the note confidential")
	return cmd
}

func (s *session) getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Print a note as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid note id %q", args[0])
			}
			note, found, err := s.repo.Find(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("get note: %w", err)
			}
			if !found {
				return fmt.Errorf("note %s not found", id)
			}
			out, err := sonic.ConfigStd.MarshalIndent(note, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
}

func (s *session) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a note",
		Long:  `Delete a note by id. Deleting a missing note succeeds.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid note id %q", args[0])
			}
			if err := s.repo.Delete(cmd.Context(), id); err != nil {
				return fmt.Errorf("delete note: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), successText("Deleted note ")+faintText(id.String()))
			return nil
		},
	}
}
