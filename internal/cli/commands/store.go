package commands

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/refproxy/internal/cli/ui"
	"github.com/conduit-lang/refproxy/internal/orm/store"
)

// NewStoreCommand creates the store command
func NewStoreCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Read and write documents in the configured store",
		Long: `Access the document store proxies load from. The backend is selected by
store.driver in refproxy.yml (memory, redis, sqlite, sqlite3, postgres or pgx).

Examples:
  refproxy store put example.com/app/model.User 42 user.json
  refproxy store get example.com/app/model.User 42
  refproxy store list example.com/app/model.User`,
	}

	cmd.AddCommand(newStoreGetCommand(opts))
	cmd.AddCommand(newStorePutCommand(opts))
	cmd.AddCommand(newStoreListCommand(opts))
	cmd.AddCommand(newStoreDeleteCommand(opts))

	return cmd
}

func openStore(cmd *cobra.Command, opts *globalOptions) (*environment, store.Store, error) {
	env, err := newEnvironment(cmd, opts)
	if err != nil {
		return nil, nil, err
	}

	s, err := store.Open(cmd.Context(), env.cfg.StoreOptions())
	if err != nil {
		env.close()
		return nil, nil, err
	}
	return env, s, nil
}

func newStoreGetCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <class> <id>",
		Short: "Print a stored document",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, s, err := openStore(cmd, opts)
			if err != nil {
				return err
			}
			defer env.close()
			defer s.Close()

			doc, err := s.Get(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}

			var pretty bytes.Buffer
			if err := json.Indent(&pretty, doc, "", "  "); err != nil {
				pretty.Reset()
				pretty.Write(doc)
			}
			fmt.Fprintln(env.out, pretty.String())
			return nil
		},
	}
}

func newStorePutCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "put <class> <id> [file]",
		Short: "Store a JSON document read from a file or stdin",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				doc []byte
				err error
			)
			if len(args) == 3 && args[2] != "-" {
				doc, err = os.ReadFile(args[2])
			} else {
				doc, err = io.ReadAll(cmd.InOrStdin())
			}
			if err != nil {
				return fmt.Errorf("failed to read document: %w", err)
			}

			doc = bytes.TrimSpace(doc)
			if !json.Valid(doc) {
				return errors.New("document is not valid JSON")
			}

			env, s, err := openStore(cmd, opts)
			if err != nil {
				return err
			}
			defer env.close()
			defer s.Close()

			if err := s.Put(cmd.Context(), args[0], args[1], doc); err != nil {
				return err
			}

			ui.WriteSuccess(env.out, fmt.Sprintf("Stored %s %s", args[0], args[1]), env.noColor)
			return nil
		},
	}
}

func newStoreListCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list <class>",
		Short: "List the identifiers stored for a class",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, s, err := openStore(cmd, opts)
			if err != nil {
				return err
			}
			defer env.close()
			defer s.Close()

			ids, err := s.List(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			for _, id := range ids {
				fmt.Fprintln(env.out, id)
			}
			return nil
		},
	}
}

func newStoreDeleteCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <class> <id>",
		Short: "Remove a stored document",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, s, err := openStore(cmd, opts)
			if err != nil {
				return err
			}
			defer env.close()
			defer s.Close()

			if err := s.Delete(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}

			ui.WriteSuccess(env.out, fmt.Sprintf("Deleted %s %s", args[0], args[1]), env.noColor)
			return nil
		},
	}
}
