package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quarrylabs/quarry/pkg/session"
)

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init <path>",
		Short: "Create a new project database",
		Long: `Create a new, empty project database at the given path.

Fails if a file already exists there. Once created, point other commands
at it with --project.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := session.New(session.Options{Logger: getLogger(cmd.Context())})
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			if err := s.NewProject(cmd.Context(), args[0]); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Created project %s\n", args[0])
			return nil
		},
	}
}
