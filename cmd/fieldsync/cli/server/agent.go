package server

import (
	"fmt"

	"github.com/mwantia/fieldsync/internal/agent"
	"github.com/spf13/cobra"

	config "github.com/mwantia/fieldsync/internal/config/server"
)

func NewAgentCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Start the FieldSync agent",
		Long: `Start the FieldSync agent.

The agent opens and migrates the local record store, connects the handoff
publisher and keeps both available until it is interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadServerConfig()
			if err != nil {
				return fmt.Errorf("failed to load server configuration: %w", err)
			}

			return agent.NewAgent(cfg).Serve(cmd.Context())
		},
	}

	return cmd
}
