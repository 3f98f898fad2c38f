package main

import (
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/CCAgentOrg/nanobot-skills/internal/actions"
	"github.com/CCAgentOrg/nanobot-skills/pkg/mcp"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve workflows over MCP on stdio",
	Long: `Serve exposes the engine as an MCP server speaking JSON-RPC on
stdin and stdout. Workflows pause at approval gates exactly as they do
under run; the client approves through the lobster.approve tool and
resumes with lobster.resume.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		// Stdio carries the protocol, so interactive prompts get an
		// empty reader and write to stderr. A manual_approval step fails
		// fast instead of corrupting the stream.
		reg, err := newRegistry(actions.BuiltinConfig{
			In:  strings.NewReader(""),
			Out: os.Stderr,
		})
		if err != nil {
			return err
		}

		srv, err := mcp.NewServer(mcp.ServerConfig{
			Store:    st,
			Registry: reg,
			Logger:   logger,
		})
		if err != nil {
			return err
		}

		logger.Info("mcp server listening on stdio")
		return srv.Serve(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
