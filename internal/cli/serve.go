package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/highclaw/webchat-channel/internal/devserver"
	"github.com/highclaw/webchat-channel/internal/system/logger"
)

var (
	flagServeAddr  string
	flagServeToken string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a local web-chat server for development",
	Long: `Run a minimal chat-room server exposing the native protocol: GET/POST
/api/messages and a WebSocket endpoint at /ws. Point the channel's wsUrl or
apiUrl at it to test without a real deployment.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := logger.New(logger.DefaultConfig())
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		defer mgr.Close()

		srv := devserver.New(mgr.NewLogger(), flagServeToken)
		return srv.Run(flagServeAddr)
	},
}

func init() {
	serveCmd.Flags().StringVar(&flagServeAddr, "addr", ":8080", "listen address")
	serveCmd.Flags().StringVar(&flagServeToken, "token", "", "require this bearer token (empty disables auth)")
}
