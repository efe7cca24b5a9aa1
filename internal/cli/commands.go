package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/highclaw/webchat-channel/internal/config"
	"github.com/highclaw/webchat-channel/internal/connection"
	"github.com/highclaw/webchat-channel/internal/system/logger"
	"github.com/highclaw/webchat-channel/internal/webchat"
)

var (
	flagAccount string
	flagReplyTo string
	flagTimeout time.Duration
)

// newService builds the shared service stack for a command invocation.
func newService() (*webchat.Service, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	mgr, err := logger.New(logger.DefaultConfig())
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	log := mgr.NewLogger()
	pool := connection.NewPool(log, nil)
	return webchat.NewService(cfg, pool, log), log, nil
}

var sendCmd = &cobra.Command{
	Use:   "send <target> <text>",
	Short: "Send a message to a chat or user",
	Long: `Send one text message. Targets take the form "chat:<id>" or "user:<id>";
a bare id is treated as a chat room.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, _, err := newService()
		if err != nil {
			return err
		}
		defer svc.Pool().CloseAll()

		ctx, cancel := context.WithTimeout(cmd.Context(), flagTimeout)
		defer cancel()

		outcome := svc.Send(ctx, flagAccount, args[0], args[1], flagReplyTo)
		if !outcome.OK() {
			return fmt.Errorf("send failed: %s", outcome.Error)
		}
		fmt.Printf("sent (messageId=%s)\n", outcome.MessageID)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show connection status for an account",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		account := config.ResolveAccount(cfg, flagAccount)

		fmt.Printf("Account:    %s\n", account.AccountID)
		fmt.Printf("Enabled:    %v\n", account.Enabled)
		fmt.Printf("Configured: %v\n", account.Configured)
		fmt.Printf("Mode:       %s\n", account.ConnectionMode)
		fmt.Printf("Adapter:    %s\n", account.Adapter)
		fmt.Printf("WS URL:     %s\n", account.WSURL)
		fmt.Printf("API URL:    %s\n", account.APIURL)
		if account.Ruyuan != nil {
			fmt.Printf("Ruyuan:     userId=%d clientType=%d\n", account.Ruyuan.UserID, account.Ruyuan.ClientType)
		}
		return nil
	},
}

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "List configured accounts",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		type row struct {
			AccountID  string `json:"accountId"`
			Enabled    bool   `json:"enabled"`
			Configured bool   `json:"configured"`
			Mode       string `json:"mode"`
			Adapter    string `json:"adapter"`
		}
		var rows []row
		for _, id := range config.ListAccountIDs(cfg) {
			acct := config.ResolveAccount(cfg, id)
			rows = append(rows, row{
				AccountID:  acct.AccountID,
				Enabled:    acct.Enabled,
				Configured: acct.Configured,
				Mode:       acct.ConnectionMode,
				Adapter:    acct.Adapter,
			})
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	},
}

func init() {
	for _, cmd := range []*cobra.Command{sendCmd, monitorCmd, statusCmd} {
		cmd.Flags().StringVarP(&flagAccount, "account", "a", "", "account id (default account when empty)")
	}
	sendCmd.Flags().StringVar(&flagReplyTo, "reply-to", "", "message id to reply to")
	sendCmd.Flags().DurationVar(&flagTimeout, "timeout", 30*time.Second, "overall send timeout")
}
