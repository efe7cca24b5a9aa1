package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/highclaw/webchat-channel/pkg/pluginsdk"
)

var (
	flagMonitorAll  bool
	flagMonitorEcho bool
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Monitor incoming messages",
	Long: `Connect and print incoming messages until interrupted. With --echo each
message is also answered back into its chat, which makes for a quick
end-to-end connectivity check.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, _, err := newService()
		if err != nil {
			return err
		}
		defer svc.Pool().CloseAll()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		host := &consoleHost{echo: flagMonitorEcho}
		if flagMonitorAll {
			return svc.MonitorAll(ctx, host)
		}
		return svc.Monitor(ctx, flagAccount, host)
	},
}

// consoleHost is a stand-in host runtime for interactive use: it routes every
// peer to a synthetic session and prints inbound messages to stdout.
type consoleHost struct {
	echo bool
}

func (h *consoleHost) ResolveAgentRoute(channel string, peer pluginsdk.Peer) (pluginsdk.AgentRoute, error) {
	return pluginsdk.AgentRoute{
		SessionKey: fmt.Sprintf("%s:%s:%s", channel, peer.Kind, peer.ID),
		AccountID:  peer.ID,
	}, nil
}

func (h *consoleHost) DispatchReply(ctx context.Context, inbound pluginsdk.InboundContext, dispatcher *pluginsdk.ReplyDispatcher) (pluginsdk.DispatchResult, error) {
	ts := time.UnixMilli(inbound.Timestamp).Local().Format("15:04:05")
	fmt.Printf("[%s] %s %s: %s\n", ts, inbound.To, inbound.SenderName, inbound.RawBody)

	if !h.echo {
		return pluginsdk.DispatchResult{}, nil
	}
	err := dispatcher.Dispatch(ctx, pluginsdk.ReplyPayload{
		Text: "echo: " + inbound.RawBody,
	})
	if err != nil {
		return pluginsdk.DispatchResult{}, err
	}
	return pluginsdk.DispatchResult{QueuedFinal: true, FinalCount: dispatcher.FinalCount()}, nil
}

func init() {
	monitorCmd.Flags().BoolVar(&flagMonitorAll, "all", false, "monitor every enabled account")
	monitorCmd.Flags().BoolVar(&flagMonitorEcho, "echo", false, "echo each message back to its chat")
}
