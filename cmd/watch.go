package cmd

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/theapemachine/a2a-relay/pkg/a2a"
	"github.com/theapemachine/a2a-relay/pkg/service/sse"
)

var (
	watchTaskFlag string

	watchCmd = &cobra.Command{
		Use:   "watch",
		Short: "Follow task events published by a relay",
		Long:  "Follows the /events stream of a running relay and prints every status and artifact update until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newClient()
			endpoint := strings.TrimRight(client.BaseURL(), "/") + "/events"

			if watchTaskFlag != "" {
				endpoint += "?taskId=" + url.QueryEscape(watchTaskFlag)
			}

			watcher := sse.NewClient(endpoint)

			if token := client.Token(); token != "" {
				watcher.Headers["Authorization"] = "Bearer " + token
			}

			defer watcher.Close()

			log.Info("watching", "url", endpoint)

			return watcher.Subscribe(cmd.Context(), func(event *sse.Event) {
				decoded, err := event.Decode()

				if err != nil {
					log.Warn("skipping event", "kind", event.Event, "error", err)
					return
				}

				out := cmd.OutOrStdout()

				switch update := decoded.(type) {
				case a2a.TaskStatusUpdateEvent:
					fmt.Fprintf(out, "%s  %s  final=%t\n", update.TaskID, update.Status.State, update.Final)
				case a2a.TaskArtifactUpdateEvent:
					fmt.Fprintf(out, "%s  artifact %s (%d parts)\n", update.TaskID, update.Artifact.Name, len(update.Artifact.Parts))
				}
			})
		},
	}
)

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringVarP(&agentURLFlag, "url", "u", "", "Agent base URL (default client.url)")
	watchCmd.Flags().StringVar(&tokenFlag, "token", "", "Bearer token (default client.token)")
	watchCmd.Flags().StringVarP(&watchTaskFlag, "task", "t", "", "Only show events for this task")
}
