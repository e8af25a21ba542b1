package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/theapemachine/a2a-relay/pkg/a2a"
)

var (
	agentURLFlag   string
	tokenFlag      string
	taskIDFlag     string
	contextIDFlag  string
	historyFlag    int
	callTimeout    time.Duration
	outputModeFlag []string

	sendCmd = &cobra.Command{
		Use:   "send [text...]",
		Short: "Send a message to an A2A agent",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), callTimeout)
			defer cancel()

			msg := a2a.NewTextMessage(a2a.RoleUser, strings.Join(args, " "))
			msg.TaskID = taskIDFlag
			msg.ContextID = contextIDFlag

			params := a2a.MessageSendParams{Message: msg}

			if len(outputModeFlag) > 0 || cmd.Flags().Changed("history") {
				params.Configuration = &a2a.MessageSendConfiguration{AcceptedOutputModes: outputModeFlag}

				if cmd.Flags().Changed("history") {
					params.Configuration.HistoryLength = &historyFlag
				}
			}

			task, err := newClient().SendMessage(ctx, params)

			if err != nil {
				return err
			}

			fmt.Fprint(cmd.OutOrStdout(), task.String())

			return nil
		},
	}

	getCmd = &cobra.Command{
		Use:   "get <task-id>",
		Short: "Fetch the current state of a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), callTimeout)
			defer cancel()

			params := a2a.TaskQueryParams{TaskIDParams: a2a.TaskIDParams{ID: args[0]}}

			if cmd.Flags().Changed("history") {
				params.HistoryLength = &historyFlag
			}

			task, err := newClient().GetTask(ctx, params)

			if err != nil {
				return err
			}

			fmt.Fprint(cmd.OutOrStdout(), task.String())

			return nil
		},
	}

	cancelCmd = &cobra.Command{
		Use:   "cancel <task-id>",
		Short: "Cancel a running task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), callTimeout)
			defer cancel()

			task, err := newClient().CancelTask(ctx, a2a.TaskIDParams{ID: args[0]})

			if err != nil {
				return err
			}

			fmt.Fprint(cmd.OutOrStdout(), task.String())

			return nil
		},
	}
)

func init() {
	for _, cmd := range []*cobra.Command{sendCmd, getCmd, cancelCmd} {
		rootCmd.AddCommand(cmd)

		cmd.Flags().StringVarP(&agentURLFlag, "url", "u", "", "Agent base URL (default client.url)")
		cmd.Flags().StringVar(&tokenFlag, "token", "", "Bearer token (default client.token)")
		cmd.Flags().DurationVar(&callTimeout, "timeout", 10*time.Minute, "How long to wait for the agent")
	}

	sendCmd.Flags().StringVarP(&taskIDFlag, "task", "t", "", "Task id to continue")
	sendCmd.Flags().StringVarP(&contextIDFlag, "context", "c", "", "Context id of the conversation")
	sendCmd.Flags().StringSliceVar(&outputModeFlag, "accept", nil, "Accepted output modes")
	sendCmd.Flags().IntVar(&historyFlag, "history", 0, "Number of history messages to return")
	getCmd.Flags().IntVar(&historyFlag, "history", 0, "Number of history messages to return")
}

func newClient() *a2a.Client {
	url := viper.GetString("client.url")
	token := viper.GetString("client.token")

	if agentURLFlag != "" {
		url = agentURLFlag
	}

	if tokenFlag != "" {
		token = tokenFlag
	}

	opts := []a2a.ClientOption{a2a.WithToken(token), a2a.WithTimeout(callTimeout)}

	if path := viper.GetString("client.rpc_path"); path != "" {
		opts = append(opts, a2a.WithRPCPath(path))
	}

	return a2a.NewClient(url, opts...)
}
