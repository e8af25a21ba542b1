package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/theapemachine/a2a-relay/pkg/a2a"
	"gopkg.in/yaml.v3"
)

var (
	cardFormatFlag string
	cardRemoteFlag bool

	cardCmd = &cobra.Command{
		Use:   "card",
		Short: "Print an agent card",
		Long:  longCard,
		RunE: func(cmd *cobra.Command, args []string) error {
			card := a2a.NewAgentCardFromConfig(agentNameFlag)

			if cardRemoteFlag {
				var err error

				if card, err = newClient().Card(cmd.Context()); err != nil {
					return err
				}
			}

			var (
				out []byte
				err error
			)

			switch cardFormatFlag {
			case "json":
				out, err = json.MarshalIndent(card, "", "  ")
			case "yaml":
				out, err = yaml.Marshal(card)
			case "text", "":
				out = []byte(card.String())
			default:
				return fmt.Errorf("unknown format %q", cardFormatFlag)
			}

			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), string(out))

			return nil
		},
	}
)

func init() {
	rootCmd.AddCommand(cardCmd)

	cardCmd.Flags().StringVarP(&cardFormatFlag, "format", "f", "text", "Output format: text, json or yaml")
	cardCmd.Flags().BoolVar(&cardRemoteFlag, "remote", false, "Fetch the card from --url instead of the config")
	cardCmd.Flags().StringVarP(&agentNameFlag, "agent", "a", "backend", "Agent card to print from the agent config block")
	cardCmd.Flags().StringVarP(&agentURLFlag, "url", "u", "", "Agent base URL (default client.url)")
}

var longCard = `
Print the agent card built from the config, or fetched from a running agent.

Examples:
  a2a-relay card --format yaml
  a2a-relay card --remote --url http://localhost:8021 --format json
`
