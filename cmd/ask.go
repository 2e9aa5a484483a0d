package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/greenatlas/compliance-assistant/internal/engine"
	"github.com/greenatlas/compliance-assistant/internal/model"
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask the assistant a single question from the terminal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		resp, err := env.Engine.Respond(ctx, engine.ChatRequest{
			Messages: []model.Message{
				{Role: model.RoleUser, Content: args[0]},
			},
		})
		if err != nil {
			return err
		}

		fmt.Println(resp.Response)
		fmt.Printf("\n[source: %s, found: %t]\n", resp.Source.Source, resp.Source.Found)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(askCmd)
}
