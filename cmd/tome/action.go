package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/tome-audio/tome/internal/core"
)

func actionCommand() *cobra.Command {
	var (
		player   string
		value    bool
		mb       int
		uri      string
		position int64
	)

	cmd := &cobra.Command{
		Use:   "action <name>",
		Short: "Send a custom player action",
		Long:  "Send a named custom action, e.g. skip-silence --value, set-loudness-gain --mb, set-position --uri --time.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()

			var actionArgs core.ActionArgs
			if cmd.Flags().Changed("value") {
				actionArgs.Value = &value
			}
			if cmd.Flags().Changed("mb") {
				actionArgs.MB = &mb
			}
			if cmd.Flags().Changed("uri") {
				actionArgs.URI = &uri
			}
			if cmd.Flags().Changed("time") {
				actionArgs.Time = &position
			}
			return app.service.Action(ctx, player, args[0], actionArgs)
		},
	}
	cmd.Flags().StringVarP(&player, "player", "p", "", "player selector")
	cmd.Flags().BoolVar(&value, "value", false, "boolean action value")
	cmd.Flags().IntVar(&mb, "mb", 0, "loudness gain in millibels")
	cmd.Flags().StringVar(&uri, "uri", "", "chapter uri")
	cmd.Flags().Int64Var(&position, "time", 0, "position in milliseconds")

	return cmd
}
