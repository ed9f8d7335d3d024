package main

import (
	"context"
	"strconv"

	"github.com/spf13/cobra"
)

func playCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "play [player]",
		Short: "Start playback",
		Args:  cobra.RangeArgs(0, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()

			return app.service.Play(ctx, selectorArg(args))
		},
	}
}

func pauseCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "pause [player]",
		Short: "Pause playback",
		Args:  cobra.RangeArgs(0, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()

			return app.service.Pause(ctx, selectorArg(args))
		},
	}
}

func toggleCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "toggle [player]",
		Short: "Toggle playback",
		Args:  cobra.RangeArgs(0, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()

			return app.service.Toggle(ctx, selectorArg(args))
		},
	}
}

func stopCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stop [player]",
		Short: "Stop playback",
		Args:  cobra.RangeArgs(0, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()

			return app.service.Stop(ctx, selectorArg(args))
		},
	}
}

func seekCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "seek [player] <+/-dur|ms>",
		Short: "Seek within the current chapter",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()

			selector := ""
			seekArg := args[0]
			if len(args) == 2 {
				selector = args[0]
				seekArg = args[1]
			}
			return app.service.Seek(ctx, selector, seekArg)
		},
	}
}

func speedCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "speed [player] <rate>",
		Short: "Set playback speed",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()

			selector := ""
			rateArg := args[0]
			if len(args) == 2 {
				selector = args[0]
				rateArg = args[1]
			}
			rate, err := strconv.ParseFloat(rateArg, 64)
			if err != nil {
				return err
			}
			return app.service.SetSpeed(ctx, selector, rate)
		},
	}
}

func nextCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "next [player]",
		Short: "Next chapter",
		Args:  cobra.RangeArgs(0, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()

			return app.service.Next(ctx, selectorArg(args))
		},
	}
}

func prevCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "prev [player]",
		Short: "Previous chapter",
		Args:  cobra.RangeArgs(0, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()

			return app.service.Prev(ctx, selectorArg(args))
		},
	}
}

func ffCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "ff [player]",
		Aliases: []string{"forward"},
		Short:   "Jump forward",
		Args:    cobra.RangeArgs(0, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()

			return app.service.FastForward(ctx, selectorArg(args))
		},
	}
}

func rewindCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rewind [player]",
		Short: "Jump backward",
		Args:  cobra.RangeArgs(0, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()

			return app.service.Rewind(ctx, selectorArg(args))
		},
	}
}

func chapterCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "chapter [player] <index>",
		Short: "Jump to a chapter by zero-based index",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()

			selector := ""
			indexArg := args[0]
			if len(args) == 2 {
				selector = args[0]
				indexArg = args[1]
			}
			index, err := strconv.Atoi(indexArg)
			if err != nil {
				return err
			}
			return app.service.Chapter(ctx, selector, index)
		},
	}
}
