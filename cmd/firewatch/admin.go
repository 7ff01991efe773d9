package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/outfitter-dev/firewatch-sub001/internal/config"
)

func freezeCommand(a *app) *cli.Command {
	return &cli.Command{
		Name:      "freeze",
		Usage:     "mask entries newer than now for a PR, until unfrozen",
		ArgsUsage: "<pr>",
		Action: func(c *cli.Context) error {
			pr, err := strconv.Atoi(c.Args().Get(0))
			if err != nil {
				return fmt.Errorf("freeze: argument must be a PR number: %w", err)
			}
			if err := a.st.SetFreeze(c.Context, a.repo, pr, time.Now()); err != nil {
				return err
			}
			return emit(map[string]interface{}{"ok": true, "repo": a.repo, "pr": pr, "frozen": true})
		},
	}
}

func unfreezeCommand(a *app) *cli.Command {
	return &cli.Command{
		Name:      "unfreeze",
		Usage:     "remove a PR's freeze marker",
		ArgsUsage: "<pr>",
		Action: func(c *cli.Context) error {
			pr, err := strconv.Atoi(c.Args().Get(0))
			if err != nil {
				return fmt.Errorf("unfreeze: argument must be a PR number: %w", err)
			}
			if err := a.st.ClearFreeze(c.Context, a.repo, pr); err != nil {
				return err
			}
			return emit(map[string]interface{}{"ok": true, "repo": a.repo, "pr": pr, "frozen": false})
		},
	}
}

func clearCommand(a *app) *cli.Command {
	return &cli.Command{
		Name:  "clear",
		Usage: "drop every stored entry, checkpoint, ack, and freeze row for the repo",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "yes", Usage: "skip the confirmation prompt"},
		},
		Action: func(c *cli.Context) error {
			if !c.Bool("yes") {
				return fmt.Errorf("clear: refusing to wipe %s without --yes", a.repo)
			}
			if err := a.st.ClearRepo(c.Context, a.repo); err != nil {
				return err
			}
			return emit(map[string]interface{}{"ok": true, "repo": a.repo, "cleared": true})
		},
	}
}

func configCommand(a *app) *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "inspect or edit the on-disk configuration",
		Subcommands: []*cli.Command{
			{
				Name:  "show",
				Usage: "print the loaded config",
				Action: func(c *cli.Context) error {
					return emit(a.cfg)
				},
			},
			{
				Name:      "set",
				Usage:     "set github_username or github_token and persist",
				ArgsUsage: "<key> <value>",
				Action: func(c *cli.Context) error {
					key, value := c.Args().Get(0), c.Args().Get(1)
					switch key {
					case "github_username":
						a.cfg.User.GitHubUsername = value
					case "github_token":
						a.cfg.GitHubToken = value
					case "graphite_enabled":
						a.cfg.GraphiteEnabled = value == "true"
					default:
						return fmt.Errorf("config set: unknown key %q", key)
					}
					if err := config.Save(a.cfg); err != nil {
						return err
					}
					return emit(map[string]interface{}{"ok": true, "key": key})
				},
			},
		},
	}
}
