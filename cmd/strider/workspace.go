package main

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"strider/internal/container"
	"strider/internal/model"
	"strider/internal/plugin"
)

func (a *app) newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init <workspace>",
		Short: "Create a new workspace",
		Long: `Create a new workspace at ~/.strider/<workspace>/.

Errors if the workspace already exists.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := container.Init(args[0]); err != nil {
				return err
			}
			w, err := container.Open(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Initialized workspace %q at %s\n", args[0], w.Dir)
			return nil
		},
	}
}

func (a *app) newAddCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "add <workspace> <model-file>",
		Short: "Import a model file into a workspace",
		Long: `Import a YAML model file into a workspace.

The model is validated before it is stored. The stored name defaults to the
file name without its extension.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := container.Open(args[0])
			if err != nil {
				return err
			}
			if name == "" {
				name = strings.TrimSuffix(filepath.Base(args[1]), filepath.Ext(args[1]))
			}
			if err := w.ImportModel(name, args[1]); err != nil {
				return err
			}
			a.log.Debug("model imported", "workspace", args[0], "model", name, "source", args[1])
			fmt.Fprintf(cmd.OutOrStdout(), "Added model %q to workspace %q\n", name, args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "name to store the model under")
	return cmd
}

// newModelQuestions are asked by `strider new`.
func newModelQuestions(defaultName string) []plugin.ConfigQuestion {
	return []plugin.ConfigQuestion{
		{Key: "name", Prompt: "Model name", Type: "text", Default: defaultName},
		{Key: "description", Prompt: "Description", Type: "text"},
		{Key: "ordered", Prompt: "Are dataflows ordered", Type: "bool", Default: "no"},
	}
}

func (a *app) newNewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "new <workspace> <model>",
		Short: "Create an empty model interactively",
		Long: `Create an empty draft model in a workspace.

Prompts for the model's display name, description and whether its dataflows
are ordered, then writes <model>.yaml for editing.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := container.Open(args[0])
			if err != nil {
				return err
			}
			answers, err := a.prompt(newModelQuestions(args[1]))
			if err != nil {
				return err
			}
			name := answers["name"]
			if name == "" {
				name = args[1]
			}
			ordered, _ := strconv.ParseBool(answers["ordered"])
			var opts []model.ModelOption
			if d := answers["description"]; d != "" {
				opts = append(opts, model.WithDescription(d))
			}
			if err := w.AddModel(args[1], model.New(name, ordered, opts...)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", filepath.Join(w.Dir, args[1]+".yaml"))
			return nil
		},
	}
}

func (a *app) newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list [workspace]",
		Short: "List workspaces, or the models in one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var names []string
			var err error
			if len(args) == 0 {
				names, err = container.List()
			} else {
				var w *container.Workspace
				if w, err = container.Open(args[0]); err == nil {
					names, err = w.ListModels()
				}
			}
			if err != nil {
				return err
			}
			for _, n := range names {
				fmt.Fprintln(cmd.OutOrStdout(), n)
			}
			return nil
		},
	}
}

func (a *app) newRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <workspace> [model]",
		Short: "Remove a workspace, or one model and its outputs",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				if err := container.Remove(args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed workspace %q\n", args[0])
				return nil
			}
			w, err := container.Open(args[0])
			if err != nil {
				return err
			}
			if err := w.RemoveModel(args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed model %q\n", args[1])
			return nil
		},
	}
}

func (a *app) newReviewCmd() *cobra.Command {
	var dest, description string
	cmd := &cobra.Command{
		Use:   "review <workspace>",
		Short: "Collect a workspace's outputs for review",
		Long: `Copy every analyzed model's outputs into <dest>/.tmp/threat-review/
with an index.md holding the description. Run analyze first.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := container.Open(args[0])
			if err != nil {
				return err
			}
			target, err := w.Review(dest, description)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Review written to %s\n", target)
			return nil
		},
	}
	cmd.Flags().StringVar(&dest, "dest", ".", "directory to create .tmp/threat-review/ in")
	cmd.Flags().StringVar(&description, "description", "", "text for the review's index.md")
	return cmd
}
