package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/keyflow/internal/keymap"
)

// ListOptions holds flags for the list command.
type ListOptions struct {
	*RootOptions
	All bool // include disabled key maps
}

// ListEntry is one key map in list output.
type ListEntry struct {
	UID         string   `json:"uid"`
	Name        string   `json:"name,omitempty"`
	Enabled     bool     `json:"enabled"`
	Group       string   `json:"group,omitempty"`
	Trigger     string   `json:"trigger"`
	Actions     []string `json:"actions"`
	Constraints int      `json:"constraints"`
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list <config>",
		Short: "List key maps in canonical order",
		Long: `List the key maps of a configuration ordered by trigger, then
action list, then UID. Disabled key maps are skipped unless --all is given.

Examples:
  keyflow list keymaps.yaml
  keyflow list keymaps.cue --all --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.All, "all", false, "include disabled key maps")

	return cmd
}

func runList(opts *ListOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	cfg, err := loadConfig(opts.RootOptions, path)
	if err != nil {
		return reportLoadError(formatter, err)
	}

	kms := cfg.Set.Enabled()
	if opts.All {
		kms = cfg.Set.KeyMaps
	}

	entries := make([]ListEntry, 0, len(kms))
	for _, km := range keymap.Sorted(kms) {
		entries = append(entries, listEntry(km))
	}

	if formatter.JSON() {
		return formatter.Success(entries)
	}

	w := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintln(w, "No key maps.")
		return nil
	}
	for _, e := range entries {
		state := ""
		if !e.Enabled {
			state = " (disabled)"
		}
		fmt.Fprintf(w, "%s%s\n", e.UID, state)
		fmt.Fprintf(w, "  trigger: %s\n", e.Trigger)
		fmt.Fprintf(w, "  actions: %s\n", strings.Join(e.Actions, ", "))
		if e.Group != "" {
			fmt.Fprintf(w, "  group:   %s\n", e.Group)
		}
	}
	return nil
}

func listEntry(km keymap.KeyMap) ListEntry {
	actions := make([]string, len(km.Actions))
	for i, a := range km.Actions {
		actions[i] = a.Data.String()
	}
	return ListEntry{
		UID:         km.UID,
		Name:        km.Name,
		Enabled:     km.Enabled,
		Group:       km.GroupUID,
		Trigger:     km.Trigger.String(),
		Actions:     actions,
		Constraints: len(km.Constraints.Constraints),
	}
}
