package cmd

import (
	"flag"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/fl64/ansible-demo/scm-inventory/internal/config"
	"github.com/fl64/ansible-demo/scm-inventory/internal/controller"
)

type options struct {
	argv []string

	list       bool
	configPath string

	project       string
	inventoryFile string
	projectsRoot  string
	awxURL        string
	strictSync    bool
}

// NewRootCommand builds the scm-inventory command for argv, the arguments
// without the program name. The inventory is only printed when argv starts
// with --list; the other flags may follow it.
func NewRootCommand(argv []string) *cobra.Command {
	o := &options{argv: argv}

	rootCmd := &cobra.Command{
		Use:   "scm-inventory --list",
		Short: "Ansible dynamic inventory read from an AWX SCM project",
		Long: `scm-inventory is an Ansible dynamic inventory script for AWX and Ansible Tower.

It looks up an SCM project by name, waits for a running project update to
finish, parses an inventory file from the project's synced copy on disk and
prints it as dynamic inventory JSON.

--list must be the first argument. Anything else prints nothing.`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		FParseErrWhitelist: cobra.FParseErrWhitelist{
			UnknownFlags: true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if !o.list || o.argv[0] != "--list" {
				klog.V(2).Infof("Nothing to do for arguments %q", o.argv)
				return nil
			}

			cfg, err := o.loadConfig(cmd)
			if err != nil {
				return err
			}

			ctrl, err := controller.New(cfg)
			if err != nil {
				return err
			}
			return ctrl.Start(cmd.OutOrStdout())
		},
	}

	flags := rootCmd.Flags()
	flags.BoolVar(&o.list, "list", false, "print the whole inventory as JSON")
	flags.StringVar(&o.configPath, "config", os.Getenv("SCM_INVENTORY_CONFIG"), "YAML configuration file")
	flags.StringVar(&o.project, "project", "", "project name (overrides PROJECT_NAME)")
	flags.StringVar(&o.inventoryFile, "inventory-file", "", "inventory file inside the project (overrides INVENTORY_FILE)")
	flags.StringVar(&o.projectsRoot, "projects-root", "", "directory holding synced projects (overrides AWX_PROJECTS_ROOT)")
	flags.StringVar(&o.awxURL, "awx-url", "", "AWX base URL (overrides AWX_URL)")
	flags.BoolVar(&o.strictSync, "strict-sync", false, "fail if the project is still updating after the wait")

	klogFlags := flag.NewFlagSet("klog", flag.ContinueOnError)
	klog.InitFlags(klogFlags)
	rootCmd.PersistentFlags().AddGoFlag(klogFlags.Lookup("v"))

	if argv == nil {
		argv = []string{}
	}
	rootCmd.SetArgs(argv)
	return rootCmd
}

// loadConfig layers the flags that were set over file and environment.
func (o *options) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("project") {
		cfg.ProjectName = o.project
	}
	if flags.Changed("inventory-file") {
		cfg.InventoryFile = o.inventoryFile
	}
	if flags.Changed("projects-root") {
		cfg.ProjectsRoot = o.projectsRoot
	}
	if flags.Changed("awx-url") {
		cfg.AWXURL = o.awxURL
	}
	if flags.Changed("strict-sync") {
		cfg.StrictSync = o.strictSync
	}
	return cfg, nil
}

// Execute runs the root command
func Execute() {
	err := NewRootCommand(os.Args[1:]).Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	klog.Flush()
	if err != nil {
		os.Exit(1)
	}
}
