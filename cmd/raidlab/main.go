package main

import (
	goflag "flag"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"git.srvlab.io/whiskey/raidlab/pkg/config"
	"git.srvlab.io/whiskey/raidlab/pkg/loopdev"
	"git.srvlab.io/whiskey/raidlab/pkg/mdraid"
	"git.srvlab.io/whiskey/raidlab/pkg/mount"
	"git.srvlab.io/whiskey/raidlab/pkg/provision"
	"git.srvlab.io/whiskey/raidlab/pkg/raid"
)

// Version is the raidlab release, overridden at build time via -ldflags.
var Version = "dev"

var (
	cfgFile   string
	level     int
	mountDir  string
	fsType    string
	scriptDir string
)

var rootCmd = &cobra.Command{
	Use:   "raidlab",
	Short: "Provision software RAID arrays from disk image files",
	Long: `raidlab attaches disk image files as loop devices, assembles them
into an md RAID array, mounts it, and writes a self-deleting teardown
script. Slots can be declared absent with the "missing" keyword to start
the array degraded.`,
}

var provisionCmd = &cobra.Command{
	Use:   "provision --level N --mount-dir DIR DISK... ",
	Short: "Validate, attach, assemble and mount an array",
	Long: `Provision validates the requested RAID level against the disk list
(count, fault tolerance, level-10 mirror pairing, file existence), then
acquires resources in sequence: mountpoint, per-disk loop attachment,
array assembly, filesystem mount. Any failure rolls back everything
acquired so far in reverse order. On success the rollback steps are
persisted as a one-shot teardown script.

Disk arguments are image file paths; the keyword "missing" marks a slot
as intentionally absent.`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runProvision(args); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(2)
		}
	},
}

var levelsCmd = &cobra.Command{
	Use:   "levels",
	Short: "Show supported RAID levels and their fault tolerance",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("LEVEL  MIN DISKS  FAULT TOLERANCE (n disks)")
		for _, l := range raid.SupportedLevels() {
			rule, _ := raid.RuleFor(l)
			fmt.Printf("%-5s  %-9d  %s\n", l, rule.MinDisks, toleranceDescription(l))
		}
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the raidlab version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("raidlab", Version)
	},
}

func toleranceDescription(l raid.Level) string {
	switch l {
	case raid.Level0:
		return "0"
	case raid.Level1:
		return "n-1"
	case raid.Level4, raid.Level5:
		return "1"
	case raid.Level6:
		return "2"
	case raid.Level10:
		return "n/2, no mirror pair fully absent"
	}
	return ""
}

func runProvision(diskArgs []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if fsType != "" {
		cfg.FSType = fsType
	}
	if scriptDir != "" {
		cfg.ScriptDir = scriptDir
	}

	provisioner := provision.NewProvisioner(
		loopdev.NewAttacher(),
		mdraid.NewAssembler(cfg.MdadmPath),
		mount.NewMounter(),
	)
	provisioner.MdadmPath = cfg.MdadmPath
	provisioner.FSType = cfg.FSType

	orch := provision.NewOrchestrator(provisioner, cfg.ScriptDir)
	result, err := orch.Run(raid.Level(level), diskArgs, mountDir)
	if err != nil {
		return err
	}

	klog.Infof("Array %s mounted at %s", result.Array.Device, result.Array.MountPath)
	fmt.Printf("mounted:  %s\n", result.Array.MountPath)
	fmt.Printf("device:   %s\n", result.Array.Device)
	fmt.Printf("teardown: %s\n", result.ScriptPath)
	return nil
}

func main() {
	klog.InitFlags(nil)

	rootCmd.PersistentFlags().AddGoFlagSet(goflag.CommandLine)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to config file")

	provisionCmd.Flags().IntVar(&level, "level", -1, "RAID level (0, 1, 4, 5, 6 or 10)")
	provisionCmd.Flags().StringVar(&mountDir, "mount-dir", "", "Directory to mount the array at")
	provisionCmd.Flags().StringVar(&fsType, "fs-type", "", "Filesystem to create on the array (default from config)")
	provisionCmd.Flags().StringVar(&scriptDir, "script-dir", "", "Directory for the teardown script (default from config)")
	_ = provisionCmd.MarkFlagRequired("level")
	_ = provisionCmd.MarkFlagRequired("mount-dir")

	rootCmd.AddCommand(provisionCmd, levelsCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(2)
	}
}
