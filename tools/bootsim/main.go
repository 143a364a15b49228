// Command bootsim boots the kernel's early boot code on a simulated i386
// machine and reports the resulting address space.
package main

import (
	"bootos/kernel/mem"
	"bootos/kernel/mem/vmm"
	"bootos/tools/bootsim/config"
	"bootos/tools/bootsim/machine"
	"bootos/tools/bootsim/sim"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	configPath string
	verbose    bool
	rounds     int
	timeout    time.Duration

	logger *zap.Logger

	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	headStyle = lipgloss.NewStyle().Bold(true)
)

var rootCmd = &cobra.Command{
	Use:   "bootsim",
	Short: "Simulate the higher-half boot of the kernel",
	Long: `bootsim runs the kernel entry point against a simulated i386 PC.

The simulated bootloader places a multiboot info structure in low memory and
jumps to the kernel with paging disabled. The kernel builds its boot page
tables, enables paging, moves to its higher-half stack and runs the init
sequence. bootsim then walks the page tables to check the mappings.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := zap.NewProductionConfig()
		if verbose {
			cfg = zap.NewDevelopmentConfig()
			cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}

		var err error
		logger, err = cfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Boot the kernel and report the init sequence",
	RunE:  runBoot,
}

var tablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "Build the boot page tables and print them",
	RunE:  printTables,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Platform configuration file (YAML)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	runCmd.Flags().IntVar(&rounds, "rounds", 0, "Number of A/B demo rounds (overrides the config file)")
	runCmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "Abort the boot if the machine has not halted by then")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(tablesCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	if cmd.Flags().Changed("rounds") {
		cfg.Demo.Rounds = rounds
	}
	return cfg, nil
}

func runBoot(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	out := cmd.OutOrStdout()
	report, err := sim.Boot(ctx, cfg, out, logger)
	if report != nil {
		writeReport(out, report)
	}

	switch {
	case errors.Is(err, machine.ErrTripleFault):
		return fmt.Errorf("the simulated CPU reset: %w", err)
	case err != nil:
		return err
	}
	return nil
}

func writeReport(w io.Writer, report *sim.Report) {
	fmt.Fprintf(w, "\n\n%s %s\n", headStyle.Render("boot run"), report.RunID)
	fmt.Fprintf(w, "init order:  %v\n", report.Calls)
	fmt.Fprintf(w, "timer:       %d Hz\n", report.TickRate)
	fmt.Fprintf(w, "free frames: %d\n", report.FrameCount)
	fmt.Fprintf(w, "CR0=0x%08x CR3=0x%08x SP=0x%08x BP=0x%x\n",
		report.Registers.CR0, report.Registers.CR3, report.Registers.SP, report.Registers.BP)

	for _, c := range report.Checks {
		status := okStyle.Render("ok")
		if !c.OK() {
			status = failStyle.Render("FAIL")
		}
		fmt.Fprintf(w, "  %-13s 0x%08x -> 0x%08x  %s\n", c.Name, c.Virt, c.Phys, status)
	}
}

func printTables(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	_, tables, err := sim.BuildTables(cfg)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	dir := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("PDE", "virtual range", "entry", "table frame")
	for i := 0; i < vmm.EntriesPerTable; i++ {
		entry := tables.Dir.Entry(i)
		if entry&uint32(vmm.FlagPresent) == 0 {
			continue
		}

		start := uint64(i) << 22
		dir.Row(
			fmt.Sprintf("%d", i),
			fmt.Sprintf("0x%08x-0x%08x", start, start+uint64(mem.IdentityMapSize)-1),
			fmt.Sprintf("0x%08x", entry),
			fmt.Sprintf("0x%08x", entry&^uint32(mem.PageSize-1)),
		)
	}
	fmt.Fprintln(out, headStyle.Render("page directory"))
	fmt.Fprintln(out, dir.Render())

	for _, t := range []struct {
		name  string
		table *vmm.PageTable
	}{{"low table", tables.Low}, {"high table", tables.High}} {
		pt := table.New().
			Border(lipgloss.NormalBorder()).
			Headers("PTE", "entry")
		for _, i := range []int{0, 1, 2, 511, 1022, 1023} {
			pt.Row(fmt.Sprintf("%d", i), fmt.Sprintf("0x%08x", t.table.Entry(i)))
		}

		fmt.Fprintln(out, headStyle.Render(t.name))
		fmt.Fprintln(out, pt.Render())
	}

	logger.Debug("boot tables built",
		zap.Uintptr("dir", tables.DirFrame.Address()),
		zap.Uintptr("low", tables.LowFrame.Address()),
		zap.Uintptr("high", tables.HighFrame.Address()),
	)
	return nil
}
