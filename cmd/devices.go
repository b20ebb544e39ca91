package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/cwbudde/homfit/internal/homest"
	"github.com/cwbudde/homfit/internal/homest/gpu"
	"github.com/spf13/cobra"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List available estimation backends and devices",
	Long: `Shows which estimator backends this build supports, host CPU capabilities,
and any OpenCL platforms and devices visible to the runtime.`,
	RunE: runDevices,
}

func init() {
	rootCmd.AddCommand(devicesCmd)
}

func runDevices(cmd *cobra.Command, args []string) error {
	host := homest.Host()
	fmt.Printf("Host: %s, %d logical CPUs\n", host.Arch, host.Workers)
	if len(host.Features) > 0 {
		fmt.Printf("Features: %s\n", strings.Join(host.Features, ", "))
	}
	fmt.Println()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "BACKEND\tSTATUS")
	for _, backend := range homest.SupportedBackends() {
		_, cleanup, err := homest.NewEstimatorForBackend(string(backend))
		cleanup()
		switch {
		case err == nil:
			fmt.Fprintf(w, "%s\tavailable\n", backend)
		case errors.Is(err, homest.ErrBackendUnavailable):
			fmt.Fprintf(w, "%s\tunavailable (build with -tags gpu)\n", backend)
		case errors.Is(err, homest.ErrBackendNotImplemented):
			fmt.Fprintf(w, "%s\tpending (%v)\n", backend, err)
		default:
			fmt.Fprintf(w, "%s\terror (%v)\n", backend, err)
		}
	}
	w.Flush()
	fmt.Println()

	platforms, err := gpu.EnumeratePlatforms()
	if err != nil {
		fmt.Printf("OpenCL: %v\n", err)
		return nil
	}

	if len(platforms) == 0 {
		fmt.Println("OpenCL: no platforms found")
		return nil
	}

	for i, p := range platforms {
		fmt.Printf("Platform %d: %s (%s, %s)\n", i, p.Name, p.Vendor, p.Version)
		for j, d := range p.Devices {
			fmt.Printf("  Device %d: %s [%s]\n", j, d.Name, d.Type)
			fmt.Printf("    Vendor: %s, Version: %s\n", d.Vendor, d.Version)
			fmt.Printf("    Compute units: %d, Max work-group size: %d\n", d.MaxComputeUnits, d.MaxWorkGroupSize)
		}
	}

	return nil
}
