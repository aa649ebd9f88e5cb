package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/secretgate/secretgate/internal/config"
)

// Exit codes for the doctor subcommand, per the configuration
// validation contract: 0 success, 1 generic error, 2 invalid
// configuration, 3 missing dependency (here: an unset environment
// variable a mapping depends on).
const (
	exitSuccess           = 0
	exitGenericError      = 1
	exitInvalidConfig     = 2
	exitMissingDependency = 3
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Validate configuration and report secret availability",
	Long: `Doctor loads and validates vault.config.json (or the file given by
--config), then reports, per mapping, whether its environment variable
is currently set. It never prints a secret's value, only whether its
name resolves to something non-empty.`,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(exitInvalidConfig)
		return nil
	}

	fmt.Printf("config: version %s, %d mapping(s), %d polic(y/ies)\n", cfg.Version, len(cfg.Mappings), len(cfg.Policies))

	missing := 0
	for _, m := range cfg.Mappings {
		if os.Getenv(m.EnvVar) == "" {
			fmt.Printf("  %-30s MISSING (env %s not set)\n", m.SecretID, m.EnvVar)
			missing++
		} else {
			fmt.Printf("  %-30s ok\n", m.SecretID)
		}
	}

	if missing > 0 {
		fmt.Printf("%d of %d secret(s) unavailable\n", missing, len(cfg.Mappings))
		os.Exit(exitMissingDependency)
	}

	fmt.Println("all secrets available")
	os.Exit(exitSuccess)
	return nil
}
