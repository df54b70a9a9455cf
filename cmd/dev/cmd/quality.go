package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/gophertribe/devtool/test"
	"github.com/spf13/cobra"
)

func TestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "test",
		Short: "Run unit tests (register simulator, no hardware needed)",
		RunE: func(cmd *cobra.Command, args []string) error {
			err := test.Test()
			if err != nil {
				return fmt.Errorf("failed to run tests: %w", err)
			}
			return nil
		},
	}
	return cmd
}

func LintCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lint",
		Short: "Run linting",
		RunE: func(cmd *cobra.Command, args []string) error {
			err := test.Lint()
			if err != nil {
				return fmt.Errorf("failed to run linting: %w", err)
			}
			return nil
		},
	}
	return cmd
}

// IntegrationTestCmd runs the TMP461 hardware tests. The board is described
// through TMPSENSE_* variables which the tests read; devtool enables them
// with TEST_INTEGRATION_ENABLED.
func IntegrationTestCmd() *cobra.Command {
	var (
		device string
		offset uint8
		pic32  bool
	)
	cmd := &cobra.Command{
		Use:   "integration-test",
		Short: "Read a live TMP461 over /dev/i2c-N and, with --pic32, over the mapped I2C4 engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			env := map[string]string{
				"TMPSENSE_DEVICE": device,
				"TMPSENSE_OFFSET": strconv.Itoa(int(offset)),
			}
			if pic32 {
				env["TMPSENSE_PIC32"] = "1"
			}
			for k, v := range env {
				if err := os.Setenv(k, v); err != nil {
					return fmt.Errorf("could not set %s: %w", k, err)
				}
			}
			slog.Info("running integration tests", "device", device, "offset", offset, "pic32", pic32)
			err := test.Integ()
			if err != nil {
				return fmt.Errorf("failed to run integration testing: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&device, "device", os.Getenv("TMPSENSE_DEVICE"), "i2c bus for the generic test (empty for the first one found)")
	cmd.Flags().Uint8Var(&offset, "offset", 0, "sensor address offset added to 72")
	cmd.Flags().BoolVar(&pic32, "pic32", false, "also run the memory-mapped I2C4 test (needs root)")
	return cmd
}
