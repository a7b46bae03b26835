package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/absmach/modelfactory/cli"
	"github.com/absmach/modelfactory/pkg/sdk"
	"github.com/spf13/cobra"
)

const (
	defManagerURL      = "http://localhost:7070"
	defTLSVerification = false
)

var (
	managerURL      = defManagerURL
	tlsVerification = defTLSVerification
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "modelfactory-cli",
		Short: "Modelfactory CLI",
		Long:  `Modelfactory CLI trains competition models and runs their inference, through the manager or in process.`,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			if url := os.Getenv("MF_MANAGER_URL"); url != "" && managerURL == defManagerURL {
				managerURL = url
			}
			s := sdk.NewSDK(sdk.Config{
				ManagerURL:      managerURL,
				TLSVerification: tlsVerification,
			})
			cli.SetSDK(s)
		},
	}
	rootCmd.PersistentFlags().StringVarP(&managerURL, "manager-url", "m", defManagerURL, "Manager URL")
	rootCmd.PersistentFlags().BoolVar(&tlsVerification, "tls-verification", defTLSVerification, "Verify the manager TLS certificate")

	rootCmd.AddCommand(cli.NewTrainCmd())
	rootCmd.AddCommand(cli.NewPredictCmd())
	rootCmd.AddCommand(cli.NewRunsCmd())
	rootCmd.AddCommand(cli.NewCompetitionsCmd())
	rootCmd.AddCommand(cli.NewConfigCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Fatal(err)
	}
}
