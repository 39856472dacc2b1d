/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/natours/api/config"
	"github.com/natours/api/internal/logging"
	"github.com/natours/api/internal/mailer"
	"github.com/natours/api/internal/mq"
)

// mailerCmd drains the mail queue into SMTP.
var mailerCmd = &cobra.Command{
	Use:   "mailer",
	Short: "Deliver queued emails over SMTP",
	Long: `Consumes the mail queue and delivers each message over SMTP.
Messages that fail to send are returned to the queue. Usage:

	MQ_BACKEND=rabbitmq EMAIL_HOST=smtp.example.com natours mailer
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()

		broker, err := mq.Open(cmd.Context(), cfg.MQ)
		if err != nil {
			return err
		}
		if broker == nil {
			return errors.New("MQ_BACKEND is required to run the mailer")
		}
		defer broker.Close()

		sender, err := mailer.NewSMTPSender(cfg.SMTP)
		if err != nil {
			return err
		}

		logging.Info().Str("backend", cfg.MQ.Backend).Str("queue", cfg.MQ.MailQueue).Msg("mailer started")
		return mailer.NewWorker(broker, cfg.MQ.MailQueue, sender).Run(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(mailerCmd)
}
