package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jwalitptl/healthcare-records/internal/model"
	"github.com/jwalitptl/healthcare-records/pkg/auth"
	"github.com/jwalitptl/healthcare-records/pkg/messaging"
)

// withSession connects a session, runs fn, then flushes pending events.
func withSession(cmd *cobra.Command, fn func(ctx context.Context, a *app) (interface{}, error)) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	stopPublisher := a.startPublisher()
	defer stopPublisher()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if err := a.session.Connect(ctx); err != nil {
		return err
	}

	out, err := fn(ctx, a)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), out)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Connect the wallet and report the account and ownership",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, a *app) (interface{}, error) {
				return a.session.State(), nil
			})
		},
	}
}

func recordsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "records <patientID>",
		Short: "Fetch the records stored for a patient",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, a *app) (interface{}, error) {
				return a.session.FetchRecords(ctx, args[0])
			})
		},
	}
}

func addRecordCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add-record",
		Short: "Submit a record and wait for it to be mined",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			patientID, _ := cmd.Flags().GetString("patient-id")
			diagnosis, _ := cmd.Flags().GetString("diagnosis")
			treatment, _ := cmd.Flags().GetString("treatment")
			patientName, _ := cmd.Flags().GetString("patient-name")

			return withSession(cmd, func(ctx context.Context, a *app) (interface{}, error) {
				return a.session.AddRecord(ctx, model.AddRecordForm{
					PatientID:   patientID,
					Diagnosis:   diagnosis,
					Treatment:   treatment,
					PatientName: patientName,
				})
			})
		},
	}
	cmd.Flags().String("patient-id", "", "Patient ID (uint256)")
	cmd.Flags().String("diagnosis", "", "Diagnosis text")
	cmd.Flags().String("treatment", "", "Treatment text")
	cmd.Flags().String("patient-name", "", "Patient name (defaults to the configured placeholder)")
	return cmd
}

func authorizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "authorize <providerAddress>",
		Short: "Authorize a provider address (contract owner only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, a *app) (interface{}, error) {
				return a.session.AuthorizeProvider(ctx, args[0])
			})
		},
	}
}

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for the write endpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			subject, _ := cmd.Flags().GetString("subject")
			scope, _ := cmd.Flags().GetString("scope")
			ttl, _ := cmd.Flags().GetDuration("ttl")

			cfg, _, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.JWT.Secret == "" {
				return errors.New("jwt.secret is not configured")
			}

			svc, err := auth.NewHMACService(cfg.JWT.Secret, cfg.JWT.Issuer)
			if err != nil {
				return err
			}
			token, err := svc.GenerateToken(subject, scope, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().String("subject", "operator", "Token subject")
	cmd.Flags().String("scope", "records:write", "Token scope")
	cmd.Flags().Duration("ttl", time.Hour, "Token lifetime")
	return cmd
}

func eventsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "events [type...]",
		Short: "Print session events published to Redis",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			broker, err := newBroker(cfg, log)
			if err != nil {
				return err
			}
			defer broker.Close()

			channels := args
			if len(channels) == 0 {
				channels = []string{model.EventRecordAdded, model.EventProviderAuthorized}
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return follow(ctx, broker, channels, cmd.OutOrStdout())
		},
	}
}

func follow(ctx context.Context, broker messaging.Broker, channels []string, w io.Writer) error {
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, channel := range channels {
		msgs, err := broker.Subscribe(ctx, channel)
		if err != nil {
			if errors.Is(err, messaging.ErrSubscribeUnsupported) {
				return fmt.Errorf("%w: set redis.url to follow events", err)
			}
			return err
		}
		wg.Add(1)
		go func(msgs <-chan []byte) {
			defer wg.Done()
			for msg := range msgs {
				mu.Lock()
				fmt.Fprintln(w, string(msg))
				mu.Unlock()
			}
		}(msgs)
	}
	wg.Wait()
	return nil
}
