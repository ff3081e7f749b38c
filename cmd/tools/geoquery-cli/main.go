// cmd/tools/geoquery-cli/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"geoquery-worker/internal/common/aws"
	"geoquery-worker/internal/common/config"
	"geoquery-worker/internal/common/genai"
	commonhttp "geoquery-worker/internal/common/http"
	"geoquery-worker/internal/common/logger"

	elq "geoquery-worker/internal/workers/geocoding/extract-location-query"
	ue "geoquery-worker/internal/workers/messaging/unwrap-envelope"
)

var (
	rawBody      bool
	envelopeMode string
	messageType  int
	dryRun       bool
	logLevel     string
)

var rootCmd = &cobra.Command{
	Use:   "geoquery-cli",
	Short: "Tools for the geoquery worker",
	Long: `Run the location query pipeline once or put agent messages on the queue.

Available subcommands:
  extract  - Run the pipeline on a question or a serialized envelope
  dispatch - Serialize an agent message and send it to the queue`,
	SilenceUsage: true,
}

var extractCmd = &cobra.Command{
	Use:   "extract <question>",
	Short: "Run the location query pipeline once",
	Long: `Run the five pipeline stages against the completion endpoint and print the result.

The argument is wrapped in an agent message envelope unless --raw is set, in which
case it is used as the queue body as is.`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

var dispatchCmd = &cobra.Command{
	Use:   "dispatch <content>",
	Short: "Send an agent message to the queue",
	Args:  cobra.ExactArgs(1),
	RunE:  runDispatch,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	extractCmd.Flags().BoolVar(&rawBody, "raw", false, "treat the argument as a raw queue body")
	extractCmd.Flags().StringVar(&envelopeMode, "mode", "", "envelope mode override (auto, parser, model)")

	dispatchCmd.Flags().IntVar(&messageType, "type", int(ue.TypeToLLM), "agent message type (0 TO_LLM, 1 TO_GOOGLE, 2 TO_STORAGE)")
	dispatchCmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the serialized body instead of sending it")

	rootCmd.AddCommand(extractCmd, dispatchCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newLogger() logger.Logger {
	return logger.NewStructured(logLevel, "console", "stderr")
}

func runExtract(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadUnvalidated()
	if err != nil {
		return err
	}
	if envelopeMode != "" {
		cfg.Envelope.Mode = envelopeMode
	}
	if err := config.ValidateGenAI(cfg); err != nil {
		return err
	}

	log := newLogger()
	timeout := config.GetDuration(cfg.GenAI.Timeout)
	completer, err := genai.NewClient(&genai.Config{
		BaseURL:     cfg.GenAI.BaseURL,
		APIKey:      cfg.GenAI.APIKey,
		Model:       cfg.GenAI.Model,
		Temperature: cfg.GenAI.Temperature,
		MaxTokens:   cfg.GenAI.MaxTokens,
		Timeout:     timeout,
	}, commonhttp.NewClient(timeout, "geoquery-cli"), log)
	if err != nil {
		return err
	}

	body := args[0]
	if !rawBody {
		body = ue.Encode(ue.Envelope{Content: body, Type: ue.TypeToLLM})
	}

	pipelineCfg := elq.LoadConfig()
	pipelineCfg.EnvelopeMode = ue.Mode(cfg.Envelope.Mode)
	handler := elq.NewHandler(pipelineCfg, completer, log)

	result, err := handler.Execute(cmd.Context(), body)
	if err != nil {
		return fmt.Errorf("pipeline failed: %w", err)
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))

	if !result.IsSuccess() {
		return fmt.Errorf("%s", elq.ValidationFailedMessage)
	}
	return nil
}

func runDispatch(cmd *cobra.Command, args []string) error {
	content := strings.TrimSpace(args[0])
	body := ue.Encode(ue.Envelope{Content: content, Type: ue.MessageType(messageType)})

	if dryRun {
		fmt.Fprintln(cmd.OutOrStdout(), body)
		return nil
	}

	cfg, err := config.LoadUnvalidated()
	if err != nil {
		return err
	}
	if err := config.ValidateQueue(cfg); err != nil {
		return err
	}

	ctx := cmd.Context()
	awsCfg, err := aws.LoadConfig(ctx, aws.Credentials{
		Region:          cfg.AWS.Region,
		AccessKeyID:     cfg.AWS.AccessKeyID,
		SecretAccessKey: cfg.AWS.SecretAccessKey,
	})
	if err != nil {
		return err
	}

	client := aws.NewSQSClient(awsCfg, cfg.AWS.Endpoint, aws.SQSOptions{QueueURL: cfg.Queue.URL})
	id, err := client.Send(ctx, body)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Dispatched %s as message %s\n",
		(&ue.Envelope{Content: content, Type: ue.MessageType(messageType)}).String(), id)
	return nil
}
