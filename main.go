package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"polyglot/gateway"
	"polyglot/llm"
	"polyglot/relay"
	"polyglot/room"
	"polyglot/store"
	"polyglot/stt"
	"polyglot/translate"
	"polyglot/tts"
)

var logger *log.Logger

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.AddCommand(serveCmd)

	rootCmd.PersistentFlags().Int("port", 8080, "WebSocket listen port")
	rootCmd.PersistentFlags().
		String("deepgram-api-key", "", "Deepgram API key")
	rootCmd.PersistentFlags().String("openai-api-key", "", "OpenAI API key")
	rootCmd.PersistentFlags().
		String("elevenlabs-api-key", "", "ElevenLabs API key")
	rootCmd.PersistentFlags().
		String("aws-region", "us-east-1", "AWS region for audio storage")
	rootCmd.PersistentFlags().
		String("s3-bucket", "polyglot-mvp-audio", "S3 bucket for audio objects")

	viper.BindPFlag("port", rootCmd.PersistentFlags().Lookup("port"))
	viper.BindPFlag(
		"deepgram_api_key",
		rootCmd.PersistentFlags().Lookup("deepgram-api-key"),
	)
	viper.BindPFlag(
		"openai_api_key",
		rootCmd.PersistentFlags().Lookup("openai-api-key"),
	)
	viper.BindPFlag(
		"elevenlabs_api_key",
		rootCmd.PersistentFlags().Lookup("elevenlabs-api-key"),
	)
	viper.BindPFlag(
		"aws_region",
		rootCmd.PersistentFlags().Lookup("aws-region"),
	)
	viper.BindPFlag(
		"s3_bucket",
		rootCmd.PersistentFlags().Lookup("s3-bucket"),
	)
}

func initConfig() {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Printf("Error reading config file: %s\n", err)
		}
	}

	logger = log.New(os.Stdout)
}

var rootCmd = &cobra.Command{
	Use:   "polyglot",
	Short: "Polyglot relays live speech between languages",
	Long: `Polyglot is a room-based relay: each participant's speech is ` +
		`transcribed, translated into every other participant's language, ` +
		`synthesized, and delivered over their websocket.`,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the streaming relay server",
	Run:   runServe,
}

func runServe(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	recognition, err := stt.NewDeepgramClient(
		viper.GetString("deepgram_api_key"),
		logger.With("source", "deepgram"),
	)
	if err != nil {
		logger.Fatal("failed to create recognition client", "error", err)
	}

	translator := translate.NewLLMTranslator(
		llm.NewOpenAILanguageModel(viper.GetString("openai_api_key")),
		logger.With("source", "translate"),
	)

	synth := tts.NewElevenLabsSpeechGenerator(
		viper.GetString("elevenlabs_api_key"),
	)

	audio, err := store.NewS3Store(
		ctx,
		viper.GetString("aws_region"),
		viper.GetString("s3_bucket"),
	)
	if err != nil {
		logger.Fatal("failed to create audio store", "error", err)
	}

	rooms := room.NewRegistry()
	broadcaster := relay.NewBroadcaster(
		rooms,
		translator,
		synth,
		audio,
		logger.With("source", "broadcast"),
	)

	server := gateway.NewServer(
		rooms,
		recognition,
		broadcaster,
		logger.With("source", "gateway"),
	)

	port := viper.GetInt("port")
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: server.Router(),
	}

	go func() {
		logger.Info("listening", "port", port)
		if err := srv.ListenAndServe(); err != nil &&
			err != http.ErrServerClosed {
			logger.Fatal("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		5*time.Second,
	)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "error", err)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
