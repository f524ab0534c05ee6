package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/maryayun81-byte/v0-edu-flow-school-system-2-sub001/internal/attempt"
	"github.com/maryayun81-byte/v0-edu-flow-school-system-2-sub001/internal/grading"
	"github.com/maryayun81-byte/v0-edu-flow-school-system-2-sub001/internal/handler"
	appI18n "github.com/maryayun81-byte/v0-edu-flow-school-system-2-sub001/internal/i18n"
	"github.com/maryayun81-byte/v0-edu-flow-school-system-2-sub001/internal/llm"
	"github.com/maryayun81-byte/v0-edu-flow-school-system-2-sub001/internal/llm/prompts"
	"github.com/maryayun81-byte/v0-edu-flow-school-system-2-sub001/internal/model"
	"github.com/maryayun81-byte/v0-edu-flow-school-system-2-sub001/internal/store"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "eduflow",
		Short: "Assessment grading engine for the EduFlow school system",
	}

	serve := serveCmd()
	root.AddCommand(serve, importCmd(), exportCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `eduflow --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func addStoreFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("db-driver", string(store.DriverSQLite), "Database driver (sqlite, postgres)")
	f.String("db", "eduflow.db", "SQLite path or Postgres DSN")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP grading API",
		RunE:  runServe,
	}
	addStoreFlags(cmd)
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.StringSliceP("questions", "q", nil, "Question set JSON files to import on startup (repeatable)")
	f.StringP("lang", "l", "en", "Default language for messages (en, sw)")
	f.StringSlice("cors-origins", nil, "Allowed CORS origins (empty disables CORS)")
	f.Bool("llm-enabled", false, "Enable the advisory grading assistant")
	f.String("llm-url", "http://localhost:11434/v1", "OpenAI-compatible API base URL")
	f.String("llm-key", "ollama", "API key for LLM")
	f.String("llm-model", "llama3.2", "LLM model name")
	f.String("prompt-variant", string(prompts.PromptStandard), "Suggestion prompt variant (strict, standard, lenient)")
	return cmd
}

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import FILE...",
		Short: "Import question set JSON files",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runImport,
	}
	addStoreFlags(cmd)
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export attempt results as JSON",
		RunE:  runExport,
	}
	addStoreFlags(cmd)
	f := cmd.Flags()
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	f.String("status", "", "Only export attempts with this status")
	f.String("question-set", "", "Only export attempts for this question set")
	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("EDUFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("eduflow")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/eduflow")
	v.AddConfigPath("/etc/eduflow")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func openStore(ctx context.Context, v *viper.Viper) (*store.Store, error) {
	driver := store.Driver(strings.ToLower(v.GetString("db-driver")))
	st, err := store.Open(ctx, driver, v.GetString("db"))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return st, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	st, err := openStore(ctx, v)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := loadQuestions(ctx, st, v.GetStringSlice("questions")); err != nil {
		return fmt.Errorf("load questions: %w", err)
	}

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	svc := attempt.New(st, grading.New(st))

	promptVariant := strings.ToLower(strings.TrimSpace(v.GetString("prompt-variant")))
	if !prompts.IsValidVariant(promptVariant) {
		slog.Warn("invalid prompt-variant, using standard", "variant", promptVariant)
		promptVariant = string(prompts.PromptStandard)
	}
	llmEnabled := v.GetBool("llm-enabled")
	if llmEnabled {
		client, err := llm.New(
			v.GetString("llm-url"),
			v.GetString("llm-key"),
			v.GetString("llm-model"),
			promptVariant,
		)
		if err != nil {
			return fmt.Errorf("create LLM client: %w", err)
		}
		svc.SetSuggester(client)
		slog.Info("grading assistant enabled", "url", v.GetString("llm-url"), "model", v.GetString("llm-model"))
	}

	cfg := model.ServerConfig{
		Lang:          lang,
		CORSOrigins:   v.GetStringSlice("cors-origins"),
		LLMEnabled:    llmEnabled,
		PromptVariant: promptVariant,
	}
	h := handler.New(st, svc, cfg)

	addr := v.GetString("addr")
	slog.Info("starting server",
		"addr", addr,
		"driver", st.Driver(),
		"lang", lang,
		"cors_origins", cfg.CORSOrigins,
		"llm_enabled", llmEnabled,
		"prompt_variant", promptVariant,
	)
	srv := &http.Server{
		Addr:              addr,
		Handler:           h.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv.ListenAndServe()
}

func runImport(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	st, err := openStore(ctx, v)
	if err != nil {
		return err
	}
	defer st.Close()

	return loadQuestions(ctx, st, args)
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	st, err := openStore(ctx, v)
	if err != nil {
		return err
	}
	defer st.Close()

	filter := model.AttemptFilter{
		Status:        model.AttemptStatus(v.GetString("status")),
		QuestionSetID: v.GetString("question-set"),
	}
	results, err := st.ExportAttempts(ctx, filter)
	if err != nil {
		return fmt.Errorf("export attempts: %w", err)
	}

	export := model.AttemptExport{
		ExportedAt:    time.Now().UTC(),
		QuestionSetID: filter.QuestionSetID,
		Status:        filter.Status,
		Results:       results,
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	outPath := v.GetString("output")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = os.Stdout
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	_, _ = fmt.Fprintln(w)

	slog.Info("exported attempts", "count", len(results), "output", outPath)
	return nil
}

// loadQuestions imports each file once. A file whose content changed since
// its last import is skipped so existing attempts keep their questions.
func loadQuestions(ctx context.Context, st *store.Store, paths []string) error {
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		set, outcome, err := st.ImportQuestionSet(ctx, path, data)
		if errors.Is(err, store.ErrSourceChanged) {
			slog.Warn("questions file changed since last import, skipping", "path", path, "error", err)
			continue
		}
		if err != nil {
			return fmt.Errorf("import %s: %w", path, err)
		}

		if outcome == store.ImportUnchanged {
			slog.Info("questions file unchanged, skipping", "path", path)
			continue
		}
		slog.Info("imported questions", "path", path, "set_id", set.ID, "count", len(set.Questions))
	}
	return nil
}
