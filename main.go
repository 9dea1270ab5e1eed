// Package main provides the entry point for the saywav CLI application.
package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/dgnsrekt/saywav/internal/player"
	"github.com/dgnsrekt/saywav/pkg/speech"
	"github.com/dgnsrekt/saywav/pkg/speech/engines/mock"
	"github.com/dgnsrekt/saywav/pkg/speech/engines/piper"
	"github.com/dgnsrekt/saywav/pkg/wave"
	"github.com/dgnsrekt/saywav/ui"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile   string
	debug        bool
	useClipboard bool
	outFile      string
	engineName   string
	speechRate   float64

	rootCmd = &cobra.Command{
		Use:          "saywav",
		Short:        "Read text aloud or turn it into WAV files",
		Long:         "\nConvert text to speech with a local TTS engine, either reading it aloud or assembling the synthesized utterances into a single WAV file.",
		SilenceUsage: true,
	}
)

// envOverrides are environment settings applied over the config file.
type envOverrides struct {
	ConfigHome string `env:"SAYWAV_CONFIG_HOME"`
	Engine     string `env:"SAYWAV_ENGINE"`
	Debug      bool   `env:"SAYWAV_DEBUG"`
}

// source provides readable speech input along with its total byte size,
// which tasks use as the progress denominator.
type source struct {
	reader io.ReadCloser
	size   int64
	name   string
}

// resolveInput builds a source from the clipboard flag, a positional
// argument ("-" for stdin), or piped stdin.
func resolveInput(args []string) (*source, error) {
	if useClipboard {
		text, err := clipboard.ReadAll()
		if err != nil {
			return nil, fmt.Errorf("unable to read clipboard: %w", err)
		}
		return memorySource(text, "clipboard"), nil
	}

	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return nil, fmt.Errorf("unable to open file: %w", err)
		}
		info, err := f.Stat()
		if err != nil {
			f.Close() //nolint:errcheck,gosec
			return nil, fmt.Errorf("unable to stat file: %w", err)
		}
		return &source{reader: f, size: info.Size(), name: args[0]}, nil
	}

	if len(args) == 0 {
		if yes, err := stdinIsPipe(); err != nil {
			return nil, err
		} else if !yes {
			return nil, errors.New("missing input: pass a file, -, or --clipboard")
		}
	}

	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return nil, fmt.Errorf("unable to read stdin: %w", err)
	}
	return &source{
		reader: io.NopCloser(bytes.NewReader(data)),
		size:   int64(len(data)),
		name:   "stdin",
	}, nil
}

func memorySource(text, name string) *source {
	return &source{
		reader: io.NopCloser(strings.NewReader(text)),
		size:   int64(len(text)),
		name:   name,
	}
}

func stdinIsPipe() (bool, error) {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false, fmt.Errorf("unable to stat stdin: %w", err)
	}
	if stat.Mode()&os.ModeCharDevice == 0 || stat.Size() > 0 {
		return true, nil
	}
	return false, nil
}

// buildEngine constructs the configured speech engine. withPlayback wires
// up an audio sink for read-aloud use; the player doubles as the task's
// audio focus.
func buildEngine(withPlayback bool) (speech.Engine, speech.Focus, error) {
	name := engineName
	if name == "" {
		name = viper.GetString("engine.name")
	}

	switch name {
	case "mock":
		return mock.New(), nil, nil

	case "", "piper":
		settings := piper.DefaultSettings()
		if v := viper.GetString("engine.piper.binary"); v != "" {
			settings.Binary = v
		}
		settings.ModelPath = viper.GetString("engine.piper.model_path")
		if v := viper.GetInt("engine.piper.sample_rate"); v > 0 {
			settings.SampleRate = v
		}
		if v := viper.GetDuration("engine.piper.timeout"); v > 0 {
			settings.Timeout = v
		}

		var (
			sink  piper.AudioSink
			focus speech.Focus
		)
		if withPlayback {
			pl, err := player.New(settings.SampleRate, 1)
			if err != nil {
				return nil, nil, err
			}
			sink = pl
			focus = pl
		}
		eng, err := piper.New(settings, sink)
		if err != nil {
			return nil, nil, err
		}
		return eng, focus, nil

	default:
		return nil, nil, fmt.Errorf("unknown engine %q", name)
	}
}

func loadSpeechConfig() (*speech.Config, error) {
	cfg, err := speech.ConfigFromViper(viper.GetViper())
	if err != nil {
		return nil, err
	}
	if speechRate > 0 {
		cfg.Rate = speechRate
	}
	return cfg, nil
}

var speakCmd = &cobra.Command{
	Use:   "speak [FILE|-]",
	Short: "Read text aloud",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		cfg, err := loadSpeechConfig()
		if err != nil {
			return err
		}
		src, err := resolveInput(args)
		if err != nil {
			return err
		}
		log.Debug("reading input", "source", src.name, "bytes", src.size)

		engine, focus, err := buildEngine(true)
		if err != nil {
			src.reader.Close() //nolint:errcheck,gosec
			return err
		}
		defer engine.Close() //nolint:errcheck

		return runWithProgress(func(sink speech.ProgressSink) error {
			task, err := speech.NewReadTask(engine, src.reader, src.size,
				cfg.SilencePolicy(), cfg.Filter(), &speech.Counter{}, sink, 0, focus)
			if err != nil {
				return err
			}
			if err := task.Begin(); err != nil {
				return err
			}
			<-task.Done()
			if !task.Succeeded() {
				return errors.New("read-aloud task failed")
			}
			return nil
		})
	},
}

var writeCmd = &cobra.Command{
	Use:   "write [FILE|-]",
	Short: "Synthesize text into a single WAV file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		if outFile == "" {
			return errors.New("missing output: pass --out")
		}
		cfg, err := loadSpeechConfig()
		if err != nil {
			return err
		}
		src, err := resolveInput(args)
		if err != nil {
			return err
		}
		log.Debug("reading input", "source", src.name, "bytes", src.size)

		engine, _, err := buildEngine(false)
		if err != nil {
			src.reader.Close() //nolint:errcheck,gosec
			return err
		}
		defer engine.Close() //nolint:errcheck

		workDir := filepath.Join(os.TempDir(), "saywav-"+uuid.NewString())

		err = runWithProgress(func(sink speech.ProgressSink) error {
			task, err := speech.NewFileSynthesisTask(engine, src.reader, src.size,
				cfg.SilencePolicy(), cfg.Filter(), &speech.Counter{}, sink, 1, workDir)
			if err != nil {
				return err
			}
			if err := task.Begin(); err != nil {
				return err
			}
			<-task.Done()
			if !task.Succeeded() {
				return errors.New("file synthesis task failed")
			}
			return speech.NewJoinTask(task.Files(), outFile, workDir, sink).Run()
		})
		if err != nil {
			return err
		}

		if info, statErr := os.Stat(outFile); statErr == nil {
			fmt.Printf("Wrote %s (%s)\n", outFile, humanize.Bytes(uint64(info.Size()))) //nolint:gosec
		}
		return nil
	},
}

var joinCmd = &cobra.Command{
	Use:   "join FILE...",
	Short: "Concatenate compatible WAV files into one",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		if outFile == "" {
			return errors.New("missing output: pass --out")
		}

		err := runWithProgress(func(sink speech.ProgressSink) error {
			return speech.NewJoinTask(args, outFile, "", sink).Run()
		})
		if err != nil {
			if errors.Is(err, wave.ErrIncompatibleFormat) {
				return fmt.Errorf("input files are not format-compatible: %w", err)
			}
			return err
		}

		if info, statErr := os.Stat(outFile); statErr == nil {
			fmt.Printf("Wrote %s (%s)\n", outFile, humanize.Bytes(uint64(info.Size()))) //nolint:gosec
		}
		return nil
	},
}

// runWithProgress runs fn against a progress sink: a bubbletea progress bar
// when stdout is a terminal, structured log lines otherwise.
func runWithProgress(fn func(sink speech.ProgressSink) error) error {
	if !isTerminal() {
		return fn(ui.LogSink{})
	}

	sink := ui.NewChannelSink()
	done := make(chan error, 1)
	go func() {
		done <- fn(sink)
		sink.Close()
	}()

	uiErr := ui.Run(sink.C)
	taskErr := <-done
	if taskErr != nil {
		return taskErr
	}
	return uiErr
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	tryLoadConfigFromDefaultPlaces()

	if len(CommitSHA) >= 7 { //nolint:mnd
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default "+defaultConfigPath()+")")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "debug logging")
	rootCmd.PersistentFlags().StringVarP(&engineName, "engine", "e", "", "speech engine (piper or mock)")

	for _, cmd := range []*cobra.Command{speakCmd, writeCmd} {
		cmd.Flags().BoolVarP(&useClipboard, "clipboard", "c", false, "read input from the clipboard")
		cmd.Flags().Float64VarP(&speechRate, "rate", "r", 0, "speech rate multiplier")
	}
	writeCmd.Flags().StringVarP(&outFile, "out", "o", "", "output WAV file")
	joinCmd.Flags().StringVarP(&outFile, "out", "o", "", "output WAV file")

	rootCmd.AddCommand(speakCmd, writeCmd, joinCmd, configCmd, manCmd)

	rootCmd.PersistentPreRunE = func(*cobra.Command, []string) error {
		if debug || viper.GetBool("debug") {
			log.SetLevel(log.DebugLevel)
		}
		return nil
	}
}

func defaultConfigPath() string {
	scope := gap.NewScope(gap.User, "saywav")
	path, err := scope.ConfigPath("saywav.yml")
	if err != nil {
		return "~/.config/saywav/saywav.yml"
	}
	return path
}

func tryLoadConfigFromDefaultPlaces() {
	scope := gap.NewScope(gap.User, "saywav")
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not find configuration directory.")
		os.Exit(1)
	}

	overrides, err := env.ParseAs[envOverrides]()
	if err != nil {
		log.Warn("Could not parse environment overrides", "error", err)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, "saywav")}, dirs...)
	}
	if overrides.ConfigHome != "" {
		dirs = append([]string{overrides.ConfigHome}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName("saywav")
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("saywav")
	viper.AutomaticEnv()

	viper.SetDefault("engine.name", "piper")
	viper.SetDefault("engine.piper.binary", "piper")
	viper.SetDefault("engine.piper.sample_rate", 22050)
	viper.SetDefault("engine.piper.timeout", 30*time.Second)
	viper.SetDefault("speech.rate", 1.0)
	viper.SetDefault("speech.silence.line_feed_ms", 100)
	viper.SetDefault("speech.silence.sentence_ms", 200)
	viper.SetDefault("speech.silence.question_ms", 200)
	viper.SetDefault("speech.silence.exclamation_ms", 200)

	if overrides.Engine != "" {
		viper.Set("engine.name", overrides.Engine)
	}
	if overrides.Debug {
		viper.Set("debug", true)
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn("Could not parse configuration file", "error", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", used)
		return
	}

	configFile = filepath.Join(dirs[0], "saywav.yml")
}

func isTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}
