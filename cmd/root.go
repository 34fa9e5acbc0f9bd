package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ngeltman/music-pitch-app/auth"
	"github.com/ngeltman/music-pitch-app/config"
	"github.com/ngeltman/music-pitch-app/engine"
	"github.com/ngeltman/music-pitch-app/logger"
	"github.com/ngeltman/music-pitch-app/output"
	"github.com/ngeltman/music-pitch-app/resolver"
)

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "music-pitch-app",
	Short: "A music player with independent speed and pitch control",
	Long: `music-pitch-app plays local audio files and remotely streamed tracks
with real-time transport control and independent playback-rate and
pitch (detune) adjustment.

Local files are decoded fully and time-stretched with a grain player;
remote tracks are resolved to a streaming URL and played live through a
pitch-shift node. Both modes share one control surface.`,
	RunE: runPlayer,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Local flags for the player command
	rootCmd.Flags().Int("sample-rate", 44100, "output sample rate in Hz")
	rootCmd.Flags().Duration("buffer", 100*time.Millisecond, "output buffer duration")
	rootCmd.Flags().String("resolver-url", "", "base URL of the source-resolver service")
	rootCmd.Flags().String("auth-url", "", "base URL of the authorization service")
	rootCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.Flags().String("log-format", "text", "log format (text, json)")

	// Bind flags to viper
	viper.BindPFlag("audio.sample_rate", rootCmd.Flags().Lookup("sample-rate"))
	viper.BindPFlag("audio.buffer", rootCmd.Flags().Lookup("buffer"))
	viper.BindPFlag("resolver.base_url", rootCmd.Flags().Lookup("resolver-url"))
	viper.BindPFlag("auth.base_url", rootCmd.Flags().Lookup("auth-url"))
	viper.BindPFlag("logging.level", rootCmd.Flags().Lookup("log-level"))
	viper.BindPFlag("logging.format", rootCmd.Flags().Lookup("log-format"))
}

// initConfig reads in config file and ENV variables
func initConfig() {
	// A .env next to the binary is convenient during development.
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if verbose {
		viper.Set("logging.level", "debug")
	}
}

// runPlayer starts the interactive player
func runPlayer(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	// Setup logging
	if err := logger.Setup(cfg.Logging.Level, cfg.Logging.Format); err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}

	// Open the audio device
	sampleRate := beep.SampleRate(cfg.Audio.SampleRate)
	out := output.NewSpeaker()
	if err := out.Init(sampleRate, sampleRate.N(cfg.Audio.BufferDuration)); err != nil {
		return fmt.Errorf("failed to open audio output: %w", err)
	}
	defer out.Close()

	eng := engine.New(out, sampleRate, engine.WithResampleQuality(cfg.Audio.ResampleQuality))
	defer eng.Close()

	var rc *resolver.Client
	if cfg.Resolver.BaseURL != "" {
		rc = resolver.New(cfg.Resolver.BaseURL, cfg.Resolver.Timeout)
	}
	var ac *auth.Client
	if cfg.Auth.BaseURL != "" {
		ac = auth.New(cfg.Auth.BaseURL, cfg.Auth.Timeout)
	}

	// Exit cleanly on Ctrl-C even mid-playback
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-signalChan
		fmt.Printf("\nReceived %s, shutting down...\n", sig)
		eng.Close()
		out.Close()
		os.Exit(0)
	}()

	shell := &playerShell{engine: eng, resolver: rc, auth: ac}
	shell.run(os.Stdin)
	return nil
}

// playerShell is the interactive transport shell around one engine.
type playerShell struct {
	engine   *engine.Engine
	resolver *resolver.Client
	auth     *auth.Client
}

func (s *playerShell) run(in *os.File) {
	fmt.Println("music-pitch-app — type 'help' for commands")
	scanner := bufio.NewScanner(in)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if !s.dispatch(fields[0], fields[1:]) {
			return
		}
	}
}

// dispatch runs one command; it returns false when the shell should exit.
func (s *playerShell) dispatch(cmd string, args []string) bool {
	ctx := context.Background()
	switch cmd {
	case "help":
		s.printHelp()
	case "load":
		s.loadFile(ctx, args)
	case "stream":
		s.loadStream(ctx, args)
	case "play":
		s.engine.Play()
	case "pause":
		s.engine.Pause()
	case "stop":
		s.engine.Stop()
	case "seek":
		if secs, ok := parseFloatArg(args, "seek <seconds>"); ok {
			s.engine.Seek(time.Duration(secs * float64(time.Second)))
		}
	case "rate":
		if rate, ok := parseFloatArg(args, "rate <multiplier>"); ok {
			s.engine.SetPlaybackRate(rate)
		}
	case "detune":
		if len(args) != 1 {
			fmt.Println("usage: detune <cents>")
			break
		}
		cents, err := strconv.Atoi(args[0])
		if err != nil {
			fmt.Println("usage: detune <cents>")
			break
		}
		s.engine.SetDetune(cents)
	case "status":
		s.printStatus()
	case "login":
		s.login(ctx)
	case "logout":
		s.logout(ctx)
	case "whoami":
		s.whoami(ctx)
	case "quit", "exit":
		return false
	default:
		fmt.Printf("unknown command %q, type 'help'\n", cmd)
	}
	return true
}

func (s *playerShell) printHelp() {
	fmt.Println(`commands:
  load <path>        load a local audio file (mp3/wav/flac)
  stream <locator>   resolve and stream a remote track
  play | pause | stop
  seek <seconds>     jump to a position
  rate <multiplier>  playback speed, e.g. 0.5 .. 2.0
  detune <cents>     pitch offset, e.g. -1200 .. 1200
  status             show transport state
  login | logout | whoami
  quit`)
}

func (s *playerShell) loadFile(ctx context.Context, args []string) {
	if len(args) != 1 {
		fmt.Println("usage: load <path>")
		return
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		fmt.Printf("read %s: %v\n", args[0], err)
		return
	}
	d, err := s.engine.LoadFile(ctx, data)
	if err != nil {
		fmt.Printf("load failed: %v\n", err)
		return
	}
	fmt.Printf("loaded %s (%s)\n", args[0], formatDuration(d))
}

func (s *playerShell) loadStream(ctx context.Context, args []string) {
	if len(args) != 1 {
		fmt.Println("usage: stream <locator>")
		return
	}
	locator := args[0]

	// With a resolver configured, the locator is looked up for metadata
	// and a derived streaming URL; otherwise it is used directly.
	streamURL := locator
	if s.resolver != nil {
		info, err := s.resolver.Resolve(ctx, locator)
		if err != nil {
			fmt.Printf("resolve failed: %v\n", err)
			return
		}
		fmt.Printf("%s — %s\n", info.Title, info.UploaderName)
		streamURL = s.resolver.StreamURL(locator)
	}

	d, err := s.engine.LoadURL(ctx, streamURL, func(note string) {
		fmt.Printf("  [%s]\n", note)
	})
	if err != nil {
		fmt.Printf("stream failed: %v\n", err)
		return
	}
	fmt.Printf("streaming (%s)\n", formatDuration(d))
}

func (s *playerShell) printStatus() {
	state := "paused"
	if s.engine.IsPlaying() {
		state = "playing"
	}
	fmt.Printf("mode=%s %s %s / %s  rate=%.2fx detune=%d cents\n",
		s.engine.Mode(), state,
		formatDuration(s.engine.CurrentTime()), formatDuration(s.engine.Duration()),
		s.engine.PlaybackRate(), s.engine.Detune())
}

func (s *playerShell) login(ctx context.Context) {
	if s.auth == nil {
		fmt.Println("no auth service configured")
		return
	}
	flow, err := s.auth.StartFlow(ctx)
	if err != nil {
		fmt.Printf("login failed: %v\n", err)
		return
	}
	fmt.Printf("visit %s and enter code %s\n", flow.VerificationURL, flow.UserCode)
}

func (s *playerShell) logout(ctx context.Context) {
	if s.auth == nil {
		fmt.Println("no auth service configured")
		return
	}
	if err := s.auth.Logout(ctx); err != nil {
		fmt.Printf("logout failed: %v\n", err)
		return
	}
	fmt.Println("logged out")
}

func (s *playerShell) whoami(ctx context.Context) {
	if s.auth == nil {
		fmt.Println("no auth service configured")
		return
	}
	st, err := s.auth.Status(ctx)
	if err != nil {
		fmt.Printf("status failed: %v\n", err)
		return
	}
	if st.LoggedIn {
		fmt.Printf("logged in as %s\n", st.Name)
	} else {
		fmt.Println("not logged in")
	}
}

func parseFloatArg(args []string, usage string) (float64, bool) {
	if len(args) != 1 {
		fmt.Println("usage: " + usage)
		return 0, false
	}
	v, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		fmt.Println("usage: " + usage)
		return 0, false
	}
	return v, true
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	m := int(d.Minutes())
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%d:%02d", m, s)
}
