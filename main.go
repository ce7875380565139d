// Command tttserver runs the multiplayer tic-tac-toe server.
//
// It supports three commands:
//  1. (default) – runs the TCP game server, the liveness monitor and, unless
//     ADMIN_ADDRESS is empty, the HTTP gateway with the admin REST API, the
//     WebSocket endpoint and an /mcp endpoint
//  2. "mcp" – runs an MCP stdio server proxying to a running admin API
//  3. "check-config" – reports what the loader would clamp or ignore in a
//     configuration file
//
// An optional positional argument overrides the configured TCP port. Flags
// control the config file, log level, admin address and optional ngrok
// tunneling of the HTTP gateway.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"
	"github.com/urfave/cli/v3"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"
	"golang.org/x/sync/errgroup"

	"github.com/wricardo/mcp-training/tictactoe/api"
	"github.com/wricardo/mcp-training/tictactoe/game/config"
	"github.com/wricardo/mcp-training/tictactoe/game/monitor"
	"github.com/wricardo/mcp-training/tictactoe/game/room"
	"github.com/wricardo/mcp-training/tictactoe/game/service"
	"github.com/wricardo/mcp-training/tictactoe/game/session"
	"github.com/wricardo/mcp-training/tictactoe/logging"
	"github.com/wricardo/mcp-training/tictactoe/transport/mcp"
	"github.com/wricardo/mcp-training/tictactoe/transport/outbox"
	"github.com/wricardo/mcp-training/tictactoe/transport/tcp"
	"github.com/wricardo/mcp-training/tictactoe/transport/websocket"
	"github.com/wricardo/mcp-training/tictactoe/validate"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "tttserver"
)

var logger = logrus.WithField("component", "main")

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		logger.Debug("no .env file loaded")
	}

	if err := newCommand().Run(context.Background(), os.Args); err != nil {
		logger.WithError(err).Fatal("server stopped")
	}
}

// newCommand builds the command tree.
func newCommand() *cli.Command {
	return &cli.Command{
		Name:      AppName,
		Usage:     "multiplayer tic-tac-toe server",
		Version:   Version,
		ArgsUsage: "[port]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Value:   config.DefaultFile,
				Usage:   "key=value configuration file",
				Sources: cli.EnvVars("TTT_CONFIG"),
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "override LOG_LEVEL (trace, debug, info, warn, error)",
			},
			&cli.StringFlag{
				Name:  "admin-addr",
				Usage: "override ADMIN_ADDRESS; \"off\" disables the HTTP gateway",
			},
			&cli.BoolFlag{
				Name:    "ngrok",
				Usage:   "expose the HTTP gateway through an ngrok tunnel",
				Sources: cli.EnvVars("NGROK_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "ngrok-domain",
				Usage:   "custom ngrok domain (optional)",
				Sources: cli.EnvVars("NGROK_DOMAIN"),
			},
		},
		Action: runServer,
		Commands: []*cli.Command{
			{
				Name:  "mcp",
				Usage: "serve the admin MCP tools over stdio",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "admin-url",
						Value:   "http://" + config.DefaultAdminAddress,
						Usage:   "base URL of a running admin API",
						Sources: cli.EnvVars("TTT_ADMIN_URL"),
					},
				},
				Action: runStdioMCP,
			},
			{
				Name:      "check-config",
				Usage:     "validate a configuration file",
				ArgsUsage: "[file]",
				Action:    runCheckConfig,
			},
		},
	}
}

// parsePortArg converts the positional port argument.
func parsePortArg(arg string) (int, error) {
	port, err := cast.ToIntE(strings.TrimSpace(arg))
	if err != nil {
		return 0, errors.Wrapf(validate.ErrInvalidPort, "%q", arg)
	}
	if err := validate.Port(port); err != nil {
		return 0, err
	}
	return port, nil
}

// loadConfig reads the configuration file and applies the command line
// overrides on top of it.
func loadConfig(cmd *cli.Command) (config.Config, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return cfg, err
	}

	if arg := cmd.Args().First(); arg != "" {
		port, err := parsePortArg(arg)
		if err != nil {
			return cfg, err
		}
		cfg.Port = port
	}
	if level := cmd.String("log-level"); level != "" {
		cfg.LogLevel = level
	}
	switch addr := cmd.String("admin-addr"); addr {
	case "":
	case "off":
		cfg.AdminAddress = ""
	default:
		cfg.AdminAddress = addr
	}
	return cfg, nil
}

// stack is the wired server: registries, dispatcher and transports.
type stack struct {
	svc     service.GameService
	tcp     *tcp.Server
	monitor *monitor.Monitor
	hub     *websocket.Hub
	http    *api.Server
}

func newStack(cfg config.Config) *stack {
	out := outbox.New()
	sessions := session.NewManager(cfg.MaxClients)
	rooms := room.NewRegistry(cfg.MaxRooms, cfg.Grace(), out)
	svc := service.NewGameService(sessions, rooms, out)

	hub := websocket.NewHub(svc)
	mcpClient := mcp.NewClient("http://" + cfg.AdminAddress)

	return &stack{
		svc:     svc,
		tcp:     tcp.NewServer(cfg.ListenAddress(), svc),
		monitor: monitor.New(svc, cfg.ProbeEvery()),
		hub:     hub,
		http:    api.NewServer(svc, hub, mcpClient),
	}
}

func runServer(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	closer, err := logging.Setup(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.WithFields(logrus.Fields{
		"version":     Version,
		"listen":      cfg.ListenAddress(),
		"max_rooms":   cfg.MaxRooms,
		"max_clients": cfg.MaxClients,
		"grace":       cfg.Grace(),
	}).Info("starting server")

	s := newStack(cfg)
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error { return s.tcp.ListenAndServe(gCtx) })
	g.Go(func() error { return s.monitor.Run(gCtx) })

	if cfg.AdminAddress != "" {
		g.Go(func() error {
			s.hub.Run(gCtx)
			return nil
		})
		g.Go(func() error { return serveHTTP(gCtx, cfg.AdminAddress, s.http) })

		if cmd.Bool("ngrok") {
			g.Go(func() error { return serveNgrok(gCtx, cmd.String("ngrok-domain"), s.http.ReadOnly()) })
		}
	}

	err = g.Wait()
	logger.Info("server stopped")
	return err
}

// serveHTTP runs the HTTP gateway until ctx is cancelled.
func serveHTTP(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("addr", addr).Info("HTTP gateway listening")
		logger.Infof("  REST API: http://%s/api", addr)
		logger.Infof("  WebSocket: ws://%s/ws", addr)
		logger.Infof("  MCP endpoint: http://%s/mcp", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "http gateway")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("HTTP gateway shutdown")
	}
	return nil
}

// ngrokToken reads the auth token from either supported variable.
func ngrokToken() string {
	if token := os.Getenv("NGROK_AUTHTOKEN"); token != "" {
		return token
	}
	return os.Getenv("NGROK_AUTH_TOKEN")
}

// serveNgrok exposes handler through an ngrok tunnel. Callers pass the
// read-only gateway so the kick endpoint stays local. A missing token or a
// failed tunnel is logged and does not stop the server.
func serveNgrok(ctx context.Context, domain string, handler http.Handler) error {
	token := ngrokToken()
	if token == "" {
		logger.Warn("ngrok enabled but no auth token provided (use NGROK_AUTHTOKEN or NGROK_AUTH_TOKEN)")
		return nil
	}

	var tunnel ngrokConfig.Tunnel
	if domain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(domain))
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(token))
	if err != nil {
		logger.WithError(err).Error("failed to start ngrok tunnel")
		return nil
	}
	go func() {
		<-ctx.Done()
		if err := tun.Close(); err != nil {
			logger.WithError(err).Warn("failed to close ngrok tunnel")
		}
	}()

	url := tun.URL()
	logger.WithField("url", url).Info("ngrok tunnel established")
	logger.Infof("  REST API (ngrok): %s/api", url)
	logger.Infof("  WebSocket (ngrok): %s/ws", strings.Replace(url, "https://", "wss://", 1))
	logger.Info("  ngrok tunnel is read-only: DELETE and /mcp stay local")

	if err := http.Serve(tun, handler); err != nil && ctx.Err() == nil {
		logger.WithError(err).Error("ngrok server error")
	}
	return nil
}

// runStdioMCP serves the MCP tools over stdio. Logs go to stderr so they
// never mix with the protocol stream.
func runStdioMCP(ctx context.Context, cmd *cli.Command) error {
	logrus.SetOutput(os.Stderr)

	adminURL := cmd.String("admin-url")
	client := mcp.NewClient(adminURL)

	logger.WithField("admin_url", adminURL).Info("starting MCP stdio server")
	return server.ServeStdio(client.GetMCPServer())
}

// runCheckConfig prints the checks made on a configuration file and fails
// when any value would be clamped or ignored.
func runCheckConfig(ctx context.Context, cmd *cli.Command) error {
	path := cmd.Args().First()
	if path == "" {
		path = config.DefaultFile
	}

	result := validate.ConfigFile(path)
	fmt.Fprint(cmd.Root().Writer, formatCheck(result))
	if !result.Valid {
		return cli.Exit("", 1)
	}
	return nil
}

func formatCheck(result validate.Result) string {
	var b strings.Builder
	if result.Valid {
		fmt.Fprintf(&b, "✅ %s\n", result.File)
	} else {
		fmt.Fprintf(&b, "❌ %s\n", result.File)
	}
	for _, problem := range result.Problems {
		fmt.Fprintf(&b, "   ❌ %s\n", problem)
	}
	for _, note := range result.Notes {
		fmt.Fprintf(&b, "   %s\n", note)
	}
	return b.String()
}
