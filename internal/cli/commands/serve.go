package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/conduit-lang/fieldmeta/internal/server"
)

// NewServeCommand creates the serve command
func NewServeCommand() *cobra.Command {
	var (
		host string
		port int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the compiled metadata over HTTP",
		Long: `Compile the sources under source_dir and serve the dispatch tables as JSON:

  GET /healthz
  GET /kinds
  GET /kinds/{kind}/{type}
  GET /kinds/{kind}/{type}/{field}
  GET /records

The server shuts down gracefully on SIGINT or SIGTERM.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadProject(cmd)
			if err != nil {
				return err
			}
			defer p.logger.Sync()

			out, hash, err := p.compileArgs(nil)
			if err != nil {
				return reportErrors(cmd.ErrOrStderr(), err, false)
			}

			cfg := server.DefaultConfig()
			cfg.Host, cfg.Port = p.cfg.Server.Host, p.cfg.Server.Port
			if cmd.Flags().Changed("host") {
				cfg.Host = host
			}
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}

			srv, err := server.New(cfg, out.Registry(), p.logger.With(zap.String("source_hash", hash)))
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return srv.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "Listen host (default: server.host)")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "Listen port (default: server.port)")

	return cmd
}
