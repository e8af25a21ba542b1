package cmd

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/theapemachine/a2a-relay/pkg/a2a"
	"github.com/theapemachine/a2a-relay/pkg/auth"
	"github.com/theapemachine/a2a-relay/pkg/push"
	"github.com/theapemachine/a2a-relay/pkg/service"
	"github.com/theapemachine/a2a-relay/pkg/service/sse"
	"github.com/theapemachine/a2a-relay/pkg/stores"
	"github.com/theapemachine/a2a-relay/pkg/worker"
	"golang.org/x/sync/errgroup"
)

var (
	portFlag      int
	hostFlag      string
	agentNameFlag string

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve the A2A relay",
		Long:  longServe,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return serve(ctx)
		},
	}
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntVarP(&portFlag, "port", "p", 0, "Port to serve on (default server.port)")
	serveCmd.Flags().StringVarP(&hostFlag, "host", "H", "", "Host address to bind to (default server.host)")
	serveCmd.Flags().StringVarP(&agentNameFlag, "agent", "a", "backend", "Agent card to serve from the agent config block")
}

func serve(ctx context.Context) error {
	v := viper.GetViper()

	card := a2a.NewAgentCardFromConfig(agentNameFlag)

	if card.Name == "" {
		return fmt.Errorf("no agent card configured under agent.%s", agentNameFlag)
	}

	w, err := worker.NewFromConfig()

	if err != nil {
		return err
	}

	var (
		store   = stores.NewInMemoryTaskStore(stores.WithRetention(v.GetDuration("tasks.retention")))
		broker  = sse.NewSSEBroker()
		signer  *auth.Service
		limiter *auth.ClientLimiter
		pushSvc *push.Service
		pushCfg *stores.InMemoryPushConfigStore
	)

	if v.GetBool("server.auth.enabled") {
		if signer, err = auth.NewService(
			v.GetString("server.auth.secret"),
			auth.WithIssuer(v.GetString("server.auth.issuer")),
		); err != nil {
			return err
		}

		card.Authentication = &a2a.AgentAuthentication{Schemes: []string{"Bearer"}}
	}

	if v.GetBool("server.rate_limit.enabled") {
		limiter = auth.NewClientLimiter(
			v.GetInt64("server.rate_limit.requests"),
			v.GetDuration("server.rate_limit.interval"),
		)
	}

	managerOpts := []service.TaskManagerOption{
		service.WithTaskStore(store),
		service.WithWorker(w),
		service.WithBroker(broker),
		service.WithTimeout(v.GetDuration("tasks.timeout")),
	}

	if card.Capabilities.PushNotifications {
		pushCfg = stores.NewInMemoryPushConfigStore(v.GetDuration("push.expiration"))
		pushOpts := []push.Option{}

		if drain := v.GetDuration("push.drain_timeout"); drain > 0 {
			pushOpts = append(pushOpts, push.WithDrainTimeout(drain))
		}

		if signer != nil && v.GetBool("push.sign") {
			pushOpts = append(pushOpts, push.WithSigner(signer))
		}

		pushSvc = push.NewService(pushCfg, pushOpts...)
		defer pushSvc.Close()

		managerOpts = append(managerOpts, service.WithPushService(pushSvc))
	}

	manager, err := service.NewTaskManager(card, managerOpts...)

	if err != nil {
		return err
	}

	srv := service.NewA2AServer(manager, serverOptions(signer, limiter)...)

	group, gctx := errgroup.WithContext(ctx)

	group.Go(srv.Start)

	group.Go(func() error {
		cleanup(gctx, store, pushCfg, limiter)
		return nil
	})

	group.Go(func() error {
		<-gctx.Done()

		log.Info("shutting down", "agent", card.Name)
		manager.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		return srv.Shutdown(shutdownCtx)
	})

	return group.Wait()
}

func serverOptions(signer *auth.Service, limiter *auth.ClientLimiter) []service.ServerOption {
	v := viper.GetViper()

	host := v.GetString("server.host")
	port := v.GetInt("server.port")

	if hostFlag != "" {
		host = hostFlag
	}

	if portFlag != 0 {
		port = portFlag
	}

	opts := []service.ServerOption{
		service.WithAddr(net.JoinHostPort(host, strconv.Itoa(port))),
	}

	if signer != nil {
		opts = append(opts, service.WithAuth(signer))
	}

	if limiter != nil {
		opts = append(opts, service.WithRateLimiter(limiter))
	}

	return opts
}

/*
cleanup periodically evicts expired terminal tasks, stale push configs and
idle rate limit buckets until ctx ends.
*/
func cleanup(
	ctx context.Context,
	store stores.TaskStore,
	pushCfg *stores.InMemoryPushConfigStore,
	limiter *auth.ClientLimiter,
) {
	interval := viper.GetDuration("tasks.cleanup_interval")

	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			tasks := store.Cleanup(now)

			if pushCfg != nil {
				pushCfg.Cleanup(now)
			}

			if limiter != nil {
				limiter.Cleanup(now, 10*interval)
			}

			if tasks > 0 {
				log.Debug("evicted finished tasks", "count", tasks)
			}
		}
	}
}

var longServe = `
Serve an A2A agent that relays message/send calls to the configured worker.

Examples:
  # Serve the backend agent card on the configured port
  a2a-relay serve

  # Serve on port 8080 with the frontend card
  a2a-relay serve --port 8080 --agent frontend
`
