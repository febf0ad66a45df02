// cmd/worker/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/webinarflow/whatsapp-dispatch/internal/channel"
	"github.com/webinarflow/whatsapp-dispatch/internal/config"
	"github.com/webinarflow/whatsapp-dispatch/internal/db"
	"github.com/webinarflow/whatsapp-dispatch/internal/model"
	"github.com/webinarflow/whatsapp-dispatch/internal/queue"
	"github.com/webinarflow/whatsapp-dispatch/internal/repository"
	"github.com/webinarflow/whatsapp-dispatch/internal/service"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg := config.Load()

	conn, err := db.Open()
	if err != nil {
		log.Fatal().Err(err).Msg("database init failed")
	}
	defer conn.Close()

	accountRepo := &repository.AccountRepository{DB: conn}
	messageRepo := &repository.MessageRepository{DB: conn}
	broadcastRepo := &repository.BroadcastRepository{DB: conn}
	sequenceRepo := &repository.SequenceRepository{DB: conn}
	leadRepo := &repository.LeadRepository{DB: conn}
	tenantRepo := &repository.TenantRepository{DB: conn}

	adapters := channel.NewRegistry()
	if cfg.UseSimulated {
		sim := channel.NewSimulatedAdapter()
		adapters.Register(model.AdapterSession, sim)
		adapters.Register(model.AdapterCloud, sim)
	} else {
		adapters.Register(model.AdapterSession, channel.NewSessionAdapter(cfg.Dispatch.AdapterTimeout))
		adapters.Register(model.AdapterCloud, channel.NewCloudAdapter(cfg.CloudAPIBaseURL, cfg.Dispatch.AdapterTimeout))
	}

	coordinator := &service.BroadcastCoordinator{
		Broadcasts: broadcastRepo,
		Messages:   messageRepo,
		Log:        log.With().Str("component", "broadcast").Logger(),
	}
	scheduler := &service.Scheduler{
		Sequences:  sequenceRepo,
		Leads:      leadRepo,
		Messages:   messageRepo,
		Broadcasts: broadcastRepo,
		Stagger:    cfg.Dispatch.BroadcastStagger,
		Log:        log.With().Str("component", "scheduler").Logger(),
	}
	pool := &service.AccountPool{
		Accounts: accountRepo,
		Log:      log.With().Str("component", "pool").Logger(),
	}
	dispatcher := &service.Dispatcher{
		Messages:    messageRepo,
		Accounts:    accountRepo,
		Tenants:     tenantRepo,
		Pool:        pool,
		Adapters:    adapters,
		Coordinator: coordinator,
		Cfg:         cfg.Dispatch,
		Limiter:     rate.NewLimiter(rate.Limit(cfg.Dispatch.SendRatePerSec), cfg.Dispatch.SendRatePerSec),
		Log:         log.With().Str("component", "dispatcher").Logger(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Broadcast launches arrive from the API over RabbitMQ.
	launchQueue, err := queue.NewAMQPQueue(cfg.AMQPURL)
	if err != nil {
		log.Fatal().Err(err).Msg("queue init failed")
	}
	defer launchQueue.Close()

	err = launchQueue.Subscribe(queue.TopicBroadcastLaunches, func(payload []byte) error {
		job, err := queue.UnmarshalLaunchJob(payload)
		if err != nil {
			log.Error().Err(err).Msg("invalid launch job, dropping")
			return nil
		}
		_, err = scheduler.LaunchBroadcast(job.BroadcastID, time.Now())
		return err
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to subscribe to broadcast launches")
	}

	// Periodic sweeps: requeue stale sends, materialize upcoming
	// sequence messages.
	c := cron.New()
	if _, err := c.AddFunc("@every 1m", func() {
		if _, err := dispatcher.RecoverStale(time.Now()); err != nil {
			log.Error().Err(err).Msg("stale recovery sweep failed")
		}
	}); err != nil {
		log.Fatal().Err(err).Msg("failed to schedule recovery sweep")
	}
	if _, err := c.AddFunc("@every 1m", func() {
		if _, err := scheduler.MaterializeWindow(time.Now(), cfg.Dispatch.MaterializeWindow); err != nil {
			log.Error().Err(err).Msg("sequence materialization sweep failed")
		}
	}); err != nil {
		log.Fatal().Err(err).Msg("failed to schedule materialization sweep")
	}
	c.Start()
	defer c.Stop()

	var wg sync.WaitGroup
	for i := 0; i < cfg.Dispatch.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			dispatcher.Run(ctx)
		}()
	}

	log.Info().Int("workers", cfg.Dispatch.Workers).Msg("worker running, waiting for messages")
	<-ctx.Done()
	wg.Wait()
}
