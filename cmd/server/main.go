// cmd/server/main.go
package main

import (
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/webinarflow/whatsapp-dispatch/internal/channel"
	"github.com/webinarflow/whatsapp-dispatch/internal/config"
	"github.com/webinarflow/whatsapp-dispatch/internal/controller"
	"github.com/webinarflow/whatsapp-dispatch/internal/db"
	"github.com/webinarflow/whatsapp-dispatch/internal/handler"
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

	adapters := channel.NewRegistry()
	if cfg.UseSimulated {
		sim := channel.NewSimulatedAdapter()
		adapters.Register(model.AdapterSession, sim)
		adapters.Register(model.AdapterCloud, sim)
	} else {
		adapters.Register(model.AdapterSession, channel.NewSessionAdapter(cfg.Dispatch.AdapterTimeout))
		adapters.Register(model.AdapterCloud, channel.NewCloudAdapter(cfg.CloudAPIBaseURL, cfg.Dispatch.AdapterTimeout))
	}

	launchQueue, err := queue.NewAMQPQueue(cfg.AMQPURL)
	if err != nil {
		log.Fatal().Err(err).Msg("queue init failed")
	}
	defer launchQueue.Close()

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
	accountService := &service.AccountService{
		Accounts: accountRepo,
		Adapters: adapters,
		Log:      log.With().Str("component", "accounts").Logger(),
	}

	broadcastController := &controller.BroadcastController{
		Broadcasts:  broadcastRepo,
		Leads:       leadRepo,
		Coordinator: coordinator,
		Queue:       launchQueue,
		Log:         log.With().Str("component", "api").Logger(),
	}
	sequenceController := &controller.SequenceController{
		Sequences: sequenceRepo,
		Scheduler: scheduler,
		Log:       log.With().Str("component", "api").Logger(),
	}
	accountHandler := &handler.AccountHandler{Repo: accountRepo, Service: accountService}
	messageHandler := &handler.MessageHandler{Repo: messageRepo, Coordinator: coordinator}

	r := chi.NewRouter()

	// Account routes
	r.Post("/accounts", accountHandler.CreateAccount)
	r.Get("/accounts", accountHandler.ListAccounts)
	r.Get("/accounts/{id}", accountHandler.GetAccount)
	r.Put("/accounts/{id}", accountHandler.UpdateAccount)
	r.Delete("/accounts/{id}", accountHandler.DeleteAccount)
	r.Post("/accounts/{id}/connect", accountHandler.ConnectAccount)
	r.Post("/accounts/{id}/events", accountHandler.ConnectionEvent)

	// Sequence routes
	r.Post("/sequences", sequenceController.CreateSequence)
	r.Get("/sequences", sequenceController.ListSequences)
	r.Put("/sequences/{id}", sequenceController.UpdateSequence)
	r.Post("/occurrences/{id}/materialize", sequenceController.MaterializeOccurrence)

	// Broadcast routes
	r.Post("/broadcasts", broadcastController.CreateBroadcast)
	r.Get("/broadcasts", broadcastController.ListBroadcasts)
	r.Get("/broadcasts/{id}", broadcastController.GetBroadcast)
	r.Post("/broadcasts/{id}/launch", broadcastController.LaunchBroadcast)
	r.Post("/broadcasts/{id}/cancel", broadcastController.CancelBroadcast)
	r.Post("/broadcasts/{id}/personalized-preview", broadcastController.PersonalizedPreview)

	// Queue routes
	r.Get("/messages", messageHandler.ListMessages)
	r.Get("/messages/{id}", messageHandler.GetMessage)
	r.Post("/messages/{id}/cancel", messageHandler.CancelMessage)

	log.Info().Str("addr", cfg.HTTPAddr).Msg("server running")
	if err := http.ListenAndServe(cfg.HTTPAddr, r); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
