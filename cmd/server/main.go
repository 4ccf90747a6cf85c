package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	config "github.com/maheshrc27/postpilot/configs"
	"github.com/maheshrc27/postpilot/internal/adapters"
	"github.com/maheshrc27/postpilot/internal/api/handlers"
	"github.com/maheshrc27/postpilot/internal/api/middleware"
	"github.com/maheshrc27/postpilot/internal/cache"
	job "github.com/maheshrc27/postpilot/internal/jobs"
	"github.com/maheshrc27/postpilot/internal/metrics"
	"github.com/maheshrc27/postpilot/internal/models"
	"github.com/maheshrc27/postpilot/internal/queue"
	"github.com/maheshrc27/postpilot/internal/repository"
	"github.com/maheshrc27/postpilot/internal/service"
	"github.com/maheshrc27/postpilot/pkg/oauth1"
	"github.com/maheshrc27/postpilot/pkg/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron"
	"github.com/urfave/cli/v2"
	"golang.org/x/oauth2"
)

// services holds everything the commands share.
type services struct {
	posts     repository.PostRepository
	accounts  repository.SocialAccountRepository
	states    repository.OAuthStateRepository
	creds     service.CredentialService
	post      service.PostService
	publish   service.PublishService
	platform  service.PlatformService
	instagram service.InstagramService
	redis     *redis.Client
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Failed to load environment variables", err)
	}

	cfg := config.LoadConfig()
	setupLogger(cfg.LogLevel)

	app := &cli.App{
		Name:  "postpilot",
		Usage: "schedule and publish posts to social platforms",
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "run the HTTP API, the queue worker and the cron jobs",
				Action: func(c *cli.Context) error {
					return serve(cfg)
				},
			},
			{
				Name:  "sweep",
				Usage: "publish every due post once and exit",
				Action: func(c *cli.Context) error {
					return runOnce(c.Context, cfg, func(ctx context.Context, s *services) error {
						n, err := job.NewSweepJob(s.posts, s.publish).Sweep(ctx)
						slog.Info("sweep finished", "posts", n)
						return err
					})
				},
			},
			{
				Name:  "refresh-tokens",
				Usage: "refresh expiring platform tokens once and exit",
				Action: func(c *cli.Context) error {
					return runOnce(c.Context, cfg, func(ctx context.Context, s *services) error {
						n, err := job.NewTokenRefreshJob(s.accounts, s.states, s.creds, s.instagram).Refresh(ctx)
						slog.Info("token refresh finished", "accounts", n)
						return err
					})
				},
			},
			{
				Name:  "token",
				Usage: "print a bearer token for a user, for local testing",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "user", Usage: "user id (uuid)", Required: true},
					&cli.DurationFlag{Name: "ttl", Value: time.Hour},
				},
				Action: func(c *cli.Context) error {
					token, err := utils.GenerateToken(cfg.AuthJWTSecret, c.String("user"), c.Duration("ttl"))
					if err != nil {
						return err
					}
					fmt.Fprintln(c.App.Writer, token)
					return nil
				},
			},
		},
		DefaultCommand: "serve",
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalln("error", err)
	}
}

func setupLogger(levelName string) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(levelName)); err != nil {
		level = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
}

func openDB(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.PostgresURI)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.Ping(); err != nil {
		closeDB(db)
		return nil, fmt.Errorf("database is unreachable: %w", err)
	}
	return db, nil
}

func buildServices(cfg *config.Config, db *sql.DB) *services {
	httpClient := &http.Client{Timeout: 30 * time.Second}
	signer := oauth1.NewSigner(cfg.TwitterConsumerKey, cfg.TwitterConsumerSecret)

	postRepo := repository.NewPostRepository(db)
	socialAccountRepo := repository.NewSocialAccountRepository(db)
	vaultRepo := repository.NewVaultRepository(db)
	attemptRepo := repository.NewPublishAttemptRepository(db)
	stateRepo := repository.NewOAuthStateRepository(db)

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisURI})

	registry := adapters.NewRegistry(
		adapters.NewMastodonPublisher(httpClient),
		adapters.NewTelegramPublisher("", httpClient),
		adapters.NewFacebookPublisher(adapters.FacebookGraphURL, cfg.GraphAPIVersion, httpClient),
		adapters.NewTwitterPublisher(adapters.TwitterAPIURL, signer, httpClient),
		adapters.NewInstagramPublisher(adapters.InstagramGraphURL, cfg.GraphAPIVersion, httpClient, 0),
	)

	credentialService := service.NewCredentialService(cfg.SecretKey, socialAccountRepo, vaultRepo)
	instagramService := service.NewInstagramService(
		cfg.InstagramClientID, cfg.InstagramClientSecret, cfg.CallbackURL(string(models.PlatformInstagram)),
		oauth2.Endpoint{}, adapters.InstagramGraphURL, cfg.GraphAPIVersion, httpClient)

	platformService := service.NewPlatformService(cfg, stateRepo, socialAccountRepo, credentialService, "", httpClient,
		service.NewTwitterConnector(signer, service.TwitterAuthURL, adapters.TwitterAPIURL,
			cfg.CallbackURL(string(models.PlatformTwitter)), httpClient),
		service.NewMastodonConnector(cfg.MastodonAppName, cfg.MastodonAppWebsite,
			cfg.CallbackURL(string(models.PlatformMastodon)), httpClient),
		service.NewFacebookConnector(cfg.FacebookAppID, cfg.FacebookAppSecret,
			cfg.CallbackURL(string(models.PlatformFacebook)), oauth2.Endpoint{},
			adapters.FacebookGraphURL, cfg.GraphAPIVersion, httpClient),
		instagramService,
	)

	return &services{
		posts:     postRepo,
		accounts:  socialAccountRepo,
		states:    stateRepo,
		creds:     credentialService,
		post:      service.NewPostService(postRepo, attemptRepo),
		publish:   service.NewPublishService(postRepo, socialAccountRepo, attemptRepo, credentialService, registry, cache.NewRedisLocker(redisClient, "postpilot:")),
		platform:  platformService,
		instagram: instagramService,
		redis:     redisClient,
	}
}

func runOnce(ctx context.Context, cfg *config.Config, fn func(ctx context.Context, s *services) error) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer closeDB(db)

	s := buildServices(cfg, db)
	defer s.redis.Close()

	return fn(ctx, s)
}

func serve(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("refusing to start: %w", err)
	}

	db, err := openDB(cfg)
	if err != nil {
		return err
	}

	s := buildServices(cfg, db)
	defer s.redis.Close()

	redisConn := asynq.RedisClientOpt{Addr: cfg.RedisURI}
	client := asynq.NewClient(redisConn)
	defer client.Close()

	metrics.MustRegister(prometheus.DefaultRegisterer)

	r2Client, err := service.R2Client(context.Background(), cfg.R2)
	if err != nil {
		closeDB(db)
		return err
	}
	mediaService := service.NewMediaService(cfg.R2, r2Client)

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Minute,
		WriteTimeout: 5 * time.Minute,
		BodyLimit:    2 * service.MaxMediaSize,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			slog.Error("unhandled request error", "path", c.Path(), "error", err.Error())
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.FrontendURL,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           3600,
	}))

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	authMiddleware := middleware.NewAuthMiddleware(cfg)

	platform := handlers.NewPlatformHandler(s.platform, cfg)
	app.Get("/auth/:platform/callback", platform.CallbackHandler)

	api := app.Group("/api")
	api.Use(authMiddleware.AuthMiddleware())

	api.Get("/connect/:platform", platform.ConnectURL)

	post := handlers.NewPostHandler(s.post, s.publish, client)
	api.Post("/posts/create", post.CreatePost)
	api.Get("/posts", post.ListPosts)
	api.Post("/posts/remove", post.RemovePost)
	api.Post("/posts/publish", post.PublishPost)
	api.Get("/posts/attempts", post.ListAttempts)
	api.Post("/captions/preview", post.PreviewCaption)

	media := handlers.NewMediaHandler(mediaService)
	api.Post("/media/upload", media.Upload)

	// social accounts api routes
	api.Get("/accounts", platform.ListSocialAccounts)
	api.Post("/accounts/telegram", platform.ConnectTelegram)
	api.Post("/accounts/remove", platform.DeleteSocialAccount)

	// cron jobs
	sweepJob := job.NewSweepJob(s.posts, s.publish)
	refreshTokenJob := job.NewTokenRefreshJob(s.accounts, s.states, s.creds, s.instagram)

	c := cron.New()
	if err := c.AddFunc(cfg.SweepSchedule, sweepJob.Run); err != nil {
		closeDB(db)
		return fmt.Errorf("invalid sweep schedule %q: %w", cfg.SweepSchedule, err)
	}
	c.AddFunc("@every 10m", refreshTokenJob.RefreshTokens)
	c.Start()
	defer c.Stop()

	//queue
	queueW := queue.NewQueue(s.publish)
	server := asynq.NewServer(redisConn, asynq.Config{
		Concurrency: 10,
	})

	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TaskTypePublishPost, queueW.HandlePublishPostTask)

	slog.Info("Starting the Asynq server...")
	if err := server.Start(mux); err != nil {
		closeDB(db)
		return fmt.Errorf("could not start asynq server: %w", err)
	}

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()
	slog.Info("Server is running", "port", cfg.Port)

	gracefulShutdown(app, server, db)
	return nil
}

func closeDB(db *sql.DB) {
	fmt.Fprint(os.Stdout, "Closing database connection... ")
	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close database: %v", err)
		return
	}
	fmt.Fprintln(os.Stdout, "Done")
}

func gracefulShutdown(app *fiber.App, server *asynq.Server, db *sql.DB) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	slog.Info("Shutting down server...")

	if err := app.Shutdown(); err != nil {
		log.Fatalf("Failed to shut down server: %v", err)
	}
	server.Shutdown()

	closeDB(db)
	slog.Info("Server shutdown complete.")
}
