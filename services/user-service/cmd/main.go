package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/vasapolrittideah/userbase-api/services/user-service/internal/config"
	"github.com/vasapolrittideah/userbase-api/services/user-service/internal/normalizer"
	"github.com/vasapolrittideah/userbase-api/services/user-service/internal/repository"
	"github.com/vasapolrittideah/userbase-api/services/user-service/internal/usecase"
	"github.com/vasapolrittideah/userbase-api/services/user-service/internal/validation"
	"github.com/vasapolrittideah/userbase-api/shared/logger"
	"github.com/vasapolrittideah/userbase-api/shared/mailer"
	"github.com/vasapolrittideah/userbase-api/shared/security"
)

const usage = `usage: user-service [-memory] <command> [flags]

commands:
  create          create a user
  update          partially update a user
  get             print a user
  list            list users
  delete          delete a user
  request-reset   mail a password reset link
  reset           redeem a password reset token
  request-verify  mail an email verification link
  verify          redeem an email verification token
  login           check credentials and print a session token
  check-session   validate a session token
`

func main() {
	memory := flag.Bool("memory", false, "use a throwaway in-memory store instead of MongoDB")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	// A local .env file is optional.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var userRepo repository.UserRepository
	if *memory {
		userRepo = repository.NewUserMemoryRepository(time.Now)
	} else {
		client, err := connectMongo(ctx, cfg.Mongo)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to MongoDB")
		}
		defer func() {
			if err := client.Disconnect(context.Background()); err != nil {
				log.Error().Err(err).Msg("failed to disconnect from MongoDB")
			}
		}()
		userRepo = repository.NewUserMongoRepository(ctx, log, client.Database(cfg.Mongo.Database))
	}

	hasher, err := security.NewCredentialManager(cfg.Password.Security())
	if err != nil {
		log.Fatal().Err(err).Msg("invalid password hashing configuration")
	}

	validator, err := validation.New()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build validator")
	}

	var sender mailer.Sender = mailer.NewLogSender(log)
	if cfg.MailEnabled {
		m, err := mailer.NewMailer(cfg.SMTP)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to build mailer")
		}
		sender = m
	}

	guard := normalizer.NewGuard(hasher, time.Now)
	app := &app{
		cfg:    cfg,
		users:  usecase.NewUserUsecase(log, userRepo, guard, validator),
		tokens: usecase.NewTokenUsecase(log, userRepo, guard, validator, security.NewTokenIssuer(cfg.Token.TTL), sender, cfg),
		auth:   usecase.NewAuthUsecase(log, userRepo, hasher, cfg),
		out:    os.Stdout,
	}

	if err := app.run(ctx, flag.Arg(0), flag.Args()[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", flag.Arg(0), err)
		os.Exit(1)
	}
}

func connectMongo(ctx context.Context, cfg config.MongoConfig) (*mongo.Client, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(cfg.URI).SetConnectTimeout(cfg.ConnectTimeout))
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	return client, nil
}
