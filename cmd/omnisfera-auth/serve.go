package main

import (
	"context"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"

	auth "github.com/goliatone/go-omnisfera"
	"github.com/goliatone/go-omnisfera/activitymap"
)

// moduleRoutes are the workspace modules and the flag each one requires.
var moduleRoutes = map[string]auth.Permission{
	"/estudantes": auth.CanEstudantes,
	"/pei":        auth.CanPEI,
	"/paee":       auth.CanPAEE,
	"/pgi":        auth.CanPGI,
	"/hub":        auth.CanHub,
	"/diario":     auth.CanDiario,
	"/avaliacao":  auth.CanAvaliacao,
	"/gestao":     auth.CanGestao,
	"/config":     auth.CanConfig,
}

func buildServeCmd(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := auth.NewLogger("omnisfera", os.Stdout)

			opts, err := loadOptions(*configFile, logger)
			if err != nil {
				return err
			}

			db, err := openDB(opts)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := auth.Migrate(cmd.Context(), db); err != nil {
				return err
			}

			redisClient, err := openRedis(cmd.Context(), opts)
			if err != nil {
				return err
			}

			var revocations auth.RevocationStore
			if redisClient != nil {
				defer redisClient.Close()
				revocations = auth.NewRedisRevocationStore(redisClient, "")
			}

			app, err := newApp(opts, auth.NewMembersRepository(db), revocations, logger)
			if err != nil {
				return err
			}

			go func() {
				<-cmd.Context().Done()
				_ = app.Shutdown()
			}()

			logger.Info("listening", "addr", opts.ListenAddr, "insecure_secret", opts.Insecure())
			return app.Listen(opts.ListenAddr)
		},
	}
}

func newApp(opts *auth.Options, members *auth.Members, revocations auth.RevocationStore, logger auth.Logger) (*fiber.App, error) {
	tokens, err := auth.NewTokenService(opts, auth.WithTokenLogger(logger))
	if err != nil {
		return nil, err
	}

	activity := auth.ActivitySinkFunc(func(ctx context.Context, event auth.ActivityEvent) error {
		record := activitymap.Normalize(event)
		logger.Info("activity",
			"verb", record.Verb,
			"actor_id", record.ActorID,
			"object_id", record.ObjectID,
			"workspace_id", record.WorkspaceID,
			"metadata", record.Metadata,
		)
		return nil
	})

	store := auth.NewSessionStore(tokens,
		auth.WithMemberDirectory(members),
		auth.WithRevocationStore(revocations),
		auth.WithSessionLogger(logger),
	)

	auther := auth.NewHTTPAuthenticator(store, opts).WithLogger(logger)

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	app.Use(auther.Guard())

	auth.RegisterAuthRoutes(app,
		auth.WithAuthenticator(auther),
		auth.WithIdentityProvider(auth.NewIdentityProvider(members,
			auth.WithIdentityActivitySink(activity),
			auth.WithIdentityLogger(logger),
		)),
		auth.WithImpersonator(auth.NewImpersonator(store, members,
			auth.WithImpersonationActivitySink(activity),
			auth.WithImpersonationLogger(logger),
		)),
		auth.WithControllerActivitySink(activity),
		auth.WithControllerLogger(logger),
	)

	for path, permission := range moduleRoutes {
		app.Get(path, auther.RequirePermission(permission), func(c *fiber.Ctx) error {
			return c.JSON(fiber.Map{
				"module":     path,
				"permission": permission,
			})
		})
	}

	app.Get("/", func(c *fiber.Ctx) error {
		session, _ := auther.CurrentSession(c)
		return c.JSON(auth.NewSessionView(session))
	})

	return app, nil
}
