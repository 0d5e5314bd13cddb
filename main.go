package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"

	"go.uber.org/zap"
	"p9e.in/fixport/config"
	"p9e.in/fixport/handlers"
	"p9e.in/fixport/middleware"
	"p9e.in/fixport/pkg/attach"
	"p9e.in/fixport/pkg/mailer"
	"p9e.in/fixport/pkg/objectstore"
	"p9e.in/fixport/pkg/store"
	"p9e.in/fixport/pkg/tenant"
	"p9e.in/fixport/routes"
)

var (
	Version   = "dev"
	BuildTime = ""
)

func main() {
	versionFlag := flag.Bool("version", false, "Print version info and exit")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("Version:   %s\n", Version)
		fmt.Printf("BuildTime: %s\n", BuildTime)
		os.Exit(0)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("could not build logger: %v", err)
	}
	defer logger.Sync()

	settings, err := config.Load()
	if err != nil {
		logger.Fatal("configuration error", zap.Error(err))
	}

	db, err := config.Connect(settings)
	if err != nil {
		logger.Fatal("database error", zap.Error(err))
	}
	if err := config.Migrations(db); err != nil {
		logger.Fatal("could not run migrations", zap.Error(err))
	}
	if settings.SeedDemo {
		if err := config.SeedCompanies(db); err != nil {
			logger.Warn("seeding encountered issues", zap.Error(err))
		}
	}

	var objects objectstore.Store
	if settings.UseGCS {
		gcs, err := objectstore.NewGCS(context.Background(), settings.GCSBucket)
		if err != nil {
			logger.Fatal("object store error", zap.Error(err))
		}
		defer gcs.Close()
		objects = gcs
	} else {
		objects = objectstore.NewLocal(settings.UploadDir, settings.PublicBaseURL)
	}

	st := store.New(db)
	resolver := tenant.NewResolver(st, logger)
	mail := mailer.New(settings.MailAPIURL, settings.MailAPIKey, settings.MailFrom, settings.MailTo, logger)
	pipeline := attach.NewPipeline(objects, st, logger)

	auth := middleware.NewAuth(settings.JWTSecret, st)
	tenantMW := middleware.NewTenant(resolver)

	handler := routes.Register(routes.Deps{
		Auth:         auth,
		Tenant:       tenantMW,
		AuthH:        handlers.NewAuthHandler(st, st, st, auth, resolver, mail, logger),
		CompanyH:     handlers.NewCompanyHandler(resolver),
		WorkOrderH:   handlers.NewWorkOrderHandler(st, mail, logger),
		PhotoH:       handlers.NewPhotoHandler(pipeline, st, objects, logger),
		NotifyH:      handlers.NewNotifyHandler(mail, logger),
		ServeUploads: !settings.UseGCS,
		UploadDir:    settings.UploadDir,
	})

	logger.Info("server starting", zap.String("port", settings.Port), zap.String("version", Version))
	if err := http.ListenAndServe(":"+settings.Port, enableCORS(handler)); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, x-app-host, X-Requested-With")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")

		// Handle preflight (OPTIONS)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
