package routes

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"p9e.in/fixport/handlers"
	"p9e.in/fixport/middleware"
)

// Deps is everything the router wires together.
type Deps struct {
	Auth       *middleware.Auth
	Tenant     *middleware.Tenant
	AuthH      *handlers.AuthHandler
	CompanyH   *handlers.CompanyHandler
	WorkOrderH *handlers.WorkOrderHandler
	PhotoH     *handlers.PhotoHandler
	NotifyH    *handlers.NotifyHandler

	// ServeUploads exposes the local upload dir in development; the
	// GCS backend serves its own public URLs.
	ServeUploads bool
	UploadDir    string
}

// Register sets up all application routes.
func Register(d Deps) http.Handler {
	r := mux.NewRouter()

	// =====================================================
	// Public Routes (no authentication)
	// =====================================================
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}).Methods("GET")

	r.HandleFunc("/register", d.AuthH.Register).Methods("POST")
	r.HandleFunc("/login", d.AuthH.Login).Methods("POST")
	r.HandleFunc("/auth/otp", d.AuthH.RequestLoginLink).Methods("POST")
	r.HandleFunc("/auth/callback", d.AuthH.Callback).Methods("GET")

	r.HandleFunc("/api/company/by-host", d.CompanyH.ByHost).Methods("GET")

	// webhook target for database-event notifications
	r.HandleFunc("/api/notify/work-order", d.NotifyH.WorkOrderCreated).Methods("POST")

	if d.ServeUploads {
		r.PathPrefix("/uploads/").Handler(
			http.StripPrefix("/uploads/", http.FileServer(http.Dir(d.UploadDir))),
		)
	}

	// =====================================================
	// Protected API Routes (require a live session)
	// =====================================================
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(d.Auth.Middleware)

	api.HandleFunc("/session", d.AuthH.Session).Methods("GET")
	api.HandleFunc("/logout", d.AuthH.Logout).Methods("POST")

	// tenant-scoped resources additionally resolve the company
	wo := api.PathPrefix("/work-orders").Subrouter()
	wo.Use(d.Tenant.Middleware)
	wo.HandleFunc("", d.WorkOrderH.List).Methods("GET")
	wo.HandleFunc("", d.WorkOrderH.Create).Methods("POST")
	wo.HandleFunc("/export", d.WorkOrderH.ExportCompleted).Methods("GET")
	wo.HandleFunc("/{id}", d.WorkOrderH.Get).Methods("GET")
	wo.HandleFunc("/{id}", d.WorkOrderH.Update).Methods("PUT")
	wo.HandleFunc("/{id}", d.WorkOrderH.Delete).Methods("DELETE")
	wo.HandleFunc("/{id}/complete", d.WorkOrderH.Complete).Methods("PUT")
	wo.HandleFunc("/{id}/notes", d.WorkOrderH.ListNotes).Methods("GET")
	wo.HandleFunc("/{id}/notes", d.WorkOrderH.AddNote).Methods("POST")
	wo.HandleFunc("/{id}/photos", d.PhotoH.List).Methods("GET")

	files := api.PathPrefix("/files").Subrouter()
	files.Use(d.Tenant.Middleware)
	files.HandleFunc("", d.PhotoH.Upload).Methods("POST")

	return r
}
