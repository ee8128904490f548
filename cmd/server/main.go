/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the leave management server. Handles
  configuration, dependency wiring, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Initialize SQLite store (optionally seed reference data)
  3. Build ledger, calendar, dispatcher, and approval service
  4. Configure HTTP router with bearer-token auth
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port            HTTP server port (default: 8080)
  -db              SQLite database path (default: leave.db, ":memory:" ok)
  -jwt-secret      HS256 secret for bearer tokens (required)
  -allow-zero-day  Accept submissions covering no working day
  -docs            Directory for generated approval PDFs
  -cors-origin     Comma-separated allowed CORS origins
  -mail-domain     Map employee ids to id@domain for notifications
  -smtp-host/-smtp-port/-smtp-user/-smtp-password/-smtp-tls
  -mail-from       Sender address for notifications
  -seed            Insert demo employees and leave types, then continue

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM: stop accepting connections, wait up to 30s for
  in-flight requests, drain the dispatch queue, close the database.

EXAMPLES:
  ./server -db=./data/leave.db -jwt-secret=$SECRET
  ./server -db=:memory: -jwt-secret=dev -seed -allow-zero-day
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/leave-engine/api"
	"github.com/warp/leave-engine/approval"
	"github.com/warp/leave-engine/calendar"
	"github.com/warp/leave-engine/dispatch"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/ledger"
	"github.com/warp/leave-engine/store/sqlite"
)

func main() {
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "leave.db", "SQLite database path")
	jwtSecret := flag.String("jwt-secret", "", "HS256 secret for bearer tokens")
	allowZeroDay := flag.Bool("allow-zero-day", false, "accept submissions covering no working day")
	docsDir := flag.String("docs", "./documents", "directory for generated approval PDFs")
	corsOrigins := flag.String("cors-origin", "http://localhost:5173", "comma-separated allowed CORS origins")
	mailDomain := flag.String("mail-domain", "", "map employee ids to id@domain for notifications")
	mailFrom := flag.String("mail-from", "leave@localhost", "sender address for notifications")
	smtpHost := flag.String("smtp-host", "", "SMTP host (empty disables email)")
	smtpPort := flag.Int("smtp-port", 587, "SMTP port")
	smtpUser := flag.String("smtp-user", "", "SMTP username")
	smtpPassword := flag.String("smtp-password", "", "SMTP password")
	smtpTLS := flag.Bool("smtp-tls", true, "use STARTTLS for SMTP")
	seed := flag.Bool("seed", false, "insert demo employees and leave types")
	flag.Parse()

	if *jwtSecret == "" {
		log.Fatal("-jwt-secret is required")
	}

	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	if *seed {
		if err := seedDemo(context.Background(), store); err != nil {
			log.Fatalf("Failed to seed demo data: %v", err)
		}
		log.Println("Seeded demo employees and leave types")
	}

	entitlement := func(ctx context.Context, key ledger.Key) (decimal.Decimal, error) {
		lt, err := store.LeaveType(ctx, key.LeaveTypeID)
		if err != nil {
			return decimal.Zero, err
		}
		return lt.AnnualEntitlement, nil
	}
	l := ledger.New(store, entitlement)
	cal := calendar.New()

	mailer := dispatch.NewMailer(dispatch.SMTPConfig{
		Host:     *smtpHost,
		Port:     *smtpPort,
		User:     *smtpUser,
		Password: *smtpPassword,
		UseTLS:   *smtpTLS,
	})
	var contacts dispatch.ContactFunc
	if *mailDomain != "" {
		domain := *mailDomain
		contacts = func(_ context.Context, employeeID string) (string, error) {
			return employeeID + "@" + domain, nil
		}
	}
	dispatcher := dispatch.New(dispatch.NewRenderer(*docsDir), mailer, contacts, *mailFrom)
	defer dispatcher.Close()

	svc := &approval.Service{
		Requests:  store,
		Employees: store,
		Types:     store,
		Ledger:    l,
		Calendar:  cal,
		Events:    dispatcher,
		Policy:    approval.Policy{AllowZeroDay: *allowZeroDay},
	}

	handler := api.NewHandler(svc, l, cal)
	router := api.NewRouter(handler, *jwtSecret, strings.Split(*corsOrigins, ","))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on http://localhost:%d", *port)
		log.Printf("API available at http://localhost:%d/api", *port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}

// seedDemo inserts a small reference data set for local development.
func seedDemo(ctx context.Context, store *sqlite.Store) error {
	types := []leave.LeaveType{
		{ID: "annual", Name: "Annual Leave", AnnualEntitlement: decimal.NewFromInt(21), Paid: true},
		{ID: "sick", Name: "Sick Leave", AnnualEntitlement: decimal.NewFromInt(14), Paid: true},
		{ID: "unpaid", Name: "Unpaid Leave", AnnualEntitlement: decimal.NewFromInt(30), Paid: false},
	}
	for _, t := range types {
		if err := store.PutLeaveType(ctx, t); err != nil {
			return err
		}
	}

	employees := []leave.Employee{
		{ID: "emp-1", DepartmentID: "engineering", HireDate: calendar.NewDate(2021, time.March, 1)},
		{ID: "emp-2", DepartmentID: "engineering", HireDate: calendar.NewDate(2023, time.July, 10)},
		{ID: "emp-3", DepartmentID: "finance", HireDate: calendar.NewDate(2019, time.November, 4)},
	}
	for _, e := range employees {
		if err := store.PutEmployee(ctx, e); err != nil {
			return err
		}
	}
	return nil
}
