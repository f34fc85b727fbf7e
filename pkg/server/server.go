package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/foliobooks/folio/pkg/annotations"
	"github.com/foliobooks/folio/pkg/auth"
	"github.com/foliobooks/folio/pkg/binder"
	"github.com/foliobooks/folio/pkg/books"
	"github.com/foliobooks/folio/pkg/catalog"
	"github.com/foliobooks/folio/pkg/config"
	"github.com/foliobooks/folio/pkg/database"
	"github.com/foliobooks/folio/pkg/discovery"
	"github.com/foliobooks/folio/pkg/errcodes"
	"github.com/foliobooks/folio/pkg/events"
	"github.com/foliobooks/folio/pkg/extract"
	"github.com/foliobooks/folio/pkg/ingest"
	"github.com/foliobooks/folio/pkg/localstore"
	"github.com/foliobooks/folio/pkg/pdf"
	"github.com/foliobooks/folio/pkg/remote"
	"github.com/foliobooks/folio/pkg/testutils"
	"github.com/foliobooks/folio/pkg/worker"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/echo/v4/health"
	"github.com/robinjoseph08/golib/echo/v4/middleware/logger"
	"github.com/robinjoseph08/golib/echo/v4/middleware/recovery"
)

// New wires every service onto an echo server. renderer may be nil, in
// which case PDF covers are never extracted.
func New(cfg *config.Config, store *localstore.Store, wrkr *worker.Worker, renderer *pdf.Renderer) (*http.Server, error) {
	e := echo.New()

	b, err := binder.New()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	e.Binder = b

	e.Use(logger.Middleware())
	e.Use(recovery.Middleware())
	e.Use(middleware.CORS())
	if cfg.DatabaseDebug {
		e.Use(queryLogging)
	}

	health.RegisterRoutes(e)

	authService := auth.NewService(cfg.RemoteJWTSecret)
	authMiddleware := auth.RegisterRoutes(e, authService)

	// Only assign the remote when one is configured, so the interface
	// stays nil rather than holding a nil client.
	var rem books.Remote
	if client := remote.New(cfg, nil); client != nil {
		rem = client
	}
	bookService := books.NewService(store, rem)

	httpClient := &http.Client{Timeout: cfg.DiscoveryRequestTimeout}
	resolver := discovery.NewResolver(cfg, httpClient)

	var pdfPages extract.PageOpener
	if renderer != nil {
		pdfPages = extract.PDFPages(renderer)
	}

	broker := events.NewBroker()
	coordinator := ingest.New(bookService, extract.New(pdfPages), resolver, wrkr, broker)

	booksGroup := e.Group("/books", middleware.BodyLimit(cfg.UploadMaxSize))
	books.RegisterRoutesWithGroup(booksGroup, bookService, coordinator, authMiddleware)
	annotations.RegisterRoutesWithGroup(booksGroup, annotations.NewService(store, bookService))

	catalogService := catalog.NewService(cfg, discovery.NewGoogleBooksClient(cfg, httpClient))
	catalog.RegisterRoutes(e, catalogService, authMiddleware)

	events.RegisterRoutes(e, broker, cfg.EventsHeartbeatInterval, authMiddleware)

	if cfg.Environment == "test" {
		testutils.RegisterRoutes(e, store, authService)
	}

	echo.NotFoundHandler = notFoundHandler
	e.HTTPErrorHandler = errcodes.NewHandler().Handle

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.ServerHost, cfg.ServerPort),
		Handler:           e,
		ReadHeaderTimeout: 3 * time.Second,
	}

	return srv, nil
}

func notFoundHandler(c echo.Context) error {
	c.SetPath("/:path")
	return errcodes.NotFound("Page")
}

// queryLogging turns on the database query hook for everything a request
// runs synchronously.
func queryLogging(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		c.SetRequest(req.WithContext(database.WithLogging(req.Context())))
		return next(c)
	}
}
