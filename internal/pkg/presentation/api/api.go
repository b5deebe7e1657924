package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/diwise/sensorthings-importer/internal/pkg/application/importer"
	"github.com/diwise/sensorthings-importer/internal/pkg/infrastructure/router"
	"github.com/diwise/sensorthings-importer/internal/pkg/presentation/api/auth"
	problems "github.com/diwise/sensorthings-importer/internal/pkg/presentation/api/errors"
	"github.com/diwise/sensorthings-importer/pkg/sensorthings/client"
	staerrors "github.com/diwise/sensorthings-importer/pkg/sensorthings/errors"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("sensorthings-importer/api")

func RegisterHandlers(ctx context.Context, serviceName string, mux *http.ServeMux, policies io.Reader, cfg *importer.Config, sta client.SensorThingsClient) error {

	authenticator, err := auth.NewAuthenticator(ctx, policies)
	if err != nil {
		return fmt.Errorf("failed to create api authenticator: %w", err)
	}

	log := logging.GetFromContext(ctx)

	r := router.New(serviceName, log)

	r.Route("/api/v0/import", func(r chi.Router) {
		r.Use(Logger(log))
		r.Use(RequiredContentTypes([]string{"application/json", "application/geo+json", "text/csv"}))

		r.Post("/", NewImportHandler(cfg, sta, authenticator))
		r.Post("/preview", NewPreviewHandler(cfg, sta, authenticator))
	})

	r.Get("/health", NewHealthHandler())

	mux.Handle("/", r)

	return nil
}

func Logger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			_, ctx, _ = o11y.AddTraceIDToLoggerAndStoreInContext(
				trace.SpanFromContext(ctx),
				logger,
				ctx)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func RequiredContentTypes(validTypes []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			contentType := r.Header.Get("Content-Type")
			isValidContentType := true

			if len(contentType) > 0 {
				isValidContentType = false

				for _, t := range validTypes {
					if strings.HasPrefix(contentType, t) {
						isValidContentType = true
						break
					}
				}
			}

			if isValidContentType {
				next.ServeHTTP(w, r)
			} else {
				http.Error(w, "unsupported media type", http.StatusUnsupportedMediaType)
			}
		})
	}
}

// NewImportHandler handles POST requests that run a full import of the
// posted payload against the configured SensorThings service
func NewImportHandler(cfg *importer.Config, sta client.SensorThingsClient, authenticator auth.Enticator) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error

		ctx, span := tracer.Start(r.Context(), "import")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		_, ctx, log := o11y.AddTraceIDToLoggerAndStoreInContext(span, logging.GetFromContext(ctx), ctx)

		err = authenticator.CheckAccess(ctx, r)
		if err != nil {
			log.Warn("access not granted", "err", err.Error())
			messageToSendToNonAuthenticatedClients := "not found"
			problems.ReportNotFoundError(w, messageToSendToNonAuthenticatedClients, traceID(ctx))
			return
		}

		records, err := readRecords(r, cfg)
		if err != nil {
			log.Error("failed to parse import payload", "err", err.Error())
			problems.ReportNewBadRequestData(w, err.Error(), traceID(ctx))
			return
		}

		report, err := importer.New(cfg, sta).Run(ctx, records)
		if err != nil {
			log.Error("import run failed", "err", err.Error())
			mapImportError(w, err, traceID(ctx))
			return
		}

		respondWithJSON(w, http.StatusOK, report)
	})
}

// NewPreviewHandler handles POST requests that render the entities an
// import of the posted payload would produce, without calling the service
func NewPreviewHandler(cfg *importer.Config, sta client.SensorThingsClient, authenticator auth.Enticator) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error

		ctx, span := tracer.Start(r.Context(), "preview-import")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		_, ctx, log := o11y.AddTraceIDToLoggerAndStoreInContext(span, logging.GetFromContext(ctx), ctx)

		err = authenticator.CheckAccess(ctx, r)
		if err != nil {
			log.Warn("access not granted", "err", err.Error())
			messageToSendToNonAuthenticatedClients := "not found"
			problems.ReportNotFoundError(w, messageToSendToNonAuthenticatedClients, traceID(ctx))
			return
		}

		records, err := readRecords(r, cfg)
		if err != nil {
			log.Error("failed to parse import payload", "err", err.Error())
			problems.ReportNewBadRequestData(w, err.Error(), traceID(ctx))
			return
		}

		previews := importer.New(cfg, sta).PreviewRecords(records)

		respondWithJSON(w, http.StatusOK, previews)
	})
}

func NewHealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}
}

func readRecords(r *http.Request, cfg *importer.Config) ([]importer.Record, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, staerrors.NewMalformedPayloadError("failed to read request body: " + err.Error())
	}

	return importer.ParseRecords(body, cfg)
}

func mapImportError(w http.ResponseWriter, err error, traceID string) {
	switch {
	case errors.Is(err, staerrors.ErrMalformedPayload):
		problems.ReportNewBadRequestData(w, err.Error(), traceID)
	case errors.Is(err, staerrors.ErrRemoteCallFailure), errors.Is(err, staerrors.ErrBadResponse):
		problems.ReportNewBadGateway(w, err.Error(), traceID)
	default:
		problems.ReportNewInternalError(w, err.Error(), traceID)
	}
}

func respondWithJSON(w http.ResponseWriter, code int, body any) {
	b, err := json.Marshal(body)
	if err != nil {
		problems.ReportNewInternalError(w, "failed to marshal response: "+err.Error(), "")
		return
	}

	w.Header().Add("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(b)
}

func traceID(ctx context.Context) string {
	spanCtx := trace.SpanContextFromContext(ctx)

	if spanCtx.HasTraceID() {
		return spanCtx.TraceID().String()
	}

	return ""
}
