package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"strings"

	"github.com/diwise/sensorthings-importer/pkg/sensorthings/entities"
	"github.com/diwise/sensorthings-importer/pkg/sensorthings/errors"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

//go:generate moq -rm -out ../test/sensorthingsclient_mock.go . SensorThingsClient

// SensorThingsClient talks to an OGC SensorThings API v1.1 service.
type SensorThingsClient interface {
	Query(ctx context.Context, set string, parameters ...RequestDecoratorFunc) (*QueryResult, error)
	QueryNext(ctx context.Context, nextLink string) (*QueryResult, error)
	Create(ctx context.Context, set string, entity any) (entities.ID, error)
	Update(ctx context.Context, set string, id entities.ID, fragment any) error
	CreateObservations(ctx context.Context, groups []entities.DataArray) ([]string, error)
}

type RequestDecoratorFunc func([]string) []string

// QueryResult is one page of a query response. Entities are kept in their
// raw form so that callers control how they are decoded.
type QueryResult struct {
	Values   []json.RawMessage `json:"value"`
	Count    int64             `json:"@iot.count,omitempty"`
	NextLink string            `json:"@iot.nextLink,omitempty"`
}

func Debug(enabled string) func(*staClient) {
	return func(c *staClient) {
		c.debug = (enabled == "true")
	}
}

// BasicAuth configures credentials for services behind basic authentication.
func BasicAuth(user, password string) func(*staClient) {
	return func(c *staClient) {
		c.user = user
		c.password = password
	}
}

func New(serviceURL string, options ...func(*staClient)) SensorThingsClient {
	c := &staClient{
		baseURL: strings.TrimSuffix(serviceURL, "/") + "/v1.1",
		debug:   false,
	}

	for _, option := range options {
		option(c)
	}

	return c
}

const (
	TraceAttributeEntitySet string = "entity-set"
	TraceAttributeEntityID  string = "entity-id"
)

var tracer = otel.Tracer("sensorthings-client")

type staClient struct {
	baseURL  string
	user     string
	password string
	debug    bool
}

func (c staClient) Query(ctx context.Context, set string, parameters ...RequestDecoratorFunc) (*QueryResult, error) {
	params := make([]string, 0, 5)
	for _, rdf := range parameters {
		params = rdf(params)
	}

	endpoint := c.baseURL + "/" + set
	if len(params) > 0 {
		endpoint = endpoint + "?" + strings.Join(params, "&")
	}

	return c.queryURL(ctx, set, endpoint)
}

func (c staClient) QueryNext(ctx context.Context, nextLink string) (*QueryResult, error) {
	return c.queryURL(ctx, "next", nextLink)
}

func (c staClient) queryURL(ctx context.Context, set, endpoint string) (*QueryResult, error) {
	var err error

	ctx, span := tracer.Start(ctx, "query-entities",
		trace.WithAttributes(attribute.String(TraceAttributeEntitySet, set)),
	)
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	response, responseBody, err := c.callService(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	if response.StatusCode != http.StatusOK {
		err = errors.NewErrorFromResponse(response.StatusCode, responseBody)
		return nil, err
	}

	result := &QueryResult{}
	err = json.Unmarshal(responseBody, result)
	if err != nil {
		err = fmt.Errorf("failed to unmarshal query response: %s (%w)", err.Error(), errors.ErrBadResponse)
		return nil, err
	}

	return result, nil
}

func (c staClient) Create(ctx context.Context, set string, entity any) (entities.ID, error) {
	var err error

	ctx, span := tracer.Start(ctx, "create-entity",
		trace.WithAttributes(attribute.String(TraceAttributeEntitySet, set)),
	)
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	payload, err := json.Marshal(entity)
	if err != nil {
		return entities.ID{}, fmt.Errorf("failed to marshal entity: %s (%w)", err.Error(), errors.ErrInternal)
	}

	response, responseBody, err := c.callService(ctx, http.MethodPost, c.baseURL+"/"+set, bytes.NewReader(payload))
	if err != nil {
		return entities.ID{}, err
	}

	if response.StatusCode != http.StatusCreated {
		err = errors.NewErrorFromResponse(response.StatusCode, responseBody)
		return entities.ID{}, err
	}

	location := response.Header.Get("Location")
	id, ok := parseIDFromLocation(location)
	if !ok {
		err = fmt.Errorf("service did not provide a usable location header (%q) with created response (%w)",
			location, errors.ErrBadResponse)
		return entities.ID{}, err
	}

	span.SetAttributes(attribute.String(TraceAttributeEntityID, id.String()))

	return id, nil
}

func (c staClient) Update(ctx context.Context, set string, id entities.ID, fragment any) error {
	var err error

	ctx, span := tracer.Start(ctx, "update-entity",
		trace.WithAttributes(attribute.String(TraceAttributeEntitySet, set)),
		trace.WithAttributes(attribute.String(TraceAttributeEntityID, id.String())),
	)
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	payload, err := json.Marshal(fragment)
	if err != nil {
		return fmt.Errorf("failed to marshal entity: %s (%w)", err.Error(), errors.ErrInternal)
	}

	response, responseBody, err := c.callService(
		ctx, http.MethodPatch, c.baseURL+"/"+set+"("+id.String()+")", bytes.NewReader(payload),
	)
	if err != nil {
		return err
	}

	if response.StatusCode != http.StatusOK && response.StatusCode != http.StatusNoContent {
		err = errors.NewErrorFromResponse(response.StatusCode, responseBody)
		return err
	}

	return nil
}

func (c staClient) CreateObservations(ctx context.Context, groups []entities.DataArray) ([]string, error) {
	var err error

	ctx, span := tracer.Start(ctx, "create-observations")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	payload, err := json.Marshal(groups)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal data arrays: %s (%w)", err.Error(), errors.ErrInternal)
	}

	response, responseBody, err := c.callService(ctx, http.MethodPost, c.baseURL+"/CreateObservations", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}

	if response.StatusCode != http.StatusCreated && response.StatusCode != http.StatusOK {
		err = errors.NewErrorFromResponse(response.StatusCode, responseBody)
		return nil, err
	}

	var results []string
	err = json.Unmarshal(responseBody, &results)
	if err != nil {
		err = fmt.Errorf("failed to unmarshal create observations response: %s (%w)", err.Error(), errors.ErrBadResponse)
		return nil, err
	}

	return results, nil
}

func (c staClient) callService(ctx context.Context, method, endpoint string, body io.Reader) (*http.Response, []byte, error) {
	httpClient := http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %s (%w)", err.Error(), errors.ErrInternal)
	}

	if body != nil {
		req.Header.Add("Content-Type", "application/json")
	}

	if c.user != "" {
		req.SetBasicAuth(c.user, c.password)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to send request: %s (%w)", err.Error(), errors.ErrRemoteCallFailure)
	}

	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response body: %s (%w)", err.Error(), errors.ErrBadResponse)
	}

	if c.debug && resp.StatusCode >= http.StatusBadRequest {
		reqbytes, _ := httputil.DumpRequest(req, false)
		respbytes, _ := httputil.DumpResponse(resp, false)

		log := logging.GetFromContext(ctx)
		log.Error("request failed", "request", string(reqbytes), "response", string(respbytes))
	}

	return resp, respBody, nil
}

func parseIDFromLocation(location string) (entities.ID, bool) {
	opening := strings.LastIndex(location, "(")
	closing := strings.LastIndex(location, ")")

	if opening < 0 || closing <= opening+1 {
		return entities.ID{}, false
	}

	raw := location[opening+1 : closing]

	if strings.HasPrefix(raw, "'") && strings.HasSuffix(raw, "'") && len(raw) >= 2 {
		return entities.NewID(strings.ReplaceAll(raw[1:len(raw)-1], "''", "'")), true
	}

	var number json.Number
	if err := json.Unmarshal([]byte(raw), &number); err != nil {
		return entities.ID{}, false
	}

	return entities.NewID(number), true
}
