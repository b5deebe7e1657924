package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/diwise/service-chassis/pkg/infrastructure/servicerunner"
	testutils "github.com/diwise/service-chassis/pkg/test/http"
	"github.com/diwise/service-chassis/pkg/test/http/expects"
	"github.com/diwise/service-chassis/pkg/test/http/response"

	"github.com/matryer/is"
)

var Expects = testutils.Expects
var Returns = testutils.Returns
var path = expects.RequestPath

var dowork = servicerunner.WithWorker[AppConfig]

func DefaultTestFlags() FlagMap {
	return FlagMap{
		listenAddress: "",  // listen on all ipv4 and ipv6 interfaces
		servicePort:   "0", //
		controlPort:   "",  // control port disabled by default

		logFormat: "json",
	}
}

func TestIntegratePreviewOfAFeatureCollection(t *testing.T) {
	is := is.New(t)
	ctx, cancelTest := context.WithCancel(t.Context())

	// previews must never reach the store, so any request fails the path expectation
	ms := testutils.NewMockServiceThat(
		Expects(is, path("/never")),
		Returns(response.Code(http.StatusNotFound)),
	)

	flags := DefaultTestFlags()
	flags[targetURL] = ms.URL()

	app, err := initialize(ctx, flags, &AppConfig{
		mappingConfig: newTestConfig(previewMapping),
		opaConfig:     newAuthConfig(),
	})
	is.NoErr(err)

	app.Run(ctx, dowork(func(ctx context.Context, appConfig *AppConfig) error {
		defer cancelTest()

		response, responseBody := testRequest(appConfig.publicPort, http.MethodPost, "/api/v0/import/preview", bytes.NewBufferString(featureCollection))

		is.True(response != nil)
		is.Equal(response.StatusCode, http.StatusOK)
		is.True(strings.Contains(responseBody, `"equalsFilter":"name eq 'DE1'"`))
		is.True(strings.Contains(responseBody, `"description":"Region Stuttgart"`))

		return nil
	}))
}

func TestIntegrateDryRunImportLeavesTheStoreUntouched(t *testing.T) {
	is := is.New(t)
	ctx, cancelTest := context.WithCancel(t.Context())

	// a dry run must never reach the store, so any request fails the path expectation
	ms := testutils.NewMockServiceThat(
		Expects(is, path("/never")),
		Returns(response.Code(http.StatusNotFound)),
	)

	flags := DefaultTestFlags()
	flags[targetURL] = ms.URL()

	app, err := initialize(ctx, flags, &AppConfig{
		mappingConfig: newTestConfig(dryRunMapping),
		opaConfig:     newAuthConfig(),
	})
	is.NoErr(err)

	app.Run(ctx, dowork(func(ctx context.Context, appConfig *AppConfig) error {
		defer cancelTest()

		response, responseBody := testRequest(appConfig.publicPort, http.MethodPost, "/api/v0/import", bytes.NewBufferString(featureCollection))

		is.True(response != nil)
		is.Equal(response.StatusCode, http.StatusOK)
		is.True(strings.Contains(responseBody, `"dryRun":true`))
		is.True(strings.Contains(responseBody, `"created":1`))

		return nil
	}))
}

func testRequest(port, method, path string, body io.Reader) (*http.Response, string) {
	req, _ := http.NewRequest(method, "http://127.0.0.1:"+port+path, body)
	resp, _ := http.DefaultClient.Do(req)
	respBody, _ := io.ReadAll(resp.Body)
	defer resp.Body.Close()

	return resp, string(respBody)
}

func newAuthConfig() io.ReadCloser {
	return io.NopCloser(bytes.NewBufferString(opaModule))
}

func newTestConfig(mapping string) io.ReadCloser {
	return io.NopCloser(bytes.NewBufferString(mapping))
}

var previewMapping string = `
locations:
  name: '{properties/NUTS_ID}'
  description: Region {properties/NUTS_NAME|-}
`

var dryRunMapping string = `
dryRun: true
locations:
  name: '{properties/NUTS_ID}'
`

const featureCollection string = `{
	"type": "FeatureCollection",
	"features": [
		{
			"type": "Feature",
			"properties": {"NUTS_ID": "DE1", "NUTS_NAME": "Stuttgart"},
			"geometry": {"type": "Point", "coordinates": [9.18, 48.78]}
		}
	]
}`

const opaModule string = `
package example.authz

default allow := false

allow = response {
    response := {
    }
}
`
