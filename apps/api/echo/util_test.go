package echoapi_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	echoapi "github.com/trezcool/eudg/apps/api/echo"
	"github.com/trezcool/eudg/core"
	"github.com/trezcool/eudg/core/risk"
	inmemstore "github.com/trezcool/eudg/storage/inmem"
	"github.com/trezcool/eudg/tests"
)

type httpErr struct {
	Detail interface{} `json:"detail"`
}

type httpTest struct {
	name        string
	method      string
	path        string
	body        io.Reader
	contentType string
	wantCode    int
	wantData    []byte
}

func setup(t *testing.T) (*echoapi.Server, *testutil.Logger) {
	t.Helper()

	conf := core.NewConfig()
	conf.Debug = false
	conf.TestMode = true
	conf.Model.Rounds = 20

	logger := &testutil.Logger{}
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)

	svc := risk.NewService(inmemstore.NewSessionStore(), validate, translator, logger, conf)
	return echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:       conf,
			Logger:     logger,
			RiskSvc:    svc,
			Validate:   validate,
			Translator: translator,
		},
	), logger
}

func newRequest(method, path string, body io.Reader, contentType string) (*http.Request, *httptest.ResponseRecorder) {
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, body)
	if contentType == "" {
		contentType = "application/json"
	}
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	return req, rec
}

func uploadRequest(t *testing.T, files map[string]string) (*http.Request, *httptest.ResponseRecorder) {
	body, contentType := testutil.MultipartBody(t, files)
	return newRequest(http.MethodPost, "/api/process-files/", body, contentType)
}

func upload(t *testing.T, app http.Handler, cohort testutil.Cohort) echoapi.ProcessResponse {
	t.Helper()
	req, rec := uploadRequest(t, cohort.Form())
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("upload() failed: code = %d; body %s", rec.Code, rec.Body.String())
	}
	var resp echoapi.ProcessResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("upload() failed: %v", err)
	}
	return resp
}

func marshalObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshalObj() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	if !assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst)) {
		t.FailNow()
	}
}
