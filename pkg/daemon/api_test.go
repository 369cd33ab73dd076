package daemon

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/teclabat/performance-go/pkg/keystore"
	"github.com/teclabat/performance-go/pkg/xor"
)

func doRequest(t *testing.T, d *Daemon, method, target string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshaling request body: %v", err)
		}
		reader = bytes.NewReader(buf)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	d.Api.Api.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
}

func TestApiXor(t *testing.T) {
	d := newTestDaemon(t)

	rec := doRequest(t, d, http.MethodPost, "/v1/xor", XorRequest{
		Data: b64([]byte{0x41, 0x42, 0x43}),
		Salt: b64([]byte{0x01}),
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp XorResponse
	decodeResponse(t, rec, &resp)
	out, err := base64.StdEncoding.DecodeString(resp.Result)
	if err != nil {
		t.Fatalf("result is not base64: %q", resp.Result)
	}
	if want := []byte{0x40, 0x43, 0x42}; !bytes.Equal(out, want) {
		t.Errorf("result = %v, want %v", out, want)
	}
	if resp.Size != 3 {
		t.Errorf("size = %d, want 3", resp.Size)
	}
}

func TestApiXorEmptySalt(t *testing.T) {
	d := newTestDaemon(t)

	rec := doRequest(t, d, http.MethodPost, "/v1/xor", XorRequest{
		Data: b64([]byte("payload")),
		Salt: "",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 (body: %s)", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "empty key") {
		t.Errorf("body = %s, want empty-key error", rec.Body.String())
	}
}

func TestApiXorBothSaltForms(t *testing.T) {
	d := newTestDaemon(t)

	rec := doRequest(t, d, http.MethodPost, "/v1/xor", XorRequest{
		Data:     b64([]byte("payload")),
		Salt:     b64([]byte("salt")),
		SaltName: "alpha",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestApiXorSaltName(t *testing.T) {
	d := newTestDaemon(t)

	salt := []byte("web salt")
	if err := d.Keystore().Put("web", salt); err != nil {
		t.Fatalf("seeding keystore: %v", err)
	}

	data := []byte("payload for web")
	rec := doRequest(t, d, http.MethodPost, "/v1/xor", XorRequest{
		Data:     b64(data),
		SaltName: "web",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp XorResponse
	decodeResponse(t, rec, &resp)
	out, _ := base64.StdEncoding.DecodeString(resp.Result)
	want, err := xor.Apply(data, salt)
	if err != nil {
		t.Fatalf("xor.Apply: %v", err)
	}
	if !bytes.Equal(out, want) {
		t.Errorf("result = %v, want %v", out, want)
	}
}

func TestApiXorSaltNameMissing(t *testing.T) {
	d := newTestDaemon(t)

	rec := doRequest(t, d, http.MethodPost, "/v1/xor", XorRequest{
		Data:     b64([]byte("payload")),
		SaltName: "nosuch",
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestApiPipelineRoundTrip(t *testing.T) {
	d := newTestDaemon(t)

	payload := []byte("api pipeline round trip")

	rec := doRequest(t, d, http.MethodPost, "/v1/pipeline/apply", PipelineRequest{Payload: b64(payload)})
	if rec.Code != http.StatusOK {
		t.Fatalf("apply status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var applied PipelineResponse
	decodeResponse(t, rec, &applied)
	if len(applied.Stages) != 1 || applied.Stages[0] != "xor" {
		t.Errorf("stages = %v, want [xor]", applied.Stages)
	}

	rec = doRequest(t, d, http.MethodPost, "/v1/pipeline/parse", PipelineRequest{Payload: applied.Result})
	if rec.Code != http.StatusOK {
		t.Fatalf("parse status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var parsed PipelineResponse
	decodeResponse(t, rec, &parsed)
	out, err := base64.StdEncoding.DecodeString(parsed.Result)
	if err != nil {
		t.Fatalf("parse result is not base64: %q", parsed.Result)
	}
	if !bytes.Equal(out, payload) {
		t.Errorf("parse(apply(payload)) = %q, want %q", out, payload)
	}
}

func TestApiStatus(t *testing.T) {
	d := newTestDaemon(t)

	rec := doRequest(t, d, http.MethodGet, "/v1/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp StatusResponse
	decodeResponse(t, rec, &resp)
	if resp.ID != "test-daemon" {
		t.Errorf("id = %q, want test-daemon", resp.ID)
	}
	if resp.PackageVersion != PackageVersion {
		t.Errorf("package_version = %q, want %q", resp.PackageVersion, PackageVersion)
	}
	if len(resp.Pipeline) != 1 || resp.Pipeline[0] != "xor" {
		t.Errorf("pipeline = %v, want [xor]", resp.Pipeline)
	}
}

func TestApiTransforms(t *testing.T) {
	d := newTestDaemon(t)

	rec := doRequest(t, d, http.MethodGet, "/v1/transforms", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp map[string][]TransformInfo
	decodeResponse(t, rec, &resp)
	byName := make(map[string]bool)
	for _, info := range resp["transforms"] {
		byName[info.Name] = info.NeedsKey
	}
	if !byName["xor"] {
		t.Errorf("transforms = %v, want xor marked as needing a key", resp["transforms"])
	}
	if needsKey, ok := byName["gzip"]; !ok || needsKey {
		t.Errorf("transforms = %v, want gzip listed without a key", resp["transforms"])
	}
}

func TestApiKeysLifecycle(t *testing.T) {
	d := newTestDaemon(t)

	rec := doRequest(t, d, http.MethodPost, "/v1/keys", KeyRequest{Name: "alpha", Salt: b64([]byte("alpha salt"))})
	if rec.Code != http.StatusCreated {
		t.Fatalf("post status = %d, body = %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, d, http.MethodGet, "/v1/keys", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	var listResp map[string][]keystore.Entry
	decodeResponse(t, rec, &listResp)
	salts := listResp["salts"]
	if len(salts) != 1 || salts[0].Name != "alpha" || salts[0].Length != len("alpha salt") {
		t.Errorf("salts = %+v, want one entry named alpha", salts)
	}

	rec = doRequest(t, d, http.MethodDelete, "/v1/keys/alpha", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d, body = %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, d, http.MethodDelete, "/v1/keys/alpha", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("second delete status = %d, want 404", rec.Code)
	}
}

func TestApiKeysRejectsBadName(t *testing.T) {
	d := newTestDaemon(t)

	rec := doRequest(t, d, http.MethodPost, "/v1/keys", KeyRequest{Name: "@ref", Salt: b64([]byte("salt"))})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestApiPipelineGraph(t *testing.T) {
	d := newTestDaemon(t)

	rec := doRequest(t, d, http.MethodGet, "/v1/pipeline/graph", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get(echo.HeaderContentType); !strings.Contains(ct, "text/vnd.graphviz") {
		t.Errorf("content type = %q, want graphviz dot", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "digraph") || !strings.Contains(body, `label="xor"`) {
		t.Errorf("graph body missing expected dot content:\n%s", body)
	}
}

func TestApiRequestID(t *testing.T) {
	d := newTestDaemon(t)

	rec := doRequest(t, d, http.MethodGet, "/v1/status", nil)
	id := rec.Header().Get(echo.HeaderXRequestID)
	if id == "" {
		t.Fatal("no request ID header on response")
	}
	if _, err := uuid.Parse(id); err != nil {
		t.Errorf("request ID %q is not a UUID: %v", id, err)
	}
}
