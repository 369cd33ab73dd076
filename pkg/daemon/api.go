package daemon

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/teclabat/performance-go/internal/fn"
	"github.com/teclabat/performance-go/pkg/keystore"
	"github.com/teclabat/performance-go/pkg/log"
	"github.com/teclabat/performance-go/pkg/transform"
	"github.com/teclabat/performance-go/pkg/xor"
)

type DaemonApi struct {
	Api    *echo.Echo
	Daemon *Daemon
}

type XorRequest struct {
	Data     string `json:"data"`      // base64 payload
	Salt     string `json:"salt"`      // base64 salt
	SaltName string `json:"salt_name"` // keystore reference, alternative to salt
}

type XorResponse struct {
	Result string `json:"result"` // base64 transformed payload
	Size   int    `json:"size"`
}

type PipelineRequest struct {
	Payload string `json:"payload"` // base64
}

type PipelineResponse struct {
	Result string   `json:"result"` // base64
	Stages []string `json:"stages"`
}

type TransformInfo struct {
	Name     string `json:"name"`
	NeedsKey bool   `json:"needs_key"`
}

type StatusResponse struct {
	ID             string      `json:"id"`
	PackageVersion string      `json:"package_version"`
	DaemonVersion  string      `json:"daemon_version"`
	Uptime         string      `json:"uptime"`
	Pipeline       []string    `json:"pipeline"`
	Stats          DaemonStats `json:"stats"`
}

type KeyRequest struct {
	Name string `json:"name"`
	Salt string `json:"salt"` // base64
}

func NewDaemonApi(d *Daemon) *DaemonApi {
	api := echo.New()
	api.HideBanner = true
	api.HidePort = true

	dapi := &DaemonApi{
		Api:    api,
		Daemon: d,
	}

	api.Use(middleware.Recover())
	api.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))

	api.POST("/v1/xor", dapi.PostXor)
	api.POST("/v1/pipeline/apply", dapi.PostPipelineApply)
	api.POST("/v1/pipeline/parse", dapi.PostPipelineParse)
	api.GET("/v1/pipeline", dapi.GetPipeline)
	api.GET("/v1/pipeline/graph", dapi.GetPipelineGraph)
	api.GET("/v1/transforms", dapi.GetTransforms)
	api.GET("/v1/status", dapi.GetStatus)
	api.GET("/v1/keys", dapi.GetKeys)
	api.POST("/v1/keys", dapi.PostKey)
	api.DELETE("/v1/keys/:name", dapi.DeleteKey)

	return dapi
}

// apiError maps domain errors onto HTTP statuses: bad input is 400, a
// missing keystore entry is 404, the rest is 500.
func (dapi *DaemonApi) apiError(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	var corrupt base64.CorruptInputError
	switch {
	case errors.Is(err, keystore.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, xor.ErrEmptyKey),
		errors.Is(err, keystore.ErrEmptyName),
		errors.Is(err, keystore.ErrEmptySalt),
		errors.Is(err, keystore.ErrInvalidName),
		errors.As(err, &corrupt):
		status = http.StatusBadRequest
	}
	return c.JSON(status, map[string]string{"error": err.Error()})
}

func (dapi *DaemonApi) PostXor(c echo.Context) error {
	var req XorRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.Salt != "" && req.SaltName != "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "specify either salt or salt_name, not both"})
	}

	data, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		return dapi.apiError(c, err)
	}

	var salt []byte
	if req.SaltName != "" {
		salt, err = dapi.Daemon.keys.Get(req.SaltName)
	} else {
		salt, err = base64.StdEncoding.DecodeString(req.Salt)
	}
	if err != nil {
		return dapi.apiError(c, err)
	}

	result, err := xor.Apply(data, salt)
	if err != nil {
		return dapi.apiError(c, err)
	}

	d := dapi.Daemon
	d.XorOps.Add(1)
	d.BytesIn.Add(uint64(len(data)))
	d.BytesOut.Add(uint64(len(result)))

	return c.JSON(http.StatusOK, XorResponse{
		Result: base64.StdEncoding.EncodeToString(result),
		Size:   len(result),
	})
}

func (dapi *DaemonApi) runPipeline(c echo.Context, forward bool) error {
	var req PipelineRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	payload, err := base64.StdEncoding.DecodeString(req.Payload)
	if err != nil {
		return dapi.apiError(c, err)
	}

	d := dapi.Daemon
	var out []byte
	if forward {
		out, err = d.processor.PrepareOutput(payload)
	} else {
		out, err = d.processor.ParseInput(payload)
	}
	if err != nil {
		return dapi.apiError(c, err)
	}

	d.PipelineOps.Add(1)
	d.BytesIn.Add(uint64(len(payload)))
	d.BytesOut.Add(uint64(len(out)))

	return c.JSON(http.StatusOK, PipelineResponse{
		Result: base64.StdEncoding.EncodeToString(out),
		Stages: d.Stages(),
	})
}

func (dapi *DaemonApi) PostPipelineApply(c echo.Context) error {
	return dapi.runPipeline(c, true)
}

func (dapi *DaemonApi) PostPipelineParse(c echo.Context) error {
	return dapi.runPipeline(c, false)
}

func (dapi *DaemonApi) GetPipeline(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string][]string{"stages": dapi.Daemon.Stages()})
}

func (dapi *DaemonApi) GetPipelineGraph(c echo.Context) error {
	stages := dapi.Daemon.Stages()
	if c.QueryParam("format") == "svg" {
		svg, err := transform.RenderPipelineSVG(c.Request().Context(), stages)
		if err != nil {
			return dapi.apiError(c, err)
		}
		return c.Blob(http.StatusOK, "image/svg+xml", svg)
	}
	return c.Blob(http.StatusOK, "text/vnd.graphviz", []byte(transform.PipelineDOT(stages)))
}

func (dapi *DaemonApi) GetTransforms(c echo.Context) error {
	infos := fn.Map(transform.Names(), func(name string) TransformInfo {
		return TransformInfo{Name: name, NeedsKey: transform.NeedsKey(name)}
	})
	return c.JSON(http.StatusOK, map[string][]TransformInfo{"transforms": infos})
}

func (dapi *DaemonApi) GetStatus(c echo.Context) error {
	d := dapi.Daemon
	return c.JSON(http.StatusOK, StatusResponse{
		ID:             d.ID,
		PackageVersion: PackageVersion,
		DaemonVersion:  Version,
		Uptime:         d.Uptime().Round(time.Second).String(),
		Pipeline:       d.Stages(),
		Stats:          d.GetStats(),
	})
}

func (dapi *DaemonApi) GetKeys(c echo.Context) error {
	entries, err := dapi.Daemon.keys.List()
	if err != nil {
		return dapi.apiError(c, err)
	}
	if entries == nil {
		entries = []keystore.Entry{}
	}
	return c.JSON(http.StatusOK, map[string][]keystore.Entry{"salts": entries})
}

func (dapi *DaemonApi) PostKey(c echo.Context) error {
	var req KeyRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	salt, err := base64.StdEncoding.DecodeString(req.Salt)
	if err != nil {
		return dapi.apiError(c, err)
	}
	if err := dapi.Daemon.keys.Put(req.Name, salt); err != nil {
		return dapi.apiError(c, err)
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{"name": req.Name, "length": len(salt)})
}

func (dapi *DaemonApi) DeleteKey(c echo.Context) error {
	if err := dapi.Daemon.keys.Delete(c.Param("name")); err != nil {
		return dapi.apiError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Run serves the API until Shutdown is called.
func (dapi *DaemonApi) Run(addr string) {
	if err := dapi.Api.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Printf("api: server stopped: %v", err)
	}
}

// Shutdown stops the API server gracefully.
func (dapi *DaemonApi) Shutdown(ctx context.Context) error {
	return dapi.Api.Shutdown(ctx)
}
