package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"sigs.k8s.io/yaml"

	"github.com/leptonai/portbounce/version"
)

type Healthz struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

func createHealthzHandler() func(ctx *gin.Context) {
	return func(c *gin.Context) {
		respond(c, Healthz{Status: "ok", Version: version.Version})
	}
}

func createStatusHandler(status StatusSource) func(ctx *gin.Context) {
	return func(c *gin.Context) {
		respond(c, status.Status())
	}
}

// Failures is the failure ledger of the run so far.
type Failures struct {
	RunID    string              `json:"run_id"`
	Failures map[string][]string `json:"failures"`
	Reported []string            `json:"reported,omitempty"`
}

func createFailuresHandler(status StatusSource) func(ctx *gin.Context) {
	return func(c *gin.Context) {
		st := status.Status()
		f := Failures{
			RunID:    st.RunID,
			Failures: make(map[string][]string, len(st.Failures)),
			Reported: st.Reported,
		}
		for port, msgs := range st.Failures {
			f.Failures[string(port)] = msgs
		}
		respond(c, f)
	}
}

// respond writes YAML if the request asks for it with its Content-Type,
// otherwise JSON, indented if the "json-indent" header is "true".
func respond(c *gin.Context, obj any) {
	if c.GetHeader("Content-Type") == "application/yaml" {
		yb, err := yaml.Marshal(obj)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "failed to marshal " + err.Error()})
			return
		}
		c.String(http.StatusOK, string(yb))
		return
	}
	if c.GetHeader("json-indent") == "true" {
		c.IndentedJSON(http.StatusOK, obj)
		return
	}
	c.JSON(http.StatusOK, obj)
}
