/*
 * // Copyright 2020 Insolar Network Ltd.
 * // All rights reserved.
 * // This material is licensed under the Insolar License version 1.0,
 * // available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.
 */

package insertbot

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/pprof"

	"github.com/gin-gonic/gin"
	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RunStatus is served on /status while the runner is alive
type RunStatus struct {
	Name          string `json:"name"`
	RunID         string `json:"run_id"`
	State         string `json:"state"`
	Workload      string `json:"workload"`
	Endpoints     string `json:"endpoints"`
	ActiveWorkers int    `json:"active_workers"`
}

// Status current run status, safe to call from any goroutine
func (r *Runner) Status() RunStatus {
	return RunStatus{
		Name:          r.Name,
		RunID:         r.runID,
		State:         r.State().String(),
		Workload:      r.workload.TableName(),
		Endpoints:     r.factory.URI(),
		ActiveWorkers: r.driver.ActiveWorkers(),
	}
}

func statusHandler(r *Runner) http.Handler {
	gin.SetMode(gin.ReleaseMode)
	e := gin.New()
	e.GET("/metrics", gin.WrapH(promhttp.Handler()))
	pprofHandlers(e.Group("/debug/pprof"))
	e.GET("/status", func(c *gin.Context) {
		b, err := jsoniter.Marshal(r.Status())
		if err != nil {
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}
		c.Data(http.StatusOK, "application/json; charset=utf-8", b)
	})
	return e
}

// RunStatusServer serves prometheus metrics and run status
func RunStatusServer(addr string, r *Runner) *http.Server {
	srv := &http.Server{
		Addr:    addr,
		Handler: statusHandler(r),
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.L.Errorf("status server: %v", err)
		}
	}()
	return srv
}

func statusAddr(p *Prometheus) string {
	return fmt.Sprintf(":%d", p.Port)
}

func pprofHandlers(g *gin.RouterGroup) {
	g.GET("/", gin.WrapF(pprof.Index))
	g.GET("/cmdline", gin.WrapF(pprof.Cmdline))
	g.GET("/profile", gin.WrapF(pprof.Profile))
	g.GET("/symbol", gin.WrapF(pprof.Symbol))
	g.GET("/trace", gin.WrapF(pprof.Trace))
	for _, name := range []string{"allocs", "block", "goroutine", "heap", "mutex", "threadcreate"} {
		g.GET("/"+name, gin.WrapH(pprof.Handler(name)))
	}
}
