package main

import (
	"errors"
	"net/http"
	"net/http/pprof"
)

// 访问/debug/pprof/进入pprof实时分析页面，分析大批量空间连接时使用
func startHTTPDebugger(addr string) {
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	server := &http.Server{Addr: addr, Handler: mux}
	go func() {
		log.Infof("pprof listening at %v", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("pprof server stopped: %v", err)
		}
	}()
}
