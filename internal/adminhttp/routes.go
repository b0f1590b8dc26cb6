package adminhttp

import (
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// Register wires the admin surface's handlers onto r.
func Register(r *mux.Router, c *Controller, log *logrus.Entry) {
	r.Use(Logger(log))
	r.HandleFunc("/healthz", c.Healthz).Methods("GET")
	r.HandleFunc("/metrics", c.Metrics).Methods("GET")
	r.HandleFunc("/debug/flush", c.Flush).Methods("POST")
}
