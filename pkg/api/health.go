// Copyright 2022 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package api

import (
	"net/http"

	"github.com/sett/tracer"
	"github.com/sett/tracer/pkg/jsonhttp"
)

type healthStatusResponse struct {
	Status     string `json:"status"`
	Version    string `json:"version"`
	APIVersion string `json:"apiVersion"`
}

func (s *Service) healthHandler(w http.ResponseWriter, _ *http.Request) {
	status := s.probe.Healthy()
	jsonhttp.OK(w, healthStatusResponse{
		Status:     status.String(),
		Version:    tracer.Version,
		APIVersion: Version,
	})
}

type readyStatusResponse healthStatusResponse

func (s *Service) readinessHandler(w http.ResponseWriter, _ *http.Request) {
	if s.probe.Ready() == ProbeStatusOK {
		jsonhttp.OK(w, readyStatusResponse{
			Status:     "ready",
			Version:    tracer.Version,
			APIVersion: Version,
		})
	} else {
		jsonhttp.BadRequest(w, readyStatusResponse{
			Status:     "notReady",
			Version:    tracer.Version,
			APIVersion: Version,
		})
	}
}
