// SPDX-FileCopyrightText: 2025 The revdoc janitor contributors
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/revdoc/janitor/pkg/core/config"
	"github.com/revdoc/janitor/pkg/kb/cleanup"
)

// NewAPICommand returns a new command for interfacing with the HTTP trigger
// API.
func NewAPICommand() *cli.Command {
	cmd := &cli.Command{
		Name:  "api",
		Usage: "trigger api operations",
		Before: func(ctx *cli.Context) error {
			conf := getConfig(ctx)
			validatorFuncs := []func(c *config.Config) error{
				validateRedisConfig,
				validateDBConfig,
				validateAWSConfig,
				validateAPIConfig,
			}

			for _, validator := range validatorFuncs {
				if err := validator(conf); err != nil {
					return err
				}
			}

			return nil
		},
		Subcommands: []*cli.Command{
			{
				Name:    "start",
				Usage:   "start the trigger api",
				Aliases: []string{"s"},
				Action: func(ctx *cli.Context) error {
					conf := getConfig(ctx)
					cleaner, err := configureCleaner(ctx)
					if err != nil {
						return err
					}

					mux := http.NewServeMux()
					mux.Handle("POST /api/v1/cleanup", newCleanupHandler(cleaner))

					srv := &http.Server{
						Addr:              conf.API.Address,
						ReadHeaderTimeout: time.Second * 30,
						Handler:           mux,
					}

					slog.Info("starting trigger api", "address", conf.API.Address)

					return srv.ListenAndServe()
				},
			},
		},
	}

	return cmd
}

// newCleanupHandler returns the HTTP handler which accepts cleanup triggers.
// The request body is an optional JSON document carrying the days threshold
// for the run.
func newCleanupHandler(cleaner *cleanup.Cleaner) http.Handler {
	handler := func(w http.ResponseWriter, r *http.Request) {
		var trigger cleanup.Trigger
		body, err := io.ReadAll(r.Body)
		if err != nil {
			writeResponse(w, cleanup.Response{
				StatusCode: http.StatusBadRequest,
				Message:    "Invalid request body",
			})

			return
		}

		if len(body) > 0 {
			if err := json.Unmarshal(body, &trigger); err != nil {
				writeResponse(w, cleanup.Response{
					StatusCode: http.StatusBadRequest,
					Message:    "Invalid request body",
				})

				return
			}
		}

		resp, err := cleaner.Run(r.Context(), trigger)
		if err != nil {
			slog.Error("cleanup trigger failed", "reason", err)
			if errors.Is(err, cleanup.ErrUnknownJob) {
				resp = cleanup.Response{
					StatusCode: http.StatusNotFound,
					Message:    err.Error(),
				}
			}
		}

		writeResponse(w, resp)
	}

	return http.HandlerFunc(handler)
}

// writeResponse renders the given response as JSON.
func writeResponse(w http.ResponseWriter, resp cleanup.Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "reason", err)
	}
}
