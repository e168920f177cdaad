package http

import (
	"encoding/json"
	nethttp "net/http"

	"go-vboa-hmi-api/internal/groups"
	"go-vboa-hmi-api/internal/timeline"
)

const maxBodyBytes = 4 << 20

type groupsRequest struct {
	Paths     []string `json:"paths"`
	Delimiter string   `json:"delimiter"`
}

type timelineRequest struct {
	Records   []timeline.Record `json:"records"`
	Delimiter string            `json:"delimiter"`
}

func decodeBody(w nethttp.ResponseWriter, r *nethttp.Request, dst any) bool {
	r.Body = nethttp.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, nethttp.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func groupsHandler(defaultDelimiter string) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodPost {
			methodNotAllowed(w, nethttp.MethodPost)
			return
		}

		var req groupsRequest
		if !decodeBody(w, r, &req) {
			return
		}
		delim := req.Delimiter
		if delim == "" {
			delim = defaultDelimiter
		}

		descriptors := groups.Build(req.Paths, delim)
		recordBuild("groups", len(descriptors), 0)

		writeJSON(w, nethttp.StatusOK, map[string]any{
			"meta": map[string]any{
				"delimiter": delim,
				"paths":     len(req.Paths),
				"count":     len(descriptors),
			},
			"data": descriptors,
		})
	}
}

func timelineHandler(defaultDelimiter string) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodPost {
			methodNotAllowed(w, nethttp.MethodPost)
			return
		}

		var req timelineRequest
		if !decodeBody(w, r, &req) {
			return
		}
		delim := req.Delimiter
		if delim == "" {
			delim = defaultDelimiter
		}

		payload := timeline.Build(req.Records, delim)
		recordBuild("timeline", len(payload.Groups), len(payload.Items))

		meta := map[string]any{
			"delimiter": delim,
			"items":     len(payload.Items),
			"groups":    len(payload.Groups),
		}
		if start, stop, ok := timeline.Span(req.Records); ok {
			meta["start"] = start
			meta["stop"] = stop
		}

		writeJSON(w, nethttp.StatusOK, map[string]any{
			"meta": meta,
			"data": payload,
		})
	}
}
